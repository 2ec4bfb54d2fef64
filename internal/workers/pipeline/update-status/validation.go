package updatestatus

import "botic-pipeline/internal/common/validation"

// newStatus is checked against the stage list by the pipeline itself so the
// caller gets the standard "Invalid status" error.
var inputSchema = validation.MustCompile(TaskType, `{
	"type": "object",
	"required": ["applicationId", "newStatus", "actor", "actorRole"],
	"properties": {
		"applicationId": {"type": "integer", "minimum": 1},
		"newStatus":     {"type": "string", "minLength": 1},
		"actor":         {"type": "string", "minLength": 1, "maxLength": 320},
		"actorRole":     {"type": "string", "enum": ["Admin", "Bot"]},
		"comment":       {"type": "string", "maxLength": 2000}
	}
}`)

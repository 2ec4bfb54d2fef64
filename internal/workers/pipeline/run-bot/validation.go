package runbot

import "botic-pipeline/internal/common/validation"

var inputSchema = validation.MustCompile(TaskType, `{
	"type": "object",
	"properties": {
		"dryRun":      {"type": "boolean"},
		"batchSize":   {"type": "integer", "minimum": 1},
		"triggeredBy": {"type": "string", "maxLength": 320}
	}
}`)

// internal/workers/pipeline/update-status/models.go
package updatestatus

type Input struct {
	ApplicationID int64  `json:"applicationId"`
	NewStatus     string `json:"newStatus"`
	Actor         string `json:"actor"`
	ActorRole     string `json:"actorRole"`
	Comment       string `json:"comment,omitempty"`
}

type Output struct {
	ApplicationID int64  `json:"applicationId"`
	OldStatus     string `json:"oldStatus"`
	NewStatus     string `json:"newStatus"`
	Message       string `json:"message"`
}

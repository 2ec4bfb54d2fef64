package models

type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	IsTechnical bool   `json:"isTechnical"`
}

// Actor roles recorded on activity log rows.
const (
	ActorRoleAdmin     = "Admin"
	ActorRoleBot       = "Bot"
	ActorRoleApplicant = "Applicant"
)

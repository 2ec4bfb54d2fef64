package models

import "time"

// ActivityLog is one append-only audit row for a status change.
type ActivityLog struct {
	ID            int64     `json:"id"`
	ApplicationID int64     `json:"applicationId"`
	OldStatus     *Status   `json:"oldStatus"`
	NewStatus     Status    `json:"newStatus"`
	UpdatedBy     string    `json:"updatedBy"`
	UpdatedByRole string    `json:"updatedByRole"`
	Comment       *string   `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

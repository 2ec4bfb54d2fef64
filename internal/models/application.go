package models

import "time"

type Application struct {
	ID                 int64      `json:"id"`
	ApplicantID        int64      `json:"applicantId"`
	RoleID             int64      `json:"roleId"`
	CurrentStatus      Status     `json:"currentStatus"`
	CreatedAt          time.Time  `json:"createdAt"`
	LastAutomatedRunAt *time.Time `json:"lastAutomatedRunAt,omitempty"`
	LockToken          *string    `json:"-"`
	Version            int64      `json:"version"`

	// Populated by lookups that join roles.
	RoleName    string `json:"roleName,omitempty"`
	IsTechnical bool   `json:"isTechnical"`

	// Populated by listings that join users.
	ApplicantName  string `json:"applicantName,omitempty"`
	ApplicantEmail string `json:"applicantEmail,omitempty"`
}

// Locked reports whether a writer currently holds the advisory lock.
func (a *Application) Locked() bool {
	return a.LockToken != nil
}

// CooledDown reports whether the last automated move is at least cooldown old.
func (a *Application) CooledDown(now time.Time, cooldown time.Duration) bool {
	if a.LastAutomatedRunAt == nil {
		return true
	}
	return !a.LastAutomatedRunAt.After(now.Add(-cooldown))
}

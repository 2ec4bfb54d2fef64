// Package policy defines which hiring-stage moves are legal and which stage
// the bot advances to next. Everything here is pure.
package policy

import (
	"strings"

	apperrors "botic-pipeline/internal/common/errors"
	"botic-pipeline/internal/models"
)

// stages is the forward order. Rejected sits outside it.
var stages = []models.Status{
	models.StatusApplied,
	models.StatusReviewed,
	models.StatusCodingRound,
	models.StatusTechnicalInterview,
	models.StatusHRInterview,
	models.StatusOffer,
	models.StatusHired,
}

var stageIndex = func() map[models.Status]int {
	idx := make(map[models.Status]int, len(stages))
	for i, s := range stages {
		idx[s] = i
	}
	return idx
}()

// All returns every status in display order, Rejected last.
func All() []models.Status {
	out := make([]models.Status, 0, len(stages)+1)
	out = append(out, stages...)
	return append(out, models.StatusRejected)
}

// Valid reports whether s is a known status.
func Valid(s models.Status) bool {
	if s == models.StatusRejected {
		return true
	}
	_, ok := stageIndex[s]
	return ok
}

// ParseStatus converts an exact status name.
func ParseStatus(s string) (models.Status, error) {
	status := models.Status(s)
	if !Valid(status) {
		names := make([]string, 0, len(stages)+1)
		for _, st := range All() {
			names = append(names, st.String())
		}
		return "", apperrors.NewValidationError(
			"Invalid status: "+s,
			"Valid statuses: "+strings.Join(names, ", "),
		)
	}
	return status, nil
}

// IsValidTransition allows any forward jump, and Rejected from anywhere but
// Hired. Self-transitions and moves out of Rejected are never valid.
func IsValidTransition(current, next models.Status) bool {
	if !Valid(current) || !Valid(next) {
		return false
	}
	if next == models.StatusRejected {
		return current != models.StatusHired && current != models.StatusRejected
	}
	if current == models.StatusRejected {
		return false
	}
	return stageIndex[next] > stageIndex[current]
}

// AllowedTargets lists the statuses IsValidTransition accepts from current.
func AllowedTargets(current models.Status) []string {
	allowed := []string{}
	for _, s := range All() {
		if IsValidTransition(current, s) {
			allowed = append(allowed, s.String())
		}
	}
	return allowed
}

// CheckTransition returns a TRANSITION_ERROR carrying the allowed targets.
func CheckTransition(current, next models.Status) error {
	if IsValidTransition(current, next) {
		return nil
	}
	return apperrors.NewTransitionError(current.String(), next.String(), AllowedTargets(current))
}

// NextAutomatedStatus is the immediate successor the bot may move to. Offer,
// Hired and Rejected have none: an offer is accepted by a person.
func NextAutomatedStatus(current models.Status) (models.Status, bool) {
	switch current {
	case models.StatusOffer, models.StatusHired, models.StatusRejected:
		return "", false
	}
	i, ok := stageIndex[current]
	if !ok {
		return "", false
	}
	return stages[i+1], true
}

// IsAutomationEligible excludes Hired and Offer from bot selection.
func IsAutomationEligible(current models.Status) bool {
	return current != models.StatusHired && current != models.StatusOffer
}

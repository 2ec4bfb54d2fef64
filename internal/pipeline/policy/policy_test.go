package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "botic-pipeline/internal/common/errors"
	"botic-pipeline/internal/models"
)

func TestIsValidTransition_TruthTable(t *testing.T) {
	order := map[models.Status]int{
		models.StatusApplied:            0,
		models.StatusReviewed:           1,
		models.StatusCodingRound:        2,
		models.StatusTechnicalInterview: 3,
		models.StatusHRInterview:        4,
		models.StatusOffer:              5,
		models.StatusHired:              6,
	}

	for _, from := range All() {
		for _, to := range All() {
			var want bool
			switch {
			case to == models.StatusRejected:
				want = from != models.StatusHired && from != models.StatusRejected
			case from == models.StatusRejected:
				want = false
			default:
				want = order[to] > order[from]
			}
			assert.Equal(t, want, IsValidTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestIsValidTransition_NamedCases(t *testing.T) {
	assert.False(t, IsValidTransition(models.StatusHRInterview, models.StatusReviewed))
	assert.True(t, IsValidTransition(models.StatusApplied, models.StatusHRInterview))
	assert.True(t, IsValidTransition(models.StatusCodingRound, models.StatusRejected))
	assert.False(t, IsValidTransition(models.StatusHired, models.StatusRejected))
	assert.False(t, IsValidTransition(models.StatusReviewed, models.StatusReviewed))
	assert.False(t, IsValidTransition(models.Status("Ghost"), models.StatusReviewed))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("TechnicalInterview")
	require.NoError(t, err)
	assert.Equal(t, models.StatusTechnicalInterview, s)

	_, err = ParseStatus("applied")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Contains(t, err.Error(), "Applied, Reviewed, CodingRound")
}

func TestCheckTransition_CarriesAllowedTargets(t *testing.T) {
	err := CheckTransition(models.StatusOffer, models.StatusApplied)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTransition)
	assert.Equal(t, []string{"Hired", "Rejected"}, apperrors.AllowedTargets(err))

	assert.NoError(t, CheckTransition(models.StatusOffer, models.StatusHired))
	assert.Empty(t, AllowedTargets(models.StatusHired))
	assert.Empty(t, AllowedTargets(models.StatusRejected))
}

func TestNextAutomatedStatus(t *testing.T) {
	tests := []struct {
		from   models.Status
		want   models.Status
		wantOK bool
	}{
		{models.StatusApplied, models.StatusReviewed, true},
		{models.StatusReviewed, models.StatusCodingRound, true},
		{models.StatusCodingRound, models.StatusTechnicalInterview, true},
		{models.StatusTechnicalInterview, models.StatusHRInterview, true},
		{models.StatusHRInterview, models.StatusOffer, true},
		{models.StatusOffer, "", false},
		{models.StatusHired, "", false},
		{models.StatusRejected, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			got, ok := NextAutomatedStatus(tt.from)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			if ok {
				assert.True(t, IsValidTransition(tt.from, got))
			}
		})
	}
}

func TestIsAutomationEligible(t *testing.T) {
	assert.False(t, IsAutomationEligible(models.StatusHired))
	assert.False(t, IsAutomationEligible(models.StatusOffer))
	assert.True(t, IsAutomationEligible(models.StatusApplied))
	assert.True(t, IsAutomationEligible(models.StatusRejected))
}

package models

import "math"

// Page is one window of a paginated listing.
type Page[T any] struct {
	TotalCount int64 `json:"totalCount"`
	Count      int   `json:"count"`
	Skip       int   `json:"skip"`
	Take       int   `json:"take"`
	Data       []T   `json:"data"`
}

// ApplicantStats summarizes one applicant's applications. SuccessRate is the
// hired share in percent, rounded to two decimals.
type ApplicantStats struct {
	TotalApplications int64   `json:"totalApplications"`
	Applied           int64   `json:"applied"`
	Reviewed          int64   `json:"reviewed"`
	Offered           int64   `json:"offered"`
	Hired             int64   `json:"hired"`
	SuccessRate       float64 `json:"successRate"`
}

// NewApplicantStats folds per-status counts into the applicant summary.
func NewApplicantStats(counts map[Status]int64) *ApplicantStats {
	stats := &ApplicantStats{
		Applied:  counts[StatusApplied],
		Reviewed: counts[StatusReviewed],
		Offered:  counts[StatusOffer],
		Hired:    counts[StatusHired],
	}
	for _, n := range counts {
		stats.TotalApplications += n
	}
	if stats.TotalApplications > 0 {
		rate := float64(stats.Hired) / float64(stats.TotalApplications) * 100
		stats.SuccessRate = math.Round(rate*100) / 100
	}
	return stats
}

type AdminStats struct {
	TotalApplications        int64 `json:"totalApplications"`
	TechnicalApplications    int64 `json:"technicalApplications"`
	NonTechnicalApplications int64 `json:"nonTechnicalApplications"`
	TotalUsers               int64 `json:"totalUsers"`
	TotalRoles               int64 `json:"totalRoles"`
	BotRuns                  int64 `json:"botRuns"`
}

// Dashboard is keyed by the viewer's role; exactly one section is set.
type Dashboard struct {
	Role      string          `json:"role"`
	Applicant *ApplicantStats `json:"applicant,omitempty"`
	Admin     *AdminStats     `json:"admin,omitempty"`
	Bot       *BotStats       `json:"bot,omitempty"`
}

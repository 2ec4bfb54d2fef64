package models

// Status is a hiring stage.
type Status string

const (
	StatusApplied            Status = "Applied"
	StatusReviewed           Status = "Reviewed"
	StatusCodingRound        Status = "CodingRound"
	StatusTechnicalInterview Status = "TechnicalInterview"
	StatusHRInterview        Status = "HRInterview"
	StatusOffer              Status = "Offer"
	StatusHired              Status = "Hired"
	StatusRejected           Status = "Rejected"
)

func (s Status) String() string {
	return string(s)
}

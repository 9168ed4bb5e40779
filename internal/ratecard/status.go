package ratecard

// Status is the lifecycle state of a pricing set.
type Status string

const (
	// StatusDraft pricing sets are being assembled and may be incomplete.
	StatusDraft Status = "draft"
	// StatusActive is the single pricing set new quotes are priced against.
	StatusActive Status = "active"
	// StatusArchived pricing sets are kept so historical quotes stay auditable.
	StatusArchived Status = "archived"
)

// IsValid checks if the status is one of the defined constants.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusArchived:
		return true
	}
	return false
}

// CanTransitionTo reports whether s may move to next.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusActive || next == StatusArchived
	case StatusActive:
		return next == StatusArchived
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

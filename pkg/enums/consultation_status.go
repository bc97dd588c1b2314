package enums

import "fmt"

// ConsultationStatus tracks the pre-production consultation lifecycle.
type ConsultationStatus string

const (
	ConsultationStatusPending    ConsultationStatus = "pending"
	ConsultationStatusInProgress ConsultationStatus = "in_progress"
	ConsultationStatusCompleted  ConsultationStatus = "completed"
	ConsultationStatusWaived     ConsultationStatus = "waived"
	ConsultationStatusExpired    ConsultationStatus = "expired"
)

var validConsultationStatuses = []ConsultationStatus{
	ConsultationStatusPending,
	ConsultationStatusInProgress,
	ConsultationStatusCompleted,
	ConsultationStatusWaived,
	ConsultationStatusExpired,
}

// String implements fmt.Stringer.
func (s ConsultationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ConsultationStatus.
func (s ConsultationStatus) IsValid() bool {
	for _, candidate := range validConsultationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the consultation can no longer change state.
func (s ConsultationStatus) IsTerminal() bool {
	switch s {
	case ConsultationStatusCompleted, ConsultationStatusWaived, ConsultationStatusExpired:
		return true
	default:
		return false
	}
}

// ParseConsultationStatus converts raw input into a ConsultationStatus.
func ParseConsultationStatus(value string) (ConsultationStatus, error) {
	for _, candidate := range validConsultationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid consultation status %q", value)
}

package enums

import "fmt"

// AdjustmentStatus tracks a price adjustment proposal.
type AdjustmentStatus string

const (
	AdjustmentStatusPending  AdjustmentStatus = "pending"
	AdjustmentStatusApproved AdjustmentStatus = "approved"
	AdjustmentStatusRejected AdjustmentStatus = "rejected"
	AdjustmentStatusExpired  AdjustmentStatus = "expired"
)

var validAdjustmentStatuses = []AdjustmentStatus{
	AdjustmentStatusPending,
	AdjustmentStatusApproved,
	AdjustmentStatusRejected,
	AdjustmentStatusExpired,
}

// String implements fmt.Stringer.
func (s AdjustmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AdjustmentStatus.
func (s AdjustmentStatus) IsValid() bool {
	for _, candidate := range validAdjustmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the adjustment has been resolved one way or another.
func (s AdjustmentStatus) IsTerminal() bool {
	return s != AdjustmentStatusPending && s.IsValid()
}

// ParseAdjustmentStatus converts raw input into an AdjustmentStatus.
func ParseAdjustmentStatus(value string) (AdjustmentStatus, error) {
	for _, candidate := range validAdjustmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid adjustment status %q", value)
}

// AdjustmentType records the sign of a price adjustment, derived from the
// proposed price relative to the original.
type AdjustmentType string

const (
	AdjustmentTypeIncrease AdjustmentType = "increase"
	AdjustmentTypeDecrease AdjustmentType = "decrease"
)

// String implements fmt.Stringer.
func (t AdjustmentType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known AdjustmentType.
func (t AdjustmentType) IsValid() bool {
	return t == AdjustmentTypeIncrease || t == AdjustmentTypeDecrease
}

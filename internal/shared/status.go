package shared

// MembershipStatus is the closed set of membership states. Values are
// resolved against the membership_statuses table once at startup; runtime
// code compares constants and never looks names up again.
type MembershipStatus string

const (
	MembershipStatusNew       MembershipStatus = "New"
	MembershipStatusCurrent   MembershipStatus = "Current"
	MembershipStatusGrace     MembershipStatus = "Grace"
	MembershipStatusExpired   MembershipStatus = "Expired"
	MembershipStatusPending   MembershipStatus = "Pending"
	MembershipStatusCancelled MembershipStatus = "Cancelled"
)

// AllMembershipStatuses enumerates every valid status value.
var AllMembershipStatuses = []MembershipStatus{
	MembershipStatusNew,
	MembershipStatusCurrent,
	MembershipStatusGrace,
	MembershipStatusExpired,
	MembershipStatusPending,
	MembershipStatusCancelled,
}

// Inactive reports whether the status denies coverage. Periods created while
// a membership is pending or cancelled start out deactivated.
func (s MembershipStatus) Inactive() bool {
	return s == MembershipStatusPending || s == MembershipStatusCancelled
}

// Valid reports whether s belongs to the closed status set.
func (s MembershipStatus) Valid() bool {
	for _, known := range AllMembershipStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Package periods implements the membership period reconciliation engine:
// the interval algebra applied before membership edits, the post-payment
// period bookkeeping, and the overdue sweep.
package periods

import "time"

// LinkKind identifies the payment entity backing a period.
type LinkKind string

const (
	LinkNone          LinkKind = ""
	LinkPayment       LinkKind = "payment"
	LinkRecurringPlan LinkKind = "recurring_plan"
)

// PaymentLink references the payment source funding a period. A period has
// exactly one payment source or none; single-payment and recurring-plan links
// are mutually exclusive by construction.
type PaymentLink struct {
	Kind LinkKind
	ID   int64
}

// IsZero reports whether the period has no payment source.
func (l PaymentLink) IsZero() bool {
	return l.Kind == LinkNone
}

// Period is one contiguous inclusive date range of a membership's coverage.
// Dates carry day granularity; active periods of a membership never overlap.
type Period struct {
	ID           int64
	MembershipID int64
	StartDate    time.Time
	EndDate      time.Time
	IsActive     bool
	Link         PaymentLink
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Day truncates a timestamp to UTC midnight. All period comparisons happen at
// day granularity.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

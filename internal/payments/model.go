// Package payments adapts payment lifecycle events into period bookkeeping
// and exposes the payment registry the engine reads from.
package payments

import "time"

// ContributionStatus enumerates payment states as reported by the host
// system.
type ContributionStatus string

const (
	ContributionPending   ContributionStatus = "Pending"
	ContributionCompleted ContributionStatus = "Completed"
	ContributionCancelled ContributionStatus = "Cancelled"
	ContributionFailed    ContributionStatus = "Failed"
	ContributionRefunded  ContributionStatus = "Refunded"
)

// Payment is a single contribution, possibly one installment of a recurring
// plan.
type Payment struct {
	ID          int64
	Status      ContributionStatus
	ReceiveDate time.Time
	PlanID      *int64
}

// RecurringPlan is a payment arrangement with scheduled installments backing
// one or more periods.
type RecurringPlan struct {
	ID           int64
	Installments int
	Status       ContributionStatus
	ProcessorID  *int64
}

// LineItem is one purchased item of a recurring plan. The host system can
// attribute it to the wrong membership when several membership types are
// bought together; the adapter corrects that.
type LineItem struct {
	ID               int64
	PlanID           int64
	MembershipTypeID int64
	MembershipID     int64
}

// EventKind distinguishes payment lifecycle events.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
)

// Event is a payment lifecycle notification from the host system. The
// adapter re-reads payment state from the registry rather than trusting the
// event payload.
type Event struct {
	Kind            EventKind
	EventID         string
	PaymentID       int64
	MembershipID    int64
	RecurringPlanID *int64
	KnownPeriodID   *int64
}

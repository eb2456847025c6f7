package periods

import (
	"context"
	"errors"
	"time"
)

// ErrPeriodNotFound indicates an update against a period id that does not exist.
var ErrPeriodNotFound = errors.New("periods: period not found")

// PeriodUpdate carries the fields of a partial period update. Nil fields are
// left untouched.
type PeriodUpdate struct {
	StartDate *time.Time
	EndDate   *time.Time
	IsActive  *bool
	Link      *PaymentLink
}

// Store is the persistence port required by the reconciliation engine.
// Lookups return (nil, nil) when no matching period exists; writes are
// visible to subsequent reads within the same logical operation.
type Store interface {
	// FirstActive returns the active period with the earliest start date.
	FirstActive(ctx context.Context, membershipID int64) (*Period, error)
	// LastActive returns the active period with the latest start date.
	LastActive(ctx context.Context, membershipID int64) (*Period, error)
	// Last returns the most recent period by start date, active or not.
	Last(ctx context.Context, membershipID int64) (*Period, error)
	// FindByLink returns the period backed by the given payment source.
	FindByLink(ctx context.Context, link PaymentLink) (*Period, error)
	// ActiveLinked lists all active periods that carry a payment link,
	// across memberships. Used by the overdue sweep.
	ActiveLinked(ctx context.Context) ([]Period, error)
	Create(ctx context.Context, p Period) (int64, error)
	Update(ctx context.Context, id int64, upd PeriodUpdate) error
}

// TxStore is a Store that can run a function transactionally: every write
// issued through the Store handed to fn commits atomically, or not at all
// when fn returns an error.
type TxStore interface {
	Store
	InTx(ctx context.Context, fn func(Store) error) error
}

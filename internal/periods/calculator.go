package periods

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/memberline/memberline/internal/shared"
)

// ValidationError reports a date-ordering violation found while reconciling
// periods against a proposed membership edit. It aborts the edit.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

var (
	// ErrEndDatePrecedesCoverage fires when the proposed end date falls
	// before the start of the last active period.
	ErrEndDatePrecedesCoverage = &ValidationError{Reason: "end date precedes existing coverage"}
	// ErrJoinDateExceedsCoverage fires when the proposed join date falls
	// after the end of the first active period.
	ErrJoinDateExceedsCoverage = &ValidationError{Reason: "join date exceeds existing coverage"}
)

// IsValidation reports whether err is a reconciliation validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ContributionRef describes the payment link derived from a contribution:
// the parent recurring plan when one exists, otherwise the contribution
// itself.
type ContributionRef struct {
	Link      PaymentLink
	Completed bool
}

// ContributionSource resolves contribution ids to payment links. Missing
// contributions surface as shared.LookupError.
type ContributionSource interface {
	Contribution(ctx context.Context, id int64) (ContributionRef, error)
}

// MembershipState is the stored membership snapshot an edit is applied to.
type MembershipState struct {
	JoinDate time.Time
	EndDate  time.Time
	Status   shared.MembershipStatus
}

// EditInput carries a proposed membership edit into reconciliation. Nil
// pointer fields mean "not part of this edit".
type EditInput struct {
	MembershipID int64
	Current      MembershipState

	JoinDate   *time.Time
	EndDate    *time.Time
	AltEndDate *time.Time
	Status     *shared.MembershipStatus

	// ContributionID is the payment backing any period created by this
	// edit; its parent recurring plan wins when one exists.
	ContributionID *int64
	// RenewalDate overrides the start of a forward extension when it lands
	// after the end of current coverage and before the new end date.
	RenewalDate *time.Time
}

// Calculator reconciles a membership's stored periods with a proposed edit
// before the edit commits.
type Calculator struct {
	payments ContributionSource
	logger   *slog.Logger
}

// NewCalculator constructs a Calculator.
func NewCalculator(payments ContributionSource, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{payments: payments, logger: logger}
}

// Reconcile applies the edit-time interval algebra against store. The four
// mutation checks (shrink last, shrink first, extend forward, extend
// backward) are evaluated independently against the boundaries read up
// front, so several may fire within one call. Boundary equality never
// triggers a mutation. Callers are expected to hand in a transactional
// store so the mutations commit atomically.
func (c *Calculator) Reconcile(ctx context.Context, store Store, in EditInput) error {
	joinDate := Day(in.Current.JoinDate)
	if in.JoinDate != nil {
		joinDate = Day(*in.JoinDate)
	}
	endDate := resolveEndDate(in)

	lastActive, err := store.LastActive(ctx, in.MembershipID)
	if err != nil {
		return err
	}
	if lastActive == nil {
		if err := c.bootstrapActivation(ctx, store, in); err != nil {
			return err
		}
	}

	first, err := store.FirstActive(ctx, in.MembershipID)
	if err != nil {
		return err
	}
	last, err := store.LastActive(ctx, in.MembershipID)
	if err != nil {
		return err
	}
	if first == nil || last == nil {
		return nil
	}

	firstStart, firstEnd := Day(first.StartDate), Day(first.EndDate)
	lastStart, lastEnd := Day(last.StartDate), Day(last.EndDate)

	if endDate.Before(lastStart) {
		return ErrEndDatePrecedesCoverage
	}
	if joinDate.After(firstEnd) {
		return ErrJoinDateExceedsCoverage
	}

	if endDate.After(lastStart) && endDate.Before(lastEnd) {
		end := endDate
		if err := store.Update(ctx, last.ID, PeriodUpdate{EndDate: &end}); err != nil {
			return err
		}
	}

	if joinDate.After(firstStart) && joinDate.Before(firstEnd) {
		start := joinDate
		if err := store.Update(ctx, first.ID, PeriodUpdate{StartDate: &start}); err != nil {
			return err
		}
	}

	if endDate.After(lastEnd) {
		start := lastEnd.AddDate(0, 0, 1)
		if in.RenewalDate != nil {
			renewal := Day(*in.RenewalDate)
			if renewal.After(start) && renewal.Before(endDate) {
				start = renewal
			}
		}
		active := true
		if in.Status != nil && in.Status.Inactive() {
			active = false
		}
		link, err := c.linkFor(ctx, in.ContributionID)
		if err != nil {
			return err
		}
		if _, err := store.Create(ctx, Period{
			MembershipID: in.MembershipID,
			StartDate:    start,
			EndDate:      endDate,
			IsActive:     active,
			Link:         link,
		}); err != nil {
			return err
		}
	}

	if joinDate.Before(firstStart) {
		link, err := c.linkFor(ctx, in.ContributionID)
		if err != nil {
			return err
		}
		// Backfilled coverage is always active: it fills a gap the
		// membership already paid for.
		if _, err := store.Create(ctx, Period{
			MembershipID: in.MembershipID,
			StartDate:    joinDate,
			EndDate:      firstStart.AddDate(0, 0, -1),
			IsActive:     true,
			Link:         link,
		}); err != nil {
			return err
		}
	}

	return nil
}

// resolveEndDate picks the effective end date: proposed end date, then the
// alternate proposed field, then the stored value. First non-empty wins.
func resolveEndDate(in EditInput) time.Time {
	switch {
	case in.EndDate != nil:
		return Day(*in.EndDate)
	case in.AltEndDate != nil:
		return Day(*in.AltEndDate)
	default:
		return Day(in.Current.EndDate)
	}
}

// bootstrapActivation restores coverage for a membership that currently has
// no active period: either the edit moves the membership out of a
// pending/cancelled state, or the backing payment of a deactivated period
// has completed and the period comes back.
func (c *Calculator) bootstrapActivation(ctx context.Context, store Store, in EditInput) error {
	activate := true

	if in.Status != nil && in.Current.Status.Inactive() && !in.Status.Inactive() {
		last, err := store.Last(ctx, in.MembershipID)
		if err != nil {
			return err
		}
		if last != nil && !last.IsActive {
			return store.Update(ctx, last.ID, PeriodUpdate{IsActive: &activate})
		}
		return nil
	}

	if in.ContributionID == nil {
		return nil
	}
	ref, err := c.payments.Contribution(ctx, *in.ContributionID)
	if err != nil {
		return err
	}
	if !ref.Completed {
		return nil
	}
	match, err := store.FindByLink(ctx, ref.Link)
	if err != nil {
		return err
	}
	if match != nil && !match.IsActive {
		c.logger.Debug("reactivating period on payment completion",
			slog.Int64("membership_id", in.MembershipID),
			slog.Int64("period_id", match.ID))
		return store.Update(ctx, match.ID, PeriodUpdate{IsActive: &activate})
	}
	return nil
}

func (c *Calculator) linkFor(ctx context.Context, contributionID *int64) (PaymentLink, error) {
	if contributionID == nil {
		return PaymentLink{}, nil
	}
	ref, err := c.payments.Contribution(ctx, *contributionID)
	if err != nil {
		return PaymentLink{}, err
	}
	return ref.Link, nil
}

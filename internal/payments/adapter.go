package payments

import (
	"context"
	"log/slog"

	"github.com/memberline/memberline/internal/membership"
	"github.com/memberline/memberline/internal/periods"
)

// RegistryPort is the payment persistence the adapter needs.
type RegistryPort interface {
	Payment(ctx context.Context, id int64) (Payment, error)
	Plan(ctx context.Context, id int64) (RecurringPlan, error)
	ContributionCount(ctx context.Context, planID int64) (int, error)
	PlanLineItems(ctx context.Context, planID int64) ([]LineItem, error)
	UpdateLineItemMembership(ctx context.Context, lineItemID, membershipID int64) error
}

// MembershipSource is the membership view the adapter needs.
type MembershipSource interface {
	Get(ctx context.Context, id int64) (membership.Membership, error)
	TypeOf(ctx context.Context, typeID int64) (membership.Type, error)
}

// Adapter reconciles periods after a payment commits: it corrects misplaced
// line-item references, opens placeholder periods for pending payments, and
// links unbacked periods to their payment source.
type Adapter struct {
	registry    RegistryPort
	memberships MembershipSource
	store       periods.Store
	logger      *slog.Logger
}

// NewAdapter constructs an Adapter.
func NewAdapter(registry RegistryPort, memberships MembershipSource, store periods.Store, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		registry:    registry,
		memberships: memberships,
		store:       store,
		logger:      logger,
	}
}

// HandleCreated processes a payment creation event. Repeat deliveries of the
// same event id within scope are skipped. Missing referenced entities are
// fatal and propagate as lookup errors.
func (a *Adapter) HandleCreated(ctx context.Context, scope *Scope, ev Event) error {
	if ev.Kind != EventCreated {
		return nil
	}
	if scope.Observe(ev.EventID) > 1 {
		a.logger.Debug("skipping duplicate payment event", slog.String("event_id", ev.EventID))
		return nil
	}

	m, err := a.memberships.Get(ctx, ev.MembershipID)
	if err != nil {
		return err
	}
	pay, err := a.registry.Payment(ctx, ev.PaymentID)
	if err != nil {
		return err
	}
	var plan *RecurringPlan
	if pay.PlanID != nil {
		p, err := a.registry.Plan(ctx, *pay.PlanID)
		if err != nil {
			return err
		}
		plan = &p
	}

	if plan != nil {
		if err := a.fixLineItemReference(ctx, m, plan.ID); err != nil {
			return err
		}
	}

	if pay.Status == ContributionPending {
		if err := a.ensurePendingPeriod(ctx, m, plan, ev.KnownPeriodID); err != nil {
			return err
		}
	}

	return a.linkLastPeriod(ctx, m.ID, pay, plan)
}

// fixLineItemReference repoints a plan line item at the membership this
// event belongs to. The host system records recurring line items against the
// first membership of a price set; the line item whose membership type
// matches this membership identifies the real owner. Ties break on the
// lowest line-item id.
func (a *Adapter) fixLineItemReference(ctx context.Context, m membership.Membership, planID int64) error {
	items, err := a.registry.PlanLineItems(ctx, planID)
	if err != nil {
		return err
	}

	var match *LineItem
	for i := range items {
		item := items[i]
		if item.MembershipTypeID != m.TypeID {
			continue
		}
		if match == nil || item.ID < match.ID {
			match = &item
		}
	}
	if match == nil || match.MembershipID == m.ID {
		return nil
	}

	a.logger.Info("correcting recurring line item membership reference",
		slog.Int64("line_item_id", match.ID),
		slog.Int64("recorded_membership_id", match.MembershipID),
		slog.Int64("membership_id", m.ID))
	return a.registry.UpdateLineItemMembership(ctx, match.ID, m.ID)
}

// ensurePendingPeriod guarantees a pending payment has an inactive period
// waiting for it: deactivate the already-known period, or create a new
// inactive one past current coverage. For a plan the membership is not
// linked to yet, only the first installment opens coverage; later pending
// installments pay for coverage that already exists and create nothing.
func (a *Adapter) ensurePendingPeriod(ctx context.Context, m membership.Membership, plan *RecurringPlan, knownPeriodID *int64) error {
	if plan != nil && m.RecurringPlanID == nil {
		first, err := a.isFirstInstallment(ctx, plan.ID)
		if err != nil {
			return err
		}
		if !first {
			a.logger.Debug("pending installment on an established plan, no period needed",
				slog.Int64("plan_id", plan.ID),
				slog.Int64("membership_id", m.ID))
			return nil
		}
	}

	if knownPeriodID != nil {
		inactive := false
		return a.store.Update(ctx, *knownPeriodID, periods.PeriodUpdate{IsActive: &inactive})
	}

	start := periods.Day(m.JoinDate)
	lastActive, err := a.store.LastActive(ctx, m.ID)
	if err != nil {
		return err
	}
	if lastActive != nil {
		start = periods.Day(lastActive.EndDate).AddDate(0, 0, 1)
	}

	t, err := a.memberships.TypeOf(ctx, m.TypeID)
	if err != nil {
		return err
	}
	end, err := membership.EndDate(start, t.Duration)
	if err != nil {
		return err
	}

	_, err = a.store.Create(ctx, periods.Period{
		MembershipID: m.ID,
		StartDate:    start,
		EndDate:      end,
		IsActive:     false,
	})
	return err
}

func (a *Adapter) isFirstInstallment(ctx context.Context, planID int64) (bool, error) {
	n, err := a.registry.ContributionCount(ctx, planID)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// linkLastPeriod backs the membership's most recent period with this
// payment's source when it has none yet: the recurring plan when one exists,
// the payment itself otherwise.
func (a *Adapter) linkLastPeriod(ctx context.Context, membershipID int64, pay Payment, plan *RecurringPlan) error {
	last, err := a.store.Last(ctx, membershipID)
	if err != nil {
		return err
	}
	if last == nil || !last.Link.IsZero() {
		return nil
	}

	link := periods.PaymentLink{Kind: periods.LinkPayment, ID: pay.ID}
	if plan != nil {
		link = periods.PaymentLink{Kind: periods.LinkRecurringPlan, ID: plan.ID}
	}
	return a.store.Update(ctx, last.ID, periods.PeriodUpdate{Link: &link})
}

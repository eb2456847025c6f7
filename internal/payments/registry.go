package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memberline/memberline/internal/membership"
	"github.com/memberline/memberline/internal/periods"
	"github.com/memberline/memberline/internal/shared"
)

// Registry reads payments, recurring plans, and plan line items from
// PostgreSQL. It serves the adapter, the period calculator, and the sweeper
// through their respective ports.
type Registry struct {
	pool *pgxpool.Pool
}

// NewRegistry constructs a Registry.
func NewRegistry(pool *pgxpool.Pool) *Registry {
	return &Registry{pool: pool}
}

// Payment loads a single contribution. Missing records surface as
// shared.LookupError.
func (r *Registry) Payment(ctx context.Context, id int64) (Payment, error) {
	var p Payment
	var status string
	var planID pgtype.Int8
	err := r.pool.QueryRow(ctx, `SELECT id, status, receive_date, plan_id
FROM payments WHERE id=$1`, id).
		Scan(&p.ID, &status, &p.ReceiveDate, &planID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, shared.NewLookupError("payment", id)
		}
		return Payment{}, err
	}
	p.Status = ContributionStatus(status)
	if planID.Valid {
		p.PlanID = &planID.Int64
	}
	return p, nil
}

// Plan loads a recurring plan. Missing records surface as
// shared.LookupError.
func (r *Registry) Plan(ctx context.Context, id int64) (RecurringPlan, error) {
	var plan RecurringPlan
	var status string
	var processorID pgtype.Int8
	err := r.pool.QueryRow(ctx, `SELECT id, installments, status, processor_id
FROM recurring_plans WHERE id=$1`, id).
		Scan(&plan.ID, &plan.Installments, &status, &processorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RecurringPlan{}, shared.NewLookupError("recurring plan", id)
		}
		return RecurringPlan{}, err
	}
	plan.Status = ContributionStatus(status)
	if processorID.Valid {
		plan.ProcessorID = &processorID.Int64
	}
	return plan, nil
}

// ContributionCount counts the contributions recorded against a plan.
func (r *Registry) ContributionCount(ctx context.Context, planID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE plan_id=$1`, planID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("payments: count plan %d contributions: %w", planID, err)
	}
	return n, nil
}

// PlanLineItems lists the line items of a recurring plan ordered by id.
func (r *Registry) PlanLineItems(ctx context.Context, planID int64) ([]LineItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, plan_id, membership_type_id, membership_id
FROM plan_line_items WHERE plan_id=$1 ORDER BY id`, planID)
	if err != nil {
		return nil, fmt.Errorf("payments: list plan %d line items: %w", planID, err)
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.ID, &item.PlanID, &item.MembershipTypeID, &item.MembershipID); err != nil {
			return nil, fmt.Errorf("payments: scan line item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateLineItemMembership repoints a line item at another membership.
func (r *Registry) UpdateLineItemMembership(ctx context.Context, lineItemID, membershipID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE plan_line_items SET membership_id=$1, updated_at=NOW() WHERE id=$2`,
		membershipID, lineItemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewLookupError("plan line item", lineItemID)
	}
	return nil
}

// latestContribution returns the plan's most recently received contribution.
func (r *Registry) latestContribution(ctx context.Context, planID int64) (Payment, error) {
	var p Payment
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, status, receive_date
FROM payments WHERE plan_id=$1 ORDER BY receive_date DESC, id DESC LIMIT 1`, planID).
		Scan(&p.ID, &status, &p.ReceiveDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, shared.NewLookupError("recurring plan contribution", planID)
		}
		return Payment{}, err
	}
	p.Status = ContributionStatus(status)
	p.PlanID = &planID
	return p, nil
}

// Contribution resolves a contribution id to the payment link the calculator
// records on new periods: the parent plan when one exists, the contribution
// itself otherwise.
func (r *Registry) Contribution(ctx context.Context, id int64) (periods.ContributionRef, error) {
	p, err := r.Payment(ctx, id)
	if err != nil {
		return periods.ContributionRef{}, err
	}
	ref := periods.ContributionRef{
		Link:      periods.PaymentLink{Kind: periods.LinkPayment, ID: p.ID},
		Completed: p.Status == ContributionCompleted,
	}
	if p.PlanID != nil {
		ref.Link = periods.PaymentLink{Kind: periods.LinkRecurringPlan, ID: *p.PlanID}
	}
	return ref, nil
}

// Backing resolves a period's payment link for the overdue sweep. A payment
// link reports the payment's own state. A recurring link reports the receive
// date of the plan's latest contribution and whether the plan as a whole has
// completed.
func (r *Registry) Backing(ctx context.Context, link periods.PaymentLink) (periods.BackingPayment, error) {
	switch link.Kind {
	case periods.LinkPayment:
		p, err := r.Payment(ctx, link.ID)
		if err != nil {
			return periods.BackingPayment{}, err
		}
		return periods.BackingPayment{
			ReceiveDate: p.ReceiveDate,
			Completed:   p.Status == ContributionCompleted,
		}, nil
	case periods.LinkRecurringPlan:
		plan, err := r.Plan(ctx, link.ID)
		if err != nil {
			return periods.BackingPayment{}, err
		}
		latest, err := r.latestContribution(ctx, link.ID)
		if err != nil {
			return periods.BackingPayment{}, err
		}
		return periods.BackingPayment{
			ReceiveDate: latest.ReceiveDate,
			Completed:   plan.Status == ContributionCompleted,
		}, nil
	default:
		return periods.BackingPayment{}, fmt.Errorf("payments: unknown payment link kind %q", link.Kind)
	}
}

// PaymentInfo resolves the contribution view the membership edit flow needs.
func (r *Registry) PaymentInfo(ctx context.Context, id int64) (membership.PaymentInfo, error) {
	p, err := r.Payment(ctx, id)
	if err != nil {
		return membership.PaymentInfo{}, err
	}
	return membership.PaymentInfo{
		ID:      p.ID,
		Pending: p.Status == ContributionPending,
		PlanID:  p.PlanID,
	}, nil
}

// PlanInfo resolves the recurring plan view the membership edit flow needs.
func (r *Registry) PlanInfo(ctx context.Context, id int64) (membership.PlanInfo, error) {
	plan, err := r.Plan(ctx, id)
	if err != nil {
		return membership.PlanInfo{}, err
	}
	return membership.PlanInfo{
		ID:           plan.ID,
		Installments: plan.Installments,
		ProcessorID:  plan.ProcessorID,
	}, nil
}

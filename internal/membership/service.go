package membership

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/memberline/memberline/internal/periods"
	"github.com/memberline/memberline/internal/settings"
	"github.com/memberline/memberline/internal/shared"
)

// RegistryPort is the membership persistence the service needs.
type RegistryPort interface {
	Get(ctx context.Context, id int64) (Membership, error)
	TypeOf(ctx context.Context, typeID int64) (Type, error)
	Create(ctx context.Context, m Membership) (int64, error)
	Update(ctx context.Context, id int64, fields Fields) error
}

// PaymentInfo is the payment view the edit flow needs.
type PaymentInfo struct {
	ID      int64
	Pending bool
	PlanID  *int64
}

// PlanInfo is the recurring plan view the edit flow needs.
type PlanInfo struct {
	ID           int64
	Installments int
	ProcessorID  *int64
}

// PaymentPort resolves contribution details for edit pre-processing.
type PaymentPort interface {
	PaymentInfo(ctx context.Context, id int64) (PaymentInfo, error)
	PlanInfo(ctx context.Context, id int64) (PlanInfo, error)
}

// EditParams is a proposed membership edit. Nil fields are not part of the
// edit.
type EditParams struct {
	JoinDate   *time.Time
	EndDate    *time.Time
	AltEndDate *time.Time
	Status     *shared.MembershipStatus

	// ContributionID identifies the payment driving this edit, if any.
	ContributionID *int64
	// RenewalDate overrides the start of an appended period.
	RenewalDate *time.Time
	// IsRenewal marks the edit as a renewal action.
	IsRenewal bool
	// PendingPayment marks the driving payment as not yet completed.
	PendingPayment bool
}

// CreateParams describes a new membership.
type CreateParams struct {
	ContactID      int64
	TypeID         int64
	JoinDate       time.Time
	Status         shared.MembershipStatus
	ContributionID *int64
}

// Service owns membership lifecycle operations and keeps the period
// timeline consistent around them.
type Service struct {
	registry RegistryPort
	periods  periods.TxStore
	calc     *periods.Calculator
	payments PaymentPort
	settings settings.Provider
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(registry RegistryPort, store periods.TxStore, calc *periods.Calculator, payments PaymentPort, provider settings.Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: registry,
		periods:  store,
		calc:     calc,
		payments: payments,
		settings: provider,
		logger:   logger,
	}
}

// Create stores a new membership and opens its initial coverage period.
// Lifetime memberships get no managed period; their coverage never ends.
func (s *Service) Create(ctx context.Context, params CreateParams) (Membership, error) {
	t, err := s.registry.TypeOf(ctx, params.TypeID)
	if err != nil {
		return Membership{}, err
	}

	join := periods.Day(params.JoinDate)
	status := params.Status
	if status == "" {
		status = shared.MembershipStatusNew
	}

	end, err := EndDate(join, t.Duration)
	if err != nil {
		if errors.Is(err, ErrLifetimeNoEndDate) {
			m := Membership{ContactID: params.ContactID, TypeID: params.TypeID, JoinDate: join, Status: status}
			m.ID, err = s.registry.Create(ctx, m)
			return m, err
		}
		return Membership{}, err
	}

	m := Membership{
		ContactID: params.ContactID,
		TypeID:    params.TypeID,
		JoinDate:  join,
		EndDate:   end,
		Status:    status,
	}
	m.ID, err = s.registry.Create(ctx, m)
	if err != nil {
		return Membership{}, err
	}

	link, err := s.initialLink(ctx, params.ContributionID)
	if err != nil {
		return Membership{}, err
	}
	if _, err := s.periods.Create(ctx, periods.Period{
		MembershipID: m.ID,
		StartDate:    join,
		EndDate:      end,
		IsActive:     !status.Inactive(),
		Link:         link,
	}); err != nil {
		return Membership{}, err
	}

	return m, nil
}

// Edit reconciles the period timeline against the proposed fields, then
// commits them to the membership record. Reconciliation mutations run in a
// single transaction; a validation failure aborts the edit with nothing
// written.
func (s *Service) Edit(ctx context.Context, id int64, params EditParams) error {
	m, err := s.registry.Get(ctx, id)
	if err != nil {
		return err
	}
	t, err := s.registry.TypeOf(ctx, m.TypeID)
	if err != nil {
		return err
	}

	params, err = s.prepare(ctx, m, t, params)
	if err != nil {
		return err
	}

	in := periods.EditInput{
		MembershipID: m.ID,
		Current: periods.MembershipState{
			JoinDate: m.JoinDate,
			EndDate:  m.EndDate,
			Status:   m.Status,
		},
		JoinDate:       params.JoinDate,
		EndDate:        params.EndDate,
		AltEndDate:     params.AltEndDate,
		Status:         params.Status,
		ContributionID: params.ContributionID,
		RenewalDate:    params.RenewalDate,
	}
	if err := s.periods.InTx(ctx, func(tx periods.Store) error {
		return s.calc.Reconcile(ctx, tx, in)
	}); err != nil {
		return err
	}

	return s.registry.Update(ctx, id, Fields{
		JoinDate: params.JoinDate,
		EndDate:  params.EndDate,
		Status:   params.Status,
	})
}

// prepare applies the payment plan rules that rewrite the proposed fields
// before reconciliation runs.
func (s *Service) prepare(ctx context.Context, m Membership, t Type, params EditParams) (EditParams, error) {
	var plan *PlanInfo
	if params.ContributionID != nil {
		pay, err := s.payments.PaymentInfo(ctx, *params.ContributionID)
		if err != nil {
			return EditParams{}, err
		}
		if pay.PlanID != nil {
			p, err := s.payments.PlanInfo(ctx, *pay.PlanID)
			if err != nil {
				return EditParams{}, err
			}
			plan = &p
		}

		// An offline payment plan extends coverage once at renewal, not
		// on every recorded installment. Pending installments are left
		// alone: the coverage they pay for is not booked yet.
		if plan != nil && plan.Installments > 1 && !pay.Pending {
			cfg, err := s.settings.Load(ctx)
			if err != nil {
				return EditParams{}, err
			}
			if cfg.IsManualProcessor(plan.ProcessorID) {
				params.EndDate = nil
				params.AltEndDate = nil
			}
		}
	}

	// A renewal whose first installment is still pending extends coverage
	// up front; waiting for the payment would leave the renewal invisible.
	// A renewal recorded earlier than the configured advance window does
	// not qualify yet.
	if params.IsRenewal && params.PendingPayment && plan != nil && plan.Installments > 1 && params.EndDate == nil {
		if params.RenewalDate != nil {
			cfg, err := s.settings.Load(ctx)
			if err != nil {
				return EditParams{}, err
			}
			earliest := periods.Day(m.EndDate).AddDate(0, 0, -cfg.DaysToRenewInAdvance)
			if periods.Day(*params.RenewalDate).Before(earliest) {
				return params, nil
			}
		}
		end, err := EndDate(periods.Day(m.EndDate).AddDate(0, 0, 1), t.Duration)
		if err != nil {
			if errors.Is(err, ErrLifetimeNoEndDate) {
				return params, nil
			}
			return EditParams{}, err
		}
		params.EndDate = &end
	}

	return params, nil
}

func (s *Service) initialLink(ctx context.Context, contributionID *int64) (periods.PaymentLink, error) {
	if contributionID == nil {
		return periods.PaymentLink{}, nil
	}
	pay, err := s.payments.PaymentInfo(ctx, *contributionID)
	if err != nil {
		return periods.PaymentLink{}, err
	}
	if pay.PlanID != nil {
		return periods.PaymentLink{Kind: periods.LinkRecurringPlan, ID: *pay.PlanID}, nil
	}
	return periods.PaymentLink{Kind: periods.LinkPayment, ID: pay.ID}, nil
}

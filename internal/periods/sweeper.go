package periods

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/memberline/memberline/internal/settings"
)

// BackingPayment is the payment state behind a period's link: the payment
// itself for single-payment links, the plan's most recent contribution for
// recurring links.
type BackingPayment struct {
	ReceiveDate time.Time
	Completed   bool
}

// BackingSource resolves a period's payment link to its backing payment.
type BackingSource interface {
	Backing(ctx context.Context, link PaymentLink) (BackingPayment, error)
}

// BatchError aggregates per-period failures from one sweep run. Its presence
// rolls the whole run back; no period is left modified.
type BatchError struct {
	Messages []string
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("overdue period sweep: %d periods failed: %s",
		len(e.Messages), strings.Join(e.Messages, "; "))
}

// SweepReport summarizes a committed sweep run.
type SweepReport struct {
	Disabled int
	Adjusted int
}

// Sweeper is the scheduled batch pass over active periods whose backing
// payment is overdue. Two actions run inside one transaction: disable, and
// adjust end date, each driven by its own day threshold.
type Sweeper struct {
	store    TxStore
	payments BackingSource
	settings settings.Provider
	logger   *slog.Logger
	now      func() time.Time
}

// NewSweeper constructs a Sweeper. now defaults to time.Now and exists for
// tests.
func NewSweeper(store TxStore, payments BackingSource, provider settings.Provider, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		payments: payments,
		settings: provider,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the sweep clock.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run executes one sweep. Settings problems surface before any mutation.
// Every period update is attempted independently; failures are collected,
// and a non-empty failure list rolls the transaction back and is reported as
// a single aggregated error. Re-running is safe: each run re-evaluates
// current state.
func (s *Sweeper) Run(ctx context.Context) (SweepReport, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return SweepReport{}, err
	}

	today := Day(s.now())
	var report SweepReport

	err = s.store.InTx(ctx, func(tx Store) error {
		var failures []string

		disabled, msgs, err := s.pass(ctx, tx, today.AddDate(0, 0, -cfg.DisableThresholdDays), disableAction)
		if err != nil {
			return err
		}
		failures = append(failures, msgs...)

		adjusted, msgs, err := s.pass(ctx, tx, today.AddDate(0, 0, -cfg.AdjustThresholdDays), adjustAction(cfg.AdjustEndDateOffsetDays))
		if err != nil {
			return err
		}
		failures = append(failures, msgs...)

		if len(failures) > 0 {
			return &BatchError{Messages: failures}
		}
		report = SweepReport{Disabled: disabled, Adjusted: adjusted}
		return nil
	})
	if err != nil {
		return SweepReport{}, err
	}

	s.logger.Info("overdue period sweep committed",
		slog.Int("disabled", report.Disabled),
		slog.Int("adjusted", report.Adjusted))
	return report, nil
}

// pass applies action to every active linked period whose backing payment
// was received on or before cutoff and has not completed. Row-level failures
// are collected, not fatal; listing failures are.
func (s *Sweeper) pass(ctx context.Context, tx Store, cutoff time.Time, action func(Period) PeriodUpdate) (int, []string, error) {
	active, err := tx.ActiveLinked(ctx)
	if err != nil {
		return 0, nil, err
	}

	var count int
	var failures []string
	for _, p := range active {
		backing, err := s.payments.Backing(ctx, p.Link)
		if err != nil {
			failures = append(failures, fmt.Sprintf("period %d: %v", p.ID, err))
			continue
		}
		if backing.Completed || Day(backing.ReceiveDate).After(cutoff) {
			continue
		}
		if err := tx.Update(ctx, p.ID, action(p)); err != nil {
			failures = append(failures, fmt.Sprintf("period %d: %v", p.ID, err))
			continue
		}
		count++
	}
	return count, failures, nil
}

func disableAction(Period) PeriodUpdate {
	inactive := false
	return PeriodUpdate{IsActive: &inactive}
}

func adjustAction(offsetDays int) func(Period) PeriodUpdate {
	return func(p Period) PeriodUpdate {
		end := Day(p.EndDate).AddDate(0, 0, offsetDays)
		return PeriodUpdate{EndDate: &end}
	}
}

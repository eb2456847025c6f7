package periods

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memberline/memberline/internal/settings"
	"github.com/memberline/memberline/internal/shared"
)

type fakeBacking struct {
	payments map[PaymentLink]BackingPayment
}

func (f *fakeBacking) Backing(ctx context.Context, link PaymentLink) (BackingPayment, error) {
	p, ok := f.payments[link]
	if !ok {
		return BackingPayment{}, shared.NewLookupError("payment", link.ID)
	}
	return p, nil
}

type staticSettings struct {
	s   settings.Settings
	err error
}

func (p *staticSettings) Load(ctx context.Context) (settings.Settings, error) {
	if p.err != nil {
		return settings.Settings{}, p.err
	}
	return p.s, nil
}

func sweepSettings() *staticSettings {
	return &staticSettings{s: settings.Settings{
		DisableThresholdDays:    14,
		AdjustThresholdDays:     7,
		AdjustEndDateOffsetDays: 7,
	}}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSweepDisablesAndAdjustsOverduePeriods(t *testing.T) {
	store := NewMemoryStore()
	today := date(2024, 6, 15)

	linkOld := PaymentLink{Kind: LinkPayment, ID: 1}
	linkRecent := PaymentLink{Kind: LinkPayment, ID: 2}
	linkPaid := PaymentLink{Kind: LinkRecurringPlan, ID: 3}

	oldID := seedPeriod(t, store, Period{
		MembershipID: 1,
		StartDate:    date(2024, 1, 1),
		EndDate:      date(2024, 12, 31),
		IsActive:     true,
		Link:         linkOld,
	})
	recentID := seedPeriod(t, store, Period{
		MembershipID: 2,
		StartDate:    date(2024, 1, 1),
		EndDate:      date(2024, 12, 31),
		IsActive:     true,
		Link:         linkRecent,
	})
	paidID := seedPeriod(t, store, Period{
		MembershipID: 3,
		StartDate:    date(2024, 1, 1),
		EndDate:      date(2024, 12, 31),
		IsActive:     true,
		Link:         linkPaid,
	})

	backing := &fakeBacking{payments: map[PaymentLink]BackingPayment{
		// 20 days overdue: crosses both thresholds.
		linkOld: {ReceiveDate: today.AddDate(0, 0, -20)},
		// 10 days overdue: only crosses the adjust threshold.
		linkRecent: {ReceiveDate: today.AddDate(0, 0, -10)},
		// Completed payments are never overdue.
		linkPaid: {ReceiveDate: today.AddDate(0, 0, -30), Completed: true},
	}}

	sweeper := NewSweeper(store, backing, sweepSettings(), nil).WithClock(fixedClock(today))
	report, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Disabled)
	// The disabled period leaves the active set before the adjust pass runs.
	require.Equal(t, 1, report.Adjusted)

	byID := make(map[int64]Period)
	for _, p := range store.All() {
		byID[p.ID] = p
	}
	require.False(t, byID[oldID].IsActive)
	require.True(t, byID[recentID].IsActive)
	require.Equal(t, date(2025, 1, 7), byID[recentID].EndDate)
	require.Equal(t, date(2024, 12, 31), byID[paidID].EndDate)
	require.True(t, byID[paidID].IsActive)
}

func TestSweepConfigurationErrorBeforeMutation(t *testing.T) {
	store := NewMemoryStore()
	link := PaymentLink{Kind: LinkPayment, ID: 1}
	seedPeriod(t, store, Period{
		MembershipID: 1,
		StartDate:    date(2024, 1, 1),
		EndDate:      date(2024, 12, 31),
		IsActive:     true,
		Link:         link,
	})

	provider := &staticSettings{err: &settings.ConfigurationError{
		Key:    settings.KeyDisableThresholdDays,
		Reason: "missing",
	}}
	backing := &fakeBacking{payments: map[PaymentLink]BackingPayment{
		link: {ReceiveDate: date(2024, 1, 1)},
	}}

	sweeper := NewSweeper(store, backing, provider, nil).WithClock(fixedClock(date(2024, 6, 15)))
	_, err := sweeper.Run(context.Background())

	var cfgErr *settings.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.True(t, store.All()[0].IsActive)
}

func TestSweepFailureRollsBackEveryChange(t *testing.T) {
	store := NewMemoryStore()
	today := date(2024, 6, 15)

	good := PaymentLink{Kind: LinkPayment, ID: 1}
	missing := PaymentLink{Kind: LinkPayment, ID: 2}

	goodID := seedPeriod(t, store, Period{
		MembershipID: 1,
		StartDate:    date(2024, 1, 1),
		EndDate:      date(2024, 12, 31),
		IsActive:     true,
		Link:         good,
	})
	seedPeriod(t, store, Period{
		MembershipID: 2,
		StartDate:    date(2024, 1, 1),
		EndDate:      date(2024, 12, 31),
		IsActive:     true,
		Link:         missing,
	})

	backing := &fakeBacking{payments: map[PaymentLink]BackingPayment{
		good: {ReceiveDate: today.AddDate(0, 0, -30)},
		// The second link has no backing payment, so both passes fail on it.
	}}

	sweeper := NewSweeper(store, backing, sweepSettings(), nil).WithClock(fixedClock(today))
	_, err := sweeper.Run(context.Background())

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	require.Len(t, batchErr.Messages, 2)

	// Nothing committed: the overdue period is still active and unadjusted.
	byID := make(map[int64]Period)
	for _, p := range store.All() {
		byID[p.ID] = p
	}
	require.True(t, byID[goodID].IsActive)
	require.Equal(t, date(2024, 12, 31), byID[goodID].EndDate)
}

func TestSweepZeroThresholdTreatsTodayAsOverdue(t *testing.T) {
	store := NewMemoryStore()
	today := date(2024, 6, 15)
	link := PaymentLink{Kind: LinkPayment, ID: 1}
	id := seedPeriod(t, store, Period{
		MembershipID: 1,
		StartDate:    date(2024, 1, 1),
		EndDate:      date(2024, 12, 31),
		IsActive:     true,
		Link:         link,
	})

	provider := &staticSettings{s: settings.Settings{
		DisableThresholdDays:    0,
		AdjustThresholdDays:     0,
		AdjustEndDateOffsetDays: 3,
	}}
	backing := &fakeBacking{payments: map[PaymentLink]BackingPayment{
		link: {ReceiveDate: today},
	}}

	sweeper := NewSweeper(store, backing, provider, nil).WithClock(fixedClock(today))
	report, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Disabled)
	require.Equal(t, 0, report.Adjusted)

	byID := make(map[int64]Period)
	for _, p := range store.All() {
		byID[p.ID] = p
	}
	require.False(t, byID[id].IsActive)
}

package membership

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEndDate(t *testing.T) {
	cases := []struct {
		name  string
		start time.Time
		d     Duration
		want  time.Time
	}{
		{"one month", date(2023, 1, 15), Duration{DurationMonth, 1}, date(2023, 2, 14)},
		{"one year", date(2023, 1, 1), Duration{DurationYear, 1}, date(2023, 12, 31)},
		{"two years", date(2023, 1, 1), Duration{DurationYear, 2}, date(2024, 12, 31)},
		{"thirty days", date(2023, 1, 1), Duration{DurationDay, 30}, date(2023, 1, 30)},
		{"single day", date(2023, 1, 1), Duration{DurationDay, 1}, date(2023, 1, 1)},
		{"month across year end", date(2023, 12, 15), Duration{DurationMonth, 1}, date(2024, 1, 14)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EndDate(tc.start, tc.d)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestEndDateLifetime(t *testing.T) {
	_, err := EndDate(date(2023, 1, 1), Duration{DurationLifetime, 1})
	require.ErrorIs(t, err, ErrLifetimeNoEndDate)
}

func TestEndDateInvalidInterval(t *testing.T) {
	_, err := EndDate(date(2023, 1, 1), Duration{DurationMonth, 0})
	require.Error(t, err)
}

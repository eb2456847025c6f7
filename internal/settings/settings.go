// Package settings loads the membership period rules configuration from the
// settings table, with an optional Redis cache in front.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Setting keys as stored in the settings table.
const (
	KeyDisableThresholdDays    = "period_rules.overdue_disable_threshold_days"
	KeyAdjustThresholdDays     = "period_rules.overdue_adjust_threshold_days"
	KeyAdjustEndDateOffsetDays = "period_rules.overdue_adjust_end_date_offset_days"
	KeyDaysToRenewInAdvance    = "payment_plan.days_to_renew_in_advance"
	KeyManualProcessorIDs      = "payment_plan.manual_processor_ids"
)

// Settings holds the period rule configuration.
type Settings struct {
	// DisableThresholdDays is the grace window before an active period
	// with an overdue payment is deactivated.
	DisableThresholdDays int `json:"disable_threshold_days"`
	// AdjustThresholdDays is the grace window before an active period
	// with an overdue payment has its end date pushed forward.
	AdjustThresholdDays int `json:"adjust_threshold_days"`
	// AdjustEndDateOffsetDays is how far the adjust action pushes an end
	// date forward.
	AdjustEndDateOffsetDays int `json:"adjust_end_date_offset_days"`
	// DaysToRenewInAdvance bounds how early a renewal may be recorded
	// before current coverage runs out.
	DaysToRenewInAdvance int `json:"days_to_renew_in_advance"`
	// ManualProcessorIDs identifies offline payment processors; payment
	// plans routed through them do not auto-extend coverage on every
	// installment.
	ManualProcessorIDs []int64 `json:"manual_processor_ids"`
}

// Provider loads settings. Implementations must return a ConfigurationError
// for missing or invalid values before any caller mutates state.
type Provider interface {
	Load(ctx context.Context) (Settings, error)
}

// ConfigurationError reports a missing or invalid setting.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("settings: %s: %s", e.Key, e.Reason)
}

// Parse builds Settings from raw key/value pairs. The three sweep keys are
// required; the payment plan keys default to zero/empty when absent.
func Parse(values map[string]string) (Settings, error) {
	var s Settings
	var err error

	if s.DisableThresholdDays, err = requiredDays(values, KeyDisableThresholdDays); err != nil {
		return Settings{}, err
	}
	if s.AdjustThresholdDays, err = requiredDays(values, KeyAdjustThresholdDays); err != nil {
		return Settings{}, err
	}
	if s.AdjustEndDateOffsetDays, err = requiredDays(values, KeyAdjustEndDateOffsetDays); err != nil {
		return Settings{}, err
	}

	if raw, ok := values[KeyDaysToRenewInAdvance]; ok && raw != "" {
		if s.DaysToRenewInAdvance, err = days(KeyDaysToRenewInAdvance, raw); err != nil {
			return Settings{}, err
		}
	}

	if raw, ok := values[KeyManualProcessorIDs]; ok && raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, perr := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if perr != nil {
				return Settings{}, &ConfigurationError{Key: KeyManualProcessorIDs, Reason: "invalid processor id " + strconv.Quote(part)}
			}
			s.ManualProcessorIDs = append(s.ManualProcessorIDs, id)
		}
	}

	return s, nil
}

func requiredDays(values map[string]string, key string) (int, error) {
	raw, ok := values[key]
	if !ok || raw == "" {
		return 0, &ConfigurationError{Key: key, Reason: "missing"}
	}
	return days(key, raw)
}

func days(key, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ConfigurationError{Key: key, Reason: "not a number"}
	}
	if n < 0 {
		return 0, &ConfigurationError{Key: key, Reason: "must not be negative"}
	}
	return n, nil
}

// IsManualProcessor reports whether a processor id belongs to the configured
// offline set. A nil processor id means the payment was recorded manually.
func (s Settings) IsManualProcessor(processorID *int64) bool {
	if processorID == nil {
		return true
	}
	for _, id := range s.ManualProcessorIDs {
		if id == *processorID {
			return true
		}
	}
	return false
}

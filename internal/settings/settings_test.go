package settings

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validValues() map[string]string {
	return map[string]string{
		KeyDisableThresholdDays:    "14",
		KeyAdjustThresholdDays:     "7",
		KeyAdjustEndDateOffsetDays: "7",
	}
}

func TestParse(t *testing.T) {
	values := validValues()
	values[KeyDaysToRenewInAdvance] = "5"
	values[KeyManualProcessorIDs] = "3, 8,12"

	s, err := Parse(values)
	require.NoError(t, err)
	require.Equal(t, 14, s.DisableThresholdDays)
	require.Equal(t, 7, s.AdjustThresholdDays)
	require.Equal(t, 7, s.AdjustEndDateOffsetDays)
	require.Equal(t, 5, s.DaysToRenewInAdvance)
	require.Equal(t, []int64{3, 8, 12}, s.ManualProcessorIDs)
}

func TestParseOptionalKeysDefault(t *testing.T) {
	s, err := Parse(validValues())
	require.NoError(t, err)
	require.Zero(t, s.DaysToRenewInAdvance)
	require.Empty(t, s.ManualProcessorIDs)
}

func TestParseMissingRequiredKey(t *testing.T) {
	for _, key := range []string{KeyDisableThresholdDays, KeyAdjustThresholdDays, KeyAdjustEndDateOffsetDays} {
		values := validValues()
		delete(values, key)

		_, err := Parse(values)
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		require.Equal(t, key, cfgErr.Key)
		require.Equal(t, "missing", cfgErr.Reason)
	}
}

func TestParseRejectsBadValues(t *testing.T) {
	values := validValues()
	values[KeyDisableThresholdDays] = "soon"
	_, err := Parse(values)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "not a number", cfgErr.Reason)

	values = validValues()
	values[KeyAdjustThresholdDays] = "-1"
	_, err = Parse(values)
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "must not be negative", cfgErr.Reason)

	values = validValues()
	values[KeyManualProcessorIDs] = "1,x"
	_, err = Parse(values)
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, KeyManualProcessorIDs, cfgErr.Key)
}

func TestIsManualProcessor(t *testing.T) {
	s := Settings{ManualProcessorIDs: []int64{3, 8}}

	require.True(t, s.IsManualProcessor(nil))

	manual := int64(3)
	require.True(t, s.IsManualProcessor(&manual))

	online := int64(5)
	require.False(t, s.IsManualProcessor(&online))
}

package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampay-hq/streampay-engine/pkg/models"
)

func TestNextAfterSuccess(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	fallback := 5 * time.Minute

	tests := []struct {
		name string
		freq models.Frequency
		want time.Time
	}{
		{"daily", models.FrequencyDaily, time.Date(2026, 3, 16, 10, 30, 0, 0, time.UTC)},
		{"weekly", models.FrequencyWeekly, time.Date(2026, 3, 22, 10, 30, 0, 0, time.UTC)},
		{"monthly", models.FrequencyMonthly, time.Date(2026, 4, 15, 10, 30, 0, 0, time.UTC)},
		{"yearly", models.FrequencyYearly, time.Date(2027, 3, 15, 10, 30, 0, 0, time.UTC)},
		{"unknown frequency falls back to retry backoff", models.Frequency("HOURLY"), now.Add(fallback)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := NextAfterSuccess(tt.freq, now, fallback)
			require.NotNil(t, next)
			assert.True(t, next.Equal(tt.want), "got %v, want %v", next, tt.want)
		})
	}
}

func TestNextAfterSuccessOnce(t *testing.T) {
	next := NextAfterSuccess(models.FrequencyOnce, time.Now(), 5*time.Minute)
	assert.Nil(t, next)
}

func TestNextAfterSuccessCalendarArithmetic(t *testing.T) {
	fallback := 5 * time.Minute

	// Jan 31 + 1 month normalizes to Mar 2/3, not Feb 28.
	jan31 := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
	next := NextAfterSuccess(models.FrequencyMonthly, jan31, fallback)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), *next)

	// Feb 29 + 1 year lands on Mar 1 of a non-leap year.
	feb29 := time.Date(2028, 2, 29, 9, 0, 0, 0, time.UTC)
	next = NextAfterSuccess(models.FrequencyYearly, feb29, fallback)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2029, 3, 1, 9, 0, 0, 0, time.UTC), *next)

	// A monthly advance is not a fixed 30-day duration.
	feb1 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	next = NextAfterSuccess(models.FrequencyMonthly, feb1, fallback)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), *next)
}

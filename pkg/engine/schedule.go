package engine

import (
	"time"

	"github.com/streampay-hq/streampay-engine/pkg/models"
)

// NextAfterSuccess computes the next execution time after a successful run.
// Monthly and yearly advances use calendar arithmetic, not fixed durations.
// A ONCE intent returns nil: it stays ACTIVE but is never selected again,
// since the due-intent query treats a null next execution as "never due".
//
// Creation-time validation rejects unknown frequencies, so the fallback only
// covers rows predating that check; it reschedules with the short retry
// backoff rather than guessing a cadence.
func NextAfterSuccess(freq models.Frequency, now time.Time, fallback time.Duration) *time.Time {
	var next time.Time

	switch freq {
	case models.FrequencyOnce:
		return nil
	case models.FrequencyDaily:
		next = now.AddDate(0, 0, 1)
	case models.FrequencyWeekly:
		next = now.AddDate(0, 0, 7)
	case models.FrequencyMonthly:
		next = now.AddDate(0, 1, 0)
	case models.FrequencyYearly:
		next = now.AddDate(1, 0, 0)
	default:
		next = now.Add(fallback)
	}

	return &next
}

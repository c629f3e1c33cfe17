// Package retry defines the backoff schedule for failed webhook deliveries.
package retry

import "time"

// MaxAttempts is the number of delivery attempts before a job stops being
// picked up for retry. Jobs at this count stay failed and need operator
// intervention.
const MaxAttempts = 7

// backoffSchedule maps attempt count to the delay before the next retry:
// 1 min, 5 min, 30 min, 2 hr, 6 hr, 12 hr, 24 hr.
var backoffSchedule = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
	6 * time.Hour,
	12 * time.Hour,
	24 * time.Hour,
}

// NextDelay returns the backoff delay after the given number of attempts.
// The schedule plateaus at 24 hours once the table is exhausted.
func NextDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts >= len(backoffSchedule) {
		attempts = len(backoffSchedule) - 1
	}
	return backoffSchedule[attempts]
}

// NextRetryAt returns the wall-clock time of the next retry after the given
// number of attempts, relative to now.
func NextRetryAt(now time.Time, attempts int) time.Time {
	return now.Add(NextDelay(attempts))
}

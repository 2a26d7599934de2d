package connection

import "time"

// Backoff returns the delay before reconnect attempt n (1-based): the
// initial delay doubled per attempt, capped at max.
func Backoff(initial, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

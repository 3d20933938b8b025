package reconcile

import "time"

const (
	defaultBackoffInitial = 30 * time.Second
	defaultBackoffMax     = 15 * time.Minute
)

type Backoff interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff doubles the delay per consecutive failure, capped at Max.
type ExponentialBackoff struct {
	Initial time.Duration
	Max     time.Duration
}

func (b ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := b.Initial
	if initial <= 0 {
		initial = defaultBackoffInitial
	}
	max := b.Max
	if max <= 0 {
		max = defaultBackoffMax
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

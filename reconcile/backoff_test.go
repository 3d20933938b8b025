package reconcile

import (
	"testing"
	"time"
)

func TestExponentialBackoffDoublesAndCaps(t *testing.T) {
	backoff := ExponentialBackoff{Initial: 30 * time.Second, Max: 4 * time.Minute}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 30 * time.Second},
		{attempt: 1, want: 30 * time.Second},
		{attempt: 2, want: time.Minute},
		{attempt: 3, want: 2 * time.Minute},
		{attempt: 4, want: 4 * time.Minute},
		{attempt: 5, want: 4 * time.Minute},
		{attempt: 10, want: 4 * time.Minute},
	}
	for _, tc := range cases {
		if got := backoff.NextDelay(tc.attempt); got != tc.want {
			t.Fatalf("NextDelay(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestExponentialBackoffDefaults(t *testing.T) {
	backoff := ExponentialBackoff{}
	if got := backoff.NextDelay(1); got != defaultBackoffInitial {
		t.Fatalf("NextDelay(1) = %s, want %s", got, defaultBackoffInitial)
	}

	delay := backoff.NextDelay(20)
	if delay != defaultBackoffMax {
		t.Fatalf("NextDelay(20) = %s, want cap %s", delay, defaultBackoffMax)
	}
}

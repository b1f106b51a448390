package telemetry

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// BackoffPolicy yields the delay before each reconnect attempt. Reset is
// called after every successful connect. The policies in
// github.com/cenkalti/backoff/v5 satisfy it.
type BackoffPolicy interface {
	NextBackOff() time.Duration
	Reset()
}

// BackoffSettings shapes the default exponential policy.
type BackoffSettings struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultBackoffSettings returns 500ms doubling up to 30s with 20% jitter.
func DefaultBackoffSettings() BackoffSettings {
	return BackoffSettings{
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         30 * time.Second,
		Multiplier:          2,
		RandomizationFactor: 0.2,
	}
}

// NewExponentialBackoff builds a bounded, jittered exponential policy.
func NewExponentialBackoff(s BackoffSettings) BackoffPolicy {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.InitialInterval
	b.MaxInterval = s.MaxInterval
	b.Multiplier = s.Multiplier
	b.RandomizationFactor = s.RandomizationFactor
	b.Reset()
	return b
}

// NewConstantBackoff returns a policy that always waits d.
func NewConstantBackoff(d time.Duration) BackoffPolicy {
	return backoff.NewConstantBackOff(d)
}

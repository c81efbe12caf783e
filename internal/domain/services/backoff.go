package services

import (
	"math"
	"time"
)

// BackoffPolicy computes how long a failed provider query must wait.
type BackoffPolicy struct {
	Base        time.Duration `yaml:"base"`
	Max         time.Duration `yaml:"max"`
	Multiplier  float64       `yaml:"multiplier"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// DefaultBackoffPolicy waits 15m, 30m, 60m, then 60m for every later failure.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Base:        15 * time.Minute,
		Max:         60 * time.Minute,
		Multiplier:  2,
		MaxAttempts: 5,
	}
}

// Delay returns min(base * multiplier^(attempts-1), max).
func (p BackoffPolicy) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if p.MaxAttempts > 0 && attempts >= p.MaxAttempts {
		return p.Max
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.Base) * math.Pow(mult, float64(attempts-1))
	if p.Max > 0 && d > float64(p.Max) {
		return p.Max
	}
	return time.Duration(d)
}

// Next returns the backoff deadline after the given failure count. The
// result is always strictly later than prev.
func (p BackoffPolicy) Next(now time.Time, attempts int, prev *time.Time) time.Time {
	next := now.Add(p.Delay(attempts))
	if prev != nil && !next.After(*prev) {
		next = prev.Add(time.Second)
	}
	return next
}

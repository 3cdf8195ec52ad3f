// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package connection

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Default backoff parameters for Reconnecting.
const (
	DefaultBaseDelay   = 200 * time.Millisecond
	DefaultMultiplier  = 1.5
	DefaultCap         = 5 * time.Second
	DefaultMaxAttempts = 5
)

// BackoffPolicy computes the Reconnecting{n} delay as
// min(base * multiplier^(n-1), cap). It wraps the exponential backoff
// calculator with randomization disabled, since the delay sequence is
// part of the externally observable contract (see scenario S6) and
// must be deterministic.
type BackoffPolicy struct {
	calc        *backoff.ExponentialBackOff
	maxAttempts int
}

// NewBackoffPolicy builds the default policy: base 200ms, multiplier
// 1.5, cap 5s, 5 attempts before the connection gives up and moves to
// Failed.
func NewBackoffPolicy() *BackoffPolicy {
	calc := backoff.NewExponentialBackOff()
	calc.InitialInterval = DefaultBaseDelay
	calc.Multiplier = DefaultMultiplier
	calc.MaxInterval = DefaultCap
	calc.RandomizationFactor = 0
	return &BackoffPolicy{calc: calc, maxAttempts: DefaultMaxAttempts}
}

// MaxAttempts is the number of Reconnecting attempts before the state
// machine moves to Failed.
func (p *BackoffPolicy) MaxAttempts() int { return p.maxAttempts }

// Reset restarts the sequence at the base delay; called on every
// successful reconnect so the next future disconnect starts fresh.
func (p *BackoffPolicy) Reset() { p.calc.Reset() }

// Next returns the delay before the next reconnect attempt and advances
// the internal sequence.
func (p *BackoffPolicy) Next() time.Duration {
	return p.calc.NextBackOff()
}

package syncclient

import (
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Strategy selects how a failed event stream is re-opened.
type Strategy string

const (
	// StrategyNone logs the failure and leaves the stream closed.
	StrategyNone        Strategy = "none"
	StrategyFixed       Strategy = "fixed"
	StrategyExponential Strategy = "exponential"
)

// ParseStrategy parses a strategy name; the empty string means none.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyNone:
		return StrategyNone, nil
	case StrategyFixed:
		return StrategyFixed, nil
	case StrategyExponential:
		return StrategyExponential, nil
	default:
		return "", fmt.Errorf("unknown reconnect strategy %q", s)
	}
}

// Policy configures reconnection of the event stream.
type Policy struct {
	Strategy Strategy
	// Interval is the fixed delay, or the initial delay for exponential.
	Interval time.Duration
	// MaxInterval caps exponential growth.
	MaxInterval time.Duration
	// MaxAttempts bounds consecutive failed attempts; 0 means unbounded.
	MaxAttempts int
}

// DefaultPolicy never reconnects.
func DefaultPolicy() Policy {
	return Policy{Strategy: StrategyNone}
}

// newBackOff returns nil when the policy never reconnects.
func (p Policy) newBackOff() backoff.BackOff {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}

	switch p.Strategy {
	case StrategyFixed:
		return backoff.NewConstantBackOff(interval)
	case StrategyExponential:
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = interval
		if p.MaxInterval > 0 {
			b.MaxInterval = p.MaxInterval
		}
		return b
	default:
		return nil
	}
}

package ratelimit

import (
	"fmt"
	"time"
)

// Strategy selects the limiting algorithm.
type Strategy string

const (
	// StrategySlidingWindow admits a request when fewer than MaxRequests
	// admissions happened within the trailing window.
	StrategySlidingWindow Strategy = "sliding_window"

	// StrategyTokenBucket admits a request when a token is available.
	// Tokens refill continuously at MaxRequests per window.
	StrategyTokenBucket Strategy = "token_bucket"
)

// Limiter is the admission check consulted before each outbound delivery
// attempt. Allow consumes one admission slot when it returns true.
type Limiter interface {
	Allow() bool
}

// Config describes a per-destination rate limit.
type Config struct {
	// MaxRequests is the admission budget per window.
	// Default: 60
	MaxRequests int `json:"max_requests" yaml:"max_requests"`

	// Window is the rolling period over which MaxRequests applies.
	// Default: 60s
	Window time.Duration `json:"window_ms" yaml:"window_ms"`

	// Strategy selects the algorithm.
	// Default: sliding_window
	Strategy Strategy `json:"strategy" yaml:"strategy"`
}

// DefaultConfig returns the default rate limit configuration.
func DefaultConfig() Config {
	return Config{
		MaxRequests: 60,
		Window:      time.Minute,
		Strategy:    StrategySlidingWindow,
	}
}

// New builds a limiter for the given configuration. Zero values fall back
// to defaults; an unknown strategy is an error.
func New(config Config) (Limiter, error) {
	if config.MaxRequests <= 0 {
		config.MaxRequests = 60
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	switch config.Strategy {
	case StrategySlidingWindow, "":
		return NewSlidingWindow(config.MaxRequests, config.Window), nil
	case StrategyTokenBucket:
		return NewTokenBucket(config.MaxRequests, config.Window), nil
	default:
		return nil, fmt.Errorf("unknown rate limit strategy %q", config.Strategy)
	}
}

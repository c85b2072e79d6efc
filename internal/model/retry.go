package model

import (
	"flag"
	"time"
)

// RetryConfig defines retry behaviour for record fetches.
type RetryConfig struct {
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
	MinBackoff time.Duration `json:"min_backoff" yaml:"min_backoff"`
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff"`
}

func (cfg *RetryConfig) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.MaxRetries, prefix+"retry.max-retries", 3, "Maximum number of attempts for a record fetch. 1 disables retries.")
	f.DurationVar(&cfg.MinBackoff, prefix+"retry.min-backoff", 100*time.Millisecond, "Minimum delay between fetch attempts.")
	f.DurationVar(&cfg.MaxBackoff, prefix+"retry.max-backoff", 2*time.Second, "Maximum delay between fetch attempts.")
}

// BreakerConfig configures the per-table circuit breaker around fetches.
type BreakerConfig struct {
	Enabled          bool          `json:"enabled" yaml:"enabled"`
	MaxRequests      int           `json:"max_requests" yaml:"max_requests"`           // allowed while half-open
	Interval         time.Duration `json:"interval" yaml:"interval"`                   // closed-state count reset period
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`                     // open -> half-open
	FailureThreshold int           `json:"failure_threshold" yaml:"failure_threshold"` // consecutive failures before opening
}

func (cfg *BreakerConfig) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.BoolVar(&cfg.Enabled, prefix+"breaker.enabled", true, "Open a circuit per table after consecutive fetch failures.")
	f.IntVar(&cfg.MaxRequests, prefix+"breaker.max-requests", 1, "Requests allowed through a half-open circuit.")
	f.DurationVar(&cfg.Interval, prefix+"breaker.interval", time.Minute, "Period after which the failure counts of a closed circuit are reset.")
	f.DurationVar(&cfg.Timeout, prefix+"breaker.timeout", 30*time.Second, "Time an open circuit waits before letting a request through.")
	f.IntVar(&cfg.FailureThreshold, prefix+"breaker.failure-threshold", 5, "Consecutive fetch failures that open the circuit.")
}

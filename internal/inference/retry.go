package inference

import (
	"math"
	"time"
)

// BackoffStrategy determines how delays are calculated between retries.
type BackoffStrategy string

const (
	BackoffConstant    BackoffStrategy = "constant"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryPolicy controls the gateway's per-call retry behavior.
type RetryPolicy struct {
	// MaxRetries is the maximum number of retry attempts after the first call
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries" validate:"gte=0,lte=10"`

	// BackoffStrategy determines how delays grow between retries
	BackoffStrategy BackoffStrategy `mapstructure:"backoff_strategy" yaml:"backoff_strategy"`

	// InitialDelay is the delay before the first retry attempt
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`

	// MaxDelay caps the delay between retries (exponential backoff)
	MaxDelay time.Duration `mapstructure:"max_delay" yaml:"max_delay"`

	// Multiplier is the exponential growth factor
	Multiplier float64 `mapstructure:"multiplier" yaml:"multiplier"`
}

// DefaultRetryPolicy returns the gateway's default retry behavior:
// three retries with exponential backoff from 500ms capped at 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		BackoffStrategy: BackoffExponential,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        8 * time.Second,
		Multiplier:      2.0,
	}
}

// CalculateDelay calculates the delay for a given retry attempt based on
// the configured backoff strategy.
func (rp RetryPolicy) CalculateDelay(attempt int) time.Duration {
	switch rp.BackoffStrategy {
	case BackoffConstant:
		return rp.InitialDelay
	case BackoffLinear:
		return rp.InitialDelay + rp.InitialDelay*time.Duration(attempt)
	case BackoffExponential:
		delay := time.Duration(float64(rp.InitialDelay) * math.Pow(rp.Multiplier, float64(attempt)))
		if delay > rp.MaxDelay {
			return rp.MaxDelay
		}
		return delay
	default:
		return rp.InitialDelay
	}
}

package inference

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()

	assert.Equal(t, 3, policy.MaxRetries)
	assert.Equal(t, BackoffExponential, policy.BackoffStrategy)
	assert.Equal(t, 500*time.Millisecond, policy.InitialDelay)
	assert.Equal(t, 8*time.Second, policy.MaxDelay)
	assert.Equal(t, 2.0, policy.Multiplier)
}

func TestCalculateDelayExponential(t *testing.T) {
	policy := DefaultRetryPolicy()

	assert.Equal(t, 500*time.Millisecond, policy.CalculateDelay(0))
	assert.Equal(t, time.Second, policy.CalculateDelay(1))
	assert.Equal(t, 2*time.Second, policy.CalculateDelay(2))
	assert.Equal(t, 4*time.Second, policy.CalculateDelay(3))
	assert.Equal(t, 8*time.Second, policy.CalculateDelay(4))

	// Capped at MaxDelay from here on.
	assert.Equal(t, 8*time.Second, policy.CalculateDelay(5))
	assert.Equal(t, 8*time.Second, policy.CalculateDelay(20))
}

func TestCalculateDelayConstant(t *testing.T) {
	policy := RetryPolicy{
		BackoffStrategy: BackoffConstant,
		InitialDelay:    time.Second,
	}

	for attempt := 0; attempt < 5; attempt++ {
		assert.Equal(t, time.Second, policy.CalculateDelay(attempt))
	}
}

func TestCalculateDelayLinear(t *testing.T) {
	policy := RetryPolicy{
		BackoffStrategy: BackoffLinear,
		InitialDelay:    time.Second,
	}

	assert.Equal(t, time.Second, policy.CalculateDelay(0))
	assert.Equal(t, 2*time.Second, policy.CalculateDelay(1))
	assert.Equal(t, 3*time.Second, policy.CalculateDelay(2))
}

package migration

import (
	"testing"
	"time"

	"github.com/juju/retry"
	"github.com/kevinfinalboss/lxcferry/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Unbounded(t *testing.T) {
	policy := NewRetryPolicy(types.RetryConfig{Delay: time.Second})

	assert.False(t, policy.Bounded())
	assert.Equal(t, retry.UnlimitedAttempts, policy.attempts())
	assert.Equal(t, time.Second, policy.delay())
	assert.Nil(t, policy.backoffFunc())
	assert.Contains(t, policy.String(), "ilimitado")
}

func TestRetryPolicy_Bounded(t *testing.T) {
	policy := NewRetryPolicy(types.RetryConfig{
		MaxAttempts: 5,
		Delay:       2 * time.Second,
		MaxDelay:    time.Minute,
		Backoff:     "double",
	})

	assert.True(t, policy.Bounded())
	assert.Equal(t, 5, policy.attempts())
	assert.NotNil(t, policy.backoffFunc())
	assert.Equal(t, "5 tentativas, double, atraso 2s", policy.String())
}

func TestRetryPolicy_DelayFloor(t *testing.T) {
	assert.Equal(t, minRetryDelay, UnboundedRetryPolicy(0).delay())
	assert.Equal(t, minRetryDelay, RetryPolicy{Delay: -time.Second}.delay())
}

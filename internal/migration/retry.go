package migration

import (
	"fmt"
	"time"

	"github.com/juju/retry"
	"github.com/kevinfinalboss/lxcferry/pkg/types"
)

const minRetryDelay = time.Millisecond

// RetryPolicy controls the rootfs sync-and-verify loop. MaxAttempts counts
// sync attempts; zero or less keeps retrying until the sizes match or the
// run is cancelled.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	MaxDelay    time.Duration
	Backoff     string
}

func NewRetryPolicy(cfg types.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Delay:       cfg.Delay,
		MaxDelay:    cfg.MaxDelay,
		Backoff:     cfg.Backoff,
	}
}

// UnboundedRetryPolicy retries forever with a constant pause.
func UnboundedRetryPolicy(delay time.Duration) RetryPolicy {
	return RetryPolicy{Delay: delay, Backoff: "constant"}
}

func (p RetryPolicy) Bounded() bool {
	return p.MaxAttempts > 0
}

func (p RetryPolicy) String() string {
	limit := "ilimitado"
	if p.Bounded() {
		limit = fmt.Sprintf("%d tentativas", p.MaxAttempts)
	}
	backoff := p.Backoff
	if backoff == "" {
		backoff = "constant"
	}
	return fmt.Sprintf("%s, %s, atraso %s", limit, backoff, p.delay())
}

func (p RetryPolicy) attempts() int {
	if p.Bounded() {
		return p.MaxAttempts
	}
	return retry.UnlimitedAttempts
}

func (p RetryPolicy) delay() time.Duration {
	if p.Delay < minRetryDelay {
		return minRetryDelay
	}
	return p.Delay
}

func (p RetryPolicy) backoffFunc() func(time.Duration, int) time.Duration {
	if p.Backoff == "double" {
		return retry.DoubleDelay
	}
	return nil
}

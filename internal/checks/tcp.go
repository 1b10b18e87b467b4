package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/healthwatch/internal/health"
	"github.com/hamed0406/healthwatch/internal/probe"
)

// TCP opens one connection to Host:Port per evaluation. The attempt is
// bounded by Timeout only, never by the caller's context.
type TCP struct {
	base
	Host    string
	Port    int
	Timeout time.Duration
	Prober  probe.Prober
}

func NewTCP(name, host string, port int, timeout time.Duration, mode health.FailureMode, d Deps) *TCP {
	return &TCP{
		base:    newBase("tcp", name, mode, d),
		Host:    host,
		Port:    port,
		Timeout: timeout,
		Prober:  probe.NewTCPProber(),
	}
}

func (c *TCP) Evaluate(ctx context.Context) health.Verdict {
	return c.evaluate(ctx, func(ctx context.Context) health.Verdict {
		res := c.Prober.Attempt(context.WithoutCancel(ctx), c.Host, c.Port, c.Timeout)
		if !res.OK() {
			return c.fail(fmt.Sprintf("tcp %s:%d is not reachable: %s: %v", c.Host, c.Port, res.Outcome, res.Err))
		}
		return health.Healthy(c.now())
	})
}

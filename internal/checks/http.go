package checks

import (
	"context"

	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/health"
	"github.com/hamed0406/healthwatch/internal/probe"
)

// HTTP issues a GET against URL. Any response counts as connected; only
// transport, TLS and DNS errors fail the check.
type HTTP struct {
	base
	URL     string
	Checker probe.Checker
}

func NewHTTP(name, url string, opts probe.HTTPOptions, mode health.FailureMode, d Deps) *HTTP {
	return &HTTP{
		base:    newBase("http", name, mode, d),
		URL:     url,
		Checker: probe.NewHTTPCheckerWithOptions(opts),
	}
}

func (c *HTTP) Evaluate(ctx context.Context) health.Verdict {
	return c.evaluate(ctx, func(ctx context.Context) health.Verdict {
		res := c.Checker.Check(ctx, c.URL)
		if !res.Connected() {
			return c.fail("http " + c.URL + " is not reachable: " + res.Message)
		}
		c.log.Debug("http_check_ok", zap.Int("status", res.StatusCode), zap.Float64("latency_ms", res.LatencyMS))
		return health.Healthy(c.now())
	})
}

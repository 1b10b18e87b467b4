// Package bundle builds every check named in a checks file and registers it
// with a health.Registry.
package bundle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/alert"
	"github.com/hamed0406/healthwatch/internal/checks"
	"github.com/hamed0406/healthwatch/internal/config"
	"github.com/hamed0406/healthwatch/internal/health"
	"github.com/hamed0406/healthwatch/internal/probe"
	"github.com/hamed0406/healthwatch/internal/reachability"
)

type Deps struct {
	Logger *zap.Logger
	Sink   alert.Sink
	Clock  clock.Clock
	// Suppliers is shared by every DYNAMIC cluster check.
	Suppliers *reachability.Suppliers
	Gatherer  prometheus.Gatherer
	// Redis feeds cluster checks that name a redisKey. Nil disables them.
	Redis redis.Cmdable
}

// Bundle is the result of a registration pass.
type Bundle struct {
	Engines   map[string]*reachability.Engine
	Snapshots []*reachability.RedisSnapshot
}

// Register builds every configured check. Nothing is registered when any
// check fails to build.
func Register(reg *health.Registry, file config.ChecksFile, d Deps) (*Bundle, error) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Sink == nil {
		d.Sink = alert.Nop{}
	}
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	if d.Suppliers == nil {
		d.Suppliers = reachability.NewSuppliers()
	}
	cd := checks.Deps{Sink: d.Sink, Clock: d.Clock, Logger: d.Logger}

	var (
		built []health.Check
		errs  error
		b     = &Bundle{Engines: make(map[string]*reachability.Engine)}
	)
	for _, c := range file.TCP {
		built = append(built, checks.NewTCP(c.Name, c.Host, c.Port, c.Timeout(), c.Mode, cd))
	}
	for _, c := range file.HTTP {
		conn, read := c.Timeouts()
		opts := probe.HTTPOptions{ConnectTimeout: conn, ReadTimeout: read, SkipVerify: !c.Verify, TLSVersion: c.TLSVersion}
		built = append(built, checks.NewHTTP(c.Name, c.URL, opts, c.Mode, cd))
	}
	for _, c := range file.Disk {
		built = append(built, checks.NewDisk(c.Name, c.Path, c.Threshold, c.Mode, cd))
	}
	for _, c := range file.Metric {
		built = append(built, checks.NewMetric(c.Name, c.Metric, checks.MetricType(c.Type), c.Dimension, c.Threshold, d.Gatherer, c.Mode, cd))
	}
	for _, c := range file.Cluster {
		e, err := buildCluster(c, d)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		b.Engines[e.Name()] = e
		built = append(built, e)
		if c.RedisKey != "" {
			if d.Redis == nil {
				d.Logger.Warn("redis_snapshot_disabled", zap.String("check", c.Name), zap.String("key", c.RedisKey))
				continue
			}
			snap := reachability.NewRedisSnapshot(d.Redis, c.RedisKey, d.Logger)
			snap.Clock = d.Clock
			b.Snapshots = append(b.Snapshots, snap.Bind(d.Suppliers, c.Name))
		}
	}
	if errs != nil {
		return nil, errs
	}

	for i, c := range built {
		if err := reg.Register(c.Name(), c); err != nil {
			for _, done := range built[:i] {
				reg.Unregister(done.Name())
			}
			return nil, err
		}
		d.Logger.Info("registering_check", zap.String("check", c.Name()))
	}
	return b, nil
}

func buildCluster(c config.ClusterCheck, d Deps) (*reachability.Engine, error) {
	cfg, err := c.CheckConfig()
	if err != nil {
		return nil, fmt.Errorf("cluster check %q: %w", c.Name, err)
	}
	return reachability.NewEngine(cfg,
		reachability.WithLogger(d.Logger),
		reachability.WithSink(d.Sink),
		reachability.WithClock(d.Clock),
		reachability.WithSuppliers(d.Suppliers),
	)
}

// RunSnapshots keeps every Redis snapshot fresh until ctx is done.
func (b *Bundle) RunSnapshots(ctx context.Context, every time.Duration) {
	var wg sync.WaitGroup
	for _, s := range b.Snapshots {
		wg.Add(1)
		go func(s *reachability.RedisSnapshot) {
			defer wg.Done()
			s.Run(ctx, every)
		}(s)
	}
	wg.Wait()
}

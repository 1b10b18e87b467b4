package reachability

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSnapshot mirrors a Redis set of "host:port" members into a local
// snapshot. Evaluation rounds read the local copy and never wait on Redis.
type RedisSnapshot struct {
	Client redis.Cmdable
	Key    string
	Logger *zap.Logger
	Clock  clock.Clock

	snap StaticSnapshot

	bindOnce  sync.Once
	suppliers *Suppliers
	check     string
}

func NewRedisSnapshot(c redis.Cmdable, key string, l *zap.Logger) *RedisSnapshot {
	if l == nil {
		l = zap.NewNop()
	}
	return &RedisSnapshot{Client: c, Key: key, Logger: l, Clock: clock.New()}
}

// Bind registers the snapshot as checkName's supplier after the first
// successful refresh, so a check never sees an unloaded, empty snapshot.
func (r *RedisSnapshot) Bind(s *Suppliers, checkName string) *RedisSnapshot {
	r.suppliers = s
	r.check = checkName
	return r
}

// Refresh reloads the set. On error the previous snapshot is kept.
func (r *RedisSnapshot) Refresh(ctx context.Context) error {
	members, err := r.Client.SMembers(ctx, r.Key).Result()
	if err != nil {
		return fmt.Errorf("redis smembers %s: %w", r.Key, err)
	}
	sort.Strings(members)

	hosts := make([]HostTarget, 0, len(members))
	for _, m := range members {
		t, err := parseHostPort(m)
		if err != nil {
			r.Logger.Warn("redis_snapshot_bad_member", zap.String("key", r.Key), zap.String("member", m), zap.Error(err))
			continue
		}
		hosts = append(hosts, t)
	}
	r.snap.Set(hosts)

	if r.suppliers != nil {
		r.bindOnce.Do(func() { r.suppliers.Register(r.check, r.Supplier()) })
	}
	return nil
}

// Run refreshes immediately and then every interval until ctx is done.
func (r *RedisSnapshot) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 30 * time.Second
	}
	t := r.Clock.Ticker(every)
	defer t.Stop()

	r.refreshLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.refreshLogged(ctx)
		}
	}
}

func (r *RedisSnapshot) refreshLogged(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		r.Logger.Warn("redis_snapshot_refresh_error", zap.String("key", r.Key), zap.Error(err))
		return
	}
	r.Logger.Debug("redis_snapshot_refreshed", zap.String("key", r.Key), zap.Int("hosts", len(r.snap.Hosts())))
}

func (r *RedisSnapshot) Hosts() []HostTarget { return r.snap.Hosts() }

func (r *RedisSnapshot) Supplier() Supplier { return r.snap.Hosts }

func parseHostPort(s string) (HostTarget, error) {
	host, p, err := net.SplitHostPort(s)
	if err != nil {
		return HostTarget{}, err
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return HostTarget{}, fmt.Errorf("port: %w", err)
	}
	if host == "" || port < 1 || port > 65535 {
		return HostTarget{}, fmt.Errorf("invalid endpoint %q", s)
	}
	return HostTarget{Address: host, Port: port}, nil
}

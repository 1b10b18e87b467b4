package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/healthwatch/internal/alert"
	"github.com/hamed0406/healthwatch/internal/bundle"
	"github.com/hamed0406/healthwatch/internal/config"
	"github.com/hamed0406/healthwatch/internal/health"
	"github.com/hamed0406/healthwatch/internal/httpapi"
	apimw "github.com/hamed0406/healthwatch/internal/httpapi/middleware"
	"github.com/hamed0406/healthwatch/internal/logging"
	"github.com/hamed0406/healthwatch/internal/notify"
	"github.com/hamed0406/healthwatch/internal/reachability"
	"github.com/hamed0406/healthwatch/internal/repo"
	"github.com/hamed0406/healthwatch/internal/repo/memory"
	"github.com/hamed0406/healthwatch/internal/repo/postgres"
	"github.com/hamed0406/healthwatch/internal/repo/sqlite"
	"github.com/hamed0406/healthwatch/internal/scheduler"
)

func main() {
	cfg, err := config.FromEnv(".env")
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("healthd_exit", zap.Error(err))
	}
	logger.Info("healthd_stopped")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// transitions are always logged; Slack joins in when configured
	var notifier notify.Notifier
	transitions := notify.Multi{notify.Log{Logger: logger.Named("alerter")}}
	if s := notify.NewSlack(cfg.SlackWebhook); s != nil {
		notifier = s
		transitions = append(transitions, s)
	}
	var kw *kafka.Writer
	if len(cfg.KafkaBrokers) > 0 {
		kw = alert.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kw.Close()
	}
	ad := alert.Deps{Logger: logger, Registerer: promReg, Notifier: notifier}
	if kw != nil {
		ad.Kafka = kw
	}
	sink, err := alert.Build(cfg.AlertSinks, ad)
	if err != nil {
		return fmt.Errorf("alert sinks: %w", err)
	}

	file, err := config.LoadChecks(cfg.ChecksFile)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
	}

	reg := health.NewRegistry()
	suppliers := reachability.NewSuppliers()
	bd := bundle.Deps{Logger: logger, Sink: sink, Suppliers: suppliers, Gatherer: promReg}
	if rdb != nil {
		bd.Redis = rdb
	}
	b, err := bundle.Register(reg, file, bd)
	if err != nil {
		return fmt.Errorf("register checks: %w", err)
	}

	runner := scheduler.NewRunner(logger, reg, store, cfg.CheckPollInterval, cfg.CheckTimeout, cfg.MaxConcurrentChecks)

	api := httpapi.NewServer(logger, reg, store, suppliers, promReg)
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: api.Router(httpapi.RouterOptions{
			Keys:           apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys},
			AllowedOrigins: cfg.AllowedOrigins,
			PublicRPM:      cfg.PublicRPM,
			PublicBurst:    cfg.PublicBurst,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b.RunSnapshots(gctx, cfg.RedisRefresh)
		return nil
	})
	g.Go(func() error {
		if err := runner.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		runner.Stop()
		return nil
	})
	alerter := scheduler.NewAlerter(store, store, transitions, scheduler.AlerterConfig{
		AlertOnRecovery: cfg.AlertOnRecovery,
		Cooldown:        cfg.AlertCooldown,
		PollInterval:    cfg.AlertPollInterval,
	}, logger)
	g.Go(func() error {
		if err := alerter.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		logger.Info("store_selected", zap.String("backend", "postgres"))
		return postgres.New(ctx, cfg.DatabaseURL, logger)
	case cfg.SQLitePath != "":
		logger.Info("store_selected", zap.String("backend", "sqlite"), zap.String("path", cfg.SQLitePath))
		return sqlite.New(ctx, cfg.SQLitePath)
	default:
		logger.Warn("store_selected", zap.String("backend", "memory"))
		return memory.New(), nil
	}
}

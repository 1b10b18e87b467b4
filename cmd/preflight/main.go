// cmd/preflight/main.go
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"

	"github.com/hamed0406/healthwatch/internal/config"
)

type report struct {
	out, errOut io.Writer
	failed      bool
}

func (r *report) ok(msg string)   { fmt.Fprintln(r.out, "✔", msg) }
func (r *report) warn(msg string) { fmt.Fprintln(r.errOut, "⚠", msg) }
func (r *report) fail(msg string) {
	fmt.Fprintln(r.errOut, "✖", msg)
	r.failed = true
}

func main() {
	r := &report{out: os.Stdout, errOut: os.Stderr}
	preflight(r, ".env")
	if r.failed {
		os.Exit(1)
	}
}

func preflight(r *report, envFile string) {
	cfg, err := config.FromEnv(envFile)
	if err != nil {
		for _, e := range multierr.Errors(err) {
			r.fail(e.Error())
		}
		return
	}
	r.ok("API_ADDR=" + cfg.Addr)

	if len(cfg.AdminAPIKeys) == 0 {
		r.warn("ADMIN_API_KEYS is empty; host source routes are open to anyone.")
	}
	if len(cfg.PublicAPIKeys) == 0 {
		r.warn("PUBLIC_API_KEYS is empty; check results are readable without a key.")
	}
	for name, keys := range map[string][]string{"ADMIN_API_KEYS": cfg.AdminAPIKeys, "PUBLIC_API_KEYS": cfg.PublicAPIKeys} {
		for _, k := range keys {
			if strings.TrimSpace(k) != k {
				r.warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
				break
			}
		}
	}

	switch {
	case cfg.DatabaseURL != "":
		r.ok("DATABASE_URL present; verdicts go to Postgres")
	case cfg.SQLitePath != "":
		r.ok("SQLITE_PATH=" + cfg.SQLitePath)
	default:
		r.warn("DATABASE_URL and SQLITE_PATH empty; verdict history is kept in memory only.")
	}

	if len(cfg.AllowedOrigins) == 0 {
		r.warn("ALLOWED_ORIGINS empty; every origin is allowed by CORS.")
	} else {
		r.ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}
	if cfg.SlackWebhook == "" {
		r.warn("SLACK_WEBHOOK empty; transitions are only logged.")
	}
	r.ok("ALERT_SINKS=" + strings.Join(cfg.AlertSinks, ","))

	file, err := config.LoadChecks(cfg.ChecksFile)
	if err != nil {
		for _, e := range multierr.Errors(err) {
			r.fail(fmt.Sprintf("%s: %v", cfg.ChecksFile, e))
		}
		return
	}
	names := file.Names()
	if len(names) == 0 {
		r.warn(cfg.ChecksFile + " defines no checks.")
	}
	for _, c := range file.Cluster {
		if c.RedisKey != "" && cfg.RedisAddr == "" {
			r.warn(fmt.Sprintf("check %q reads redis key %q but REDIS_ADDR is empty.", c.Name, c.RedisKey))
		}
	}
	r.ok(fmt.Sprintf("%s: %d checks", cfg.ChecksFile, len(names)))

	if !r.failed {
		r.ok("preflight passed")
	}
}

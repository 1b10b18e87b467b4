package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func runPreflight(t *testing.T) (string, string, bool) {
	t.Helper()
	var out, errOut bytes.Buffer
	r := &report{out: &out, errOut: &errOut}
	preflight(r, "")
	return out.String(), errOut.String(), r.failed
}

func TestPreflight_Passes(t *testing.T) {
	p := filepath.Join(t.TempDir(), "checks.yaml")
	assert.NoError(t, os.WriteFile(p, []byte("tcp:\n  - name: db\n    host: db.internal\n    port: 5432\n"), 0o644))
	t.Setenv("CHECKS_FILE", p)
	t.Setenv("ADMIN_API_KEYS", "adm")
	t.Setenv("PUBLIC_API_KEYS", "pub")

	out, errOut, failed := runPreflight(t)
	assert.False(t, failed, errOut)
	assert.Contains(t, out, "✔ preflight passed")
	assert.Contains(t, out, "1 checks")
	assert.Contains(t, errOut, "⚠ DATABASE_URL and SQLITE_PATH empty")
}

func TestPreflight_FailsOnBadEnvAndChecks(t *testing.T) {
	t.Setenv("LOG_LEVEL", "chatty")
	_, errOut, failed := runPreflight(t)
	assert.True(t, failed)
	assert.Contains(t, errOut, "✖")

	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("CHECKS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	out, errOut, failed := runPreflight(t)
	assert.True(t, failed)
	assert.Contains(t, errOut, "read checks file")
	assert.NotContains(t, out, "preflight passed")
}

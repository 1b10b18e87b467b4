package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(v Verdict) Check {
	return CheckFunc{CheckName: "x", Fn: func(context.Context) Verdict { return v }}
}

func TestRegistry_RegisterAndRunAll(t *testing.T) {
	at := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	r := NewRegistry()
	require.NoError(t, r.Register("db", fixed(Healthy(at))))
	require.NoError(t, r.Register("cluster", fixed(Unhealthy(at, "host %s down", "a"))))

	err := r.Register("db", fixed(Healthy(at)))
	require.True(t, errors.Is(err, ErrDuplicateCheck))
	require.Error(t, r.Register("  ", fixed(Healthy(at))))

	assert.Equal(t, []string{"cluster", "db"}, r.Names())

	got := r.RunAll(context.Background())
	require.Len(t, got, 2)
	assert.True(t, got["db"].Healthy)
	assert.Equal(t, "host a down", got["cluster"].Message)
	assert.False(t, AllHealthy(got))

	r.Unregister("cluster")
	assert.True(t, AllHealthy(r.RunAll(context.Background())))
}

func TestRegistry_RunUnknownAndPanic(t *testing.T) {
	r := NewRegistry()
	_, err := r.Run(context.Background(), "missing")
	require.True(t, errors.Is(err, ErrUnknownCheck))

	require.NoError(t, r.Register("boom", CheckFunc{CheckName: "boom", Fn: func(context.Context) Verdict {
		panic("kaboom")
	}}))
	v, err := r.Run(context.Background(), "boom")
	require.NoError(t, err)
	assert.False(t, v.Healthy)
	assert.Contains(t, v.Message, "kaboom")
}

func TestFailureMode(t *testing.T) {
	var m FailureMode
	require.NoError(t, m.UnmarshalText([]byte("alert")))
	assert.Equal(t, Alert, m)
	require.NoError(t, m.UnmarshalText([]byte("")))
	assert.Equal(t, Normal, m)
	require.Error(t, m.UnmarshalText([]byte("loud")))

	failed := Unhealthy(time.Now(), "nope")
	assert.Equal(t, failed, Normal.Resolve(failed))
	resolved := Alert.Resolve(failed)
	assert.True(t, resolved.Healthy)
	assert.Equal(t, failed.ObservedAt, resolved.ObservedAt)
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "healthy", Healthy(time.Now()).String())
	assert.Equal(t, "unhealthy: x", Unhealthy(time.Now(), "x").String())
}

package reachability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prepared(t *testing.T, cfg CheckConfig) *CheckConfig {
	t.Helper()
	require.NoError(t, cfg.Prepare())
	return &cfg
}

func TestConfigSource_ListSequential(t *testing.T) {
	cfg := listConfig("c", Sequential, "a.local", "b.local", "c.local")
	cfg.Ports = PortRange{Low: 9000, High: 9100}
	got, err := NewConfigSource(SeededRand(1)).Resolve(prepared(t, cfg))
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, h := range []string{"a.local", "b.local", "c.local"} {
		assert.Equal(t, h, got[i].Address)
		assert.True(t, got[i].Port >= 9000 && got[i].Port < 9100)
	}
}

func TestConfigSource_ListRandomSamplesOne(t *testing.T) {
	cfg := prepared(t, listConfig("c", Random, "a", "b", "c"))
	src := NewConfigSource(SeededRand(3))
	seen := make(map[string]int)
	for i := 0; i < 300; i++ {
		got, err := src.Resolve(cfg)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 8000, got[0].Port)
		seen[got[0].Address]++
	}
	assert.Len(t, seen, 3)
}

func TestConfigSource_EmptyList(t *testing.T) {
	for _, sel := range []SelectionMode{Random, Sequential} {
		got, err := NewConfigSource(nil).Resolve(prepared(t, listConfig("c", sel)))
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestConfigSource_PatternSequentialFullRange(t *testing.T) {
	got, err := NewConfigSource(SeededRand(1)).Resolve(prepared(t, patternConfig("c", "app-[00-02].svc.local", Sequential)))
	require.NoError(t, err)
	assert.Equal(t, []HostTarget{
		{Address: "app-00.svc.local", Port: 8000},
		{Address: "app-01.svc.local", Port: 8000},
		{Address: "app-02.svc.local", Port: 8000},
	}, got)
}

func TestConfigSource_PatternRandomOneInclusive(t *testing.T) {
	cfg := prepared(t, patternConfig("c", "app-[00-02].svc.local", Random))
	src := NewConfigSource(SeededRand(11))
	seen := make(map[string]bool)
	for i := 0; i < 300; i++ {
		got, err := src.Resolve(cfg)
		require.NoError(t, err)
		require.Len(t, got, 1)
		seen[got[0].Address] = true
	}
	assert.Equal(t, map[string]bool{"app-00.svc.local": true, "app-01.svc.local": true, "app-02.svc.local": true}, seen)
}

func TestConfigSource_PatternEmptyRange(t *testing.T) {
	for _, sel := range []SelectionMode{Random, Sequential} {
		got, err := NewConfigSource(nil).Resolve(prepared(t, patternConfig("c", "app-[5-2].svc.local", sel)))
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestDynamicSource(t *testing.T) {
	cfg := listConfig("dyn", Sequential, "ignored.local")
	cfg.HostSource = Dynamic
	sup := NewSuppliers()
	src := NewDynamicSource(sup, SeededRand(5))

	_, err := src.Resolve(prepared(t, cfg))
	require.True(t, errors.Is(err, ErrNoHostSource))
	var nhs *NoHostSourceError
	require.True(t, errors.As(err, &nhs))
	assert.Equal(t, "dyn", nhs.Check)

	snapshot := []HostTarget{{"10.0.0.1", 7000}, {"10.0.0.2", 7001}}
	sup.Register("dyn", NewStaticSnapshot(snapshot).Supplier())

	got, err := src.Resolve(prepared(t, cfg))
	require.NoError(t, err)
	assert.Equal(t, snapshot, got)

	cfg.SelectionMode = Random
	got, err = src.Resolve(prepared(t, cfg))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, snapshot, got[0])

	sup.Unregister("dyn")
	_, err = src.Resolve(prepared(t, cfg))
	assert.True(t, errors.Is(err, ErrNoHostSource))

	_, err = NewDynamicSource(nil, nil).Resolve(prepared(t, cfg))
	assert.True(t, errors.Is(err, ErrNoHostSource))
}

func TestStaticSnapshot_CopiesInput(t *testing.T) {
	in := []HostTarget{{"a", 1}}
	s := NewStaticSnapshot(in)
	in[0].Address = "mutated"
	assert.Equal(t, "a", s.Hosts()[0].Address)

	s.Set(nil)
	assert.Empty(t, s.Supplier()())
	assert.Equal(t, "[::1]:80", HostTarget{"::1", 80}.String())
}

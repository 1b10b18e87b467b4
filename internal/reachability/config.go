// Package reachability decides which remote endpoints a cluster check
// probes, how often, how results are cached between polls, and how failures
// are routed.
package reachability

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/hamed0406/healthwatch/internal/health"
	"github.com/hamed0406/healthwatch/internal/hostrange"
)

const (
	MinConnectTimeout     = time.Second
	MinCheckInterval      = time.Minute
	DefaultConnectTimeout = time.Second
	DefaultCheckInterval  = 12 * time.Hour
)

// HostNameMode selects where static host names come from.
type HostNameMode int

const (
	Pattern HostNameMode = iota
	List
)

func (m HostNameMode) String() string {
	if m == List {
		return "LIST"
	}
	return "PATTERN"
}

func (m HostNameMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *HostNameMode) UnmarshalText(b []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(b))) {
	case "", "PATTERN":
		*m = Pattern
	case "LIST":
		*m = List
	default:
		return fmt.Errorf("unknown host name mode %q", string(b))
	}
	return nil
}

// SelectionMode is the selection policy: Random samples one target per
// round, Sequential probes every target and stops at the first failure.
type SelectionMode int

const (
	Random SelectionMode = iota
	Sequential
)

func (m SelectionMode) String() string {
	if m == Sequential {
		return "SEQUENTIAL"
	}
	return "RANDOM"
}

func (m SelectionMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *SelectionMode) UnmarshalText(b []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(b))) {
	case "", "RANDOM":
		*m = Random
	case "SEQUENTIAL":
		*m = Sequential
	default:
		return fmt.Errorf("unknown selection mode %q", string(b))
	}
	return nil
}

// SourceKind says whether hosts come from configuration or from a snapshot
// registered by the embedding application.
type SourceKind int

const (
	FromConfig SourceKind = iota
	Dynamic
)

func (k SourceKind) String() string {
	if k == Dynamic {
		return "DYNAMIC"
	}
	return "CONFIG"
}

func (k SourceKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *SourceKind) UnmarshalText(b []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(b))) {
	case "", "CONFIG":
		*k = FromConfig
	case "DYNAMIC":
		*k = Dynamic
	default:
		return fmt.Errorf("unknown host source %q", string(b))
	}
	return nil
}

// CheckConfig is the immutable configuration of one cluster check.
type CheckConfig struct {
	Name            string
	HostNamePattern string
	Hosts           []string
	Ports           PortRange
	ConnectTimeout  time.Duration
	CheckInterval   time.Duration
	HostNameMode    HostNameMode
	SelectionMode   SelectionMode
	HostSource      SourceKind
	FailureMode     health.FailureMode

	hostRange hostrange.Spec
}

// Validate reports every configuration violation at once. A malformed
// pattern is returned as a *hostrange.MalformedPatternError inside the
// combined error.
func (c CheckConfig) Validate() error {
	_, err := c.validate()
	return err
}

func (c CheckConfig) validate() (hostrange.Spec, error) {
	var (
		err  error
		spec hostrange.Spec
	)
	if strings.TrimSpace(c.Name) == "" {
		err = multierr.Append(err, errors.New("name must not be blank"))
	}
	if c.ConnectTimeout < MinConnectTimeout {
		err = multierr.Append(err, fmt.Errorf("connect timeout %s is below %s", c.ConnectTimeout, MinConnectTimeout))
	}
	if c.CheckInterval < MinCheckInterval {
		err = multierr.Append(err, fmt.Errorf("check interval %s is below %s", c.CheckInterval, MinCheckInterval))
	}
	if perr := c.Ports.Validate(); perr != nil {
		err = multierr.Append(err, perr)
	}
	if c.HostSource == FromConfig && c.HostNameMode == Pattern {
		s, perr := hostrange.Parse(c.HostNamePattern)
		if perr != nil {
			err = multierr.Append(err, perr)
		}
		spec = s
	}
	return spec, err
}

// Prepare validates the configuration and parses the host pattern once so
// that no malformed pattern reaches an evaluation round.
func (c *CheckConfig) Prepare() error {
	spec, err := c.validate()
	if err != nil {
		return err
	}
	c.hostRange = spec
	return nil
}

// HostRange is the parsed pattern. Only meaningful after Prepare for
// PATTERN checks.
func (c *CheckConfig) HostRange() hostrange.Spec { return c.hostRange }

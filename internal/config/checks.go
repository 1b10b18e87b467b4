package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
	"sigs.k8s.io/yaml"

	"github.com/hamed0406/healthwatch/internal/health"
	"github.com/hamed0406/healthwatch/internal/reachability"
)

// ChecksFile is the YAML document describing every check to register.
type ChecksFile struct {
	TCP     []TCPCheck     `json:"tcp,omitempty" validate:"dive"`
	HTTP    []HTTPCheck    `json:"http,omitempty" validate:"dive"`
	Disk    []DiskCheck    `json:"disk,omitempty" validate:"dive"`
	Metric  []MetricCheck  `json:"metric,omitempty" validate:"dive"`
	Cluster []ClusterCheck `json:"cluster,omitempty" validate:"dive"`
}

// Timeouts and intervals in the file are milliseconds.
type TCPCheck struct {
	Name           string             `json:"name" validate:"required"`
	Host           string             `json:"host" validate:"required"`
	Port           int                `json:"port" validate:"min=1,max=65535"`
	ConnectTimeout int64              `json:"connectTimeout,omitempty" validate:"gte=1000"`
	Mode           health.FailureMode `json:"mode,omitempty"`
}

type HTTPCheck struct {
	Name           string             `json:"name" validate:"required"`
	URL            string             `json:"url" validate:"required,url"`
	ConnectTimeout int64              `json:"connectTimeout,omitempty" validate:"gte=1000"`
	ReadTimeout    int64              `json:"readTimeout,omitempty" validate:"gte=1000"`
	Verify         bool               `json:"verify,omitempty"`
	TLSVersion     string             `json:"tlsVersion,omitempty" validate:"oneof=TLSv1.2 TLSv1.3"`
	Mode           health.FailureMode `json:"mode,omitempty"`
}

type DiskCheck struct {
	Name string `json:"name" validate:"required"`
	Path string `json:"path" validate:"required"`
	// Threshold is the minimum free space in KB.
	Threshold int64              `json:"threshold" validate:"gte=102400"`
	Mode      health.FailureMode `json:"mode,omitempty"`
}

type MetricCheck struct {
	Name      string             `json:"name" validate:"required"`
	Metric    string             `json:"metric" validate:"required"`
	Type      string             `json:"type" validate:"oneof=METER TIMER HISTOGRAM COUNTER GAUGE"`
	Dimension string             `json:"dimension,omitempty" validate:"required"`
	Threshold float64            `json:"threshold" validate:"gte=0"`
	Mode      health.FailureMode `json:"mode,omitempty"`
}

type ClusterCheck struct {
	Name            string                     `json:"name"`
	HostNamePattern string                     `json:"hostNamePattern,omitempty"`
	Hosts           []string                   `json:"hosts,omitempty"`
	PortRange       string                     `json:"portRange"`
	ConnectTimeout  int64                      `json:"connectTimeout,omitempty"`
	CheckInterval   int64                      `json:"checkInterval,omitempty"`
	HostNameMode    reachability.HostNameMode  `json:"hostNameMode,omitempty"`
	SelectionMode   reachability.SelectionMode `json:"selectionMode,omitempty"`
	HostSource      reachability.SourceKind    `json:"hostSource,omitempty"`
	Mode            health.FailureMode         `json:"mode,omitempty"`
	// RedisKey names a Redis set of "host:port" members feeding a DYNAMIC check.
	RedisKey string `json:"redisKey,omitempty"`
}

// CheckConfig converts the file entry. Range and timing rules are enforced
// by reachability.CheckConfig.Validate.
func (c ClusterCheck) CheckConfig() (reachability.CheckConfig, error) {
	ports, err := reachability.ParsePortRange(c.PortRange)
	if err != nil {
		return reachability.CheckConfig{}, err
	}
	return reachability.CheckConfig{
		Name:            c.Name,
		HostNamePattern: c.HostNamePattern,
		Hosts:           c.Hosts,
		Ports:           ports,
		ConnectTimeout:  ms(c.ConnectTimeout),
		CheckInterval:   ms(c.CheckInterval),
		HostNameMode:    c.HostNameMode,
		SelectionMode:   c.SelectionMode,
		HostSource:      c.HostSource,
		FailureMode:     c.Mode,
	}, nil
}

func ms(v int64) time.Duration { return time.Duration(v) * time.Millisecond }

func (c TCPCheck) Timeout() time.Duration { return ms(c.ConnectTimeout) }

func (c HTTPCheck) Timeouts() (conn, read time.Duration) {
	return ms(c.ConnectTimeout), ms(c.ReadTimeout)
}

// LoadChecks reads, defaults and validates a checks file.
func LoadChecks(path string) (ChecksFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ChecksFile{}, fmt.Errorf("read checks file: %w", err)
	}
	return ParseChecks(b)
}

// ParseChecks decodes YAML (or JSON). Unknown keys are rejected.
func ParseChecks(b []byte) (ChecksFile, error) {
	var f ChecksFile
	if err := yaml.UnmarshalStrict(b, &f); err != nil {
		return ChecksFile{}, fmt.Errorf("parse checks file: %w", err)
	}
	f.ApplyDefaults()
	if err := f.Validate(); err != nil {
		return ChecksFile{}, err
	}
	return f, nil
}

// ApplyDefaults fills unset fields the way an empty YAML key is meant.
func (f *ChecksFile) ApplyDefaults() {
	for i := range f.TCP {
		c := &f.TCP[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.ConnectTimeout == 0 {
			c.ConnectTimeout = 1000
		}
	}
	for i := range f.HTTP {
		c := &f.HTTP[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.ConnectTimeout == 0 {
			c.ConnectTimeout = 10000
		}
		if c.ReadTimeout == 0 {
			c.ReadTimeout = 10000
		}
		if c.TLSVersion == "" {
			c.TLSVersion = "TLSv1.2"
		}
	}
	for i := range f.Disk {
		f.Disk[i].Name = strings.TrimSpace(f.Disk[i].Name)
	}
	for i := range f.Metric {
		c := &f.Metric[i]
		c.Name = strings.TrimSpace(c.Name)
		c.Type = strings.ToUpper(strings.TrimSpace(c.Type))
		if c.Dimension == "" {
			c.Dimension = "m1_rate"
		}
	}
	for i := range f.Cluster {
		c := &f.Cluster[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.ConnectTimeout == 0 {
			c.ConnectTimeout = reachability.DefaultConnectTimeout.Milliseconds()
		}
		if c.CheckInterval == 0 {
			c.CheckInterval = reachability.DefaultCheckInterval.Milliseconds()
		}
	}
}

// Validate reports every violation in the file at once.
func (f ChecksFile) Validate() error {
	var errs error
	if err := validate.Struct(f); err != nil {
		errs = multierr.Append(errs, validationError(err))
	}

	for i, c := range f.Cluster {
		label := fmt.Sprintf("cluster[%d] %q", i, c.Name)
		cc, err := c.CheckConfig()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", label, err))
			continue
		}
		for _, e := range multierr.Errors(cc.Validate()) {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", label, e))
		}
		if c.RedisKey != "" && c.HostSource != reachability.Dynamic {
			errs = multierr.Append(errs, fmt.Errorf("%s: redisKey requires hostSource DYNAMIC", label))
		}
	}

	seen := make(map[string]bool)
	for _, name := range f.Names() {
		if name == "" {
			continue
		}
		if seen[name] {
			errs = multierr.Append(errs, fmt.Errorf("duplicate check name %q", name))
		}
		seen[name] = true
	}
	return errs
}

// Names lists every configured check name in file order.
func (f ChecksFile) Names() []string {
	var out []string
	for _, c := range f.TCP {
		out = append(out, c.Name)
	}
	for _, c := range f.HTTP {
		out = append(out, c.Name)
	}
	for _, c := range f.Disk {
		out = append(out, c.Name)
	}
	for _, c := range f.Metric {
		out = append(out, c.Name)
	}
	for _, c := range f.Cluster {
		out = append(out, c.Name)
	}
	return out
}

// validationError flattens validator output into one error per field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var out error
	for _, fe := range verrs {
		out = multierr.Append(out, fmt.Errorf("%s: failed %q rule (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return out
}

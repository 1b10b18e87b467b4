package probe

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

type HTTPChecker struct {
	Client *http.Client
}

// HTTPOptions tunes the transport used by an HTTPChecker.
type HTTPOptions struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// SkipVerify disables TLS certificate verification.
	SkipVerify bool
	// TLSVersion is "TLSv1.2" (default) or "TLSv1.3".
	TLSVersion string
}

func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		Client: &http.Client{Timeout: timeout},
	}
}

// NewHTTPCheckerWithOptions builds a checker whose connect and read phases
// are bounded separately.
func NewHTTPCheckerWithOptions(o HTTPOptions) *HTTPChecker {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 10 * time.Second
	}
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: o.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout:   o.ConnectTimeout,
		ResponseHeaderTimeout: o.ReadTimeout,
		DisableKeepAlives:     true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: o.SkipVerify, //nolint:gosec // opt-in per check
			MinVersion:         tlsVersion(o.TLSVersion),
		},
	}
	return &HTTPChecker{
		Client: &http.Client{Transport: tr, Timeout: o.ConnectTimeout + o.ReadTimeout},
	}
}

func tlsVersion(v string) uint16 {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "TLSV1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}

func (h *HTTPChecker) Check(ctx context.Context, target string) CheckResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return CheckResult{Name: "HTTP", Success: false, Message: err.Error()}
	}

	resp, err := h.Client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		return CheckResult{Name: "HTTP", Success: false, Message: err.Error(), LatencyMS: latency}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	success := resp.StatusCode >= 200 && resp.StatusCode < 400
	return CheckResult{
		Name:       "HTTP",
		Success:    success,
		Message:    resp.Status,
		StatusCode: resp.StatusCode,
		LatencyMS:  latency,
	}
}

package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"
)

// Outcome classifies a single connection attempt.
type Outcome int

const (
	OK Outcome = iota
	Timeout
	ConnectionRefused
	DNSError
	Failed
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Timeout:
		return "timeout"
	case ConnectionRefused:
		return "connection_refused"
	case DNSError:
		return "dns_error"
	default:
		return "failed"
	}
}

// ProbeResult is the outcome of one TCP connect to Host:Port.
type ProbeResult struct {
	Host    string
	Port    int
	Outcome Outcome
	Err     error
	Latency time.Duration
}

func (r ProbeResult) OK() bool { return r.Outcome == OK }

// Prober opens exactly one connection to host:port, bounded by timeout.
type Prober interface {
	Attempt(ctx context.Context, host string, port int, timeout time.Duration) ProbeResult
}

type TCPProber struct{}

func NewTCPProber() *TCPProber { return &TCPProber{} }

func (p *TCPProber) Attempt(ctx context.Context, host string, port int, timeout time.Duration) ProbeResult {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	d := net.Dialer{Timeout: timeout}

	start := time.Now()
	conn, err := d.DialContext(ctx, "tcp", addr)
	res := ProbeResult{Host: host, Port: port, Latency: time.Since(start)}
	if err != nil {
		res.Outcome = Classify(err)
		res.Err = err
		return res
	}
	_ = conn.Close()
	res.Outcome = OK
	return res
}

// Classify maps a dial error onto an Outcome.
func Classify(err error) Outcome {
	if err == nil {
		return OK
	}
	var de *net.DNSError
	if errors.As(err, &de) {
		if de.IsTimeout {
			return Timeout
		}
		return DNSError
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ConnectionRefused
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Timeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Timeout
	}
	return Failed
}

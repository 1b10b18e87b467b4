// Package hostrange expands bracketed numeric host patterns such as
// "app-[00-99].svc.local" into concrete, zero-padded host names.
package hostrange

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxHosts caps the number of indices a pattern may span.
const MaxHosts = 100000

var patternRE = regexp.MustCompile(`^([A-Za-z0-9-]+)\[(\d+)-(\d+)\]\.([A-Za-z0-9-]+)\.([A-Za-z0-9-]+)$`)

// MalformedPatternError is returned when a host pattern does not follow the
// prefix[low-high].domain.tld grammar.
type MalformedPatternError struct {
	Pattern string
	Reason  string
}

func (e *MalformedPatternError) Error() string {
	return fmt.Sprintf("malformed host pattern %q: %s", e.Pattern, e.Reason)
}

// Spec is a parsed host pattern. Width is the digit count of the literal
// low bound and drives zero padding.
type Spec struct {
	Prefix string
	Start  int
	End    int
	Width  int
	Domain string
	TLD    string
}

// Parse validates pattern and extracts its five groups.
func Parse(pattern string) (Spec, error) {
	m := patternRE.FindStringSubmatch(strings.TrimSpace(pattern))
	if m == nil {
		return Spec{}, &MalformedPatternError{Pattern: pattern, Reason: "expected prefix[low-high].domain.tld"}
	}
	start, err := strconv.Atoi(m[2])
	if err != nil {
		return Spec{}, &MalformedPatternError{Pattern: pattern, Reason: "low bound: " + err.Error()}
	}
	end, err := strconv.Atoi(m[3])
	if err != nil {
		return Spec{}, &MalformedPatternError{Pattern: pattern, Reason: "high bound: " + err.Error()}
	}
	if end >= start && end-start >= MaxHosts {
		return Spec{}, &MalformedPatternError{Pattern: pattern, Reason: fmt.Sprintf("range spans more than %d hosts", MaxHosts)}
	}
	return Spec{
		Prefix: m[1],
		Start:  start,
		End:    end,
		Width:  len(m[2]),
		Domain: m[4],
		TLD:    m[5],
	}, nil
}

// Expand renders the host name for index. Indices wider than Width are
// rendered in full.
func (s Spec) Expand(index int) string {
	return fmt.Sprintf("%s%0*d.%s.%s", s.Prefix, s.Width, index, s.Domain, s.TLD)
}

// Empty reports whether the range contains no index (Start > End).
func (s Spec) Empty() bool { return s.Start > s.End }

// Len is the number of hosts in [Start, End].
func (s Spec) Len() int {
	if s.Empty() {
		return 0
	}
	return s.End - s.Start + 1
}

// Hosts returns every host name of the range in ascending index order.
func (s Spec) Hosts() []string {
	out := make([]string, 0, s.Len())
	for i := s.Start; i <= s.End; i++ {
		out = append(out, s.Expand(i))
	}
	return out
}

func (s Spec) String() string {
	return fmt.Sprintf("%s[%0*d-%d].%s.%s", s.Prefix, s.Width, s.Start, s.End, s.Domain, s.TLD)
}

// Expand parses pattern and renders the host name for index.
func Expand(pattern string, index int) (string, error) {
	s, err := Parse(pattern)
	if err != nil {
		return "", err
	}
	return s.Expand(index), nil
}

// Package lan advertises and discovers rooms over mDNS/DNS-SD and opens the TCP links.
package lan

import (
	"sort"
	"strings"
)

const mdnsDomain = "local."

// Service is what a host publishes: a typed, named endpoint plus a small attribute map.
type Service struct {
	Type string
	Name string
	Port int

	// Addr pins the advertised IPv4 address. Empty lets the responder announce every
	// multicast interface.
	Addr  string
	Attrs map[string]string
}

// ResolvedService is a Service seen on the wire with its concrete source host.
type ResolvedService struct {
	Service
	Host string
}

// serviceType turns "_snakegame._tcp." into the "_snakegame._tcp" form zeroconf expects.
func serviceType(t string) string {
	return strings.TrimSuffix(t, ".")
}

func txtRecords(attrs map[string]string) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+attrs[k])
	}
	return out
}

func parseTXT(records []string) map[string]string {
	attrs := make(map[string]string, len(records))
	for _, r := range records {
		if r == "" {
			continue
		}
		k, v, _ := strings.Cut(r, "=")
		attrs[k] = v
	}
	return attrs
}

// hostLabel derives a DNS label for a pinned-address record from the instance name.
func hostLabel(instance string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(instance) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "-"):
			b.WriteByte('-')
		}
		if b.Len() >= 63 {
			break
		}
	}
	label := strings.TrimSuffix(b.String(), "-")
	if label == "" {
		label = "room"
	}
	return label
}

// unescapeInstance undoes the backslash escaping resolvers apply to spaces and dots.
func unescapeInstance(name string) string {
	if !strings.Contains(name, `\`) {
		return name
	}
	var b strings.Builder
	escaped := false
	for _, r := range name {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

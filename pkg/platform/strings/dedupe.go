// Package strings normalizes user-supplied string lists.
package strings

import (
	"net"
	"strings"
)

// SplitList splits every value on commas, trims the parts and drops empty or
// repeated ones. Order of first appearance is kept.
func SplitList(values ...string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

// Hosts is SplitList for host names: parts are lowercased and lose any port.
func Hosts(values ...string) []string {
	parts := SplitList(values...)
	out := parts[:0]
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		host := strings.ToLower(p)
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		out = append(out, host)
	}
	return out
}

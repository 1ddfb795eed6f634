package app

import "strings"

// originHost strips the scheme and any path from an Origin header
// value, leaving "host[:port]".
func originHost(origin string) string {
	host := origin
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	return host
}

// originAllowed reports whether host matches one of the configured
// patterns. "*.govorilka.ru" matches any subdomain, "localhost:*"
// matches any port, anything else is an exact match.
func originAllowed(patterns []string, host string) bool {
	for _, p := range patterns {
		switch {
		case p == host:
			return true
		case strings.HasPrefix(p, "*."):
			if strings.HasSuffix(host, p[1:]) {
				return true
			}
		case strings.HasSuffix(p, ":*"):
			if strings.HasPrefix(host, p[:len(p)-1]) {
				return true
			}
		}
	}
	return false
}

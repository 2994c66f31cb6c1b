package ws

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// NewCheckOrigin returns a CheckOrigin function for the upgrader.
//
// An empty allow-list accepts any origin, matching the open demo relay.
// Requests without an Origin header (non-browser clients) are always accepted.
// Entries are compared as scheme://host; "*" accepts everything.
func NewCheckOrigin(allowed []string, logger *slog.Logger) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		if a == "*" {
			return func(*http.Request) bool { return true }
		}
		if o := normalizeOrigin(a); o != "" {
			set[o] = struct{}{}
		}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set[normalizeOrigin(origin)]; ok {
			return true
		}

		logger.Warn("WS_ORIGIN_REJECTED", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func normalizeOrigin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

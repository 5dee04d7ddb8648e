// Package server decides which browser origins may open the WebSocket
// endpoint.
package server

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// originPolicy is built once from Config.AllowedOrigins. Entries are stored
// as lower-case scheme://host.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
	log      *zap.Logger
}

func newOriginPolicy(origins []string, logger *zap.Logger) originPolicy {
	p := originPolicy{
		allowed: make(map[string]struct{}, len(origins)),
		log:     logger,
	}

	for _, raw := range origins {
		entry := strings.TrimSpace(raw)
		switch {
		case entry == "":
		case entry == "*":
			p.allowAll = true
		default:
			origin, ok := canonicalOrigin(entry)
			if !ok {
				logger.Warn("Ignoring invalid origin in configuration", zap.String("origin", raw))
				continue
			}
			p.allowed[origin] = struct{}{}
		}
	}
	return p
}

// canonicalOrigin reduces an origin to scheme://host. Anything without both
// parts is rejected.
func canonicalOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), true
}

// allows reports whether r may upgrade. Requests without an Origin header come
// from non-browser clients such as the terminal client and are allowed.
func (p originPolicy) allows(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header == "" {
		return true
	}

	origin, ok := canonicalOrigin(header)
	if !ok {
		return false
	}
	if p.allowAll {
		return true
	}
	_, ok = p.allowed[origin]
	return ok
}

// checkOrigin is the websocket.Upgrader hook.
func (p originPolicy) checkOrigin(r *http.Request) bool {
	if p.allows(r) {
		return true
	}
	p.log.Warn("Blocked WebSocket connection from disallowed origin", zap.String("origin", r.Header.Get("Origin")))
	return false
}

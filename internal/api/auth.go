package api

import (
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"

	"slotbook/internal/config"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"

	permReadSlots     = "read:slots"
	permWriteBookings = "write:bookings"
	permReadBookings  = "read:bookings"
	permAdmin         = "admin"

	clientKeyUnknown = "unknown"
)

var (
	errMissingHeaders   = errors.New("missing api key headers")
	errInvalidKey       = errors.New("invalid api key")
	errInvalidExtra     = errors.New("invalid extra header")
	errPermissionDenied = errors.New("permission denied")
	errRateLimited      = errors.New("rate limit exceeded")
)

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
// /healthz is always open.
type HTTPAuth struct {
	cfg         config.APIConfig
	clients     map[string]config.APIClientKey
	limiter     *rateLimiter
	keyHeader   string
	extraHeader string
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}

	keyHeader := strings.ToLower(strings.TrimSpace(cfg.Auth.HeaderAPIKey))
	if keyHeader == "" {
		keyHeader = apiKeyHeaderDefault
	}
	extraHeader := strings.ToLower(strings.TrimSpace(cfg.Auth.HeaderExtra))
	if extraHeader == "" {
		extraHeader = apiExtraHeaderDefault
	}

	return &HTTPAuth{
		cfg:         cfg,
		clients:     m,
		limiter:     newRateLimiter(cfg.RateLimit),
		keyHeader:   keyHeader,
		extraHeader: extraHeader,
	}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled {
			if err := a.checkAuth(r); err != nil {
				statusCode := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					statusCode = http.StatusForbidden
				}
				writeError(w, r, statusCode, err.Error())
				return
			}
		}

		if a.limiter.enabled() && !a.limiter.allow(a.clientKey(r)) {
			writeError(w, r, http.StatusTooManyRequests, errRateLimited.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) checkAuth(r *http.Request) error {
	apiKey := strings.TrimSpace(r.Header.Get(a.keyHeader))
	extra := strings.TrimSpace(r.Header.Get(a.extraHeader))
	if apiKey == "" || extra == "" {
		return errMissingHeaders
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return errInvalidKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return errInvalidExtra
	}

	return checkPermissions(client, requiredPermission(r))
}

func checkPermissions(client config.APIClientKey, required string) error {
	if required == "" {
		return nil
	}
	// If permissions list is empty, treat as allow-all.
	if len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		p = strings.TrimSpace(p)
		if p == required || p == permAdmin {
			return nil
		}
	}
	return errPermissionDenied
}

func requiredPermission(r *http.Request) string {
	path := r.URL.Path
	switch {
	case path == "/api/v1/catalog", strings.HasPrefix(path, "/api/v1/slots"):
		return permReadSlots
	case path == "/api/v1/selection":
		return permWriteBookings
	case strings.HasPrefix(path, "/api/v1/bookings"):
		if r.Method == http.MethodGet {
			return permReadBookings
		}
		return permWriteBookings
	case strings.HasPrefix(path, "/api/v1/index"):
		return permAdmin
	default:
		return ""
	}
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.keyHeader)); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

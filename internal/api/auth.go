package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"salon/internal/config"
)

const (
	permAdminRead  = "admin:read"
	permAdminWrite = "admin:write"
	anonymousAdmin = "admin"
)

var (
	errMissingKey       = errors.New("missing api key")
	errInvalidKey       = errors.New("invalid api key")
	errPermissionDenied = errors.New("permission denied")
)

type clientCtxKey struct{}

// HTTPAuth guards the admin endpoints with static API keys.
type HTTPAuth struct {
	cfg     config.APIAuthConfig
	clients map[string]config.APIClientKey
}

func NewHTTPAuth(cfg config.APIAuthConfig) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{cfg: cfg, clients: m}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientCtxKey{}, anonymousAdmin)))
			return
		}

		client, err := a.checkAuth(r)
		if err != nil {
			statusCode := http.StatusUnauthorized
			if errors.Is(err, errPermissionDenied) {
				statusCode = http.StatusForbidden
			}
			writeError(w, statusCode, err.Error())
			return
		}

		name := client.Name
		if name == "" {
			name = anonymousAdmin
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientCtxKey{}, name)))
	})
}

func (a *HTTPAuth) checkAuth(r *http.Request) (config.APIClientKey, error) {
	apiKey := strings.TrimSpace(r.Header.Get(a.headerName(a.cfg.HeaderAPIKey, "x-api-key")))
	if apiKey == "" {
		return config.APIClientKey{}, errMissingKey
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return config.APIClientKey{}, errInvalidKey
	}
	if client.Extra != "" {
		extra := strings.TrimSpace(r.Header.Get(a.headerName(a.cfg.HeaderExtra, "x-api-extra")))
		if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
			return config.APIClientKey{}, errInvalidKey
		}
	}

	if err := checkPermissions(client, r); err != nil {
		return config.APIClientKey{}, err
	}
	return client, nil
}

func (a *HTTPAuth) headerName(configured, fallback string) string {
	h := strings.TrimSpace(configured)
	if h == "" {
		return fallback
	}
	return h
}

// checkPermissions allows everything to a key without a permission list.
func checkPermissions(client config.APIClientKey, r *http.Request) error {
	if len(client.Permissions) == 0 {
		return nil
	}
	required := requiredPermission(r)
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func requiredPermission(r *http.Request) string {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return permAdminRead
	}
	return permAdminWrite
}

// clientName returns the admin key name attached by Wrap.
func clientName(ctx context.Context) string {
	if name, ok := ctx.Value(clientCtxKey{}).(string); ok && name != "" {
		return name
	}
	return anonymousAdmin
}

package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5/middleware"

	"numa/internal/engine"
	"numa/internal/engine/auth"
)

type AuthConfig struct {
	// JWTSecret enables bearer tokens. When set, requests without
	// credentials are refused.
	JWTSecret string

	AllowLegacyUserHeader bool

	// Fallback is the session used when no credentials are sent and no
	// secret is configured, typically the workspace's session.user_id.
	Fallback auth.Session
	Logger   *slog.Logger
}

func (c AuthConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func sessionFromRequest(ctx context.Context) (auth.Session, huma.StatusError) {
	if s, ok := auth.FromContext(ctx); ok && !s.Anonymous() {
		return s, nil
	}
	return auth.Session{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	open := map[string]bool{
		path.Join(basePath, "health"):         true,
		path.Join(basePath, "auth/dev/token"): true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			ctx := engine.WithRequestID(req.Context(), middleware.GetReqID(req.Context()))
			if open[req.URL.Path] {
				next.ServeHTTP(w, req.WithContext(ctx))
				return
			}

			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			legacyUser := strings.TrimSpace(req.Header.Get("X-User-Id"))

			if authz != "" {
				token, ok := bearerToken(authz)
				if !ok {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				session, err := auth.ParseToken(token, cfg.JWTSecret)
				if err != nil {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(auth.WithSession(ctx, session)))
				return
			}

			if legacyUser != "" && cfg.AllowLegacyUserHeader {
				id, err := strconv.ParseInt(legacyUser, 10, 64)
				if err != nil || id <= 0 {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid X-User-Id", nil))
					return
				}
				cfg.logger().Warn("legacy X-User-Id header used without authentication", "user_id", id)
				session := auth.Session{UserID: id, Source: auth.SourceHeader}
				next.ServeHTTP(w, req.WithContext(auth.WithSession(ctx, session)))
				return
			}

			if cfg.JWTSecret != "" {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
				return
			}
			if !cfg.Fallback.Anonymous() {
				ctx = auth.WithSession(ctx, cfg.Fallback)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}

package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// Resolver maps a verified user id to the roles and membership it holds.
type Resolver interface {
	ResolveIdentity(ctx context.Context, userID string) (Identity, error)
}

// Middleware authenticates the bearer token and stores the resolved Identity
// in the request context.
func Middleware(v *Verifier, r Resolver, log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			authHeader := req.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				unauthorized(w, "Missing or invalid Authorization header")
				return
			}

			userID, err := v.Verify(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				log.Warn("rejected token", "path", req.URL.Path, "error", err)
				unauthorized(w, "Invalid token")
				return
			}

			id, err := r.ResolveIdentity(req.Context(), userID)
			if err != nil {
				log.Error("failed to resolve identity", "user_id", userID, "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{"error": "Failed to resolve identity"})
				return
			}

			next.ServeHTTP(w, req.WithContext(WithIdentity(req.Context(), id)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

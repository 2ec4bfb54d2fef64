package api

import (
	"context"
	"net/http"
	"strings"

	"botic-pipeline/internal/models"
)

// Identity headers are set by the upstream gateway after authentication.
const (
	HeaderActorEmail = "X-Actor-Email"
	HeaderActorRole  = "X-Actor-Role"
)

type Actor struct {
	Email string
	Role  string
}

type actorKey struct{}

func actorFrom(ctx context.Context) Actor {
	a, _ := ctx.Value(actorKey{}).(Actor)
	return a
}

// RequireIdentity rejects requests without a gateway-supplied actor.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := Actor{
			Email: strings.TrimSpace(r.Header.Get(HeaderActorEmail)),
			Role:  canonicalRole(r.Header.Get(HeaderActorRole)),
		}
		if actor.Email == "" || actor.Role == "" {
			writeStatus(w, http.StatusUnauthorized, codeUnauthorized, "missing actor identity")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func canonicalRole(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, known := range []string{models.ActorRoleAdmin, models.ActorRoleBot, models.ActorRoleApplicant} {
		if strings.EqualFold(raw, known) {
			return known
		}
	}
	return raw
}

// RequireRole admits only the listed actor roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := actorFrom(r.Context())
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeStatus(w, http.StatusForbidden, codeForbidden,
				"role "+actor.Role+" may not perform this action")
		})
	}
}

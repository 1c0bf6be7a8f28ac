package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/careflow/clinic-booking/internal/appointment"
)

// Actor is the authenticated caller extracted from the bearer token.
type Actor struct {
	ID    uuid.UUID
	Email string
	Role  appointment.Role
}

type actorContextKey struct{}

// GetActor returns the authenticated actor stored by AuthMiddleware.
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// AuthMiddleware validates an HS256 bearer token and stores the actor in the
// request context. Expected claims: sub (user id), email, role.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing_token", "Authorization bearer token required")
				return
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid_token", "token is invalid or expired")
				return
			}

			actor, ok := actorFromClaims(claims)
			if !ok {
				writeError(w, http.StatusUnauthorized, "invalid_token", "token claims are incomplete")
				return
			}

			ctx := context.WithValue(r.Context(), actorContextKey{}, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func actorFromClaims(claims jwt.MapClaims) (Actor, bool) {
	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return Actor{}, false
	}

	role, _ := claims["role"].(string)
	switch appointment.Role(role) {
	case appointment.RoleAdmin, appointment.RoleDoctor, appointment.RoleNurse,
		appointment.RoleReceptionist, appointment.RolePatient:
	default:
		return Actor{}, false
	}

	email, _ := claims["email"].(string)

	return Actor{ID: id, Email: email, Role: appointment.Role(role)}, true
}

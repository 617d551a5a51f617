package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/cabinbook/cabinbook/libs/auth"
	"github.com/cabinbook/cabinbook/libs/httpx"
)

// Actor roles carried in token claims. The core performs no authentication
// itself; it trusts the verified claims as an opaque principal.
const (
	RoleProfessional = "professional"
	RoleOwner        = "owner"
)

type Principal struct {
	ID         string
	Role       string
	LocationID string
}

func (p Principal) IsProfessional() bool { return p.Role == RoleProfessional }
func (p Principal) IsOwner() bool        { return p.Role == RoleOwner }

type ctxKey int

const principalKey ctxKey = iota

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// Middleware resolves the Bearer token into a Principal on the request
// context. Requests without a valid token proceed unauthenticated; each core
// operation rejects missing or wrong-role principals itself.
func Middleware(secret string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if token, ok := strings.CutPrefix(header, "Bearer "); ok {
				claims, err := auth.ParseAndVerifyHS256(strings.TrimSpace(token), secret)
				if err == nil {
					p := Principal{ID: claims.Sub, Role: claims.Role, LocationID: claims.LocationID}
					r = r.WithContext(WithPrincipal(r.Context(), p))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/reportgate/internal/api/response"
	"github.com/kiranshivaraju/reportgate/internal/identity"
	"golang.org/x/crypto/bcrypt"
)

// AdminKeyHeader carries the operator API key on admin routes.
const AdminKeyHeader = "X-Admin-Key"

// Auth provides end-user and operator authentication middleware.
type Auth struct {
	verifier     identity.Verifier
	adminKeyHash []byte
}

// NewAuth creates a new Auth middleware. An empty adminKeyHash disables the
// admin routes: every request to them is rejected.
func NewAuth(v identity.Verifier, adminKeyHash string) *Auth {
	return &Auth{verifier: v, adminKeyHash: []byte(adminKeyHash)}
}

// Authenticate validates the Bearer token and sets the principal in the
// request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			response.Error(w, http.StatusUnauthorized,
				response.CodeUnauthenticated, "Missing or invalid Authorization header", nil)
			return
		}

		principal, err := a.verifier.Verify(r.Context(), token)
		if err != nil {
			slog.Debug("bearer token rejected", "error", err, "path", r.URL.Path)
			response.Error(w, http.StatusUnauthorized,
				response.CodeUnauthenticated, "Invalid or expired token", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetPrincipal(r.Context(), principal)))
	})
}

// RequireOperatorKey checks the X-Admin-Key header against the configured
// bcrypt hash.
func (a *Auth) RequireOperatorKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(AdminKeyHeader)
		if len(a.adminKeyHash) == 0 || key == "" ||
			bcrypt.CompareHashAndPassword(a.adminKeyHash, []byte(key)) != nil {
			response.Error(w, http.StatusUnauthorized,
				response.CodeUnauthenticated, "Invalid operator key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

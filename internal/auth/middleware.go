package auth

import (
	"context"
	"fmt"
	"net/http"

	"order-crm/internal/apperrors"
	"order-crm/internal/logger"
	"order-crm/internal/models"
	"order-crm/internal/utils"
)

// PrincipalResolver maps verified claims to an active account.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, claims Claims) (models.Principal, error)
}

// Middleware verifies the bearer token, resolves the caller and stores the
// principal in the request context.
func Middleware(verifier Verifier, resolver PrincipalResolver, l *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				utils.WriteError(w, apperrors.NewUnauthorizedError(err.Error()))
				return
			}

			claims, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				l.LogSecurity("TOKEN_REJECTED", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteError(w, apperrors.NewUnauthorizedError("invalid token"))
				return
			}

			principal, err := resolver.ResolvePrincipal(r.Context(), claims)
			if err != nil {
				l.LogSecurity("PRINCIPAL_REJECTED", fmt.Sprintf("subject=%s email=%s: %v", claims.Subject, claims.Email, err))
				if apperrors.StatusOf(err) == http.StatusInternalServerError {
					utils.WriteError(w, err)
					return
				}
				utils.WriteError(w, apperrors.NewUnauthorizedError("account not available"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	allowed := make(map[models.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				utils.WriteError(w, apperrors.NewUnauthorizedError("not authenticated"))
				return
			}
			if !allowed[p.Role] {
				utils.WriteError(w, apperrors.NewPermissionError("access", r.URL.Path))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

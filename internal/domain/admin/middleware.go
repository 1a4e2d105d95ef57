package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/nullprotocol/creditledger/internal/middleware"
	"github.com/nullprotocol/creditledger/internal/pkg/errorhandler"
	"github.com/nullprotocol/creditledger/internal/pkg/response"
)

// AdminContextKey for context values
type AdminContextKey string

const ContextAdminLevel AdminContextKey = "admin_level"

// RequireAdmin resolves the authenticated account's admin level. It must run
// after middleware.Auth.
func RequireAdmin(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := middleware.GetAccountID(r.Context())
			if id == 0 {
				response.Unauthorized(w, "Missing account")
				return
			}

			level, err := svc.LevelOf(r.Context(), id)
			if errors.Is(err, ErrAdminNotFound) {
				response.Forbidden(w, "Not an admin")
				return
			}
			if err != nil {
				errorhandler.Handle(r.Context(), w, "resolve admin", err)
				return
			}

			ctx := context.WithValue(r.Context(), ContextAdminLevel, level)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission middleware checks for specific permission
func RequirePermission(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !GetLevel(r.Context()).Can(perm) {
				response.Forbidden(w, "Permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetLevel extracts the admin level from context
func GetLevel(ctx context.Context) Level {
	level, _ := ctx.Value(ContextAdminLevel).(Level)
	return level
}

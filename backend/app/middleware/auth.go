package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	jwtutil "drive-eval/backend/app/jwt"
	"drive-eval/backend/app/models"
	"drive-eval/backend/app/repo"
	"drive-eval/backend/global"
)

var errUnauthorized = errors.New("unauthorized")

type ctxKey int

const (
	ClaimsKey ctxKey = iota + 1
	AccountKey
	RequestIDKey
)

// AccountLookup resolves the account behind a token on every request, so
// deactivation and role changes apply without waiting for token expiry.
type AccountLookup interface {
	Get(username string) (*models.Account, error)
}

type Auth struct {
	Signer   *jwtutil.Signer
	Accounts AccountLookup
}

// authenticate returns errUnauthorized for a bad token, an unknown account
// or an inactive one. Any other error comes from the account store.
func (a *Auth) authenticate(r *http.Request) (*jwtutil.Claims, *models.Account, error) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return nil, nil, errUnauthorized
	}
	claims, err := a.Signer.Parse(strings.TrimPrefix(authz, "Bearer "))
	if err != nil {
		return nil, nil, errUnauthorized
	}
	acc, err := a.Accounts.Get(claims.Username)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil, errUnauthorized
	}
	if err != nil {
		return nil, nil, err
	}
	if !acc.Active {
		return nil, nil, errUnauthorized
	}
	return claims, acc, nil
}

func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, acc, err := a.authenticate(r)
		if errors.Is(err, errUnauthorized) {
			unauthorized(w)
			return
		}
		if err != nil {
			global.Logger.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("account lookup failed")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"storage unavailable"}`))
			return
		}
		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		ctx = context.WithValue(ctx, AccountKey, acc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if acc := GetAccount(r.Context()); acc == nil || acc.Role != models.RoleAdmin {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden"}`))
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}

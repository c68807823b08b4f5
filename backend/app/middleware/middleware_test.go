package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	jwtutil "drive-eval/backend/app/jwt"
	"drive-eval/backend/app/models"
	"drive-eval/backend/app/repo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type accountsStub map[string]models.Account

func (s accountsStub) Get(username string) (*models.Account, error) {
	a, ok := s[username]
	if !ok {
		return nil, fmt.Errorf("account %q: %w", username, repo.ErrNotFound)
	}
	return &a, nil
}

func TestRequireAuth(t *testing.T) {
	signer := &jwtutil.Signer{Secret: []byte("k"), Issuer: "drive-eval", ExpMin: 5}
	auth := &Auth{Signer: signer, Accounts: accountsStub{
		"admin": {Username: "admin", Role: models.RoleAdmin, Active: true},
		"ev":    {Username: "ev", Role: models.RoleEvaluator, Active: true},
		"off":   {Username: "off", Role: models.RoleAdmin, Active: false},
	}}
	var seen *models.Account
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetAccount(r.Context())
		require.NotNil(t, GetClaims(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})

	token := func(user string) string {
		tok, err := signer.Sign(user, "admin")
		require.NoError(t, err)
		return tok
	}
	cases := []struct {
		name      string
		authz     string
		handler   http.Handler
		want      int
		wantActor string
	}{
		{"no header", "", auth.RequireAuth(ok), http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", auth.RequireAuth(ok), http.StatusUnauthorized, ""},
		{"bad token", "Bearer abc", auth.RequireAuth(ok), http.StatusUnauthorized, ""},
		{"unknown account", "Bearer " + token("ghost"), auth.RequireAuth(ok), http.StatusUnauthorized, ""},
		{"inactive account", "Bearer " + token("off"), auth.RequireAuth(ok), http.StatusUnauthorized, ""},
		{"evaluator", "Bearer " + token("ev"), auth.RequireAuth(ok), http.StatusNoContent, "ev"},
		{"admin route as evaluator", "Bearer " + token("ev"), auth.RequireAdmin(ok), http.StatusForbidden, ""},
		{"admin route as admin", "Bearer " + token("admin"), auth.RequireAdmin(ok), http.StatusNoContent, "admin"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.authz != "" {
				req.Header.Set("Authorization", tc.authz)
			}
			rec := httptest.NewRecorder()
			tc.handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
			if tc.wantActor != "" {
				require.NotNil(t, seen)
				assert.Equal(t, tc.wantActor, seen.Username)
			}
		})
	}
}

type brokenAccounts struct{}

func (brokenAccounts) Get(string) (*models.Account, error) {
	return nil, fmt.Errorf("%w: users.csv line 3: bad active flag", repo.ErrStoreUnavailable)
}

func TestRequireAuth_StoreOutageIsRetryable(t *testing.T) {
	signer := &jwtutil.Signer{Secret: []byte("k"), Issuer: "drive-eval", ExpMin: 5}
	auth := &Auth{Signer: signer, Accounts: brokenAccounts{}}
	tok, err := signer.Sign("admin", "admin")
	require.NoError(t, err)

	called := false
	h := auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"storage unavailable"}`, rec.Body.String())
	assert.Empty(t, rec.Header().Get("WWW-Authenticate"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "a missing token is still rejected before the lookup")
}

func TestLoggingPropagatesRequestID(t *testing.T) {
	var got string
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", got)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRateLimiterIsPerClient(t *testing.T) {
	l := NewRateLimiter(0.001, 1)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:2000"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1000"))
}

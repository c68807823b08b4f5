package middleware

import (
	"context"

	jwtutil "drive-eval/backend/app/jwt"
	"drive-eval/backend/app/models"
)

func GetClaims(ctx context.Context) *jwtutil.Claims {
	if v := ctx.Value(ClaimsKey); v != nil {
		if c, ok := v.(*jwtutil.Claims); ok {
			return c
		}
	}
	return nil
}

// GetAccount returns the authenticated account, or nil outside RequireAuth.
func GetAccount(ctx context.Context) *models.Account {
	if a, ok := ctx.Value(AccountKey).(*models.Account); ok {
		return a
	}
	return nil
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

package auth

import (
	"context"
)

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	claimsKey    contextKey = "jwt_claims"
)

// NewContextWithSessionID returns a context carrying the session id
func NewContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFromContext returns the session id stored in ctx, or "" when the
// request carried no valid token
func SessionIDFromContext(ctx context.Context) string {
	sessionID, _ := ctx.Value(sessionIDKey).(string)
	return sessionID
}

// AddClaimsToContext stores the claims and their session id in ctx
func AddClaimsToContext(ctx context.Context, claims *GuestClaims) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	if claims != nil {
		ctx = NewContextWithSessionID(ctx, claims.SessionID)
	}
	return ctx
}

// GetClaimsFromContext extracts the claims from ctx
func GetClaimsFromContext(ctx context.Context) (*GuestClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*GuestClaims)
	return claims, ok && claims != nil
}

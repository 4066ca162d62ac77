package auth

import "context"

// contextKey is a custom type used for context keys to avoid collisions.
type contextKey string

const claimsKey contextKey = "tokenClaims"

// WithClaims returns a copy of ctx carrying the verified token claims.
func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext retrieves the verified token claims from the request
// context. Returns the claims and true if present, otherwise nil and false.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(Claims)
	return claims, ok
}

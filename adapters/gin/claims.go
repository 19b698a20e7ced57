package authgin

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
)

// Claims is a typed view of an OTP-issued access token, attached by AuthRequired.
type Claims struct {
	UserID      string
	Email       string
	PhoneNumber string
	AccountType string
	SessionID   string
}

type claimsCtxKey struct{}

const ginClaimsKey = "otpkit.claims"

// SetClaims returns a child context with claims attached.
func SetClaims(ctx context.Context, cl Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey{}, cl)
}

// FromContext extracts claims from a standard context.
func FromContext(ctx context.Context) (Claims, bool) {
	cl, ok := ctx.Value(claimsCtxKey{}).(Claims)
	return cl, ok
}

// ClaimsFromGin returns claims from the Gin context if present.
func ClaimsFromGin(c *gin.Context) (Claims, bool) {
	if v, ok := c.Get(ginClaimsKey); ok {
		if cl, ok := v.(Claims); ok {
			return cl, true
		}
	}
	return FromContext(c.Request.Context())
}

// GetClaims returns claims or an error if the request is unauthenticated.
func GetClaims(c *gin.Context) (Claims, error) {
	if cl, ok := ClaimsFromGin(c); ok {
		return cl, nil
	}
	return Claims{}, errors.New("unauthenticated")
}

// UserID is a typed accessor for the authenticated user's id.
func UserID(c *gin.Context) (string, bool) {
	if cl, ok := ClaimsFromGin(c); ok && cl.UserID != "" {
		return cl.UserID, true
	}
	return "", false
}

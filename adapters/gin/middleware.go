package authgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/open-rails/otpkit/adapters/ginutil"
	core "github.com/open-rails/otpkit/core"
)

// AuthRequired validates a Bearer access token minted by a verification or refresh,
// enforcing iss, aud and exp, and stores the typed claims on the context.
func AuthRequired(svc core.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ginutil.BearerToken(c.GetHeader("Authorization"))
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}
		ac, err := svc.ParseAccessToken(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}
		cl := Claims{
			UserID:      ac.Subject,
			Email:       ac.Email,
			PhoneNumber: ac.PhoneNumber,
			AccountType: ac.AccountType,
			SessionID:   ac.SessionID,
		}
		c.Set(ginClaimsKey, cl)
		c.Request = c.Request.WithContext(SetClaims(c.Request.Context(), cl))
		c.Next()
	}
}

// AuthOptional passes through when no token is present; validates if present.
func AuthOptional(svc core.Verifier) gin.HandlerFunc {
	required := AuthRequired(svc)
	return func(c *gin.Context) {
		if ginutil.BearerToken(c.GetHeader("Authorization")) == "" {
			c.Next()
			return
		}
		required(c)
	}
}

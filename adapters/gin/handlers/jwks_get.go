package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/open-rails/otpkit/adapters/ginutil"
	core "github.com/open-rails/otpkit/core"
	jwtkit "github.com/open-rails/otpkit/jwt"
)

// HandleJWKS serves the public JWKS document.
func HandleJWKS(svc core.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		set, err := svc.JWKS()
		if err != nil {
			ginutil.ServerErrWithLog(c, "jwks_unavailable", err, "jwks build failed")
			return
		}
		jwtkit.ServeJWKS(c.Writer, c.Request, set)
	}
}

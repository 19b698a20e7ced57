package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/open-rails/otpkit/adapters/apiwire"
	"github.com/open-rails/otpkit/adapters/ginutil"
	core "github.com/open-rails/otpkit/core"
)

func HandleAuthTokenPOST(svc core.Provider, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLAuthToken) {
			ginutil.TooMany(c)
			return
		}
		var body apiwire.RefreshRequest
		if err := ginutil.BindJSON(c, &body); err != nil || !strings.EqualFold(body.GrantType, "refresh_token") || strings.TrimSpace(body.RefreshToken) == "" {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		pair, err := svc.ExchangeRefreshToken(c.Request.Context(), body.RefreshToken)
		if err != nil {
			if errors.Is(err, core.ErrSessionNotFound) || errors.Is(err, core.ErrRefreshReuse) {
				ginutil.Unauthorized(c, "invalid_refresh_token")
				return
			}
			ginutil.ServerErrWithLog(c, "token_exchange_failed", err, "refresh token exchange failed")
			return
		}
		c.JSON(http.StatusOK, apiwire.FromTokenPair(pair))
	}
}

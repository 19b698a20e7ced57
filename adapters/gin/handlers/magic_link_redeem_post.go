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

func HandleMagicLinkRedeemPOST(svc core.Provider, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLMagicLinkRedeem) {
			ginutil.TooMany(c)
			return
		}
		var body apiwire.MagicLinkRedeemRequest
		if err := ginutil.BindJSON(c, &body); err != nil || strings.TrimSpace(body.Token) == "" {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		pair, err := svc.RedeemMagicLink(c.Request.Context(), body.Token)
		if err != nil {
			if errors.Is(err, core.ErrMagicLinkInvalid) {
				ginutil.Unauthorized(c, "invalid_or_expired_token")
				return
			}
			ginutil.ServerErrWithLog(c, "magic_link_failed", err, "magic link redemption failed")
			return
		}
		c.JSON(http.StatusOK, apiwire.FromTokenPair(pair))
	}
}

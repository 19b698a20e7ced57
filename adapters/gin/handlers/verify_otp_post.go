package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/open-rails/otpkit/adapters/apiwire"
	"github.com/open-rails/otpkit/adapters/ginutil"
	core "github.com/open-rails/otpkit/core"
)

func HandleVerifyOTPPOST(svc core.Provider, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLVerifyOTP) {
			ginutil.TooMany(c)
			return
		}
		var req apiwire.VerifyOTPRequest
		if err := ginutil.BindJSON(c, &req); err != nil {
			ginutil.InvalidBody(c)
			return
		}
		res, err := svc.VerifyOTP(c.Request.Context(), req.Core())
		if err != nil {
			ginutil.FlowErr(c, err)
			return
		}
		c.JSON(http.StatusOK, apiwire.FromVerifyResult(res))
	}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/open-rails/otpkit/adapters/apiwire"
	"github.com/open-rails/otpkit/adapters/ginutil"
	core "github.com/open-rails/otpkit/core"
)

// HandleSendOTPPOST issues a verification code. A resend cooldown hit is a 200 with success=false.
func HandleSendOTPPOST(svc core.Provider, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLSendOTP) {
			ginutil.TooMany(c)
			return
		}
		var req apiwire.SendOTPRequest
		if err := ginutil.BindJSON(c, &req); err != nil {
			ginutil.InvalidBody(c)
			return
		}
		res, err := svc.SendOTP(c.Request.Context(), req.Core())
		if err != nil {
			ginutil.FlowErr(c, err)
			return
		}
		c.JSON(http.StatusOK, apiwire.FromSendResult(res))
	}
}

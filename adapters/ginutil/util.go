package ginutil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/open-rails/otpkit/adapters/apiwire"
	log "github.com/sirupsen/logrus"
)

// RateLimiter is a minimal interface used by adapters.
type RateLimiter interface {
	AllowNamed(ctx context.Context, bucket string, key string) (bool, error)
}

// Bucket names used by the OTP endpoints. They match the net/http adapter so both
// adapters share limiter state when pointed at the same Redis.
const (
	RLSendOTP         = "otp_send"
	RLVerifyOTP       = "otp_verify"
	RLMagicLinkRedeem = "otp_magic_link_redeem"
	RLAuthToken       = "otp_auth_token"
)

// AllowNamed applies a per-IP limit using the provided bucket name.
// It fails open on limiter error.
func AllowNamed(c *gin.Context, rl RateLimiter, bucket string) bool {
	if rl == nil {
		return true
	}
	ip := c.ClientIP()
	if ip == "" {
		return true
	}
	key := "otp:" + bucket + ":ip:" + ip
	ok, err := rl.AllowNamed(c.Request.Context(), bucket, key)
	if err != nil {
		log.WithContext(c.Request.Context()).WithField("bucket", bucket).WithError(err).Warn("rate limiter unavailable, failing open")
		return true
	}
	return ok
}

// Error helpers
func SendErr(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code})
}
func BadRequest(c *gin.Context, code string)   { SendErr(c, http.StatusBadRequest, code) }
func Unauthorized(c *gin.Context, code string) { SendErr(c, http.StatusUnauthorized, code) }
func ServerErr(c *gin.Context, code string)    { SendErr(c, http.StatusInternalServerError, code) }

// TooMany answers a per-IP bucket hit.
func TooMany(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, apiwire.RateLimited())
}

// InvalidBody answers a send/verify request that could not be bound.
func InvalidBody(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, apiwire.Invalid())
}

// FlowErr renders a send/verify failure, logging the cause of 5xx responses.
func FlowErr(c *gin.Context, err error) {
	status, body := apiwire.FromError(err)
	if status >= http.StatusInternalServerError {
		logEntry(c, err).Error("otp flow failed")
	}
	c.AbortWithStatusJSON(status, body)
}

// ServerErrWithLog logs the underlying error/context before responding with a generic server error.
func ServerErrWithLog(c *gin.Context, code string, err error, message string) {
	if strings.TrimSpace(message) == "" {
		message = "otpkit server error"
	}
	logEntry(c, err).WithField("code", code).Error(message)
	ServerErr(c, code)
}

func logEntry(c *gin.Context, err error) *log.Entry {
	entry := log.WithContext(c.Request.Context()).WithFields(log.Fields{
		"path":   c.FullPath(),
		"method": c.Request.Method,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	return entry
}

// BearerToken extracts a Bearer token from an Authorization header value.
func BearerToken(authorization string) string {
	if authorization == "" {
		return ""
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

const maxBodyBytes = 64 << 10

// BindJSON decodes exactly one JSON object into dst. Unknown fields and trailing
// data are rejected, matching the net/http adapter.
func BindJSON(c *gin.Context, dst any) error {
	if c.Request == nil || c.Request.Body == nil {
		return errors.New("missing_body")
	}
	dec := json.NewDecoder(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid_json")
	}
	return nil
}

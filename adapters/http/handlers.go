package authhttp

import (
	"net/http"

	core "github.com/open-rails/otpkit/core"
)

// JWKSHandler returns a handler for GET /.well-known/jwks.json.
func (s *Service) JWKSHandler() http.Handler { return JWKSHandler(s.svc) }

// APIHandler returns a handler that serves the OTP routes. It can be mounted under any prefix.
func (s *Service) APIHandler() http.Handler {
	if s == nil || s.svc == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { serverErr(w, "otpkit_not_initialized") })
	}
	if !core.IsDevEnvironment() {
		if s.svc.EphemeralMode() != core.EphemeralRedis {
			panic("otpkit: redis-compatible ephemeral store is required in production")
		}
	}
	if err := s.svc.Validate(); err != nil {
		panic(err.Error())
	}

	mux := http.NewServeMux()
	mux.Handle("POST /send-otp", http.HandlerFunc(s.handleSendOTPPOST))
	mux.Handle("POST /verify-otp", http.HandlerFunc(s.handleVerifyOTPPOST))

	mux.Handle("POST /auth/magic-link/redeem", http.HandlerFunc(s.handleMagicLinkRedeemPOST))
	mux.Handle("POST /auth/token", http.HandlerFunc(s.handleAuthTokenPOST))
	mux.Handle("GET /.well-known/jwks.json", s.JWKSHandler())
	return mux
}

package authhttp

import (
	"net/http"

	"github.com/open-rails/otpkit/adapters/apiwire"
)

// handleVerifyOTPPOST handles POST /verify-otp.
func (s *Service) handleVerifyOTPPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLVerifyOTP) {
		tooMany(w)
		return
	}
	var req apiwire.VerifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		invalidBody(w)
		return
	}
	res, err := s.svc.VerifyOTP(r.Context(), req.Core())
	if err != nil {
		s.writeFlowErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiwire.FromVerifyResult(res))
}

package authhttp

import (
	"net/http"

	"github.com/open-rails/otpkit/adapters/apiwire"
)

// handleSendOTPPOST handles POST /send-otp.
func (s *Service) handleSendOTPPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLSendOTP) {
		tooMany(w)
		return
	}
	var req apiwire.SendOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		invalidBody(w)
		return
	}
	res, err := s.svc.SendOTP(r.Context(), req.Core())
	if err != nil {
		s.writeFlowErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apiwire.FromSendResult(res))
}

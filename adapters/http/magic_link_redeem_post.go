package authhttp

import (
	"errors"
	"net/http"
	"strings"

	"github.com/open-rails/otpkit/adapters/apiwire"
	core "github.com/open-rails/otpkit/core"
)

func (s *Service) handleMagicLinkRedeemPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLMagicLinkRedeem) {
		tooMany(w)
		return
	}
	var body apiwire.MagicLinkRedeemRequest
	if err := decodeJSON(w, r, &body); err != nil || strings.TrimSpace(body.Token) == "" {
		badRequest(w, "invalid_request")
		return
	}
	pair, err := s.svc.RedeemMagicLink(r.Context(), body.Token)
	if err != nil {
		if errors.Is(err, core.ErrMagicLinkInvalid) {
			unauthorized(w, "invalid_or_expired_token")
			return
		}
		s.serverErrWithLog(r, err, "magic link redemption failed")
		serverErr(w, "magic_link_failed")
		return
	}
	writeJSON(w, http.StatusOK, apiwire.FromTokenPair(pair))
}

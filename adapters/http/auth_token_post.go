package authhttp

import (
	"errors"
	"net/http"
	"strings"

	"github.com/open-rails/otpkit/adapters/apiwire"
	core "github.com/open-rails/otpkit/core"
)

func (s *Service) handleAuthTokenPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLAuthToken) {
		tooMany(w)
		return
	}

	var body apiwire.RefreshRequest
	if err := decodeJSON(w, r, &body); err != nil || !strings.EqualFold(body.GrantType, "refresh_token") || strings.TrimSpace(body.RefreshToken) == "" {
		badRequest(w, "invalid_request")
		return
	}

	pair, err := s.svc.ExchangeRefreshToken(r.Context(), body.RefreshToken)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) || errors.Is(err, core.ErrRefreshReuse) {
			unauthorized(w, "invalid_refresh_token")
			return
		}
		s.serverErrWithLog(r, err, "refresh token exchange failed")
		serverErr(w, "token_exchange_failed")
		return
	}
	writeJSON(w, http.StatusOK, apiwire.FromTokenPair(pair))
}

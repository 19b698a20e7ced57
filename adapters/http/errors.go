package authhttp

import (
	"encoding/json"
	"net/http"

	"github.com/open-rails/otpkit/adapters/apiwire"
	"github.com/sirupsen/logrus"
)

type errResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sendErr(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errResp{Error: code})
}

func badRequest(w http.ResponseWriter, code string)   { sendErr(w, http.StatusBadRequest, code) }
func unauthorized(w http.ResponseWriter, code string) { sendErr(w, http.StatusUnauthorized, code) }
func serverErr(w http.ResponseWriter, code string)    { sendErr(w, http.StatusInternalServerError, code) }

// tooMany answers a per-IP bucket hit on the OTP routes.
func tooMany(w http.ResponseWriter) {
	writeJSON(w, http.StatusTooManyRequests, apiwire.RateLimited())
}

func invalidBody(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, apiwire.Invalid())
}

// writeFlowErr renders a send/verify failure and logs the cause of anything that is
// not the caller's fault.
func (s *Service) writeFlowErr(w http.ResponseWriter, r *http.Request, err error) {
	status, body := apiwire.FromError(err)
	if status >= http.StatusInternalServerError {
		s.serverErrWithLog(r, err, "otp flow failed")
	}
	writeJSON(w, status, body)
}

func (s *Service) serverErrWithLog(r *http.Request, err error, message string) {
	entry := s.logger().WithContext(r.Context()).WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"method": r.Method,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(message)
}

package authhttp

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/open-rails/otpkit/otptest"
	memorylimiter "github.com/open-rails/otpkit/ratelimit/memory"
	"github.com/stretchr/testify/require"
)

func rawPost(h http.Handler, path, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestErrorShape_InvalidBody(t *testing.T) {
	_, h := newTestHandler(t)
	for _, tc := range []struct{ path, body string }{
		{"/send-otp", `{"phone":`},
		{"/send-otp", `{"phone":"5551234567","email":"a@b.co","extra":1}`},
		{"/verify-otp", `{"phone":"5551234567"} {}`},
	} {
		w := rawPost(h, tc.path, tc.body)
		require.Equal(t, http.StatusBadRequest, w.Code, tc.body)
		require.Equal(t, "application/json", w.Header().Get("Content-Type"))
		require.JSONEq(t, `{"success":false,"error":"Invalid request body."}`, w.Body.String())
	}
}

func TestErrorShape_MissingFields(t *testing.T) {
	_, h := newTestHandler(t)
	w := rawPost(h, "/verify-otp", `{"phone":"5551234567","code":"123456"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"success":false,"error":"Phone, code, and email are required."}`, w.Body.String())
}

func TestErrorShape_NoActiveCode(t *testing.T) {
	_, h := newTestHandler(t)
	w := rawPost(h, "/verify-otp", `{"phone":"5551234567","code":"123456","email":"a@b.co"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"success":false,"error":"Code expired or not found. Please request a new code."}`, w.Body.String())
}

func TestErrorShape_TooManyRequests(t *testing.T) {
	hs := otptest.New(t)
	h := Wrap(hs.Service).WithRateLimiter(memorylimiter.New(map[string]memorylimiter.Limit{
		RLVerifyOTP: {Limit: 1, Window: time.Minute},
	})).APIHandler()

	body := `{"phone":"5551234567","code":"123456","email":"a@b.co"}`
	require.Equal(t, http.StatusBadRequest, rawPost(h, "/verify-otp", body).Code)
	w := rawPost(h, "/verify-otp", body)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.JSONEq(t, `{"success":false,"error":"rate_limited"}`, w.Body.String())
}

func TestErrorShape_PrivatePeerSkipsLimiter(t *testing.T) {
	hs := otptest.New(t)
	h := Wrap(hs.Service).WithRateLimiter(memorylimiter.New(map[string]memorylimiter.Limit{
		RLVerifyOTP: {Limit: 1, Window: time.Minute},
	})).APIHandler()
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodPost, "/verify-otp", strings.NewReader(`{"phone":"5551234567","code":"1","email":"a@b.co"}`))
		r.RemoteAddr = "10.0.0.7:5000"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		require.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestErrorShape_TokenInvalidRequest(t *testing.T) {
	_, h := newTestHandler(t)
	for _, body := range []string{`{}`, `{"grant_type":"password","refresh_token":"x"}`, `{"grant_type":"refresh_token"}`} {
		w := rawPost(h, "/auth/token", body)
		require.Equal(t, http.StatusBadRequest, w.Code, body)
		require.JSONEq(t, `{"error":"invalid_request"}`, w.Body.String())
	}
}

func TestErrorShape_RedeemInvalidRequest(t *testing.T) {
	_, h := newTestHandler(t)
	w := rawPost(h, "/auth/magic-link/redeem", `{"token":"  "}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"error":"invalid_request"}`, w.Body.String())
}

func TestErrorShape_SMSFailureIs500(t *testing.T) {
	hs := otptest.New(t)
	hs.SMS.Fail = errors.New("provider down")
	h := Wrap(hs.Service).APIHandler()
	w := rawPost(h, "/send-otp", `{"phone":"5551234567","email":"a@b.co"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"success":false,"error":"Failed to send verification code."}`, w.Body.String())
}

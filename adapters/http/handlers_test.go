package authhttp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"testing"
	"time"

	"github.com/open-rails/otpkit/adapters/apiwire"
	"github.com/open-rails/otpkit/otptest"
	"github.com/stretchr/testify/require"
)

const (
	testEmail = "ana@example.com"
	rawPhone  = "(555) 123-4567"
	e164      = "+15551234567"
)

func newTestHandler(t *testing.T) (*otptest.Harness, http.Handler) {
	t.Helper()
	h := otptest.New(t)
	return h, Wrap(h.Service).APIHandler()
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestSendVerifyRedeem_OverHTTP(t *testing.T) {
	hs, h := newTestHandler(t)

	w := post(t, h, "/send-otp", map[string]any{"phone": rawPhone, "email": testEmail})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sent := decode[apiwire.SendOTPResponse](t, w)
	require.True(t, sent.Success)
	require.Equal(t, e164, sent.Phone)
	code := hs.SMS.LastCode(e164)

	bad := "000000"
	if code == bad {
		bad = "111111"
	}
	w = post(t, h, "/verify-otp", map[string]any{"phone": rawPhone, "code": bad, "email": testEmail})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"success":false,"error":"Invalid verification code.","attemptsRemaining":4}`, w.Body.String())

	w = post(t, h, "/verify-otp", map[string]any{"phone": rawPhone, "code": code, "email": testEmail, "fullName": "Ana Lima"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	vr := decode[apiwire.VerifyOTPResponse](t, w)
	require.True(t, vr.Success)
	require.False(t, vr.IsLogin)
	require.Equal(t, testEmail, vr.User.Email)
	require.Equal(t, "Ana Lima", vr.User.FullName)
	require.NotNil(t, vr.Session)

	link, err := url.Parse(vr.MagicLink)
	require.NoError(t, err)
	token := link.Query().Get("token")
	w = post(t, h, "/auth/magic-link/redeem", map[string]any{"token": token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tr := decode[apiwire.TokenResponse](t, w)
	require.Equal(t, "Bearer", tr.TokenType)
	require.NotEmpty(t, tr.AccessToken)

	w = post(t, h, "/auth/magic-link/redeem", map[string]any{"token": token})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"invalid_or_expired_token"}`, w.Body.String())

	w = post(t, h, "/auth/token", map[string]any{"grant_type": "refresh_token", "refresh_token": tr.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = post(t, h, "/auth/token", map[string]any{"grant_type": "refresh_token", "refresh_token": tr.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"invalid_refresh_token"}`, w.Body.String())
}

func TestSendOTP_CooldownIsSuccessFalse(t *testing.T) {
	_, h := newTestHandler(t)
	w := post(t, h, "/send-otp", map[string]any{"phone": rawPhone, "email": testEmail})
	require.Equal(t, http.StatusOK, w.Code)

	w = post(t, h, "/send-otp", map[string]any{"phone": rawPhone, "email": testEmail})
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[apiwire.SendOTPResponse](t, w)
	require.False(t, res.Success)
	require.True(t, res.RateLimited)
	require.Equal(t, 60, res.RetryAfter)
	require.NotEmpty(t, res.Error)
}

func TestSendOTP_CheckEmailOnlyReturnsHint(t *testing.T) {
	hs, h := newTestHandler(t)
	w := post(t, h, "/send-otp", map[string]any{"phone": rawPhone, "email": testEmail})
	require.Equal(t, http.StatusOK, w.Code)
	code := hs.SMS.LastCode(e164)
	w = post(t, h, "/verify-otp", map[string]any{"phone": rawPhone, "code": code, "email": testEmail})
	require.Equal(t, http.StatusOK, w.Code)

	hs.Clock.Advance(2 * time.Minute)
	w = post(t, h, "/send-otp", map[string]any{"email": testEmail, "checkEmailOnly": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[apiwire.SendOTPResponse](t, w)
	require.True(t, res.Success)
	require.True(t, res.SentToExistingPhone)
	require.Equal(t, "4567", res.PhoneHint)
	require.Empty(t, res.Phone)

	w = post(t, h, "/verify-otp", map[string]any{"code": hs.SMS.LastCode(e164), "email": testEmail})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, decode[apiwire.VerifyOTPResponse](t, w).IsLogin)
}

func TestJWKSRoute(t *testing.T) {
	_, h := newTestHandler(t)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var doc struct {
		Keys []struct {
			Kid string `json:"kid"`
		} `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	require.Len(t, doc.Keys, 1)
	require.Equal(t, otptest.KeyID, doc.Keys[0].Kid)
}

func TestAPIHandler_ProductionRequiresRedis(t *testing.T) {
	t.Setenv("ENV", "production")
	hs := otptest.New(t)
	require.Panics(t, func() { Wrap(hs.Service).APIHandler() })
}

func TestClientIPFromForwardedHeaders(t *testing.T) {
	fn := ClientIPFromForwardedHeaders([]netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:443"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.1.2.3")
	require.Equal(t, "203.0.113.9", fn(r))

	// untrusted peers cannot spoof the header
	r.RemoteAddr = "198.51.100.7:443"
	require.Equal(t, "198.51.100.7", fn(r))

	r.RemoteAddr = "192.168.1.5:443"
	r.Header.Del("X-Forwarded-For")
	require.Equal(t, "", DefaultClientIP()(r))
}

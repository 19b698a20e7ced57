package sms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestHTTPSender_PostsPayload(t *testing.T) {
	var got sendPayload
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("X-API-KEY")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s, err := NewHTTPSender(Config{APIURL: srv.URL, APIKey: "secret", TemplateID: "otp"})
	require.NoError(t, err)
	require.NoError(t, s.SendVerificationCode(context.Background(), "+15551234567", "123456"))
	require.Equal(t, "secret", apiKey)
	require.Equal(t, "+15551234567", got.To)
	require.Equal(t, "otp", got.TemplateID)
	require.Equal(t, "123456", got.Parameters["code"])
}

func TestHTTPSender_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewHTTPSender(Config{APIURL: srv.URL, APIKey: "k", Retry: RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}})
	require.NoError(t, err)
	require.NoError(t, s.SendVerificationCode(context.Background(), "+15551234567", "123456"))
	require.EqualValues(t, 3, calls.Load())
}

func TestHTTPSender_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad number", http.StatusBadRequest)
	}))
	defer srv.Close()

	s, err := NewHTTPSender(Config{APIURL: srv.URL, APIKey: "k", Retry: RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}})
	require.NoError(t, err)
	err = s.SendVerificationCode(context.Background(), "+15551234567", "123456")
	var se *Error
	require.True(t, errors.As(err, &se))
	require.Equal(t, ErrTypeProvider, se.Type)
	require.Equal(t, http.StatusBadRequest, se.Code)
	require.EqualValues(t, 1, calls.Load())
}

func TestConfigValidate(t *testing.T) {
	_, err := NewHTTPSender(Config{APIKey: "k"})
	var se *Error
	require.True(t, errors.As(err, &se))
	require.Equal(t, ErrTypeConfig, se.Type)
	require.False(t, se.Retryable())
}

func TestRetryWithBackoff_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryWithBackoff(ctx, RetryConfig{MaxAttempts: 5, Delay: time.Hour}, func(ctx context.Context) error {
		calls++
		cancel()
		return &Error{Type: ErrTypeNetwork, Message: "down"}
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

type ctxKey struct{}

func TestLogSender(t *testing.T) {
	require.NoError(t, LogSender{}.SendVerificationCode(context.Background(), "+15551234567", "000000"))

	logger, hook := test.NewNullLogger()
	ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")
	require.NoError(t, LogSender{Logger: logger}.SendVerificationCode(ctx, "+15551234567", "123456"))
	e := hook.LastEntry()
	require.NotNil(t, e)
	require.Equal(t, "123456", e.Data["code"])
	require.Equal(t, "req-1", e.Context.Value(ctxKey{}))
}

package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/open-rails/otpkit/core"
	"github.com/open-rails/otpkit/otptest"
	"github.com/stretchr/testify/require"
)

const (
	testEmail = "ana@example.com"
	rawPhone  = "(555) 123-4567"
	e164      = "+15551234567"
)

// sendCode issues a code for phone/email and returns it.
func sendCode(t *testing.T, h *otptest.Harness, phone, email string) string {
	t.Helper()
	res, err := h.Service.SendOTP(context.Background(), core.SendRequest{Phone: phone, Email: email})
	require.NoError(t, err)
	require.True(t, res.Sent, "send was rate limited")
	code := h.SMS.LastCode(res.Phone)
	require.Len(t, code, 6)
	return code
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func requireKind(t *testing.T, err error, kind core.ErrorKind) *core.Error {
	t.Helper()
	require.Error(t, err)
	var ce *core.Error
	require.True(t, errors.As(err, &ce), "expected *core.Error, got %T: %v", err, err)
	require.Equal(t, kind, ce.Kind, ce.Error())
	return ce
}

func seedUser(t *testing.T, h *otptest.Harness, email, phone string) *core.User {
	t.Helper()
	u, err := h.Identities.CreateUser(context.Background(), core.NewUser{Email: email, Phone: phone, FullName: "Seed", AccountType: "user", CreatedAt: time.Now()})
	require.NoError(t, err)
	return u
}

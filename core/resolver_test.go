package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/open-rails/otpkit/core"
	"github.com/open-rails/otpkit/otptest"
	"github.com/stretchr/testify/require"
)

func TestResolve_Priority(t *testing.T) {
	h := otptest.New(t)
	ctx := context.Background()
	byEmail := seedUser(t, h, testEmail, "")
	byPhone := seedUser(t, h, "other@example.com", e164)
	bound := seedUser(t, h, "bound@example.com", "+15559990000")

	res := func(q core.Query) *core.User {
		t.Helper()
		code := sendCode(t, h, q.Phone, q.Email)
		h.Clock.Advance(time.Minute)
		vr, err := h.Service.VerifyOTP(ctx, core.VerifyRequest{Phone: q.Phone, Code: code, Email: q.Email})
		require.NoError(t, err)
		require.True(t, vr.IsLogin)
		return vr.User
	}

	// email beats phone
	require.Equal(t, byEmail.ID, res(core.Query{Phone: e164, Email: testEmail}).ID)
	// phone is the fallback
	require.Equal(t, byPhone.ID, res(core.Query{Phone: e164, Email: "unknown@example.com"}).ID)

	// the bound user beats both
	_, err := h.Service.SendOTP(ctx, core.SendRequest{Email: bound.Email, CheckEmailOnly: true})
	require.NoError(t, err)
	vr, err := h.Service.VerifyOTP(ctx, core.VerifyRequest{Phone: "+15559990000", Code: h.SMS.LastCode("+15559990000"), Email: testEmail})
	require.NoError(t, err)
	require.Equal(t, bound.ID, vr.User.ID)
}

func TestResolve_CustomStrategies(t *testing.T) {
	h := otptest.New(t)
	ctx := context.Background()
	byPhone := seedUser(t, h, "phone-owner@example.com", e164)
	seedUser(t, h, testEmail, "")
	h.Service.WithResolveStrategies(core.PhoneStrategy, core.EmailStrategy)

	code := sendCode(t, h, rawPhone, testEmail)
	vr, err := h.Service.VerifyOTP(ctx, core.VerifyRequest{Phone: rawPhone, Code: code, Email: testEmail})
	require.NoError(t, err)
	require.Equal(t, byPhone.ID, vr.User.ID)
}

func TestReconcile_BackfillsMissingPhone(t *testing.T) {
	h := otptest.New(t)
	ctx := context.Background()
	u := seedUser(t, h, testEmail, "")

	code := sendCode(t, h, rawPhone, testEmail)
	vr, err := h.Service.VerifyOTP(ctx, core.VerifyRequest{Phone: rawPhone, Code: code, Email: testEmail})
	require.NoError(t, err)
	require.True(t, vr.IsLogin)
	require.Equal(t, e164, *vr.User.Phone)

	stored, err := h.Identities.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, e164, *stored.Phone)
	require.Equal(t, testEmail, stored.Email)
	require.Contains(t, h.Events(), core.EventPhoneBackfilled)
}

func TestReconcile_MismatchReplacesPhoneOnFile(t *testing.T) {
	h := otptest.New(t)
	ctx := context.Background()
	u := seedUser(t, h, testEmail, "+15550000001")

	code := sendCode(t, h, rawPhone, testEmail)
	vr, err := h.Service.VerifyOTP(ctx, core.VerifyRequest{Phone: rawPhone, Code: code, Email: testEmail})
	require.NoError(t, err)
	require.Equal(t, u.ID, vr.User.ID)
	require.Equal(t, e164, *vr.User.Phone)

	stored, err := h.Identities.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, e164, *stored.Phone)
	require.Contains(t, h.Events(), core.EventPhoneMismatch)
	require.Contains(t, h.Events(), core.EventPhoneBackfilled)
}

func TestReconcile_KeepPhoneOnFile(t *testing.T) {
	h := otptest.New(t, func(o *core.Options) { o.KeepPhoneOnFile = true })
	ctx := context.Background()
	u := seedUser(t, h, testEmail, "+15550000001")

	code := sendCode(t, h, rawPhone, testEmail)
	vr, err := h.Service.VerifyOTP(ctx, core.VerifyRequest{Phone: rawPhone, Code: code, Email: testEmail})
	require.NoError(t, err)
	require.Equal(t, "+15550000001", *vr.User.Phone)

	stored, err := h.Identities.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "+15550000001", *stored.Phone)
	require.Contains(t, h.Events(), core.EventPhoneMismatch)
	require.NotContains(t, h.Events(), core.EventPhoneBackfilled)
}

func TestReconcile_PhoneOwnedByAnotherAccount(t *testing.T) {
	h := otptest.New(t)
	ctx := context.Background()
	emailOwner := seedUser(t, h, testEmail, "")
	seedUser(t, h, "phone-owner@example.com", e164)

	code := sendCode(t, h, rawPhone, testEmail)
	vr, err := h.Service.VerifyOTP(ctx, core.VerifyRequest{Phone: rawPhone, Code: code, Email: testEmail})
	require.NoError(t, err)
	require.Equal(t, emailOwner.ID, vr.User.ID)
	require.Nil(t, vr.User.Phone)
}

package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/open-rails/otpkit/phone"
	"github.com/sirupsen/logrus"
)

// SendRequest is the input of the send step.
type SendRequest struct {
	Phone          string
	Email          string
	CheckEmailOnly bool
}

// SendResult describes what the send step did. A rate-limited send is a result, not an error.
type SendResult struct {
	Sent                bool
	SentToExistingPhone bool
	// Phone is the normalized destination. Empty when the destination came from an
	// existing account, in which case only PhoneHint is set.
	Phone       string
	PhoneHint   string
	NeedsPhone  bool
	RateLimited bool
	RetryAfter  time.Duration
}

// SendOTP issues a verification code.
//
// With CheckEmailOnly, the code goes to the phone on file for the email's account,
// if any, and the result carries only its last four digits. Without an account or a
// phone on file the result asks for a phone and nothing is issued.
func (s *Service) SendOTP(ctx context.Context, req SendRequest) (*SendResult, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, inputErr("Email is required.")
	}

	if req.CheckEmailOnly {
		u, err := s.resolver().Resolve(ctx, Query{Email: email})
		if err != nil {
			return nil, internalErr(err)
		}
		if u == nil || u.Phone == nil || *u.Phone == "" {
			return &SendResult{NeedsPhone: true}, nil
		}
		uid := u.ID
		return s.issueCode(ctx, *u.Phone, &uid, true)
	}

	if strings.TrimSpace(req.Phone) == "" {
		return nil, inputErr("Phone number is required.")
	}
	return s.issueCode(ctx, phone.Normalize(req.Phone), nil, false)
}

func (s *Service) issueCode(ctx context.Context, p string, boundUserID *string, existing bool) (*SendResult, error) {
	res := &SendResult{}
	if existing {
		res.PhoneHint = phone.Hint(p)
	} else {
		res.Phone = p
	}

	now := s.now()
	last, ok, err := s.codes.LastIssuedAt(ctx, p)
	if err != nil {
		return nil, internalErr(err)
	}
	if ok {
		if elapsed := now.Sub(last); elapsed < s.opts.ResendCooldown {
			res.RateLimited = true
			res.RetryAfter = s.opts.ResendCooldown - elapsed
			s.logEvent(ctx, AuthEvent{Event: EventCodeRateLimited, PhoneHint: phone.Hint(p)})
			return res, nil
		}
	}

	code, err := randDigits(s.opts.CodeLength)
	if err != nil {
		return nil, internalErr(err)
	}
	row := OTPCode{
		ID:          uuid.NewString(),
		Phone:       p,
		CodeHash:    sha256Hex(code),
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.opts.CodeTTL),
		BoundUserID: boundUserID,
	}
	if err := s.codes.InsertCode(ctx, row); err != nil {
		return nil, internalErr(err)
	}
	if err := s.deliver(ctx, p, code); err != nil {
		s.log.WithContext(ctx).WithFields(logrus.Fields{"phone_hint": phone.Hint(p), "code_id": row.ID}).
			WithError(err).Error("verification code delivery failed")
		return nil, &Error{Kind: KindDeliveryFailed, Message: msgDeliveryFailed, Err: err}
	}

	res.Sent = true
	res.SentToExistingPhone = existing
	ev := AuthEvent{Event: EventCodeSent, PhoneHint: phone.Hint(p)}
	if boundUserID != nil {
		ev.UserID = *boundUserID
	}
	s.logEvent(ctx, ev)
	return res, nil
}

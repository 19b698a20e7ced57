package core

import (
	"context"
	"strings"

	"github.com/open-rails/otpkit/phone"
	"github.com/sirupsen/logrus"
)

// VerifyRequest is the input of the verify step. Phone may be empty only when the
// email belongs to an account with a phone on file (the code was sent there by a
// CheckEmailOnly send and the client only knows the hint).
type VerifyRequest struct {
	Phone       string
	Code        string
	Email       string
	PromoSource string
	FullName    string
	AccountType string
}

// VerifyResult is a successful verification.
type VerifyResult struct {
	IsLogin  bool
	User     *User
	Artifact *SessionArtifact
}

// VerifyOTP checks the code, then logs the person into the account the identity keys
// resolve to, or registers a new one.
func (s *Service) VerifyOTP(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Code == "" {
		return nil, inputErr("Phone, code, and email are required.")
	}
	var p string
	if strings.TrimSpace(req.Phone) != "" {
		p = phone.Normalize(req.Phone)
	} else {
		u, err := s.identities.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, internalErr(err)
		}
		if u == nil || u.Phone == nil || *u.Phone == "" {
			return nil, inputErr("Phone, code, and email are required.")
		}
		p = *u.Phone
	}

	boundUserID, err := s.consumeCode(ctx, p, req.Code)
	if err != nil {
		return nil, err
	}

	r := s.resolver()
	user, strategy, err := r.resolve(ctx, Query{Phone: p, Email: email, BoundUserID: boundUserID})
	if err != nil {
		s.log.WithContext(ctx).WithError(err).Error("identity resolution failed")
		return nil, internalErr(err)
	}

	isLogin := user != nil
	if isLogin {
		s.log.WithContext(ctx).WithFields(logrus.Fields{"user_id": user.ID, "strategy": strategy}).Debug("identity resolved")
		user = r.Reconcile(ctx, user, p)
		now := s.now()
		if err := s.identities.SetLastLogin(ctx, user.ID, now); err != nil {
			s.log.WithContext(ctx).WithField("user_id", user.ID).WithError(err).Warn("failed to record last login")
		} else {
			user.LastLoginAt = &now
		}
	} else {
		user, isLogin, err = s.register(ctx, email, p, ProfileDefaults{
			FullName:    req.FullName,
			AccountType: req.AccountType,
			PromoSource: req.PromoSource,
		})
		if err != nil {
			return nil, err
		}
	}

	art, err := s.sessionIssuer().IssueSession(ctx, user)
	if err != nil {
		s.log.WithContext(ctx).WithFields(logrus.Fields{"user_id": user.ID, "account_created": !isLogin}).
			WithError(err).Error("session issuance failed")
		s.logEvent(ctx, AuthEvent{Event: EventSessionIssueFailed, UserID: user.ID})
		if !isLogin {
			return nil, &Error{Kind: KindSessionIssuanceFailed, Message: msgSessionAfterReg, AccountCreated: true, Err: err}
		}
		return nil, &Error{Kind: KindSessionIssuanceFailed, Message: msgSessionAfterAuth, Err: err}
	}
	return &VerifyResult{IsLogin: isLogin, User: user, Artifact: art}, nil
}

// SweepExpiredCodes burns up to limit expired, unverified codes. Rows are kept.
func (s *Service) SweepExpiredCodes(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = 1000
	}
	n, err := s.codes.BurnExpired(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.WithContext(ctx).WithField("burned", n).Info("expired verification codes burned")
	}
	return n, nil
}

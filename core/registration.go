package core

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/open-rails/otpkit/password"
	"github.com/open-rails/otpkit/phone"
	"github.com/sirupsen/logrus"
)

// ProfileDefaults fills the profile of an account created by verification.
type ProfileDefaults struct {
	FullName    string
	AccountType string
	PromoSource string
}

// register creates an account for an identity that did not resolve. If the store
// reports that the identity was created concurrently, the existing account is
// resolved and returned with isLogin=true instead.
func (s *Service) register(ctx context.Context, email, p string, d ProfileDefaults) (u *User, isLogin bool, err error) {
	hash, err := password.NewPlaceholder()
	if err != nil {
		return nil, false, internalErr(err)
	}
	accountType := s.accountType(ctx, d.AccountType)
	nu := NewUser{
		Email:          email,
		Phone:          p,
		FullName:       strings.TrimSpace(d.FullName),
		AccountType:    accountType,
		CredentialHash: hash,
		CreatedAt:      s.now(),
	}
	if ps := strings.TrimSpace(d.PromoSource); ps != "" {
		nu.PromoSource = &ps
	}

	created, err := s.identities.CreateUser(ctx, nu)
	if err == nil {
		s.logEvent(ctx, AuthEvent{Event: EventUserRegistered, UserID: created.ID, Email: email, PhoneHint: phone.Hint(p)})
		return created, false, nil
	}
	if !errors.Is(err, ErrDuplicateIdentity) {
		s.log.WithContext(ctx).WithField("email", email).WithError(err).Error("account creation failed")
		return nil, false, internalErr(err)
	}

	r := s.resolver()
	existing, strategy, rerr := r.resolve(ctx, Query{Email: email, Phone: p})
	if rerr != nil {
		return nil, false, internalErr(rerr)
	}
	if existing == nil {
		return nil, false, internalErr(errors.New("duplicate identity reported but no account resolved"))
	}
	s.log.WithContext(ctx).WithFields(logrus.Fields{"user_id": existing.ID, "strategy": strategy}).
		Info("concurrent registration resolved to existing account")
	s.logEvent(ctx, AuthEvent{Event: EventIdentityConflictResolved, UserID: existing.ID, Email: email, Strategy: strategy})
	return r.Reconcile(ctx, existing, p), true, nil
}

// accountType returns requested when it is an allowed type, else the default.
func (s *Service) accountType(ctx context.Context, requested string) string {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested == "" || requested == s.opts.DefaultAccountType {
		return s.opts.DefaultAccountType
	}
	if slices.Contains(s.opts.AccountTypes, requested) {
		return requested
	}
	s.log.WithContext(ctx).WithField("requested", requested).Info("unknown account type requested; using default")
	return s.opts.DefaultAccountType
}

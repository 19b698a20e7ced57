package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-rails/otpkit/phone"
	"github.com/sirupsen/logrus"
)

// Query is the set of identity keys known at verification time.
type Query struct {
	Phone       string
	Email       string
	BoundUserID *string
}

// ResolveStrategy is one step of identity resolution. Lookup returns (nil, nil)
// when the strategy has nothing to say.
type ResolveStrategy struct {
	Name   string
	Lookup func(ctx context.Context, store IdentityStore, q Query) (*User, error)
}

// BoundUserStrategy resolves the account a code was issued for.
var BoundUserStrategy = ResolveStrategy{
	Name: "bound_user",
	Lookup: func(ctx context.Context, store IdentityStore, q Query) (*User, error) {
		if q.BoundUserID == nil || *q.BoundUserID == "" {
			return nil, nil
		}
		return store.GetUserByID(ctx, *q.BoundUserID)
	},
}

var EmailStrategy = ResolveStrategy{
	Name: "email",
	Lookup: func(ctx context.Context, store IdentityStore, q Query) (*User, error) {
		if q.Email == "" {
			return nil, nil
		}
		return store.GetUserByEmail(ctx, q.Email)
	},
}

var PhoneStrategy = ResolveStrategy{
	Name: "phone",
	Lookup: func(ctx context.Context, store IdentityStore, q Query) (*User, error) {
		if q.Phone == "" {
			return nil, nil
		}
		return store.GetUserByPhone(ctx, q.Phone)
	},
}

// DefaultStrategies is bound user, then email, then phone.
func DefaultStrategies() []ResolveStrategy {
	return []ResolveStrategy{BoundUserStrategy, EmailStrategy, PhoneStrategy}
}

// Resolver runs strategies in order; the first match wins.
type Resolver struct {
	store           IdentityStore
	strategies      []ResolveStrategy
	keepPhoneOnFile bool
	svc             *Service
}

func (s *Service) resolver() *Resolver {
	return &Resolver{
		store:           s.identities,
		strategies:      s.strategies,
		keepPhoneOnFile: s.opts.KeepPhoneOnFile,
		svc:             s,
	}
}

// Resolve returns the existing account for q, or nil.
func (r *Resolver) Resolve(ctx context.Context, q Query) (*User, error) {
	u, _, err := r.resolve(ctx, q)
	return u, err
}

func (r *Resolver) resolve(ctx context.Context, q Query) (*User, string, error) {
	if r.store == nil {
		return nil, "", errors.New("identity store not configured")
	}
	for _, st := range r.strategies {
		u, err := st.Lookup(ctx, r.store, q)
		if err != nil {
			return nil, st.Name, fmt.Errorf("resolve by %s: %w", st.Name, err)
		}
		if u != nil {
			return u, st.Name, nil
		}
	}
	return nil, "", nil
}

// Reconcile records a verified phone on the resolved account. A missing or different
// phone is replaced unless KeepPhoneOnFile is set. Email is never written. Conflicts
// are logged and leave the account unchanged.
func (r *Resolver) Reconcile(ctx context.Context, u *User, verifiedPhone string) *User {
	if u == nil || verifiedPhone == "" {
		return u
	}
	if u.Phone != nil && *u.Phone == verifiedPhone {
		return u
	}
	s := r.svc
	entry := s.log.WithContext(ctx).WithFields(logrus.Fields{"user_id": u.ID, "phone_hint": phone.Hint(verifiedPhone)})

	if u.Phone != nil && *u.Phone != "" {
		entry = entry.WithField("phone_on_file_hint", phone.Hint(*u.Phone))
		s.logEvent(ctx, AuthEvent{Event: EventPhoneMismatch, UserID: u.ID, PhoneHint: phone.Hint(verifiedPhone)})
		if r.keepPhoneOnFile {
			entry.Info("verified phone differs from phone on file; keeping phone on file")
			return u
		}
		entry.Info("verified phone differs from phone on file; replacing it")
	}

	if err := r.store.SetPhone(ctx, u.ID, verifiedPhone); err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			entry.Info("verified phone belongs to another account; skipping backfill")
		} else {
			entry.WithError(err).Warn("phone backfill failed")
		}
		return u
	}
	p := verifiedPhone
	u.Phone = &p
	s.logEvent(ctx, AuthEvent{Event: EventPhoneBackfilled, UserID: u.ID, PhoneHint: phone.Hint(verifiedPhone)})
	return u
}

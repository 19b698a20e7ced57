package memorystore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/open-rails/otpkit/core"
)

type userRow struct {
	user           core.User
	credentialHash string
}

// IdentityStore keeps accounts in process memory with the same uniqueness rules as
// the Postgres schema: lower(email) is unique, and phone is unique when set.
type IdentityStore struct {
	mu    sync.Mutex
	users map[string]*userRow
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{users: make(map[string]*userRow)}
}

func (s *IdentityStore) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.users[id]; ok {
		return cloneUser(r.user), nil
	}
	return nil, nil
}

func (s *IdentityStore) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.byEmail(email); r != nil {
		return cloneUser(r.user), nil
	}
	return nil, nil
}

func (s *IdentityStore) GetUserByPhone(ctx context.Context, phone string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.byPhone(phone); r != nil {
		return cloneUser(r.user), nil
	}
	return nil, nil
}

func (s *IdentityStore) CreateUser(ctx context.Context, nu core.NewUser) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byEmail(nu.Email) != nil {
		return nil, core.ErrDuplicateIdentity
	}
	if nu.Phone != "" && s.byPhone(nu.Phone) != nil {
		return nil, core.ErrDuplicateIdentity
	}
	created := nu.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	u := core.User{
		ID:          uuid.NewString(),
		Email:       strings.ToLower(nu.Email),
		FullName:    nu.FullName,
		AccountType: nu.AccountType,
		PromoSource: nu.PromoSource,
		LastLoginAt: &created,
		CreatedAt:   created,
	}
	if nu.Phone != "" {
		p := nu.Phone
		u.Phone = &p
	}
	s.users[u.ID] = &userRow{user: u, credentialHash: nu.CredentialHash}
	return cloneUser(u), nil
}

func (s *IdentityStore) SetPhone(ctx context.Context, userID, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if other := s.byPhone(phone); other != nil && other.user.ID != userID {
		return core.ErrDuplicateIdentity
	}
	r, ok := s.users[userID]
	if !ok {
		return nil
	}
	p := phone
	r.user.Phone = &p
	return nil
}

func (s *IdentityStore) SetLastLogin(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.users[userID]; ok {
		t := at
		r.user.LastLoginAt = &t
	}
	return nil
}

// Count returns the number of accounts.
func (s *IdentityStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// CredentialHash returns the stored credential hash for a user.
func (s *IdentityStore) CredentialHash(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.users[userID]; ok {
		return r.credentialHash
	}
	return ""
}

func (s *IdentityStore) byEmail(email string) *userRow {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, r := range s.users {
		if r.user.Email == email {
			return r
		}
	}
	return nil
}

func (s *IdentityStore) byPhone(phone string) *userRow {
	for _, r := range s.users {
		if r.user.Phone != nil && *r.user.Phone == phone {
			return r
		}
	}
	return nil
}

func cloneUser(u core.User) *core.User {
	out := u
	if u.Phone != nil {
		p := *u.Phone
		out.Phone = &p
	}
	if u.PromoSource != nil {
		ps := *u.PromoSource
		out.PromoSource = &ps
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		out.LastLoginAt = &t
	}
	return &out
}

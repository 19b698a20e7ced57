package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/open-rails/otpkit/core"
)

// SessionStore keeps refresh sessions in process memory.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*core.RefreshSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*core.RefreshSession)}
}

func (s *SessionStore) CreateSession(ctx context.Context, rs core.RefreshSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := rs
	s.sessions[rs.ID] = &row
	return nil
}

func (s *SessionStore) RotateSession(ctx context.Context, presentedHash, newHash string, now time.Time) (*core.RefreshSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rs := range s.sessions {
		if rs.CurrentTokenHash != presentedHash || rs.RevokedAt != nil {
			continue
		}
		if rs.ExpiresAt != nil && !rs.ExpiresAt.After(now) {
			return nil, core.ErrSessionNotFound
		}
		prev := rs.CurrentTokenHash
		rs.PreviousTokenHash = &prev
		rs.CurrentTokenHash = newHash
		rs.LastUsedAt = now
		out := *rs
		return &out, nil
	}
	for _, rs := range s.sessions {
		if rs.PreviousTokenHash != nil && *rs.PreviousTokenHash == presentedHash && rs.RevokedAt == nil {
			s.revokeFamilyLocked(rs.FamilyID, now)
			return nil, core.ErrRefreshReuse
		}
	}
	return nil, core.ErrSessionNotFound
}

func (s *SessionStore) revokeFamilyLocked(family string, now time.Time) {
	for _, rs := range s.sessions {
		if rs.FamilyID == family && rs.RevokedAt == nil {
			t := now
			rs.RevokedAt = &t
		}
	}
}

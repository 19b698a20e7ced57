package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/open-rails/otpkit/core"
)

// CodeStore keeps verification codes in process memory.
type CodeStore struct {
	mu   sync.Mutex
	rows []*core.OTPCode
}

func NewCodeStore() *CodeStore { return &CodeStore{} }

func (s *CodeStore) InsertCode(ctx context.Context, c core.OTPCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := c
	s.rows = append(s.rows, &row)
	return nil
}

func (s *CodeStore) LatestActiveCode(ctx context.Context, phone string, now time.Time) (*core.OTPCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *core.OTPCode
	for _, r := range s.rows {
		if r.Phone != phone || r.Verified || !r.ExpiresAt.After(now) {
			continue
		}
		if best == nil || !r.CreatedAt.Before(best.CreatedAt) {
			best = r
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (s *CodeStore) IncrementAttempts(ctx context.Context, id string, ceiling int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.find(id)
	if r == nil || r.Verified {
		return 0, false, nil
	}
	if r.Attempts < ceiling {
		r.Attempts++
	}
	return r.Attempts, true, nil
}

func (s *CodeStore) MarkVerified(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.find(id); r != nil {
		r.Verified = true
	}
	return nil
}

func (s *CodeStore) BurnActive(ctx context.Context, phone, keepID string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.rows {
		if r.Phone == phone && r.ID != keepID && !r.Verified && r.ExpiresAt.After(now) {
			r.Verified = true
			n++
		}
	}
	return n, nil
}

func (s *CodeStore) LastIssuedAt(ctx context.Context, phone string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last time.Time
	found := false
	for _, r := range s.rows {
		if r.Phone == phone && (!found || !r.CreatedAt.Before(last)) {
			last = r.CreatedAt
			found = true
		}
	}
	return last, found, nil
}

func (s *CodeStore) BurnExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.rows {
		if limit > 0 && n >= int64(limit) {
			break
		}
		if !r.Verified && !r.ExpiresAt.After(now) {
			r.Verified = true
			n++
		}
	}
	return n, nil
}

// Codes returns a copy of every row for phone, oldest first.
func (s *CodeStore) Codes(phone string) []core.OTPCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.OTPCode
	for _, r := range s.rows {
		if r.Phone == phone {
			out = append(out, *r)
		}
	}
	return out
}

func (s *CodeStore) find(id string) *core.OTPCode {
	for _, r := range s.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

type EphemeralMode string

const (
	EphemeralMemory EphemeralMode = "memory"
	EphemeralRedis  EphemeralMode = "redis"
)

// EphemeralStore is a key-value store for short-lived state such as magic link tokens.
// Missing keys are (found=false, err=nil). Take must read and delete atomically.
type EphemeralStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Take(ctx context.Context, key string) ([]byte, bool, error)
}

const keyMagicLink = "otp:magic_link:"

var errNoEphemeralStore = errors.New("ephemeral store unavailable")

func (s *Service) WithEphemeralStore(store EphemeralStore, mode EphemeralMode) *Service {
	if mode == "" {
		mode = EphemeralMemory
	}
	s.ephemeralStore = store
	s.ephemeralMode = mode
	return s
}

func (s *Service) EphemeralMode() EphemeralMode {
	if s == nil || s.ephemeralMode == "" {
		return EphemeralMemory
	}
	return s.ephemeralMode
}

func (s *Service) ephemSetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if s.ephemeralStore == nil {
		return errNoEphemeralStore
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.ephemeralStore.Set(ctx, key, b, ttl)
}

func (s *Service) ephemTakeJSON(ctx context.Context, key string, out any) (bool, error) {
	if s.ephemeralStore == nil {
		return false, errNoEphemeralStore
	}
	b, ok, err := s.ephemeralStore.Take(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	return true, json.Unmarshal(b, out)
}

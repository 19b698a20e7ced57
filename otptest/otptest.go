// Package otptest builds a fully in-memory core.Service for host application tests.
package otptest

import (
	"context"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/open-rails/otpkit/core"
	jwtkit "github.com/open-rails/otpkit/jwt"
	memorystore "github.com/open-rails/otpkit/storage/memory"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// Message is one captured SMS.
type Message struct {
	Phone string
	Code  string
}

// SMS records every code instead of sending it. Set Fail to make sends error.
type SMS struct {
	mu   sync.Mutex
	sent []Message
	Fail error
}

func (s *SMS) SendVerificationCode(ctx context.Context, phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	s.sent = append(s.sent, Message{Phone: phone, Code: code})
	return nil
}

// LastCode returns the newest code sent to phone, or "".
func (s *SMS) LastCode(phone string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sent) - 1; i >= 0; i-- {
		if s.sent[i].Phone == phone {
			return s.sent[i].Code
		}
	}
	return ""
}

func (s *SMS) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

// Clock is a manually advanced time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{t: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Harness exposes the service together with its backing stores.
type Harness struct {
	Service    *core.Service
	Codes      *memorystore.CodeStore
	Identities *memorystore.IdentityStore
	Sessions   *memorystore.SessionStore
	KV         *memorystore.KV
	SMS        *SMS
	Clock      *Clock
	Signer     *jwtkit.RSASigner
	// Logs captures everything the service logs.
	Logs *test.Hook
}

const (
	Issuer   = "https://otp.test"
	Audience = "otp-test"
	KeyID    = "otptest-kid"
)

// New builds a Harness. Options not set by mutate take the library defaults.
func New(t testing.TB, mutate ...func(*core.Options)) *Harness {
	t.Helper()
	signer, err := jwtkit.NewRSASigner(2048, KeyID)
	if err != nil {
		t.Fatalf("otptest: generate key: %v", err)
	}
	opts := core.Options{
		Issuer:          Issuer,
		IssuedAudiences: []string{Audience},
		BaseURL:         "https://app.otp.test",
	}
	for _, m := range mutate {
		m(&opts)
	}
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	h := &Harness{
		Codes:      memorystore.NewCodeStore(),
		Identities: memorystore.NewIdentityStore(),
		Sessions:   memorystore.NewSessionStore(),
		KV:         memorystore.NewKV(),
		SMS:        &SMS{},
		Clock:      NewClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		Signer:     signer,
		Logs:       hook,
	}
	h.Service = core.NewService(opts, core.Keyset{Active: signer, PublicKeys: map[string]*rsa.PublicKey{KeyID: signer.PublicKey()}}).
		WithCodeStore(h.Codes).
		WithIdentityStore(h.Identities).
		WithSessionStore(h.Sessions).
		WithEphemeralStore(h.KV, core.EphemeralMemory).
		WithSMSSender(h.SMS).
		WithLogger(logger).
		WithClock(h.Clock.Now)
	return h
}

// Events returns the OTP lifecycle events logged so far, in order.
func (h *Harness) Events() []core.EventType {
	var out []core.EventType
	for _, e := range h.Logs.AllEntries() {
		if v, ok := e.Data["event"].(string); ok {
			out = append(out, core.EventType(v))
		}
	}
	return out
}

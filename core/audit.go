package core

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// EventType identifies a verification lifecycle event.
type EventType string

const (
	EventCodeSent                 EventType = "code_sent"
	EventCodeRateLimited          EventType = "code_rate_limited"
	EventCodeVerified             EventType = "code_verified"
	EventCodeMismatch             EventType = "code_mismatch"
	EventCodeExhausted            EventType = "code_exhausted"
	EventUserRegistered           EventType = "user_registered"
	EventIdentityConflictResolved EventType = "identity_conflict_resolved"
	EventPhoneBackfilled          EventType = "phone_backfilled"
	EventPhoneMismatch            EventType = "phone_mismatch"
	EventSessionCreated           EventType = "session_created"
	EventSessionIssueFailed       EventType = "session_issue_failed"
)

// AuthEvent is a best-effort, append-only record of something the flow did.
// Phones are recorded as last-four hints only.
type AuthEvent struct {
	OccurredAt time.Time
	Issuer     string
	Event      EventType
	UserID     string
	Email      string
	PhoneHint  string
	Strategy   string
	Attempts   int
}

// AuthEventLogger records lifecycle events to an external sink.
// Implementations should be non-blocking and best-effort.
type AuthEventLogger interface {
	LogAuthEvent(ctx context.Context, e AuthEvent) error
}

// LogrusEventLogger writes events as structured log entries.
type LogrusEventLogger struct {
	Logger *logrus.Logger
}

func (l LogrusEventLogger) LogAuthEvent(ctx context.Context, e AuthEvent) error {
	lg := l.Logger
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	fields := logrus.Fields{"event": string(e.Event), "issuer": e.Issuer}
	if e.UserID != "" {
		fields["user_id"] = e.UserID
	}
	if e.Email != "" {
		fields["email"] = e.Email
	}
	if e.PhoneHint != "" {
		fields["phone_hint"] = e.PhoneHint
	}
	if e.Strategy != "" {
		fields["strategy"] = e.Strategy
	}
	if e.Attempts > 0 {
		fields["attempts"] = e.Attempts
	}
	lg.WithFields(fields).WithContext(ctx).Info("otpkit event")
	return nil
}

func (s *Service) logEvent(ctx context.Context, e AuthEvent) {
	if s.authlog == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now()
	}
	e.Issuer = s.opts.Issuer
	if err := s.authlog.LogAuthEvent(ctx, e); err != nil {
		s.log.WithError(err).WithField("event", string(e.Event)).Warn("auth event logger failed")
	}
}

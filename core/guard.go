package core

import (
	"context"
	"crypto/subtle"

	"github.com/open-rails/otpkit/phone"
)

// consumeCode checks code against the newest active row for p.
//
// Attempts are incremented before the comparison so that a crash or a concurrent
// guess can only spend budget, never recover it. The count read back from the atomic
// increment decides exhaustion, which caps comparisons at MaxAttempts per row.
func (s *Service) consumeCode(ctx context.Context, p, code string) (*string, error) {
	maxAttempts := s.opts.MaxAttempts
	now := s.now()

	row, err := s.codes.LatestActiveCode(ctx, p, now)
	if err != nil {
		return nil, internalErr(err)
	}
	if row == nil {
		return nil, &Error{Kind: KindCodeExpiredOrMissing, Message: msgCodeExpired}
	}
	if row.Attempts >= maxAttempts {
		return nil, s.exhaust(ctx, row, row.Attempts)
	}

	n, ok, err := s.codes.IncrementAttempts(ctx, row.ID, maxAttempts+1)
	if err != nil {
		return nil, internalErr(err)
	}
	if !ok {
		return nil, &Error{Kind: KindCodeExpiredOrMissing, Message: msgCodeExpired}
	}
	if n > maxAttempts {
		return nil, s.exhaust(ctx, row, n)
	}

	if subtle.ConstantTimeCompare([]byte(sha256Hex(code)), []byte(row.CodeHash)) != 1 {
		remaining := maxAttempts - n
		s.logEvent(ctx, AuthEvent{Event: EventCodeMismatch, PhoneHint: phone.Hint(p), Attempts: n})
		return nil, &Error{Kind: KindCodeMismatch, Message: msgCodeMismatch, AttemptsRemaining: &remaining}
	}

	if err := s.codes.MarkVerified(ctx, row.ID); err != nil {
		return nil, internalErr(err)
	}
	if burned, err := s.codes.BurnActive(ctx, p, row.ID, now); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("failed to burn superseded codes")
	} else if burned > 0 {
		s.log.WithContext(ctx).WithField("burned", burned).Debug("superseded codes burned")
	}
	s.logEvent(ctx, AuthEvent{Event: EventCodeVerified, PhoneHint: phone.Hint(p), Attempts: n})
	return row.BoundUserID, nil
}

func (s *Service) exhaust(ctx context.Context, row *OTPCode, attempts int) error {
	if err := s.codes.MarkVerified(ctx, row.ID); err != nil {
		return internalErr(err)
	}
	s.logEvent(ctx, AuthEvent{Event: EventCodeExhausted, PhoneHint: phone.Hint(row.Phone), Attempts: attempts})
	zero := 0
	return &Error{Kind: KindAttemptsExhausted, Message: msgExhausted, AttemptsRemaining: &zero}
}

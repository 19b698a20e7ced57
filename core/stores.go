package core

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateIdentity is returned by IdentityStore implementations when a write
// violates the uniqueness of an identity key (email, or a non-null phone).
var ErrDuplicateIdentity = errors.New("duplicate identity")

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrRefreshReuse     = errors.New("refresh token reuse detected")
	ErrMagicLinkInvalid = errors.New("magic link invalid or expired")
	// ErrDeliveryUnavailable means no SMSSender is configured outside a dev environment.
	ErrDeliveryUnavailable = errors.New("sms delivery unavailable: no sender configured")
)

// User is an account as seen by the verification flow.
type User struct {
	ID          string
	Email       string
	Phone       *string
	FullName    string
	AccountType string
	PromoSource *string
	LastLoginAt *time.Time
	CreatedAt   time.Time
}

// NewUser carries everything written when an account is created.
// Phone may be empty.
type NewUser struct {
	Email          string
	Phone          string
	FullName       string
	AccountType    string
	PromoSource    *string
	CredentialHash string
	CreatedAt      time.Time
}

// OTPCode is one issued code. Rows are never deleted; Verified marks a row spent
// whether it was consumed, exhausted, superseded or expired by the sweep.
type OTPCode struct {
	ID          string
	Phone       string
	CodeHash    string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Verified    bool
	Attempts    int
	BoundUserID *string
}

// RefreshSession is a server-side refresh token record. Token values are stored hashed.
type RefreshSession struct {
	ID                string
	FamilyID          string
	UserID            string
	CurrentTokenHash  string
	PreviousTokenHash *string
	CreatedAt         time.Time
	LastUsedAt        time.Time
	ExpiresAt         *time.Time
	RevokedAt         *time.Time
}

// CodeStore persists issued codes. Lookups that find nothing return (nil, nil).
type CodeStore interface {
	InsertCode(ctx context.Context, c OTPCode) error
	// LatestActiveCode returns the newest row for phone with verified=false and expires_at > now.
	LatestActiveCode(ctx context.Context, phone string, now time.Time) (*OTPCode, error)
	// IncrementAttempts atomically bumps attempts on an unverified row, never past ceiling,
	// and returns the resulting value. ok is false when the row was already verified.
	IncrementAttempts(ctx context.Context, id string, ceiling int) (attempts int, ok bool, err error)
	MarkVerified(ctx context.Context, id string) error
	// BurnActive marks every unverified, unexpired row for phone verified, except keepID.
	BurnActive(ctx context.Context, phone, keepID string, now time.Time) (int64, error)
	// LastIssuedAt reports when the newest row for phone was created.
	LastIssuedAt(ctx context.Context, phone string) (time.Time, bool, error)
	// BurnExpired marks up to limit unverified rows with expires_at <= now verified.
	BurnExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

// IdentityStore reads and writes accounts. Lookups that find nothing return (nil, nil).
// CreateUser and SetPhone return ErrDuplicateIdentity on a uniqueness violation.
type IdentityStore interface {
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByPhone(ctx context.Context, phone string) (*User, error)
	CreateUser(ctx context.Context, u NewUser) (*User, error)
	SetPhone(ctx context.Context, userID, phone string) error
	SetLastLogin(ctx context.Context, userID string, at time.Time) error
}

// SessionStore persists refresh sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s RefreshSession) error
	// RotateSession swaps the current token hash for newHash on the active session whose
	// current hash is presentedHash. A presented hash that matches a previous token
	// revokes the whole family and returns ErrRefreshReuse; no match returns ErrSessionNotFound.
	RotateSession(ctx context.Context, presentedHash, newHash string, now time.Time) (*RefreshSession, error)
}

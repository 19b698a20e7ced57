// Package password builds the argon2id placeholder credential that accounts created
// by phone verification carry.
package password

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Params defines Argon2id parameters.
type Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

func DefaultParams() Params {
	return Params{Time: 1, Memory: 64 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32}
}

// NewPlaceholder hashes a 32-byte random secret that is never returned to anyone.
// The credential row exists, but nobody can sign in with it.
func NewPlaceholder() (string, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	p := DefaultParams()
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	sum := argon2.IDKey(secret, salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return phcEncode(p, salt, sum), nil
}

// $argon2id$v=19$m=65536,t=1,p=1$<salt_b64>$<sum_b64>
func phcEncode(p Params, salt, sum []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s", argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt), base64.RawStdEncoding.EncodeToString(sum))
}

package jwtkit

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
)

// KeySource provides the active signer and the public keys published in the JWKS.
type KeySource interface {
	ActiveSigner() Signer
	PublicKeys() map[string]*rsa.PublicKey
}

// StaticKeySource is a fixed in-memory key set.
type StaticKeySource struct {
	Active Signer
	Pubs   map[string]*rsa.PublicKey
}

func (s StaticKeySource) ActiveSigner() Signer                  { return s.Active }
func (s StaticKeySource) PublicKeys() map[string]*rsa.PublicKey { return s.Pubs }

// NewStaticKeySource wraps a single RSA signer.
func NewStaticKeySource(signer *RSASigner) StaticKeySource {
	return StaticKeySource{Active: signer, Pubs: map[string]*rsa.PublicKey{signer.KID(): signer.PublicKey()}}
}

const devKeysDir = ".runtime/otpkit"

// NewAutoKeySource loads keys from OTPKIT_ACTIVE_KEY_ID / OTPKIT_ACTIVE_PRIVATE_KEY_PEM
// (plus optional OTPKIT_PUBLIC_KEYS, a JSON map of kid -> PEM) and otherwise generates
// a development key persisted under .runtime/otpkit. Generation is refused in production.
func NewAutoKeySource() (KeySource, error) {
	if ks, err := loadFromEnv(); err != nil {
		return nil, err
	} else if ks != nil {
		return ks, nil
	}
	if isProdEnv() {
		return nil, fmt.Errorf("no JWT keys configured and auto-generation is disabled in production; set OTPKIT_ACTIVE_KEY_ID and OTPKIT_ACTIVE_PRIVATE_KEY_PEM")
	}
	return loadOrGenerateDevKeys(devKeysDir)
}

func loadFromEnv() (KeySource, error) {
	kid := strings.TrimSpace(os.Getenv("OTPKIT_ACTIVE_KEY_ID"))
	pemStr := strings.TrimSpace(os.Getenv("OTPKIT_ACTIVE_PRIVATE_KEY_PEM"))
	if kid == "" && pemStr == "" {
		return nil, nil
	}
	if kid == "" || pemStr == "" {
		return nil, fmt.Errorf("OTPKIT_ACTIVE_KEY_ID and OTPKIT_ACTIVE_PRIVATE_KEY_PEM must be set together")
	}
	signer, err := NewRSASignerFromPEM(kid, []byte(pemStr))
	if err != nil {
		return nil, fmt.Errorf("parse OTPKIT_ACTIVE_PRIVATE_KEY_PEM: %w", err)
	}
	ks := NewStaticKeySource(signer)
	if raw := strings.TrimSpace(os.Getenv("OTPKIT_PUBLIC_KEYS")); raw != "" {
		var m map[string]string
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("parse OTPKIT_PUBLIC_KEYS: %w", err)
		}
		for k, p := range m {
			pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(p))
			if err != nil {
				log.WithField("kid", k).WithError(err).Warn("skipping unparsable public key")
				continue
			}
			ks.Pubs[k] = pub
		}
	}
	return ks, nil
}

func loadOrGenerateDevKeys(dir string) (KeySource, error) {
	keyPath := filepath.Join(dir, "private.pem")
	kidPath := filepath.Join(dir, "kid")
	if b, err := os.ReadFile(keyPath); err == nil {
		kid := "dev"
		if kb, err := os.ReadFile(kidPath); err == nil && strings.TrimSpace(string(kb)) != "" {
			kid = strings.TrimSpace(string(kb))
		}
		if signer, err := NewRSASignerFromPEM(kid, b); err == nil {
			return NewStaticKeySource(signer), nil
		}
	}
	kid := fmt.Sprintf("dev-%d", time.Now().Unix())
	signer, err := NewRSASigner(2048, kid)
	if err != nil {
		return nil, fmt.Errorf("generate RSA key: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err == nil {
		_ = os.WriteFile(keyPath, signer.EncodePrivateKeyPEM(), 0o600)
		_ = os.WriteFile(kidPath, []byte(kid), 0o600)
	} else {
		log.WithError(err).Warn("failed to persist dev signing key")
	}
	return NewStaticKeySource(signer), nil
}

func isProdEnv() bool {
	env := strings.TrimSpace(os.Getenv("ENV"))
	if env == "" {
		env = strings.TrimSpace(os.Getenv("APP_ENV"))
	}
	if env == "" {
		env = strings.TrimSpace(os.Getenv("ENVIRONMENT"))
	}
	env = strings.ToLower(env)
	return env == "production" || env == "prod"
}

package jwtkit

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Signer issues RS256 access tokens under a published key id.
type Signer interface {
	KID() string
	Sign(ctx context.Context, claims jwt.Claims) (token string, err error)
}

// AccessClaims are the claims carried by an access token minted after a phone
// verification or a refresh.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	AccountType string `json:"account_type,omitempty"`
	SessionID   string `json:"sid,omitempty"`
}

// NewAccessClaims fills iss/sub/aud/iat/exp for a token issued at now.
func NewAccessClaims(issuer, subject string, audiences []string, now time.Time, ttl time.Duration) *AccessClaims {
	return &AccessClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		Audience:  audiences,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
}

// RSASigner signs with an in-process private key.
type RSASigner struct {
	key *rsa.PrivateKey
	kid string
}

func NewRSASigner(bits int, kid string) (*RSASigner, error) {
	if bits == 0 {
		bits = 2048
	}
	k, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	return &RSASigner{key: k, kid: kid}, nil
}

func (s *RSASigner) KID() string               { return s.kid }
func (s *RSASigner) PublicKey() *rsa.PublicKey { return &s.key.PublicKey }

func (s *RSASigner) Sign(_ context.Context, claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.kid
	return token.SignedString(s.key)
}

// NewRSASignerFromPEM loads a PKCS#1 or PKCS#8 RSA private key.
func NewRSASignerFromPEM(kid string, pemBytes []byte) (*RSASigner, error) {
	blk, _ := pem.Decode(pemBytes)
	if blk == nil {
		return nil, errors.New("no PEM block in RSA private key")
	}
	if blk.Type == "RSA PRIVATE KEY" {
		k, err := x509.ParsePKCS1PrivateKey(blk.Bytes)
		if err != nil {
			return nil, err
		}
		return &RSASigner{key: k, kid: kid}, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(blk.Bytes)
	if err != nil {
		return nil, err
	}
	k, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("pkcs8 key is not an RSA private key")
	}
	return &RSASigner{key: k, kid: kid}, nil
}

// EncodePrivateKeyPEM returns the PKCS#1 PEM form used for the persisted dev key.
func (s *RSASigner) EncodePrivateKeyPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(s.key)})
}

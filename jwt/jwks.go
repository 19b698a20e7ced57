package jwtkit

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// BuildJWKS returns a key set with one RSA signing key per kid, sorted by kid.
func BuildJWKS(pubs map[string]*rsa.PublicKey) (jwk.Set, error) {
	kids := make([]string, 0, len(pubs))
	for kid := range pubs {
		kids = append(kids, kid)
	}
	sort.Strings(kids)

	set := jwk.NewSet()
	for _, kid := range kids {
		key, err := jwk.FromRaw(pubs[kid])
		if err != nil {
			return nil, fmt.Errorf("jwk from %s: %w", kid, err)
		}
		_ = key.Set(jwk.KeyIDKey, kid)
		_ = key.Set(jwk.KeyUsageKey, jwk.ForSignature)
		_ = key.Set(jwk.AlgorithmKey, jwa.RS256)
		if err := set.AddKey(key); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// ServeJWKS writes the set as JSON with a content ETag and short cache lifetime.
func ServeJWKS(w http.ResponseWriter, r *http.Request, set jwk.Set) {
	b, err := json.Marshal(set)
	if err != nil {
		http.Error(w, `{"error":"jwks_unavailable"}`, http.StatusInternalServerError)
		return
	}
	sum := sha256.Sum256(b)
	etag := "\"" + hex.EncodeToString(sum[:]) + "\""

	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300, must-revalidate")
	w.Header().Set("ETag", etag)
	_, _ = w.Write(b)
}

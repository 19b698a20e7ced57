package authhttp

import (
	"net/http"

	core "github.com/open-rails/otpkit/core"
	jwtkit "github.com/open-rails/otpkit/jwt"
)

// JWKSHandler serves the public JWKS document.
func JWKSHandler(svc core.Verifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		set, err := svc.JWKS()
		if err != nil {
			serverErr(w, "jwks_unavailable")
			return
		}
		jwtkit.ServeJWKS(w, r, set)
	})
}

// Package apiwire holds the JSON request and response bodies shared by the net/http and
// gin adapters, and the mapping from core results and errors onto them.
package apiwire

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/open-rails/otpkit/core"
)

const (
	MsgInvalidBody = "Invalid request body."
	MsgRateLimited = "rate_limited"
)

type SendOTPRequest struct {
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	CheckEmailOnly bool   `json:"checkEmailOnly"`
}

func (r SendOTPRequest) Core() core.SendRequest {
	return core.SendRequest{Phone: r.Phone, Email: r.Email, CheckEmailOnly: r.CheckEmailOnly}
}

type SendOTPResponse struct {
	Success             bool   `json:"success"`
	SentToExistingPhone bool   `json:"sentToExistingPhone,omitempty"`
	Phone               string `json:"phone,omitempty"`
	PhoneHint           string `json:"phoneHint,omitempty"`
	NeedsPhone          bool   `json:"needsPhone,omitempty"`
	RateLimited         bool   `json:"rateLimited,omitempty"`
	Error               string `json:"error,omitempty"`
	// RetryAfter is in whole seconds.
	RetryAfter int `json:"retryAfter,omitempty"`
}

// FromSendResult renders a send outcome. A cooldown hit is a 200 with success=false.
func FromSendResult(res *core.SendResult) SendOTPResponse {
	if res.RateLimited {
		return SendOTPResponse{
			RateLimited: true,
			Error:       core.RateLimitedMessage,
			PhoneHint:   res.PhoneHint,
			RetryAfter:  int(math.Ceil(res.RetryAfter.Seconds())),
		}
	}
	return SendOTPResponse{
		Success:             true,
		SentToExistingPhone: res.SentToExistingPhone,
		Phone:               res.Phone,
		PhoneHint:           res.PhoneHint,
		NeedsPhone:          res.NeedsPhone,
	}
}

type VerifyOTPRequest struct {
	Phone       string `json:"phone"`
	Code        string `json:"code"`
	Email       string `json:"email"`
	PromoSource string `json:"promoSource"`
	FullName    string `json:"fullName"`
	AccountType string `json:"accountType"`
}

func (r VerifyOTPRequest) Core() core.VerifyRequest {
	return core.VerifyRequest{
		Phone:       r.Phone,
		Code:        r.Code,
		Email:       r.Email,
		PromoSource: r.PromoSource,
		FullName:    r.FullName,
		AccountType: r.AccountType,
	}
}

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	UserType string `json:"userType"`
}

type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type VerifyOTPResponse struct {
	Success   bool     `json:"success"`
	IsLogin   bool     `json:"isLogin"`
	MagicLink string   `json:"magicLink,omitempty"`
	Session   *Session `json:"session,omitempty"`
	User      User     `json:"user"`
}

func FromVerifyResult(res *core.VerifyResult) VerifyOTPResponse {
	out := VerifyOTPResponse{Success: true, IsLogin: res.IsLogin}
	if u := res.User; u != nil {
		out.User = User{ID: u.ID, Email: u.Email, FullName: u.FullName, UserType: u.AccountType}
	}
	if a := res.Artifact; a != nil {
		out.MagicLink = a.MagicLink
		if a.Session != nil {
			out.Session = &Session{AccessToken: a.Session.AccessToken, RefreshToken: a.Session.RefreshToken, ExpiresAt: a.Session.ExpiresAt}
		}
	}
	return out
}

type ErrorResponse struct {
	Success           bool   `json:"success"`
	Error             string `json:"error"`
	AttemptsRemaining *int   `json:"attemptsRemaining,omitempty"`
	AccountCreated    bool   `json:"accountCreated,omitempty"`
}

// FromError maps a send or verify failure to a status and body. Unclassified errors
// become a generic 500; their text is never rendered.
func FromError(err error) (int, ErrorResponse) {
	var ce *core.Error
	if !errors.As(err, &ce) {
		return http.StatusInternalServerError, ErrorResponse{Error: "Something went wrong. Please try again."}
	}
	body := ErrorResponse{Error: ce.Message, AttemptsRemaining: ce.AttemptsRemaining, AccountCreated: ce.AccountCreated}
	if ce.IsClientError() {
		return http.StatusBadRequest, body
	}
	return http.StatusInternalServerError, body
}

// Invalid is the 400 body for a request that could not be decoded.
func Invalid() ErrorResponse { return ErrorResponse{Error: MsgInvalidBody} }

// RateLimited is the 429 body for a per-IP bucket hit.
func RateLimited() ErrorResponse { return ErrorResponse{Error: MsgRateLimited} }

type MagicLinkRedeemRequest struct {
	Token string `json:"token"`
}

type RefreshRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

func FromTokenPair(p *core.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  p.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(p.ExpiresIn.Seconds()),
		RefreshToken: p.RefreshToken,
	}
}

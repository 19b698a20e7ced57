package authhttp

// Bucket names used by the OTP endpoints.
const (
	RLSendOTP         = "otp_send"
	RLVerifyOTP       = "otp_verify"
	RLMagicLinkRedeem = "otp_magic_link_redeem"
	RLAuthToken       = "otp_auth_token"
)

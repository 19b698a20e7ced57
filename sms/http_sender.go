package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

type Config struct {
	APIURL     string
	APIKey     string
	TemplateID string
	Timeout    time.Duration
	Retry      RetryConfig
}

func (c Config) Validate() error {
	if c.APIURL == "" {
		return &Error{Type: ErrTypeConfig, Message: "API URL is required"}
	}
	if c.APIKey == "" {
		return &Error{Type: ErrTypeConfig, Message: "API key is required"}
	}
	return nil
}

// HTTPSender posts verification codes to a JSON SMS gateway:
//
//	POST <APIURL>  X-API-KEY: <APIKey>
//	{"to": "+15551234567", "template_id": "...", "parameters": {"code": "123456"}}
//
// It implements core.SMSSender.
type HTTPSender struct {
	cfg    Config
	client *http.Client
	log    *logrus.Logger
}

func NewHTTPSender(cfg Config) (*HTTPSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	return &HTTPSender{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, log: logrus.StandardLogger()}, nil
}

func (s *HTTPSender) WithHTTPClient(c *http.Client) *HTTPSender { s.client = c; return s }

func (s *HTTPSender) WithLogger(l *logrus.Logger) *HTTPSender { s.log = l; return s }

type sendPayload struct {
	To         string            `json:"to"`
	TemplateID string            `json:"template_id,omitempty"`
	Parameters map[string]string `json:"parameters"`
}

func (s *HTTPSender) SendVerificationCode(ctx context.Context, phone, code string) error {
	if phone == "" || code == "" {
		return &Error{Type: ErrTypeValidation, Message: "phone and code are required"}
	}
	body, err := json.Marshal(sendPayload{To: phone, TemplateID: s.cfg.TemplateID, Parameters: map[string]string{"code": code}})
	if err != nil {
		return &Error{Type: ErrTypeValidation, Message: "invalid payload", Cause: err}
	}
	attempt := 0
	err = RetryWithBackoff(ctx, s.cfg.Retry, func(ctx context.Context) error {
		attempt++
		err := s.post(ctx, body)
		if err != nil {
			s.log.WithContext(ctx).WithFields(logrus.Fields{"attempt": attempt}).WithError(err).Warn("sms send attempt failed")
		}
		return err
	})
	return err
}

func (s *HTTPSender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return &Error{Type: ErrTypeConfig, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &Error{Type: ErrTypeNetwork, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode == http.StatusTooManyRequests {
		return &Error{Type: ErrTypeRateLimit, Code: resp.StatusCode, Message: "rate limit exceeded"}
	}
	return &Error{Type: ErrTypeProvider, Code: resp.StatusCode, Message: string(msg)}
}

// LogSender writes codes to the log instead of sending them. For local development only.
type LogSender struct {
	Logger *logrus.Logger
}

func (l LogSender) SendVerificationCode(ctx context.Context, phone, code string) error {
	lg := l.Logger
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	lg.WithContext(ctx).WithFields(logrus.Fields{"phone": phone, "code": code}).Info("otpkit/dev-sms: verification code")
	return nil
}

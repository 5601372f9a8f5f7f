package botcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultVerifyURL is Cloudflare's siteverify endpoint.
const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

const defaultTimeout = 5 * time.Second

// TurnstileClient verifies Cloudflare Turnstile tokens.
type TurnstileClient struct {
	Secret     string
	VerifyURL  string
	HTTPClient *http.Client
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// NewTurnstileClient returns a client for secret. An empty verifyURL uses DefaultVerifyURL;
// timeout bounds each call (default 5s).
func NewTurnstileClient(secret, verifyURL string, timeout time.Duration) *TurnstileClient {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &TurnstileClient{
		Secret:     secret,
		VerifyURL:  verifyURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Verify posts the token to siteverify. clientIP is optional.
// Timeouts are returned wrapping context.DeadlineExceeded; other transport failures wrap ErrUnavailable.
func (c *TurnstileClient) Verify(ctx context.Context, token, clientIP string) (bool, error) {
	if c.Secret == "" {
		return false, ErrNotConfigured
	}
	if strings.TrimSpace(token) == "" {
		return false, nil
	}
	form := url.Values{}
	form.Set("secret", c.Secret)
	form.Set("response", token)
	if clientIP != "" {
		form.Set("remoteip", clientIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return false, fmt.Errorf("botcheck: siteverify: %w", context.DeadlineExceeded)
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("%w: status=%d body=%s", ErrUnavailable, resp.StatusCode, string(b))
	}
	var out siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return out.Success, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrJamesThe3rd/momopay/internal/encoding"
	"github.com/MrJamesThe3rd/momopay/internal/payment"
)

const (
	tokenPath   = "/oauth/token"
	paymentPath = "/payment/mobile-money"
	statusPath  = "/payment/status/"

	maxResponseBytes = 1 << 20
)

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	APIKey       string
	UserAgent    string
	Timeout      time.Duration

	Currency          string
	Channels          map[string]string
	DefaultChannel    string
	DescriptionPrefix string
	CallbackURL       string
	CallbackToken     string
	ReturnURL         string
}

// Client speaks the mobile-money provider's REST API.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient builds a client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}

		httpClient = &http.Client{Timeout: timeout}
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{cfg: cfg, http: httpClient}
}

// Token is an access token as issued by the provider.
type Token struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// FetchToken performs the password grant. Every failure wraps payment.ErrAuth.
func (c *Client) FetchToken(ctx context.Context) (*Token, error) {
	form := url.Values{
		"grant_type":    {"password"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"username":      {c.cfg.Username},
		"password":      {c.cfg.Password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", payment.ErrAuth, err)
	}

	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", payment.ErrAuth, err)
	}

	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: token endpoint returned %d: %s", payment.ErrAuth, status, body)
	}

	var data struct {
		AccessToken string      `json:"access_token"`
		ExpiresIn   json.Number `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: invalid token response: %w", payment.ErrAuth, err)
	}

	if data.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token in response", payment.ErrAuth)
	}

	tok := &Token{AccessToken: data.AccessToken}
	if secs, err := data.ExpiresIn.Float64(); err == nil && secs > 0 {
		tok.ExpiresIn = time.Duration(secs * float64(time.Second))
	}

	return tok, nil
}

type chargeRequest struct {
	Amount      json.Number `json:"amount"`
	Currency    string      `json:"currency"`
	Phone       string      `json:"phone"`
	Provider    string      `json:"provider"`
	Reference   string      `json:"reference"`
	Description string      `json:"description"`
	CallbackURL string      `json:"callback_url"`
	ReturnURL   string      `json:"return_url"`
}

// SubmitPayment posts a charge. A non-2xx answer is not an error: the status
// and body are returned for the caller to judge. Only transport failures
// return payment.ErrGateway, together with a result describing the attempt.
func (c *Client) SubmitPayment(ctx context.Context, token string, charge payment.Charge) (*payment.SubmitResult, error) {
	ref := charge.Reference.String()

	payload, err := json.Marshal(chargeRequest{
		Amount:      json.Number(charge.Amount.String()),
		Currency:    c.cfg.Currency,
		Phone:       charge.Phone,
		Provider:    c.Channel(charge.Method),
		Reference:   ref,
		Description: fmt.Sprintf("%s - %s", c.cfg.DescriptionPrefix, ref[:8]),
		CallbackURL: c.callbackURL(),
		ReturnURL:   c.cfg.ReturnURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding charge: %w", payment.ErrGateway, err)
	}

	res := &payment.SubmitResult{Endpoint: paymentPath, Request: payload}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+paymentPath, bytes.NewReader(payload))
	if err != nil {
		return res, fmt.Errorf("%w: creating request: %w", payment.ErrGateway, err)
	}

	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	status, body, err := c.do(req)
	if err != nil {
		return res, fmt.Errorf("%w: %w", payment.ErrGateway, err)
	}

	res.StatusCode = status
	res.Body = normalizeBody(body)

	return res, nil
}

// QueryStatus fetches the provider's view of a charge. A 401 also wraps
// payment.ErrAuth so the caller can drop its token.
func (c *Client) QueryStatus(ctx context.Context, token, upstreamID string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+statusPath+url.PathEscape(upstreamID), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", payment.ErrGateway, err)
	}

	c.setHeaders(req)
	req.Header.Set("Authorization", "Bearer "+token)

	status, body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", payment.ErrGateway, err)
	}

	if status == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %w: status endpoint returned %d", payment.ErrGateway, payment.ErrAuth, status)
	}

	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: status endpoint returned %d", payment.ErrGateway, status)
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: invalid status response", payment.ErrGateway)
	}

	return body, nil
}

// Channel maps a payment method onto the provider's channel code.
func (c *Client) Channel(m payment.Method) string {
	if ch, ok := c.cfg.Channels[strings.ToLower(string(m))]; ok && ch != "" {
		return ch
	}

	return c.cfg.DefaultChannel
}

func (c *Client) callbackURL() string {
	if c.cfg.CallbackToken == "" || c.cfg.CallbackURL == "" {
		return c.cfg.CallbackURL
	}

	u, err := url.Parse(c.cfg.CallbackURL)
	if err != nil {
		return c.cfg.CallbackURL
	}

	q := u.Query()
	q.Set("token", c.cfg.CallbackToken)
	u.RawQuery = q.Encode()

	return u.String()
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")

	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-KEY", c.cfg.APIKey)
	}

	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}

	if len(raw) > maxResponseBytes {
		return 0, nil, fmt.Errorf("response exceeds %d bytes", maxResponseBytes)
	}

	body, err := encoding.ReadAllUTF8(bytes.NewReader(raw), resp.Header.Get("Content-Type"))
	if err != nil {
		return 0, nil, fmt.Errorf("decoding response: %w", err)
	}

	return resp.StatusCode, body, nil
}

// normalizeBody keeps JSON bodies verbatim and wraps anything else so it can
// still be stored as JSON.
func normalizeBody(body []byte) json.RawMessage {
	if json.Valid(body) {
		return body
	}

	wrapped, _ := json.Marshal(map[string]string{
		"raw_response": string(body),
		"error":        "Invalid JSON response",
	})

	return wrapped
}

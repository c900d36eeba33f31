package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client calls the payment API the way the storefront checkout does.
type Client struct {
	baseURL    string
	buyerToken string
	http       *http.Client
}

func New(baseURL, buyerToken string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		buyerToken: buyerToken,
		http:       &http.Client{Timeout: 45 * time.Second},
	}
}

type Transaction struct {
	ID                    string          `json:"id"`
	Amount                json.Number     `json:"amount"`
	PhoneNumber           string          `json:"phone_number"`
	PaymentMethod         string          `json:"payment_method"`
	Status                string          `json:"status"`
	UpstreamTransactionID string          `json:"upstream_transaction_id"`
	UpstreamResponse      json.RawMessage `json:"upstream_response"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// Envelope is the API's answer to every action. A business failure is an
// Envelope with Success false, not an error.
type Envelope struct {
	Success     bool            `json:"success"`
	Transaction *Transaction    `json:"transaction"`
	Message     string          `json:"message"`
	Error       string          `json:"error"`
	Code        string          `json:"code"`
	Details     json.RawMessage `json:"details"`
}

type InitiateRequest struct {
	Amount        string          `json:"amount"`
	PhoneNumber   string          `json:"phone_number"`
	PaymentMethod string          `json:"payment_method"`
	OrderSummary  json.RawMessage `json:"order_summary,omitempty"`
}

func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (*Envelope, error) {
	body := struct {
		Action string `json:"action"`
		InitiateRequest
	}{Action: "initiate_payment", InitiateRequest: req}

	return c.post(ctx, body)
}

func (c *Client) CheckStatus(ctx context.Context, transactionID string) (*Envelope, error) {
	body := struct {
		Action        string `json:"action"`
		TransactionID string `json:"transaction_id"`
	}{Action: "check_status", TransactionID: transactionID}

	return c.post(ctx, body)
}

func (c *Client) post(ctx context.Context, body any) (*Envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	endpoint, err := url.JoinPath(c.baseURL, "/api/v1/payments")
	if err != nil {
		return nil, fmt.Errorf("building url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.buyerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.buyerToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}

	return &env, nil
}

package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/momopay/internal/metrics"
)

//go:generate mockgen -source=service.go -destination=service_mock.go -package=payment
type Repository interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByUpstreamID(ctx context.Context, upstreamID string) (*Transaction, error)
	UpdateTransaction(ctx context.Context, id uuid.UUID, patch Patch) (*Transaction, error)
	AppendLog(ctx context.Context, entry *APILogEntry) error
}

// TokenSource hands out a valid gateway access token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Gateway talks to the mobile-money provider.
// SubmitPayment returns a non-nil result describing the attempt even when it
// also returns a transport error.
type Gateway interface {
	SubmitPayment(ctx context.Context, token string, charge Charge) (*SubmitResult, error)
	QueryStatus(ctx context.Context, token, upstreamID string) (json.RawMessage, error)
}

// Options holds the field names under which the gateway reports its own
// transaction id and status, tried in order.
type Options struct {
	IDFields     []string
	StatusFields []string
}

var DefaultOptions = Options{
	IDFields:     []string{"transaction_id", "id", "reference"},
	StatusFields: []string{"status"},
}

type Service struct {
	repo     Repository
	tokens   TokenSource
	gateway  Gateway
	opts     Options
	validate *validator.Validate
}

func NewService(repo Repository, tokens TokenSource, gateway Gateway, opts Options) *Service {
	if len(opts.IDFields) == 0 {
		opts.IDFields = DefaultOptions.IDFields
	}

	if len(opts.StatusFields) == 0 {
		opts.StatusFields = DefaultOptions.StatusFields
	}

	return &Service{
		repo:     repo,
		tokens:   tokens,
		gateway:  gateway,
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type InitiateParams struct {
	Amount       decimal.Decimal
	PhoneNumber  string `validate:"required"`
	Method       Method `validate:"required,oneof=tmoney flooz airtel mtn"`
	OrderSummary json.RawMessage
	UserID       *string
	OrderID      *string
}

// The amount column holds at most 12 integer digits and 2 decimals.
const amountScale = 2

var maxAmount = decimal.New(1, 12)

var paramNames = map[string]string{
	"PhoneNumber": "phone_number",
	"Method":      "payment_method",
}

// Initiate creates a pending transaction and submits the charge to the gateway.
// Once the row exists it is always returned, alongside the error if any, so the
// caller can report the stored outcome.
func (s *Service) Initiate(ctx context.Context, params InitiateParams) (*Transaction, error) {
	params.PhoneNumber = strings.TrimSpace(params.PhoneNumber)
	params.Method = Method(strings.ToLower(strings.TrimSpace(string(params.Method))))

	if err := s.validateInitiate(params); err != nil {
		return nil, err
	}

	tx := &Transaction{
		UserID:       params.UserID,
		OrderID:      params.OrderID,
		Amount:       params.Amount,
		PhoneNumber:  params.PhoneNumber,
		Method:       params.Method,
		OrderSummary: params.OrderSummary,
		Status:       StatusPending,
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("creating transaction: %w: %w", ErrPersistence, err)
	}

	metrics.PaymentsInitiated.WithLabelValues(string(tx.Method)).Inc()

	// Once the row exists its outcome must be recorded even if the caller goes away.
	storeCtx := context.WithoutCancel(ctx)

	token, err := s.tokens.Token(ctx)
	if err != nil {
		if !errors.Is(err, ErrAuth) {
			err = fmt.Errorf("%w: %w", ErrAuth, err)
		}

		return s.fail(storeCtx, tx, "auth", err, errorPayload(err))
	}

	res, err := s.gateway.SubmitPayment(ctx, token, Charge{
		Reference: tx.ID,
		Amount:    tx.Amount,
		Phone:     tx.PhoneNumber,
		Method:    tx.Method,
	})
	if err != nil && !errors.Is(err, ErrGateway) {
		err = fmt.Errorf("%w: %w", ErrGateway, err)
	}

	if res != nil {
		entry := &APILogEntry{
			TransactionID: &tx.ID,
			Endpoint:      res.Endpoint,
			RequestData:   res.Request,
			ResponseData:  res.Body,
			StatusCode:    res.StatusCode,
		}
		if err != nil && len(entry.ResponseData) == 0 {
			entry.ResponseData = errorPayload(err)
		}

		s.appendLog(storeCtx, entry)
	}

	if err != nil {
		return s.fail(storeCtx, tx, "gateway", err, errorPayload(err))
	}

	if !res.OK() {
		if res.StatusCode == http.StatusUnauthorized {
			s.tokens.Invalidate()
		}

		declined := &DeclinedError{
			StatusCode: res.StatusCode,
			Message:    lookupString(decodeObject(res.Body), []string{"message", "error"}),
			Body:       res.Body,
		}

		return s.fail(storeCtx, tx, "declined", declined, res.Body)
	}

	body := decodeObject(res.Body)
	status := initialStatus(body, s.opts.StatusFields)

	patch := Patch{Status: &status, UpstreamResponse: res.Body}
	if id := lookupString(body, s.opts.IDFields); id != "" {
		patch.UpstreamTransactionID = &id
	}

	updated, err := s.repo.UpdateTransaction(storeCtx, tx.ID, patch)
	if errors.Is(err, ErrTerminal) {
		// The callback settled it before the submission response was stored.
		return s.current(storeCtx, tx), nil
	}

	if err != nil {
		return tx, fmt.Errorf("storing gateway response: %w: %w", ErrPersistence, err)
	}

	metrics.StatusTransitions.WithLabelValues(string(updated.Status), "initiate").Inc()

	return updated, nil
}

func (s *Service) validateInitiate(params InitiateParams) error {
	if !params.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}

	if !params.Amount.Round(amountScale).Equal(params.Amount) {
		return &ValidationError{Field: "amount", Reason: fmt.Sprintf("must have at most %d decimal places", amountScale)}
	}

	if params.Amount.GreaterThanOrEqual(maxAmount) {
		return &ValidationError{Field: "amount", Reason: "is too large"}
	}

	err := s.validate.Struct(params)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "request", Reason: err.Error()}
	}

	fe := fieldErrs[0]

	name, ok := paramNames[fe.Field()]
	if !ok {
		name = fe.Field()
	}

	reason := "is required"
	if fe.Tag() == "oneof" {
		reason = "must be one of " + fe.Param()
	}

	return &ValidationError{Field: name, Reason: reason}
}

// fail moves tx to failed and returns cause. A concurrent terminal write wins.
func (s *Service) fail(ctx context.Context, tx *Transaction, kind string, cause error, response json.RawMessage) (*Transaction, error) {
	metrics.PaymentsFailed.WithLabelValues(kind).Inc()

	status := StatusFailed

	updated, err := s.repo.UpdateTransaction(ctx, tx.ID, Patch{Status: &status, UpstreamResponse: response})
	switch {
	case errors.Is(err, ErrTerminal):
		return s.current(ctx, tx), cause
	case err != nil:
		slog.Error("failed to mark transaction failed", "transaction_id", tx.ID, "error", err)
		return tx, cause
	}

	metrics.StatusTransitions.WithLabelValues(string(StatusFailed), "initiate").Inc()

	return updated, cause
}

// current re-reads tx, falling back to the given copy when the read fails.
func (s *Service) current(ctx context.Context, tx *Transaction) *Transaction {
	fresh, err := s.repo.GetTransaction(ctx, tx.ID)
	if err != nil {
		slog.Warn("failed to re-read transaction", "transaction_id", tx.ID, "error", err)
		return tx
	}

	return fresh
}

func (s *Service) appendLog(ctx context.Context, entry *APILogEntry) {
	if err := s.repo.AppendLog(ctx, entry); err != nil {
		slog.Warn("failed to write api log", "endpoint", entry.Endpoint, "error", err)
	}
}

// initialStatus reads the provider's status from a successful submission.
// The stored status must leave pending once the gateway has accepted the charge.
func initialStatus(body map[string]any, fields []string) Status {
	status, ok := ParseUpstreamStatus(lookupString(body, fields))
	if !ok || status == StatusPending {
		return StatusProcessing
	}

	return status
}

func errorPayload(err error) json.RawMessage {
	out, _ := json.Marshal(map[string]string{"error": err.Error()})
	return out
}

func wrapRead(err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

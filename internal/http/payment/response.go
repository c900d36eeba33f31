package payment

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/momopay/internal/payment"
)

const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeDatabase      = "DATABASE_ERROR"
	CodeAuth          = "AUTH_ERROR"
	CodeGateway       = "GATEWAY_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeInvalidAction = "INVALID_ACTION"
	CodeUnexpected    = "UNEXPECTED_ERROR"
)

type transactionResponse struct {
	ID                    uuid.UUID       `json:"id"`
	UserID                *string         `json:"user_id,omitempty"`
	OrderID               *string         `json:"order_id,omitempty"`
	Amount                json.Number     `json:"amount"`
	PhoneNumber           string          `json:"phone_number"`
	PaymentMethod         payment.Method  `json:"payment_method"`
	OrderSummary          json.RawMessage `json:"order_summary,omitempty"`
	UpstreamTransactionID *string         `json:"upstream_transaction_id,omitempty"`
	Status                payment.Status  `json:"status"`
	UpstreamResponse      json.RawMessage `json:"upstream_response,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

func toResponse(tx *payment.Transaction) *transactionResponse {
	if tx == nil {
		return nil
	}

	return &transactionResponse{
		ID:                    tx.ID,
		UserID:                tx.UserID,
		OrderID:               tx.OrderID,
		Amount:                json.Number(tx.Amount.String()),
		PhoneNumber:           tx.PhoneNumber,
		PaymentMethod:         tx.Method,
		OrderSummary:          tx.OrderSummary,
		UpstreamTransactionID: tx.UpstreamTransactionID,
		Status:                tx.Status,
		UpstreamResponse:      tx.UpstreamResponse,
		CreatedAt:             tx.CreatedAt,
		UpdatedAt:             tx.UpdatedAt,
	}
}

// envelope is the body of every action response.
type envelope struct {
	Success     bool                 `json:"success"`
	Transaction *transactionResponse `json:"transaction,omitempty"`
	Message     string               `json:"message,omitempty"`
	Error       string               `json:"error,omitempty"`
	Code        string               `json:"code,omitempty"`
	Details     json.RawMessage      `json:"details,omitempty"`
}

func success(tx *payment.Transaction, message string) envelope {
	return envelope{Success: true, Transaction: toResponse(tx), Message: message}
}

// failure classifies err into an envelope. tx, when known, is included so the
// client sees the stored outcome. Details is always set.
func failure(tx *payment.Transaction, err error) envelope {
	env := envelope{Transaction: toResponse(tx), Error: err.Error()}

	var (
		validationErr *payment.ValidationError
		declinedErr   *payment.DeclinedError
	)

	switch {
	case errors.As(err, &validationErr):
		env.Code = CodeValidation
	case errors.As(err, &declinedErr):
		env.Code = CodeGateway
		env.Details = declinedErr.Body
	case errors.Is(err, payment.ErrNotFound):
		env.Code = CodeNotFound
	case errors.Is(err, payment.ErrAuth):
		env.Code = CodeAuth
	case errors.Is(err, payment.ErrGateway):
		env.Code = CodeGateway
	case errors.Is(err, payment.ErrPersistence):
		env.Code = CodeDatabase
	default:
		env.Code = CodeUnexpected
		env.Error = "unexpected error"
	}

	// Declines carry the gateway body; everything else carries the full message.
	if len(env.Details) == 0 {
		env.Details, _ = json.Marshal(err.Error())
	}

	return env
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

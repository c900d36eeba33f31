package payment

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/momopay/internal/auth"
	"github.com/MrJamesThe3rd/momopay/internal/encoding"
	"github.com/MrJamesThe3rd/momopay/internal/payment"
)

const (
	actionInitiate    = "initiate_payment"
	actionCheckStatus = "check_status"

	maxBodyBytes = 1 << 20
)

type Handler struct {
	svc           *payment.Service
	callbackToken string
}

// NewHandler serves the payment API. A non-empty callbackToken must be echoed
// as ?token= by every webhook call.
func NewHandler(svc *payment.Service, callbackToken string) *Handler {
	return &Handler{svc: svc, callbackToken: callbackToken}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.dispatch)
	r.Post("/callback", h.callback)
	r.Get("/{id}", h.get)
}

type actionRequest struct {
	Action        string          `json:"action"`
	Amount        json.RawMessage `json:"amount"`
	PhoneNumber   string          `json:"phone_number"`
	PaymentMethod string          `json:"payment_method"`
	OrderSummary  json.RawMessage `json:"order_summary"`
	UserID        *string         `json:"user_id"`
	OrderID       *string         `json:"order_id"`
	TransactionID string          `json:"transaction_id"`
}

// dispatch answers every action with HTTP 200 and a success flag, except a
// body that is not JSON at all.
func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{
			Error: "invalid request body: " + err.Error(),
			Code:  CodeValidation,
		})

		return
	}

	switch req.Action {
	case actionInitiate:
		h.initiate(w, r, req)
	case actionCheckStatus:
		h.checkStatus(w, r, req.TransactionID)
	default:
		writeJSON(w, http.StatusOK, envelope{
			Error: "unknown action: " + req.Action,
			Code:  CodeInvalidAction,
		})
	}
}

func (h *Handler) initiate(w http.ResponseWriter, r *http.Request, req actionRequest) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusOK, failure(nil, err))
		return
	}

	userID := req.UserID
	if buyer, ok := auth.BuyerID(r.Context()); ok {
		userID = &buyer
	}

	tx, err := h.svc.Initiate(r.Context(), payment.InitiateParams{
		Amount:       amount,
		PhoneNumber:  req.PhoneNumber,
		Method:       payment.Method(req.PaymentMethod),
		OrderSummary: orderSummary(req.OrderSummary),
		UserID:       userID,
		OrderID:      req.OrderID,
	})
	if err != nil {
		slog.Error("payment initiation failed", "error", err)
		writeJSON(w, http.StatusOK, failure(tx, err))

		return
	}

	writeJSON(w, http.StatusOK, success(tx, "Payment initiated successfully"))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	h.checkStatus(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) checkStatus(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		writeJSON(w, http.StatusOK, failure(nil, &payment.ValidationError{Field: "transaction_id", Reason: "must be a UUID"}))
		return
	}

	tx, err := h.svc.CheckStatus(r.Context(), id)
	if err != nil {
		if !errors.Is(err, payment.ErrNotFound) {
			slog.Error("status check failed", "transaction_id", id, "error", err)
		}

		writeJSON(w, http.StatusOK, failure(nil, err))

		return
	}

	writeJSON(w, http.StatusOK, success(tx, ""))
}

type callbackAck struct {
	Received bool   `json:"received"`
	Status   string `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	if h.callbackToken != "" {
		got := r.URL.Query().Get("token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.callbackToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, callbackAck{Error: "invalid callback token"})
			return
		}
	}

	body, err := encoding.ReadAllUTF8(io.LimitReader(r.Body, maxBodyBytes), r.Header.Get("Content-Type"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, callbackAck{Error: err.Error()})
		return
	}

	tx, err := h.svc.HandleCallback(r.Context(), body)
	switch {
	case errors.Is(err, payment.ErrNotFound):
		slog.Warn("callback matched no transaction", "payload", string(body))
	case err != nil:
		slog.Error("callback processing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, callbackAck{Error: err.Error()})

		return
	default:
		slog.Info("callback processed", "transaction_id", tx.ID, "status", tx.Status)
	}

	writeJSON(w, http.StatusOK, callbackAck{Received: true, Status: "OK"})
}

// parseAmount accepts a JSON number or a numeric string. Absent means zero,
// which validation then rejects.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, nil
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, &payment.ValidationError{Field: "amount", Reason: "must be a number"}
		}
	} else {
		s = string(raw)
	}

	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, &payment.ValidationError{Field: "amount", Reason: "must be a number"}
	}

	return d, nil
}

func orderSummary(raw json.RawMessage) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	return raw
}

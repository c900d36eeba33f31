package payment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of a payment transaction.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusTimeout    Status = "timeout"
)

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	}

	return false
}

// TerminalStatuses lists every status a transaction can never leave.
var TerminalStatuses = []Status{StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout}

// Method is the buyer-facing mobile-money channel.
type Method string

const (
	MethodTMoney Method = "tmoney"
	MethodFlooz  Method = "flooz"
	MethodAirtel Method = "airtel"
	MethodMTN    Method = "mtn"
)

// Methods lists the accepted payment methods.
var Methods = []Method{MethodTMoney, MethodFlooz, MethodAirtel, MethodMTN}

// Transaction represents one checkout attempt.
type Transaction struct {
	ID                    uuid.UUID
	UserID                *string
	OrderID               *string
	Amount                decimal.Decimal
	PhoneNumber           string
	Method                Method
	OrderSummary          json.RawMessage
	UpstreamTransactionID *string
	Status                Status
	UpstreamResponse      json.RawMessage
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Status                *Status
	UpstreamTransactionID *string
	UpstreamResponse      json.RawMessage
}

// APILogEntry is an append-only audit record of one exchange with the gateway.
type APILogEntry struct {
	ID            uuid.UUID
	TransactionID *uuid.UUID
	Endpoint      string
	RequestData   json.RawMessage
	ResponseData  json.RawMessage
	StatusCode    int
	CreatedAt     time.Time
}

// Charge is what the orchestrator asks the gateway to collect.
type Charge struct {
	Reference uuid.UUID
	Amount    decimal.Decimal
	Phone     string
	Method    Method
}

// SubmitResult is the outcome of a charge submission that reached the gateway,
// or, on transport failure, what was attempted.
type SubmitResult struct {
	Endpoint   string
	Request    json.RawMessage
	StatusCode int
	Body       json.RawMessage
}

// OK reports whether the gateway accepted the charge.
func (r *SubmitResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

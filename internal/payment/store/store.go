package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/momopay/internal/payment"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanTransaction reads a row laid out as transactionColumns.
func scanTransaction(s scanner) (*payment.Transaction, error) {
	var tx payment.Transaction

	var method, status string

	var summary, response []byte

	if err := s.Scan(
		&tx.ID, &tx.UserID, &tx.OrderID, &tx.Amount, &tx.PhoneNumber, &method,
		&summary, &tx.UpstreamTransactionID, &status, &response,
		&tx.CreatedAt, &tx.UpdatedAt,
	); err != nil {
		return nil, err
	}

	tx.Method = payment.Method(method)
	tx.Status = payment.Status(status)
	tx.OrderSummary = rawJSON(summary)
	tx.UpstreamResponse = rawJSON(response)

	return &tx, nil
}

const transactionColumns = `
	id, user_id, order_id, amount, phone_number, payment_method,
	order_summary, upstream_transaction_id, status, upstream_response,
	created_at, updated_at
`

// notTerminal is the guard every status write carries.
var notTerminal = func() string {
	quoted := make([]string, 0, len(payment.TerminalStatuses))
	for _, s := range payment.TerminalStatuses {
		quoted = append(quoted, "'"+string(s)+"'")
	}

	return "status NOT IN (" + strings.Join(quoted, ", ") + ")"
}()

func (s *Store) CreateTransaction(ctx context.Context, tx *payment.Transaction) error {
	query := `
		INSERT INTO payment_transactions (user_id, order_id, amount, phone_number, payment_method, order_summary, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, status, created_at, updated_at
	`

	var status string

	err := s.db.QueryRowContext(ctx, query,
		tx.UserID,
		tx.OrderID,
		tx.Amount,
		tx.PhoneNumber,
		tx.Method,
		jsonParam(tx.OrderSummary),
		payment.StatusPending,
	).Scan(&tx.ID, &status, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating transaction: %w", err)
	}

	tx.Status = payment.Status(status)

	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE id = $1`

	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payment.ErrNotFound
		}

		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	return tx, nil
}

// GetByUpstreamID returns the most recent transaction carrying the gateway's id.
func (s *Store) GetByUpstreamID(ctx context.Context, upstreamID string) (*payment.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM payment_transactions
		WHERE upstream_transaction_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, upstreamID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payment.ErrNotFound
		}

		return nil, fmt.Errorf("getting transaction by upstream id: %w", err)
	}

	return tx, nil
}

// UpdateTransaction applies patch unless the stored status is already terminal,
// in which case payment.ErrTerminal is returned and nothing is written.
func (s *Store) UpdateTransaction(ctx context.Context, id uuid.UUID, patch payment.Patch) (*payment.Transaction, error) {
	query := `
		UPDATE payment_transactions
		SET status = COALESCE($2, status),
			upstream_transaction_id = COALESCE($3, upstream_transaction_id),
			upstream_response = COALESCE($4::jsonb, upstream_response),
			updated_at = NOW()
		WHERE id = $1 AND ` + notTerminal + `
		RETURNING ` + transactionColumns

	var status any
	if patch.Status != nil {
		status = string(*patch.Status)
	}

	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query,
		id,
		status,
		patch.UpstreamTransactionID,
		jsonParam(patch.UpstreamResponse),
	))
	if err == nil {
		return tx, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("updating transaction: %w", err)
	}

	// Either the row is gone or the guard refused the write.
	if _, err := s.GetTransaction(ctx, id); err != nil {
		return nil, err
	}

	return nil, payment.ErrTerminal
}

func (s *Store) AppendLog(ctx context.Context, entry *payment.APILogEntry) error {
	query := `
		INSERT INTO payment_api_logs (transaction_id, endpoint, request_data, response_data, status_code, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		entry.TransactionID,
		entry.Endpoint,
		jsonParam(entry.RequestData),
		jsonParam(entry.ResponseData),
		entry.StatusCode,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("appending api log: %w", err)
	}

	return nil
}

// jsonParam sends raw as jsonb text, or NULL when empty.
func jsonParam(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}

	return string(raw)
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}

	return json.RawMessage(b)
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ErezMalka/bite-checkout-signing/internal/domain"
)

func (r *Repository) CreateOrderDraft(ctx context.Context, draft *domain.OrderDraft) error {
	payloadJSON, err := json.Marshal(draft.Payload)
	if err != nil {
		return fmt.Errorf("marshal draft payload: %w", err)
	}

	query := `INSERT INTO order_drafts
	          (id, customer_name, customer_phone, customer_email, currency, payload, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`

	_, insertErr := r.db.ExecContext(ctx, query,
		draft.ID,
		draft.CustomerName,
		draft.CustomerPhone,
		draft.CustomerEmail,
		draft.Currency,
		payloadJSON,
		draft.Status)

	if insertErr != nil {
		return fmt.Errorf("insert order draft: %w", insertErr)
	}
	return nil
}

func (r *Repository) UpdateOrderDraftStatus(ctx context.Context, id string, status domain.OrderStatus, signURL string) error {
	query := `UPDATE order_drafts
	          SET status = $2, sign_url = NULLIF($3, ''), updated_at = NOW()
	          WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, signURL)
	if err != nil {
		return fmt.Errorf("update order draft status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update draft rows affected: %w", err)
	}
	if affected == 0 {
		return ErrDraftNotFound
	}
	return nil
}

func (r *Repository) GetOrderDraft(ctx context.Context, id string) (*domain.OrderDraft, error) {
	query := `SELECT id, customer_name, customer_phone, customer_email, currency, payload, status,
	                 COALESCE(sign_url, ''), created_at, updated_at
	          FROM order_drafts WHERE id = $1`

	var draft domain.OrderDraft
	var payloadJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&draft.ID,
		&draft.CustomerName,
		&draft.CustomerPhone,
		&draft.CustomerEmail,
		&draft.Currency,
		&payloadJSON,
		&draft.Status,
		&draft.SignURL,
		&draft.CreatedAt,
		&draft.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order draft: %w", err)
	}

	if err := json.Unmarshal(payloadJSON, &draft.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal draft payload: %w", err)
	}

	return &draft, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/pix-raffle-checkout/internal/model"
)

// PurchaseRepo persists checkout attempts in the purchases table.  Rows are
// an operational trail: CONFIRM_FAILED rows are what operators reconcile
// when a payment succeeded but the attendance could not be confirmed.
type PurchaseRepo struct{ db *sql.DB }

// NewPurchaseRepo returns a PurchaseRepo bound to db.
func NewPurchaseRepo(db *sql.DB) *PurchaseRepo { return &PurchaseRepo{db: db} }

// Create inserts a new attempt.  Re-inserting the same payment id is a
// no-op so a retried request cannot duplicate the row.
func (r *PurchaseRepo) Create(ctx context.Context, p model.Purchase) error {
	const q = `INSERT INTO purchases (payment_id, protocol, cpf, quantity, amount_cents, status)
	           VALUES (?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE payment_id = payment_id`
	_, err := r.db.ExecContext(ctx, q, p.PaymentID, p.Protocol, p.CPF, p.Quantity, p.AmountCents, p.Status)
	return err
}

// UpdateStatus moves a row to status and records lastErr (empty clears it).
func (r *PurchaseRepo) UpdateStatus(ctx context.Context, paymentID, status, lastErr string) error {
	const q = `UPDATE purchases SET status = ?, last_error = NULLIF(?, ''), updated_at = UTC_TIMESTAMP()
	           WHERE payment_id = ?`
	res, err := r.db.ExecContext(ctx, q, status, lastErr, paymentID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPurchaseNotFound
	}
	return nil
}

// Get loads one attempt by payment id.
func (r *PurchaseRepo) Get(ctx context.Context, paymentID string) (model.Purchase, error) {
	const q = `SELECT payment_id, protocol, cpf, quantity, amount_cents, status,
	                  COALESCE(last_error, ''), created_at, updated_at
	           FROM purchases WHERE payment_id = ?`
	var p model.Purchase
	err := r.db.QueryRowContext(ctx, q, paymentID).Scan(
		&p.PaymentID, &p.Protocol, &p.CPF, &p.Quantity, &p.AmountCents, &p.Status,
		&p.LastError, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Purchase{}, ErrPurchaseNotFound
	}
	return p, err
}

// ListByStatus returns up to limit attempts in status, oldest first.
func (r *PurchaseRepo) ListByStatus(ctx context.Context, status string, limit int) ([]model.Purchase, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `SELECT payment_id, protocol, cpf, quantity, amount_cents, status,
	                  COALESCE(last_error, ''), created_at, updated_at
	           FROM purchases WHERE status = ? ORDER BY created_at ASC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Purchase{}
	for rows.Next() {
		var p model.Purchase
		if err := rows.Scan(&p.PaymentID, &p.Protocol, &p.CPF, &p.Quantity, &p.AmountCents, &p.Status,
			&p.LastError, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

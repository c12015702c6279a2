package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agamariel/editmart/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paymentColumns = `
	id, order_id, user_id, purpose, amount, currency, status,
	gateway_order_id, gateway_payment_id, released_at, release_note, created_at, updated_at
`

// PostgresPaymentStorage реализует хранилище эскроу-записей для PostgreSQL.
type PostgresPaymentStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresPaymentStorage создаёт новый экземпляр.
func NewPostgresPaymentStorage(pool *pgxpool.Pool) *PostgresPaymentStorage {
	return &PostgresPaymentStorage{pool: pool}
}

// Create создаёт эскроу-запись в статусе PENDING.
func (s *PostgresPaymentStorage) Create(ctx context.Context, p *models.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	query := `
		INSERT INTO payments (id, order_id, user_id, purpose, amount, currency, status, gateway_order_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := s.pool.QueryRow(ctx, query,
		p.ID, p.OrderID, p.UserID, p.Purpose, p.Amount, p.Currency, p.Status, p.GatewayOrderID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetByID возвращает эскроу-запись по идентификатору.
func (s *PostgresPaymentStorage) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(s.pool.QueryRow(ctx, query, id))
}

// GetByGatewayOrderID возвращает эскроу-запись по идентификатору заказа шлюза.
func (s *PostgresPaymentStorage) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_order_id = $1`
	return scanPayment(s.pool.QueryRow(ctx, query, gatewayOrderID))
}

// GetByIDForUpdateTx читает эскроу-запись с блокировкой строки.
func (s *PostgresPaymentStorage) GetByIDForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	return scanPayment(tx.QueryRow(ctx, query, id))
}

// MarkCompletedTx переводит PENDING/PROCESSING запись в COMPLETED,
// сохраняя идентификатор платежа шлюза.
func (s *PostgresPaymentStorage) MarkCompletedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, gatewayPaymentID string) error {
	query := `
		UPDATE payments
		SET status = 'COMPLETED', gateway_payment_id = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ('PENDING', 'PROCESSING')
	`

	result, err := tx.Exec(ctx, query, gatewayPaymentID, id)
	if err != nil {
		return fmt.Errorf("failed to mark payment completed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// MarkFailedTx переводит PENDING/PROCESSING запись в FAILED.
func (s *PostgresPaymentStorage) MarkFailedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `
		UPDATE payments
		SET status = 'FAILED', updated_at = NOW()
		WHERE id = $1 AND status IN ('PENDING', 'PROCESSING')
	`

	result, err := tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// MarkReleasedTx проставляет released_at и заметку у COMPLETED записи,
// которая ещё не была выпущена. Guard по released_at защищает от двойного выпуска.
func (s *PostgresPaymentStorage) MarkReleasedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, note string, now time.Time) error {
	query := `
		UPDATE payments
		SET released_at = $1, release_note = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'COMPLETED' AND released_at IS NULL
	`

	result, err := tx.Exec(ctx, query, now, note, id)
	if err != nil {
		return fmt.Errorf("failed to mark payment released: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// scanPayment помогает читать эскроу-запись из строки результата.
func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment

	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.UserID,
		&p.Purpose,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.GatewayOrderID,
		&p.GatewayPaymentID,
		&p.ReleasedAt,
		&p.ReleaseNote,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}

	return &p, nil
}

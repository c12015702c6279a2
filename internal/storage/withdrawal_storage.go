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

const withdrawalColumns = `
	id, user_id, amount, payment_method, payment_details, status, admin_note, processed_at, created_at
`

// PostgresWithdrawalStorage реализует хранилище заявок на вывод для PostgreSQL.
type PostgresWithdrawalStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresWithdrawalStorage создаёт новый экземпляр.
func NewPostgresWithdrawalStorage(pool *pgxpool.Pool) *PostgresWithdrawalStorage {
	return &PostgresWithdrawalStorage{pool: pool}
}

// CreateTx создаёт заявку на вывод в рамках транзакции, блокирующей средства.
func (s *PostgresWithdrawalStorage) CreateTx(ctx context.Context, tx pgx.Tx, w *models.WithdrawalRequest) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}

	query := `
		INSERT INTO withdrawal_requests (id, user_id, amount, payment_method, payment_details, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`

	err := tx.QueryRow(ctx, query,
		w.ID, w.UserID, w.Amount, w.PaymentMethod, w.PaymentDetails, w.Status,
	).Scan(&w.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal request: %w", err)
	}
	return nil
}

// GetByID возвращает заявку по идентификатору.
func (s *PostgresWithdrawalStorage) GetByID(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`
	return scanWithdrawal(s.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdateTx читает заявку с блокировкой строки.
func (s *PostgresWithdrawalStorage) GetByIDForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`
	return scanWithdrawal(tx.QueryRow(ctx, query, id))
}

// FinalizeTx переводит PENDING заявку в конечный статус с заметкой администратора.
func (s *PostgresWithdrawalStorage) FinalizeTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.WithdrawalStatus, adminNote string, now time.Time) error {
	query := `
		UPDATE withdrawal_requests
		SET status = $1, admin_note = $2, processed_at = $3
		WHERE id = $4 AND status = 'PENDING'
	`

	result, err := tx.Exec(ctx, query, status, adminNote, now, id)
	if err != nil {
		return fmt.Errorf("failed to finalize withdrawal request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// ListByUser возвращает заявки пользователя (новые первыми).
func (s *PostgresWithdrawalStorage) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawal requests: %w", err)
	}
	defer rows.Close()

	var list []*models.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, w)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}

	return list, nil
}

// scanWithdrawal помогает читать заявку из строки результата.
func scanWithdrawal(row pgx.Row) (*models.WithdrawalRequest, error) {
	var w models.WithdrawalRequest

	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.Amount,
		&w.PaymentMethod,
		&w.PaymentDetails,
		&w.Status,
		&w.AdminNote,
		&w.ProcessedAt,
		&w.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to scan withdrawal request: %w", err)
	}

	return &w, nil
}

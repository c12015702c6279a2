package storage

import (
	"context"
	"fmt"

	"github.com/agamariel/editmart/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTransactionStorage реализует журнал операций по кошелькам.
// Записи только добавляются; обновлений и удалений нет.
type PostgresTransactionStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresTransactionStorage создаёт новый экземпляр.
func NewPostgresTransactionStorage(pool *pgxpool.Pool) *PostgresTransactionStorage {
	return &PostgresTransactionStorage{pool: pool}
}

// CreateTx добавляет запись журнала в рамках транзакции вызывающей операции,
// чтобы движение средств и его след фиксировались атомарно.
func (s *PostgresTransactionStorage) CreateTx(ctx context.Context, tx pgx.Tx, wt *models.WalletTransaction) error {
	if wt.ID == uuid.Nil {
		wt.ID = uuid.New()
	}

	query := `
		INSERT INTO wallet_transactions (id, user_id, order_id, type, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`

	err := tx.QueryRow(ctx, query, wt.ID, wt.UserID, wt.OrderID, wt.Type, wt.Amount).Scan(&wt.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create wallet transaction: %w", err)
	}
	return nil
}

// ListByUser возвращает историю операций пользователя (новые первыми).
func (s *PostgresTransactionStorage) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.WalletTransaction, error) {
	query := `
		SELECT id, user_id, order_id, type, amount, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallet transactions: %w", err)
	}
	defer rows.Close()

	var list []*models.WalletTransaction
	for rows.Next() {
		var wt models.WalletTransaction
		if err := rows.Scan(&wt.ID, &wt.UserID, &wt.OrderID, &wt.Type, &wt.Amount, &wt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet transaction: %w", err)
		}
		list = append(list, &wt)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}

	return list, nil
}

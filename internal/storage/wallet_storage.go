package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/agamariel/editmart/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresWalletStorage реализует хранилище кошельков для PostgreSQL.
// Все мутирующие методы работают в рамках переданной транзакции и перепроверяют
// достаточность средств условием в UPDATE, а не заранее прочитанным значением.
type PostgresWalletStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresWalletStorage создаёт новый экземпляр PostgresWalletStorage.
func NewPostgresWalletStorage(pool *pgxpool.Pool) *PostgresWalletStorage {
	return &PostgresWalletStorage{pool: pool}
}

// Ensure создаёт кошелёк пользователя, если его ещё нет.
func (s *PostgresWalletStorage) Ensure(ctx context.Context, userID uuid.UUID) error {
	query := `
		INSERT INTO wallets (user_id, balance, locked, created_at, updated_at)
		VALUES ($1, 0, 0, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := s.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to ensure wallet: %w", err)
	}
	return nil
}

// GetByUserID возвращает кошелёк пользователя.
func (s *PostgresWalletStorage) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	query := `SELECT user_id, balance, locked, created_at, updated_at FROM wallets WHERE user_id = $1`

	wallet := &models.Wallet{}
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&wallet.UserID,
		&wallet.Balance,
		&wallet.Locked,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return wallet, nil
}

// LockTx переносит amount из balance в locked.
// Guard balance >= amount в самом UPDATE исключает уход баланса в минус
// при конкурирующих списаниях.
func (s *PostgresWalletStorage) LockTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE wallets
		SET balance = balance - $1, locked = locked + $1, updated_at = NOW()
		WHERE user_id = $2 AND balance >= $1
	`

	result, err := tx.Exec(ctx, query, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to lock funds: %w", err)
	}
	if result.RowsAffected() == 0 {
		if err := s.existsTx(ctx, tx, userID); err != nil {
			return err
		}
		return ErrInsufficientFunds
	}
	return nil
}

// ReleaseTx возвращает amount из locked обратно в balance.
func (s *PostgresWalletStorage) ReleaseTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE wallets
		SET locked = locked - $1, balance = balance + $1, updated_at = NOW()
		WHERE user_id = $2 AND locked >= $1
	`

	result, err := tx.Exec(ctx, query, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to release funds: %w", err)
	}
	if result.RowsAffected() == 0 {
		if err := s.existsTx(ctx, tx, userID); err != nil {
			return err
		}
		return ErrInsufficientLocked
	}
	return nil
}

// SlashTx безвозвратно списывает amount из locked: средства покидают кошелёк.
func (s *PostgresWalletStorage) SlashTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE wallets
		SET locked = locked - $1, updated_at = NOW()
		WHERE user_id = $2 AND locked >= $1
	`

	result, err := tx.Exec(ctx, query, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to slash funds: %w", err)
	}
	if result.RowsAffected() == 0 {
		if err := s.existsTx(ctx, tx, userID); err != nil {
			return err
		}
		return ErrInsufficientLocked
	}
	return nil
}

// CreditTx увеличивает balance на amount.
func (s *PostgresWalletStorage) CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE wallets
		SET balance = balance + $1, updated_at = NOW()
		WHERE user_id = $2
	`

	result, err := tx.Exec(ctx, query, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (s *PostgresWalletStorage) existsTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM wallets WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check wallet existence: %w", err)
	}
	if !exists {
		return ErrWalletNotFound
	}
	return nil
}

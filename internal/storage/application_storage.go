package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agamariel/editmart/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const applicationColumns = `
	id, order_id, editor_id, status, deposit_amount, deposit_deadline, created_at, updated_at
`

// PostgresApplicationStorage реализует хранилище откликов для PostgreSQL.
type PostgresApplicationStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresApplicationStorage создаёт новый экземпляр.
func NewPostgresApplicationStorage(pool *pgxpool.Pool) *PostgresApplicationStorage {
	return &PostgresApplicationStorage{pool: pool}
}

// Create создаёт отклик исполнителя на заказ.
func (s *PostgresApplicationStorage) Create(ctx context.Context, app *models.OrderApplication) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}

	query := `
		INSERT INTO order_applications (id, order_id, editor_id, status, deposit_amount, deposit_deadline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := s.pool.QueryRow(ctx, query,
		app.ID,
		app.OrderID,
		app.EditorID,
		app.Status,
		app.DepositAmount,
		app.DepositDeadline,
	).Scan(&app.CreatedAt, &app.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return ErrApplicationExists
		}
		return fmt.Errorf("failed to create application: %w", err)
	}

	return nil
}

// GetByID возвращает отклик по идентификатору.
func (s *PostgresApplicationStorage) GetByID(ctx context.Context, id uuid.UUID) (*models.OrderApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM order_applications WHERE id = $1`
	return scanApplication(s.pool.QueryRow(ctx, query, id))
}

// GetByOrderAndEditor возвращает отклик исполнителя на конкретный заказ.
func (s *PostgresApplicationStorage) GetByOrderAndEditor(ctx context.Context, orderID, editorID uuid.UUID) (*models.OrderApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM order_applications WHERE order_id = $1 AND editor_id = $2`
	return scanApplication(s.pool.QueryRow(ctx, query, orderID, editorID))
}

// ListByOrder возвращает все отклики по заказу (старые первыми).
func (s *PostgresApplicationStorage) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.OrderApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM order_applications WHERE order_id = $1 ORDER BY created_at ASC`
	return s.queryApplications(ctx, query, orderID)
}

// UpdateStatusTx переводит отклик из ожидаемого статуса в новый в рамках транзакции.
func (s *PostgresApplicationStorage) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to models.ApplicationStatus) error {
	query := `
		UPDATE order_applications
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := tx.Exec(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update application status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// RejectOthersTx отклоняет все прочие отклики заказа в статусе APPLIED.
func (s *PostgresApplicationStorage) RejectOthersTx(ctx context.Context, tx pgx.Tx, orderID, approvedID uuid.UUID) error {
	query := `
		UPDATE order_applications
		SET status = 'REJECTED', updated_at = NOW()
		WHERE order_id = $1 AND id <> $2 AND status = 'APPLIED'
	`

	if _, err := tx.Exec(ctx, query, orderID, approvedID); err != nil {
		return fmt.Errorf("failed to reject other applications: %w", err)
	}
	return nil
}

// CountAppliedTx считает оставшиеся отклики заказа в статусе APPLIED в рамках транзакции.
func (s *PostgresApplicationStorage) CountAppliedTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM order_applications WHERE order_id = $1 AND status = 'APPLIED'`

	var count int
	if err := tx.QueryRow(ctx, query, orderID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count applied applications: %w", err)
	}
	return count, nil
}

// ListExpiredApplied возвращает отклики APPLIED с истёкшим сроком оплаты депозита.
func (s *PostgresApplicationStorage) ListExpiredApplied(ctx context.Context, now time.Time) ([]*models.OrderApplication, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM order_applications
		WHERE status = 'APPLIED' AND deposit_deadline < $1
		ORDER BY deposit_deadline ASC
	`
	return s.queryApplications(ctx, query, now)
}

func (s *PostgresApplicationStorage) queryApplications(ctx context.Context, query string, args ...any) ([]*models.OrderApplication, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.OrderApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}

	return apps, nil
}

// scanApplication помогает читать отклик из строки результата.
func scanApplication(row pgx.Row) (*models.OrderApplication, error) {
	var app models.OrderApplication

	err := row.Scan(
		&app.ID,
		&app.OrderID,
		&app.EditorID,
		&app.Status,
		&app.DepositAmount,
		&app.DepositDeadline,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to scan application: %w", err)
	}

	return &app, nil
}

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

const orderColumns = `
	id, creator_id, editor_id, title, status, tier, amount, currency, deadline,
	revision_count, last_activity_at, assigned_at, completed_at,
	editor_deposit_required, editor_deposit_status, payment_status, payout_status,
	disputed, dispute_reason, created_at, updated_at
`

// PostgresOrderStorage реализует хранилище заказов для PostgreSQL.
type PostgresOrderStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresOrderStorage создаёт новый экземпляр PostgresOrderStorage.
func NewPostgresOrderStorage(pool *pgxpool.Pool) *PostgresOrderStorage {
	return &PostgresOrderStorage{pool: pool}
}

// Create создаёт новый заказ.
func (s *PostgresOrderStorage) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}

	query := `
		INSERT INTO orders (
			id, creator_id, title, status, tier, amount, currency, deadline,
			payment_status, payout_status, last_activity_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW(), NOW())
		RETURNING last_activity_at, created_at, updated_at
	`

	err := s.pool.QueryRow(ctx, query,
		order.ID,
		order.CreatorID,
		order.Title,
		order.Status,
		order.Tier,
		order.Amount,
		order.Currency,
		order.Deadline,
		order.PaymentStatus,
		order.PayoutStatus,
	).Scan(&order.LastActivityAt, &order.CreatedAt, &order.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// GetByID возвращает заказ по идентификатору.
func (s *PostgresOrderStorage) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(s.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdateTx читает заказ с блокировкой строки в рамках транзакции.
// Сериализует конкурирующие одобрения откликов и действия планировщика по одному заказу.
func (s *PostgresOrderStorage) GetByIDForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return scanOrder(tx.QueryRow(ctx, query, id))
}

// ListByCreator возвращает заказы заказчика (новые первыми).
func (s *PostgresOrderStorage) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE creator_id = $1 ORDER BY created_at DESC`
	return s.queryOrders(ctx, query, creatorID)
}

// ListByEditor возвращает заказы исполнителя (новые первыми).
func (s *PostgresOrderStorage) ListByEditor(ctx context.Context, editorID uuid.UUID) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE editor_id = $1 ORDER BY created_at DESC`
	return s.queryOrders(ctx, query, editorID)
}

// CountActiveByEditor считает активные заказы исполнителя:
// ASSIGNED, IN_PROGRESS, PREVIEW_SUBMITTED, REVISION_REQUESTED.
func (s *PostgresOrderStorage) CountActiveByEditor(ctx context.Context, editorID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM orders
		WHERE editor_id = $1
		  AND status IN ('ASSIGNED', 'IN_PROGRESS', 'PREVIEW_SUBMITTED', 'REVISION_REQUESTED')
	`

	var count int
	if err := s.pool.QueryRow(ctx, query, editorID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active orders: %w", err)
	}
	return count, nil
}

// UpdateStatusTx переводит заказ из ожидаемого статуса в новый в рамках транзакции.
// Guard по статусу защищает от конкурирующего актора с тем же устаревшим чтением.
func (s *PostgresOrderStorage) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to models.OrderStatus, now time.Time) error {
	query := `
		UPDATE orders
		SET status = $1,
		    completed_at = CASE WHEN $1 = 'COMPLETED' THEN $4 ELSE completed_at END,
		    last_activity_at = $4,
		    updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := tx.Exec(ctx, query, to, id, from, now)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// AssignEditorTx назначает исполнителя и переводит заказ в ASSIGNED.
// withDeposit помечает заказ как требующий депозит исполнителя.
func (s *PostgresOrderStorage) AssignEditorTx(ctx context.Context, tx pgx.Tx, id, editorID uuid.UUID, withDeposit bool, now time.Time) error {
	query := `
		UPDATE orders
		SET editor_id = $1,
		    status = 'ASSIGNED',
		    assigned_at = $4,
		    last_activity_at = $4,
		    editor_deposit_required = $3,
		    editor_deposit_status = CASE WHEN $3 THEN 'PENDING' ELSE editor_deposit_status END,
		    updated_at = NOW()
		WHERE id = $2 AND status IN ('OPEN', 'APPLIED')
	`

	result, err := tx.Exec(ctx, query, editorID, id, withDeposit, now)
	if err != nil {
		return fmt.Errorf("failed to assign editor: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// RevertToOpenTx возвращает заказ из APPLIED в OPEN, если отклики закончились.
func (s *PostgresOrderStorage) RevertToOpenTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `
		UPDATE orders
		SET status = 'OPEN', updated_at = NOW()
		WHERE id = $1 AND status = 'APPLIED'
	`

	if _, err := tx.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to revert order to open: %w", err)
	}
	return nil
}

// IncrementRevisionTx атомарно увеличивает счётчик правок и переводит заказ
// в REVISION_REQUESTED, не превышая лимит.
func (s *PostgresOrderStorage) IncrementRevisionTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, limit int, now time.Time) error {
	query := `
		UPDATE orders
		SET status = 'REVISION_REQUESTED',
		    revision_count = revision_count + 1,
		    last_activity_at = $3,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'PREVIEW_SUBMITTED' AND revision_count < $2
	`

	result, err := tx.Exec(ctx, query, id, limit, now)
	if err != nil {
		return fmt.Errorf("failed to increment revision count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// SetDepositStatusTx обновляет статус депозита исполнителя по заказу.
func (s *PostgresOrderStorage) SetDepositStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.DepositStatus) error {
	query := `UPDATE orders SET editor_deposit_status = $1, updated_at = NOW() WHERE id = $2`
	result, err := tx.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to set deposit status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// SetPaymentState обновляет состояние эскроу-оплаты заказа вне явной транзакции.
func (s *PostgresOrderStorage) SetPaymentState(ctx context.Context, id uuid.UUID, state models.PaymentState) error {
	query := `UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2`
	result, err := s.pool.Exec(ctx, query, state, id)
	if err != nil {
		return fmt.Errorf("failed to set payment state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// SetPaymentStateTx обновляет состояние эскроу-оплаты заказа.
func (s *PostgresOrderStorage) SetPaymentStateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, state models.PaymentState) error {
	query := `UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2`
	result, err := tx.Exec(ctx, query, state, id)
	if err != nil {
		return fmt.Errorf("failed to set payment state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// SetPayoutStateTx обновляет состояние выплаты по заказу.
func (s *PostgresOrderStorage) SetPayoutStateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, state models.PayoutState) error {
	query := `UPDATE orders SET payout_status = $1, updated_at = NOW() WHERE id = $2`
	result, err := tx.Exec(ctx, query, state, id)
	if err != nil {
		return fmt.Errorf("failed to set payout state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// TouchActivity обновляет отметку последней активности по заказу.
func (s *PostgresOrderStorage) TouchActivity(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `UPDATE orders SET last_activity_at = $1, updated_at = NOW() WHERE id = $2`
	result, err := s.pool.Exec(ctx, query, now, id)
	if err != nil {
		return fmt.Errorf("failed to touch order activity: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ListOpenCreatedBefore возвращает открытые заказы, созданные раньше cutoff.
func (s *PostgresOrderStorage) ListOpenCreatedBefore(ctx context.Context, cutoff time.Time) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = 'OPEN' AND created_at < $1 ORDER BY created_at ASC`
	return s.queryOrders(ctx, query, cutoff)
}

// ListAssignedBefore возвращает назначенные заказы, по которым работа не началась до cutoff.
func (s *PostgresOrderStorage) ListAssignedBefore(ctx context.Context, cutoff time.Time) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = 'ASSIGNED' AND assigned_at < $1 ORDER BY assigned_at ASC`
	return s.queryOrders(ctx, query, cutoff)
}

// ListDeadlinePassed возвращает заказы в работе с истёкшим дедлайном.
func (s *PostgresOrderStorage) ListDeadlinePassed(ctx context.Context, now time.Time) ([]*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status IN ('IN_PROGRESS', 'REVISION_REQUESTED') AND deadline IS NOT NULL AND deadline < $1
		ORDER BY deadline ASC
	`
	return s.queryOrders(ctx, query, now)
}

// ListInactiveSince возвращает заказы в указанных статусах без активности после cutoff.
func (s *PostgresOrderStorage) ListInactiveSince(ctx context.Context, statuses []models.OrderStatus, cutoff time.Time) ([]*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = ANY($1) AND last_activity_at < $2
		ORDER BY last_activity_at ASC
	`

	raw := make([]string, 0, len(statuses))
	for _, st := range statuses {
		raw = append(raw, string(st))
	}
	return s.queryOrders(ctx, query, raw, cutoff)
}

func (s *PostgresOrderStorage) queryOrders(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}

	return orders, nil
}

// scanOrder помогает читать заказ из строки результата.
func scanOrder(row pgx.Row) (*models.Order, error) {
	var order models.Order

	err := row.Scan(
		&order.ID,
		&order.CreatorID,
		&order.EditorID,
		&order.Title,
		&order.Status,
		&order.Tier,
		&order.Amount,
		&order.Currency,
		&order.Deadline,
		&order.RevisionCount,
		&order.LastActivityAt,
		&order.AssignedAt,
		&order.CompletedAt,
		&order.EditorDepositRequired,
		&order.EditorDepositStatus,
		&order.PaymentStatus,
		&order.PayoutStatus,
		&order.Disputed,
		&order.DisputeReason,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	return &order, nil
}

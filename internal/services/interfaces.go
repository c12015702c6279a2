package services

import (
	"context"
	"time"

	"github.com/agamariel/editmart/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TxBeginner открывает транзакцию базы данных. Реализуется pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStorage определяет интерфейс для работы с заказами.
type OrderStorage interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByIDForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Order, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.Order, error)
	ListByEditor(ctx context.Context, editorID uuid.UUID) ([]*models.Order, error)
	CountActiveByEditor(ctx context.Context, editorID uuid.UUID) (int, error)
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to models.OrderStatus, now time.Time) error
	AssignEditorTx(ctx context.Context, tx pgx.Tx, id, editorID uuid.UUID, withDeposit bool, now time.Time) error
	RevertToOpenTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	IncrementRevisionTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, limit int, now time.Time) error
	SetDepositStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.DepositStatus) error
	SetPaymentState(ctx context.Context, id uuid.UUID, state models.PaymentState) error
	SetPaymentStateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, state models.PaymentState) error
	SetPayoutStateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, state models.PayoutState) error
	TouchActivity(ctx context.Context, id uuid.UUID, now time.Time) error
	ListOpenCreatedBefore(ctx context.Context, cutoff time.Time) ([]*models.Order, error)
	ListAssignedBefore(ctx context.Context, cutoff time.Time) ([]*models.Order, error)
	ListDeadlinePassed(ctx context.Context, now time.Time) ([]*models.Order, error)
	ListInactiveSince(ctx context.Context, statuses []models.OrderStatus, cutoff time.Time) ([]*models.Order, error)
}

// ApplicationStorage определяет интерфейс для работы с откликами.
type ApplicationStorage interface {
	Create(ctx context.Context, app *models.OrderApplication) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.OrderApplication, error)
	GetByOrderAndEditor(ctx context.Context, orderID, editorID uuid.UUID) (*models.OrderApplication, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.OrderApplication, error)
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to models.ApplicationStatus) error
	RejectOthersTx(ctx context.Context, tx pgx.Tx, orderID, approvedID uuid.UUID) error
	CountAppliedTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (int, error)
	ListExpiredApplied(ctx context.Context, now time.Time) ([]*models.OrderApplication, error)
}

// WalletStorage определяет интерфейс для работы с кошельками.
type WalletStorage interface {
	Ensure(ctx context.Context, userID uuid.UUID) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	LockTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) error
	ReleaseTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) error
	SlashTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) error
	CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) error
}

// TransactionStorage определяет интерфейс журнала операций по кошелькам.
type TransactionStorage interface {
	CreateTx(ctx context.Context, tx pgx.Tx, wt *models.WalletTransaction) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.WalletTransaction, error)
}

// WithdrawalStorage определяет интерфейс для работы с заявками на вывод.
type WithdrawalStorage interface {
	CreateTx(ctx context.Context, tx pgx.Tx, w *models.WithdrawalRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	GetByIDForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.WithdrawalRequest, error)
	FinalizeTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.WithdrawalStatus, adminNote string, now time.Time) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.WithdrawalRequest, error)
}

// PaymentStorage определяет интерфейс для работы с эскроу-записями.
type PaymentStorage interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error)
	GetByIDForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Payment, error)
	MarkCompletedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, gatewayPaymentID string) error
	MarkFailedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	MarkReleasedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, note string, now time.Time) error
}

// UserStorage определяет интерфейс для работы с пользователями.
type UserStorage interface {
	Create(ctx context.Context, user *models.User) error
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// FileStorage определяет интерфейс для работы с записями о файлах заказов.
type FileStorage interface {
	Create(ctx context.Context, f *models.OrderFile) error
	ListCleanupCandidates(ctx context.Context, cutoff time.Time) ([]*models.OrderFile, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// BlobRemover удаляет содержимое файла во внешнем хранилище.
// Внешний коллаборатор: ошибки удаления не блокируют чистку записей.
type BlobRemover interface {
	Remove(ctx context.Context, storageKey string) error
}

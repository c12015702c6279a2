package services

import (
	"context"
	"time"

	"github.com/agamariel/editmart/internal/models"
	"github.com/agamariel/editmart/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// fakeTx подменяет pgx.Tx в тестах: сервисы вызывают на нём только
// Commit и Rollback, остальные методы остаются у встроенного nil.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeBeginner struct {
	tx  *fakeTx
	err error
}

func newFakeBeginner() *fakeBeginner {
	return &fakeBeginner{tx: &fakeTx{}}
}

func (b *fakeBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if b.err != nil {
		return nil, b.err
	}
	// Каждый Begin отдаёт свежую транзакцию, последняя остаётся доступной тесту.
	b.tx = &fakeTx{}
	return b.tx, nil
}

// fakeClock возвращает фиксированное время.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type mockOrderStorage struct {
	CreateFunc                func(ctx context.Context, order *models.Order) error
	GetByIDFunc               func(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByIDForUpdateTxFunc    func(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Order, error)
	ListByCreatorFunc         func(ctx context.Context, creatorID uuid.UUID) ([]*models.Order, error)
	ListByEditorFunc          func(ctx context.Context, editorID uuid.UUID) ([]*models.Order, error)
	CountActiveByEditorFunc   func(ctx context.Context, editorID uuid.UUID) (int, error)
	UpdateStatusTxFunc        func(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to models.OrderStatus, now time.Time) error
	AssignEditorTxFunc        func(ctx context.Context, tx pgx.Tx, id, editorID uuid.UUID, withDeposit bool, now time.Time) error
	RevertToOpenTxFunc        func(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	IncrementRevisionTxFunc   func(ctx context.Context, tx pgx.Tx, id uuid.UUID, limit int, now time.Time) error
	SetDepositStatusTxFunc    func(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.DepositStatus) error
	SetPaymentStateFunc       func(ctx context.Context, id uuid.UUID, state models.PaymentState) error
	SetPaymentStateTxFunc     func(ctx context.Context, tx pgx.Tx, id uuid.UUID, state models.PaymentState) error
	SetPayoutStateTxFunc      func(ctx context.Context, tx pgx.Tx, id uuid.UUID, state models.PayoutState) error
	TouchActivityFunc         func(ctx context.Context, id uuid.UUID, now time.Time) error
	ListOpenCreatedBeforeFunc func(ctx context.Context, cutoff time.Time) ([]*models.Order, error)
	ListAssignedBeforeFunc    func(ctx context.Context, cutoff time.Time) ([]*models.Order, error)
	ListDeadlinePassedFunc    func(ctx context.Context, now time.Time) ([]*models.Order, error)
	ListInactiveSinceFunc     func(ctx context.Context, statuses []models.OrderStatus, cutoff time.Time) ([]*models.Order, error)
}

func (m *mockOrderStorage) Create(ctx context.Context, order *models.Order) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, order)
	}
	return nil
}

func (m *mockOrderStorage) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, storage.ErrOrderNotFound
}

func (m *mockOrderStorage) GetByIDForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Order, error) {
	if m.GetByIDForUpdateTxFunc != nil {
		return m.GetByIDForUpdateTxFunc(ctx, tx, id)
	}
	return nil, storage.ErrOrderNotFound
}

func (m *mockOrderStorage) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.Order, error) {
	if m.ListByCreatorFunc != nil {
		return m.ListByCreatorFunc(ctx, creatorID)
	}
	return []*models.Order{}, nil
}

func (m *mockOrderStorage) ListByEditor(ctx context.Context, editorID uuid.UUID) ([]*models.Order, error) {
	if m.ListByEditorFunc != nil {
		return m.ListByEditorFunc(ctx, editorID)
	}
	return []*models.Order{}, nil
}

func (m *mockOrderStorage) CountActiveByEditor(ctx context.Context, editorID uuid.UUID) (int, error) {
	if m.CountActiveByEditorFunc != nil {
		return m.CountActiveByEditorFunc(ctx, editorID)
	}
	return 0, nil
}

func (m *mockOrderStorage) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to models.OrderStatus, now time.Time) error {
	if m.UpdateStatusTxFunc != nil {
		return m.UpdateStatusTxFunc(ctx, tx, id, from, to, now)
	}
	return nil
}

func (m *mockOrderStorage) AssignEditorTx(ctx context.Context, tx pgx.Tx, id, editorID uuid.UUID, withDeposit bool, now time.Time) error {
	if m.AssignEditorTxFunc != nil {
		return m.AssignEditorTxFunc(ctx, tx, id, editorID, withDeposit, now)
	}
	return nil
}

func (m *mockOrderStorage) RevertToOpenTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	if m.RevertToOpenTxFunc != nil {
		return m.RevertToOpenTxFunc(ctx, tx, id)
	}
	return nil
}

func (m *mockOrderStorage) IncrementRevisionTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, limit int, now time.Time) error {
	if m.IncrementRevisionTxFunc != nil {
		return m.IncrementRevisionTxFunc(ctx, tx, id, limit, now)
	}
	return nil
}

func (m *mockOrderStorage) SetDepositStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.DepositStatus) error {
	if m.SetDepositStatusTxFunc != nil {
		return m.SetDepositStatusTxFunc(ctx, tx, id, status)
	}
	return nil
}

func (m *mockOrderStorage) SetPaymentState(ctx context.Context, id uuid.UUID, state models.PaymentState) error {
	if m.SetPaymentStateFunc != nil {
		return m.SetPaymentStateFunc(ctx, id, state)
	}
	return nil
}

func (m *mockOrderStorage) SetPaymentStateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, state models.PaymentState) error {
	if m.SetPaymentStateTxFunc != nil {
		return m.SetPaymentStateTxFunc(ctx, tx, id, state)
	}
	return nil
}

func (m *mockOrderStorage) SetPayoutStateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, state models.PayoutState) error {
	if m.SetPayoutStateTxFunc != nil {
		return m.SetPayoutStateTxFunc(ctx, tx, id, state)
	}
	return nil
}

func (m *mockOrderStorage) TouchActivity(ctx context.Context, id uuid.UUID, now time.Time) error {
	if m.TouchActivityFunc != nil {
		return m.TouchActivityFunc(ctx, id, now)
	}
	return nil
}

func (m *mockOrderStorage) ListOpenCreatedBefore(ctx context.Context, cutoff time.Time) ([]*models.Order, error) {
	if m.ListOpenCreatedBeforeFunc != nil {
		return m.ListOpenCreatedBeforeFunc(ctx, cutoff)
	}
	return []*models.Order{}, nil
}

func (m *mockOrderStorage) ListAssignedBefore(ctx context.Context, cutoff time.Time) ([]*models.Order, error) {
	if m.ListAssignedBeforeFunc != nil {
		return m.ListAssignedBeforeFunc(ctx, cutoff)
	}
	return []*models.Order{}, nil
}

func (m *mockOrderStorage) ListDeadlinePassed(ctx context.Context, now time.Time) ([]*models.Order, error) {
	if m.ListDeadlinePassedFunc != nil {
		return m.ListDeadlinePassedFunc(ctx, now)
	}
	return []*models.Order{}, nil
}

func (m *mockOrderStorage) ListInactiveSince(ctx context.Context, statuses []models.OrderStatus, cutoff time.Time) ([]*models.Order, error) {
	if m.ListInactiveSinceFunc != nil {
		return m.ListInactiveSinceFunc(ctx, statuses, cutoff)
	}
	return []*models.Order{}, nil
}

type mockApplicationStorage struct {
	CreateFunc              func(ctx context.Context, app *models.OrderApplication) error
	GetByIDFunc             func(ctx context.Context, id uuid.UUID) (*models.OrderApplication, error)
	GetByOrderAndEditorFunc func(ctx context.Context, orderID, editorID uuid.UUID) (*models.OrderApplication, error)
	ListByOrderFunc         func(ctx context.Context, orderID uuid.UUID) ([]*models.OrderApplication, error)
	UpdateStatusTxFunc      func(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to models.ApplicationStatus) error
	RejectOthersTxFunc      func(ctx context.Context, tx pgx.Tx, orderID, approvedID uuid.UUID) error
	CountAppliedTxFunc      func(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (int, error)
	ListExpiredAppliedFunc  func(ctx context.Context, now time.Time) ([]*models.OrderApplication, error)
}

func (m *mockApplicationStorage) Create(ctx context.Context, app *models.OrderApplication) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, app)
	}
	return nil
}

func (m *mockApplicationStorage) GetByID(ctx context.Context, id uuid.UUID) (*models.OrderApplication, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, storage.ErrApplicationNotFound
}

func (m *mockApplicationStorage) GetByOrderAndEditor(ctx context.Context, orderID, editorID uuid.UUID) (*models.OrderApplication, error) {
	if m.GetByOrderAndEditorFunc != nil {
		return m.GetByOrderAndEditorFunc(ctx, orderID, editorID)
	}
	return nil, storage.ErrApplicationNotFound
}

func (m *mockApplicationStorage) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.OrderApplication, error) {
	if m.ListByOrderFunc != nil {
		return m.ListByOrderFunc(ctx, orderID)
	}
	return []*models.OrderApplication{}, nil
}

func (m *mockApplicationStorage) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to models.ApplicationStatus) error {
	if m.UpdateStatusTxFunc != nil {
		return m.UpdateStatusTxFunc(ctx, tx, id, from, to)
	}
	return nil
}

func (m *mockApplicationStorage) RejectOthersTx(ctx context.Context, tx pgx.Tx, orderID, approvedID uuid.UUID) error {
	if m.RejectOthersTxFunc != nil {
		return m.RejectOthersTxFunc(ctx, tx, orderID, approvedID)
	}
	return nil
}

func (m *mockApplicationStorage) CountAppliedTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (int, error) {
	if m.CountAppliedTxFunc != nil {
		return m.CountAppliedTxFunc(ctx, tx, orderID)
	}
	return 0, nil
}

func (m *mockApplicationStorage) ListExpiredApplied(ctx context.Context, now time.Time) ([]*models.OrderApplication, error) {
	if m.ListExpiredAppliedFunc != nil {
		return m.ListExpiredAppliedFunc(ctx, now)
	}
	return []*models.OrderApplication{}, nil
}

type mockWalletStorage struct {
	EnsureFunc      func(ctx context.Context, userID uuid.UUID) error
	GetByUserIDFunc func(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	LockTxFunc      func(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) error
	ReleaseTxFunc   func(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) error
	SlashTxFunc     func(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) error
	CreditTxFunc    func(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) error
}

func (m *mockWalletStorage) Ensure(ctx context.Context, userID uuid.UUID) error {
	if m.EnsureFunc != nil {
		return m.EnsureFunc(ctx, userID)
	}
	return nil
}

func (m *mockWalletStorage) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if m.GetByUserIDFunc != nil {
		return m.GetByUserIDFunc(ctx, userID)
	}
	return &models.Wallet{UserID: userID}, nil
}

func (m *mockWalletStorage) LockTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	if m.LockTxFunc != nil {
		return m.LockTxFunc(ctx, tx, userID, amount)
	}
	return nil
}

func (m *mockWalletStorage) ReleaseTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	if m.ReleaseTxFunc != nil {
		return m.ReleaseTxFunc(ctx, tx, userID, amount)
	}
	return nil
}

func (m *mockWalletStorage) SlashTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	if m.SlashTxFunc != nil {
		return m.SlashTxFunc(ctx, tx, userID, amount)
	}
	return nil
}

func (m *mockWalletStorage) CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	if m.CreditTxFunc != nil {
		return m.CreditTxFunc(ctx, tx, userID, amount)
	}
	return nil
}

type mockTransactionStorage struct {
	CreateTxFunc   func(ctx context.Context, tx pgx.Tx, wt *models.WalletTransaction) error
	ListByUserFunc func(ctx context.Context, userID uuid.UUID) ([]*models.WalletTransaction, error)
}

func (m *mockTransactionStorage) CreateTx(ctx context.Context, tx pgx.Tx, wt *models.WalletTransaction) error {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, wt)
	}
	return nil
}

func (m *mockTransactionStorage) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.WalletTransaction, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return []*models.WalletTransaction{}, nil
}

type mockWithdrawalStorage struct {
	CreateTxFunc           func(ctx context.Context, tx pgx.Tx, w *models.WithdrawalRequest) error
	GetByIDFunc            func(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	GetByIDForUpdateTxFunc func(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.WithdrawalRequest, error)
	FinalizeTxFunc         func(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.WithdrawalStatus, adminNote string, now time.Time) error
	ListByUserFunc         func(ctx context.Context, userID uuid.UUID) ([]*models.WithdrawalRequest, error)
}

func (m *mockWithdrawalStorage) CreateTx(ctx context.Context, tx pgx.Tx, w *models.WithdrawalRequest) error {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, w)
	}
	return nil
}

func (m *mockWithdrawalStorage) GetByID(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, storage.ErrWithdrawalNotFound
}

func (m *mockWithdrawalStorage) GetByIDForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.WithdrawalRequest, error) {
	if m.GetByIDForUpdateTxFunc != nil {
		return m.GetByIDForUpdateTxFunc(ctx, tx, id)
	}
	return nil, storage.ErrWithdrawalNotFound
}

func (m *mockWithdrawalStorage) FinalizeTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.WithdrawalStatus, adminNote string, now time.Time) error {
	if m.FinalizeTxFunc != nil {
		return m.FinalizeTxFunc(ctx, tx, id, status, adminNote, now)
	}
	return nil
}

func (m *mockWithdrawalStorage) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.WithdrawalRequest, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return []*models.WithdrawalRequest{}, nil
}

type mockPaymentStorage struct {
	CreateFunc              func(ctx context.Context, p *models.Payment) error
	GetByIDFunc             func(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByGatewayOrderIDFunc func(ctx context.Context, gatewayOrderID string) (*models.Payment, error)
	GetByIDForUpdateTxFunc  func(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Payment, error)
	MarkCompletedTxFunc     func(ctx context.Context, tx pgx.Tx, id uuid.UUID, gatewayPaymentID string) error
	MarkFailedTxFunc        func(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	MarkReleasedTxFunc      func(ctx context.Context, tx pgx.Tx, id uuid.UUID, note string, now time.Time) error
}

func (m *mockPaymentStorage) Create(ctx context.Context, p *models.Payment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, p)
	}
	return nil
}

func (m *mockPaymentStorage) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, storage.ErrPaymentNotFound
}

func (m *mockPaymentStorage) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error) {
	if m.GetByGatewayOrderIDFunc != nil {
		return m.GetByGatewayOrderIDFunc(ctx, gatewayOrderID)
	}
	return nil, storage.ErrPaymentNotFound
}

func (m *mockPaymentStorage) GetByIDForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Payment, error) {
	if m.GetByIDForUpdateTxFunc != nil {
		return m.GetByIDForUpdateTxFunc(ctx, tx, id)
	}
	return nil, storage.ErrPaymentNotFound
}

func (m *mockPaymentStorage) MarkCompletedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, gatewayPaymentID string) error {
	if m.MarkCompletedTxFunc != nil {
		return m.MarkCompletedTxFunc(ctx, tx, id, gatewayPaymentID)
	}
	return nil
}

func (m *mockPaymentStorage) MarkFailedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	if m.MarkFailedTxFunc != nil {
		return m.MarkFailedTxFunc(ctx, tx, id)
	}
	return nil
}

func (m *mockPaymentStorage) MarkReleasedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, note string, now time.Time) error {
	if m.MarkReleasedTxFunc != nil {
		return m.MarkReleasedTxFunc(ctx, tx, id, note, now)
	}
	return nil
}

type mockUserStorage struct {
	CreateFunc     func(ctx context.Context, user *models.User) error
	GetByLoginFunc func(ctx context.Context, login string) (*models.User, error)
	GetByIDFunc    func(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func (m *mockUserStorage) Create(ctx context.Context, user *models.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil
}

func (m *mockUserStorage) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	if m.GetByLoginFunc != nil {
		return m.GetByLoginFunc(ctx, login)
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserStorage) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, storage.ErrUserNotFound
}

type mockFileStorage struct {
	CreateFunc                func(ctx context.Context, f *models.OrderFile) error
	ListCleanupCandidatesFunc func(ctx context.Context, cutoff time.Time) ([]*models.OrderFile, error)
	DeleteFunc                func(ctx context.Context, id uuid.UUID) error
}

func (m *mockFileStorage) Create(ctx context.Context, f *models.OrderFile) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, f)
	}
	return nil
}

func (m *mockFileStorage) ListCleanupCandidates(ctx context.Context, cutoff time.Time) ([]*models.OrderFile, error) {
	if m.ListCleanupCandidatesFunc != nil {
		return m.ListCleanupCandidatesFunc(ctx, cutoff)
	}
	return []*models.OrderFile{}, nil
}

func (m *mockFileStorage) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// mockNotifier запоминает отправленные уведомления.
type mockNotifier struct {
	sent []string
	err  error
}

func (m *mockNotifier) Send(ctx context.Context, recipient uuid.UUID, template string, data map[string]string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, template)
	return nil
}

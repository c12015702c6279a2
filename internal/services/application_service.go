package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/agamariel/editmart/internal/clock"
	"github.com/agamariel/editmart/internal/config"
	"github.com/agamariel/editmart/internal/models"
	"github.com/agamariel/editmart/internal/notify"
	"github.com/agamariel/editmart/internal/storage"
	"github.com/google/uuid"
)

// ApplicationService определяет интерфейс работы с откликами исполнителей.
type ApplicationService interface {
	Apply(ctx context.Context, orderID, editorID uuid.UUID) (*models.OrderApplication, error)
	Approve(ctx context.Context, orderID, applicationID, callerID uuid.UUID, role models.Role) error
	ListForOrder(ctx context.Context, orderID, callerID uuid.UUID, role models.Role) ([]*models.OrderApplication, error)
}

// ApplicationServiceImpl реализует ApplicationService.
type ApplicationServiceImpl struct {
	beginner     TxBeginner
	appStorage   ApplicationStorage
	orderStorage OrderStorage
	notifier     notify.Notifier
	cfg          config.MarketplaceConfig
	clk          clock.Clock
	logger       *log.Logger
}

// NewApplicationService создаёт новый сервис откликов.
func NewApplicationService(beginner TxBeginner, appStorage ApplicationStorage, orderStorage OrderStorage, notifier notify.Notifier, cfg config.MarketplaceConfig, clk clock.Clock, logger *log.Logger) *ApplicationServiceImpl {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ApplicationServiceImpl{
		beginner:     beginner,
		appStorage:   appStorage,
		orderStorage: orderStorage,
		notifier:     notifier,
		cfg:          cfg,
		clk:          clk,
		logger:       logger,
	}
}

// Apply создаёт отклик исполнителя на открытый заказ.
// Сумма депозита определяется тарифом заказа, срок оплаты - 24 часа.
func (s *ApplicationServiceImpl) Apply(ctx context.Context, orderID, editorID uuid.UUID) (*models.OrderApplication, error) {
	order, err := s.orderStorage.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusOpen {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidState, order.Status)
	}

	existing, err := s.appStorage.GetByOrderAndEditor(ctx, orderID, editorID)
	if err != nil && !errors.Is(err, storage.ErrApplicationNotFound) {
		return nil, fmt.Errorf("check existing application: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyApplied
	}

	active, err := s.orderStorage.CountActiveByEditor(ctx, editorID)
	if err != nil {
		return nil, fmt.Errorf("count active jobs: %w", err)
	}
	if active >= s.cfg.ActiveJobLimit {
		return nil, ErrTooManyActiveJobs
	}

	app := &models.OrderApplication{
		OrderID:         orderID,
		EditorID:        editorID,
		Status:          models.ApplicationStatusApplied,
		DepositAmount:   s.cfg.DepositForTier(order.Tier),
		DepositDeadline: s.clk.Now().Add(s.cfg.DepositDeadline),
	}

	if err := s.appStorage.Create(ctx, app); err != nil {
		if errors.Is(err, storage.ErrApplicationExists) {
			// На случай гонки двух одинаковых откликов
			return nil, ErrAlreadyApplied
		}
		return nil, fmt.Errorf("create application: %w", err)
	}

	notify.BestEffort(ctx, s.notifier, s.logger, order.CreatorID, notify.TemplateNewApplication, map[string]string{
		"order_id":  orderID.String(),
		"editor_id": editorID.String(),
	})

	return app, nil
}

// Approve одобряет отклик: в одной транзакции помечает его APPROVED, отклоняет
// остальные APPLIED отклики заказа и назначает исполнителя.
// Блокировка строки заказа сериализует конкурирующие одобрения,
// поэтому у заказа никогда не бывает двух APPROVED откликов.
func (s *ApplicationServiceImpl) Approve(ctx context.Context, orderID, applicationID, callerID uuid.UUID, role models.Role) error {
	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := s.orderStorage.GetByIDForUpdateTx(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if role != models.RoleAdmin && order.CreatorID != callerID {
		return ErrAccessDenied
	}
	if order.Status != models.OrderStatusOpen && order.Status != models.OrderStatusApplied {
		return fmt.Errorf("%w: order is %s", ErrInvalidState, order.Status)
	}

	app, err := s.appStorage.GetByID(ctx, applicationID)
	if err != nil {
		return err
	}
	if app.OrderID != orderID {
		return storage.ErrApplicationNotFound
	}
	if app.Status != models.ApplicationStatusApplied {
		return fmt.Errorf("%w: application is %s", ErrInvalidState, app.Status)
	}

	// Лимит активных заказов перепроверяется на момент одобрения,
	// а не только на момент отклика.
	active, err := s.orderStorage.CountActiveByEditor(ctx, app.EditorID)
	if err != nil {
		return fmt.Errorf("count active jobs: %w", err)
	}
	if active >= s.cfg.ActiveJobLimit {
		return ErrTooManyActiveJobs
	}

	if err := s.appStorage.UpdateStatusTx(ctx, tx, applicationID, models.ApplicationStatusApplied, models.ApplicationStatusApproved); err != nil {
		return err
	}
	if err := s.appStorage.RejectOthersTx(ctx, tx, orderID, applicationID); err != nil {
		return err
	}
	if err := s.orderStorage.AssignEditorTx(ctx, tx, orderID, app.EditorID, true, s.clk.Now()); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	notify.BestEffort(ctx, s.notifier, s.logger, app.EditorID, notify.TemplateApplicationResult, map[string]string{
		"order_id": orderID.String(),
		"result":   string(models.ApplicationStatusApproved),
	})

	return nil
}

// ListForOrder возвращает отклики по заказу. Доступно владельцу и администратору.
func (s *ApplicationServiceImpl) ListForOrder(ctx context.Context, orderID, callerID uuid.UUID, role models.Role) ([]*models.OrderApplication, error) {
	order, err := s.orderStorage.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && order.CreatorID != callerID {
		return nil, ErrAccessDenied
	}

	return s.appStorage.ListByOrder(ctx, orderID)
}

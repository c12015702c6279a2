package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agamariel/editmart/internal/clock"
	"github.com/agamariel/editmart/internal/config"
	"github.com/agamariel/editmart/internal/models"
	"github.com/agamariel/editmart/internal/policy"
	"github.com/agamariel/editmart/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// OrderService определяет интерфейс жизненного цикла заказа.
type OrderService interface {
	Create(ctx context.Context, creatorID uuid.UUID, req models.CreateOrderRequest) (*models.Order, error)
	Get(ctx context.Context, orderID, actorID uuid.UUID, role models.Role) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, role models.Role) ([]*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, to models.OrderStatus, actorID uuid.UUID, role models.Role) (*models.Order, error)
	UpdateStatusInTx(ctx context.Context, tx pgx.Tx, order *models.Order, to models.OrderStatus, actorID uuid.UUID, role models.Role) error
	AssignEditor(ctx context.Context, orderID, editorID, callerID uuid.UUID, role models.Role) error
	RequestRevision(ctx context.Context, orderID, actorID uuid.UUID, role models.Role) error
}

// OrderServiceImpl реализует OrderService.
type OrderServiceImpl struct {
	beginner     TxBeginner
	orderStorage OrderStorage
	userStorage  UserStorage
	cfg          config.MarketplaceConfig
	clk          clock.Clock
}

// NewOrderService создаёт новый сервис заказов.
func NewOrderService(beginner TxBeginner, orderStorage OrderStorage, userStorage UserStorage, cfg config.MarketplaceConfig, clk clock.Clock) *OrderServiceImpl {
	if clk == nil {
		clk = clock.System{}
	}
	return &OrderServiceImpl{
		beginner:     beginner,
		orderStorage: orderStorage,
		userStorage:  userStorage,
		cfg:          cfg,
		clk:          clk,
	}
}

// Create создаёт новый открытый заказ.
func (s *OrderServiceImpl) Create(ctx context.Context, creatorID uuid.UUID, req models.CreateOrderRequest) (*models.Order, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	tier := models.EditingTier(req.Tier)
	switch tier {
	case models.TierBasic, models.TierProfessional, models.TierPremium:
	default:
		return nil, fmt.Errorf("%w: unknown editing tier %q", ErrValidation, req.Tier)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "INR"
	}

	order := &models.Order{
		CreatorID:     creatorID,
		Title:         title,
		Status:        models.OrderStatusOpen,
		Tier:          tier,
		Amount:        decimal.NewFromFloat(req.Amount),
		Currency:      currency,
		PaymentStatus: models.PaymentStateUnpaid,
		PayoutStatus:  models.PayoutStateNone,
	}

	if req.Deadline != "" {
		deadline, err := time.Parse(time.RFC3339, req.Deadline)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid deadline format", ErrValidation)
		}
		if deadline.Before(s.clk.Now()) {
			return nil, fmt.Errorf("%w: deadline is in the past", ErrValidation)
		}
		order.Deadline = &deadline
	}

	if err := s.orderStorage.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return order, nil
}

// Get возвращает заказ с проверкой доступа: участники и администратор видят
// заказ всегда, прочие - только пока он открыт.
func (s *OrderServiceImpl) Get(ctx context.Context, orderID, actorID uuid.UUID, role models.Role) (*models.Order, error) {
	order, err := s.orderStorage.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !s.isParticipant(order, actorID, role) && order.Status != models.OrderStatusOpen {
		return nil, ErrAccessDenied
	}

	return order, nil
}

// ListForUser возвращает заказы пользователя в зависимости от роли.
func (s *OrderServiceImpl) ListForUser(ctx context.Context, userID uuid.UUID, role models.Role) ([]*models.Order, error) {
	if role == models.RoleEditor {
		return s.orderStorage.ListByEditor(ctx, userID)
	}
	return s.orderStorage.ListByCreator(ctx, userID)
}

// UpdateStatus переводит заказ в новый статус с проверкой политики переходов.
// Переход в тот же статус - идемпотентный no-op.
func (s *OrderServiceImpl) UpdateStatus(ctx context.Context, orderID uuid.UUID, to models.OrderStatus, actorID uuid.UUID, role models.Role) (*models.Order, error) {
	order, err := s.orderStorage.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !s.isParticipant(order, actorID, role) {
		return nil, ErrAccessDenied
	}
	if order.Status == to {
		return order, nil
	}

	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.UpdateStatusInTx(ctx, tx, order, to, actorID, role); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	order.Status = to
	if to == models.OrderStatusCompleted {
		now := s.clk.Now()
		order.CompletedAt = &now
	}
	return order, nil
}

// UpdateStatusInTx выполняет переход статуса в рамках переданной транзакции.
// Guard по текущему статусу в UPDATE защищает от конкурирующего актора.
func (s *OrderServiceImpl) UpdateStatusInTx(ctx context.Context, tx pgx.Tx, order *models.Order, to models.OrderStatus, actorID uuid.UUID, role models.Role) error {
	if !s.isParticipant(order, actorID, role) {
		return ErrAccessDenied
	}
	if order.Status == to {
		return nil
	}
	if !policy.CanTransition(order.Status, to, role) {
		return fmt.Errorf("%w: %s -> %s is not allowed for role %s", ErrInvalidTransition, order.Status, to, role)
	}

	if err := s.orderStorage.UpdateStatusTx(ctx, tx, order.ID, order.Status, to, s.clk.Now()); err != nil {
		return err
	}
	return nil
}

// AssignEditor назначает исполнителя на заказ напрямую, минуя отклики.
func (s *OrderServiceImpl) AssignEditor(ctx context.Context, orderID, editorID, callerID uuid.UUID, role models.Role) error {
	order, err := s.orderStorage.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	if role != models.RoleAdmin && order.CreatorID != callerID {
		return ErrAccessDenied
	}
	if order.Status != models.OrderStatusOpen && order.Status != models.OrderStatusApplied {
		return fmt.Errorf("%w: order is %s", ErrInvalidState, order.Status)
	}

	editor, err := s.userStorage.GetByID(ctx, editorID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return storage.ErrUserNotFound
		}
		return fmt.Errorf("get editor: %w", err)
	}
	if editor.Role != models.RoleEditor {
		return ErrNotAnEditor
	}

	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.orderStorage.AssignEditorTx(ctx, tx, orderID, editorID, false, s.clk.Now()); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// RequestRevision фиксирует запрос правок: атомарно увеличивает счётчик,
// не превышая лимит, и переводит заказ в REVISION_REQUESTED.
func (s *OrderServiceImpl) RequestRevision(ctx context.Context, orderID, actorID uuid.UUID, role models.Role) error {
	order, err := s.orderStorage.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	if !s.isParticipant(order, actorID, role) {
		return ErrAccessDenied
	}
	if !policy.CanTransition(order.Status, models.OrderStatusRevisionRequested, role) {
		return fmt.Errorf("%w: %s -> %s is not allowed for role %s", ErrInvalidTransition, order.Status, models.OrderStatusRevisionRequested, role)
	}
	if order.RevisionCount >= s.cfg.RevisionLimit {
		return ErrRevisionLimitReached
	}

	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.orderStorage.IncrementRevisionTx(ctx, tx, orderID, s.cfg.RevisionLimit, s.clk.Now()); err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			// Различаем исчерпание лимита и конкурирующую смену статуса.
			current, gErr := s.orderStorage.GetByID(ctx, orderID)
			if gErr == nil && current.RevisionCount >= s.cfg.RevisionLimit {
				return ErrRevisionLimitReached
			}
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// isParticipant проверяет, имеет ли актор доступ к заказу.
func (s *OrderServiceImpl) isParticipant(order *models.Order, actorID uuid.UUID, role models.Role) bool {
	if role == models.RoleAdmin || role == models.RoleSystem {
		return true
	}
	if order.CreatorID == actorID {
		return true
	}
	if order.EditorID != nil && *order.EditorID == actorID {
		return true
	}
	return false
}

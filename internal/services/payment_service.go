package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/agamariel/editmart/internal/clock"
	"github.com/agamariel/editmart/internal/config"
	"github.com/agamariel/editmart/internal/gateway"
	"github.com/agamariel/editmart/internal/models"
	"github.com/agamariel/editmart/internal/storage"
	"github.com/google/uuid"
)

// PaymentService управляет эскроу-оплатой заказа и депозитом исполнителя.
// Проверка подписи шлюза всегда выполняется до открытия мутирующей транзакции,
// чтобы медленный внешний вызов не держал блокировку строк.
type PaymentService interface {
	InitiateEscrow(ctx context.Context, orderID, callerID uuid.UUID) (*models.Payment, error)
	ConfirmEscrow(ctx context.Context, req models.ConfirmPaymentRequest) error
	InitiateDeposit(ctx context.Context, orderID, editorID uuid.UUID) (*models.Payment, error)
	ConfirmDeposit(ctx context.Context, req models.ConfirmPaymentRequest) error
}

// PaymentServiceImpl реализует PaymentService.
type PaymentServiceImpl struct {
	beginner       TxBeginner
	paymentStorage PaymentStorage
	orderStorage   OrderStorage
	appStorage     ApplicationStorage
	walletStorage  WalletStorage
	txStorage      TransactionStorage
	client         gateway.Client
	cfg            config.MarketplaceConfig
	clk            clock.Clock
	logger         *log.Logger
}

// NewPaymentService создаёт сервис платежей.
func NewPaymentService(beginner TxBeginner, paymentStorage PaymentStorage, orderStorage OrderStorage, appStorage ApplicationStorage, walletStorage WalletStorage, txStorage TransactionStorage, client gateway.Client, cfg config.MarketplaceConfig, clk clock.Clock, logger *log.Logger) *PaymentServiceImpl {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &PaymentServiceImpl{
		beginner:       beginner,
		paymentStorage: paymentStorage,
		orderStorage:   orderStorage,
		appStorage:     appStorage,
		walletStorage:  walletStorage,
		txStorage:      txStorage,
		client:         client,
		cfg:            cfg,
		clk:            clk,
		logger:         logger,
	}
}

// InitiateEscrow регистрирует эскроу-заказ в шлюзе и создаёт PENDING запись.
func (s *PaymentServiceImpl) InitiateEscrow(ctx context.Context, orderID, callerID uuid.UUID) (*models.Payment, error) {
	order, err := s.orderStorage.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CreatorID != callerID {
		return nil, ErrAccessDenied
	}
	if order.PaymentStatus == models.PaymentStatePaid {
		return nil, fmt.Errorf("%w: order already paid", ErrInvalidState)
	}

	gatewayOrderID, err := s.client.CreateEscrowOrder(ctx, order.Amount, order.Currency, map[string]string{
		"order_id": orderID.String(),
		"purpose":  string(models.PaymentPurposeEscrow),
	})
	if err != nil {
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	payment := &models.Payment{
		OrderID:        orderID,
		UserID:         callerID,
		Purpose:        models.PaymentPurposeEscrow,
		Amount:         order.Amount,
		Currency:       order.Currency,
		Status:         models.PaymentStatusPending,
		GatewayOrderID: gatewayOrderID,
	}
	if err := s.paymentStorage.Create(ctx, payment); err != nil {
		return nil, err
	}

	if err := s.orderStorage.SetPaymentState(ctx, orderID, models.PaymentStatePending); err != nil {
		s.logger.Printf("failed to mark order %s payment pending: %v", orderID, err)
	}

	return payment, nil
}

// verifyCallback аутентифицирует колбэк шлюза. Обычный путь - локальная
// проверка HMAC-подписи; колбэк без подписи (ручной повтор доставки)
// сверяется с фактическим статусом платежа на стороне шлюза.
func (s *PaymentServiceImpl) verifyCallback(ctx context.Context, req models.ConfirmPaymentRequest) error {
	if req.Signature != "" {
		if !s.client.VerifySignature(req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
			return ErrInvalidSignature
		}
		return nil
	}

	status, err := s.client.FetchPaymentStatus(ctx, req.GatewayPaymentID)
	if err != nil {
		return fmt.Errorf("fetch payment status: %w", err)
	}
	if status != gateway.StatusCaptured {
		return fmt.Errorf("%w: gateway reports %s", ErrInvalidSignature, status)
	}
	return nil
}

// ConfirmEscrow подтверждает оплату эскроу после колбэка шлюза.
func (s *PaymentServiceImpl) ConfirmEscrow(ctx context.Context, req models.ConfirmPaymentRequest) error {
	payment, err := s.paymentStorage.GetByGatewayOrderID(ctx, req.GatewayOrderID)
	if err != nil {
		return err
	}
	if payment.Purpose != models.PaymentPurposeEscrow {
		return fmt.Errorf("%w: not an escrow payment", ErrInvalidState)
	}

	// Аутентификация колбэка до открытия транзакции: verify-then-commit.
	if err := s.verifyCallback(ctx, req); err != nil {
		return err
	}

	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.paymentStorage.MarkCompletedTx(ctx, tx, payment.ID, req.GatewayPaymentID); err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			return ErrAlreadyProcessed
		}
		return err
	}
	if err := s.orderStorage.SetPaymentStateTx(ctx, tx, payment.OrderID, models.PaymentStatePaid); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// InitiateDeposit регистрирует оплату депозита исполнителя в шлюзе.
// Сумма берётся из одобренного отклика.
func (s *PaymentServiceImpl) InitiateDeposit(ctx context.Context, orderID, editorID uuid.UUID) (*models.Payment, error) {
	order, err := s.orderStorage.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.EditorID == nil || *order.EditorID != editorID {
		return nil, ErrAccessDenied
	}
	if !order.EditorDepositRequired {
		return nil, fmt.Errorf("%w: deposit is not required", ErrInvalidState)
	}
	if order.EditorDepositStatus != nil && *order.EditorDepositStatus == models.DepositStatusPaid {
		return nil, fmt.Errorf("%w: deposit already paid", ErrInvalidState)
	}

	amount := s.cfg.DepositForTier(order.Tier)
	if app, err := s.appStorage.GetByOrderAndEditor(ctx, orderID, editorID); err == nil {
		amount = app.DepositAmount
	}

	gatewayOrderID, err := s.client.CreateEscrowOrder(ctx, amount, order.Currency, map[string]string{
		"order_id": orderID.String(),
		"purpose":  string(models.PaymentPurposeDeposit),
	})
	if err != nil {
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	payment := &models.Payment{
		OrderID:        orderID,
		UserID:         editorID,
		Purpose:        models.PaymentPurposeDeposit,
		Amount:         amount,
		Currency:       order.Currency,
		Status:         models.PaymentStatusPending,
		GatewayOrderID: gatewayOrderID,
	}
	if err := s.paymentStorage.Create(ctx, payment); err != nil {
		return nil, err
	}

	return payment, nil
}

// ConfirmDeposit подтверждает оплату депозита: запись переводится в COMPLETED,
// сумма зачисляется в кошелёк исполнителя и сразу блокируется, заказ помечается
// оплаченным депозитом - всё одной транзакцией.
func (s *PaymentServiceImpl) ConfirmDeposit(ctx context.Context, req models.ConfirmPaymentRequest) error {
	payment, err := s.paymentStorage.GetByGatewayOrderID(ctx, req.GatewayOrderID)
	if err != nil {
		return err
	}
	if payment.Purpose != models.PaymentPurposeDeposit {
		return fmt.Errorf("%w: not a deposit payment", ErrInvalidState)
	}

	if err := s.verifyCallback(ctx, req); err != nil {
		return err
	}

	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.paymentStorage.MarkCompletedTx(ctx, tx, payment.ID, req.GatewayPaymentID); err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			return ErrAlreadyProcessed
		}
		return err
	}

	// Захваченные шлюзом средства появляются в кошельке уже заблокированными.
	if err := s.walletStorage.CreditTx(ctx, tx, payment.UserID, payment.Amount); err != nil {
		return err
	}
	if err := s.walletStorage.LockTx(ctx, tx, payment.UserID, payment.Amount); err != nil {
		return err
	}
	if err := s.txStorage.CreateTx(ctx, tx, &models.WalletTransaction{
		UserID:  payment.UserID,
		OrderID: &payment.OrderID,
		Type:    models.TransactionTypeDepositLock,
		Amount:  payment.Amount,
	}); err != nil {
		return err
	}

	if err := s.orderStorage.SetDepositStatusTx(ctx, tx, payment.OrderID, models.DepositStatusPaid); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

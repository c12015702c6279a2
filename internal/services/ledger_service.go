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
	"github.com/agamariel/editmart/internal/utils"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// LedgerService определяет финансовые примитивы маркетплейса.
// Каждая операция атомарна: движение средств и запись в журнал
// фиксируются одной транзакцией.
type LedgerService interface {
	LockDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, orderID *uuid.UUID) error
	ReleaseDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, orderID *uuid.UUID) error
	SlashDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, orderID *uuid.UUID) error
	CreditBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, orderID *uuid.UUID, txType models.TransactionType) error
	SlashDepositTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, orderID *uuid.UUID) error
	CreditBalanceTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, orderID *uuid.UUID, txType models.TransactionType) error
	RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, method, details string) (*models.WithdrawalRequest, error)
	ProcessWithdrawal(ctx context.Context, requestID uuid.UUID, approve bool, adminNote string) error
	ReleasePayment(ctx context.Context, paymentID uuid.UUID, note string) (decimal.Decimal, error)
	Balance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Transactions(ctx context.Context, userID uuid.UUID) ([]*models.WalletTransaction, error)
	Withdrawals(ctx context.Context, userID uuid.UUID) ([]*models.WithdrawalRequest, error)
}

// LedgerServiceImpl реализует LedgerService.
type LedgerServiceImpl struct {
	beginner          TxBeginner
	walletStorage     WalletStorage
	txStorage         TransactionStorage
	withdrawalStorage WithdrawalStorage
	paymentStorage    PaymentStorage
	orderStorage      OrderStorage
	notifier          notify.Notifier
	cfg               config.MarketplaceConfig
	clk               clock.Clock
	logger            *log.Logger
}

// NewLedgerService создаёт сервис леджера.
func NewLedgerService(beginner TxBeginner, walletStorage WalletStorage, txStorage TransactionStorage, withdrawalStorage WithdrawalStorage, paymentStorage PaymentStorage, orderStorage OrderStorage, notifier notify.Notifier, cfg config.MarketplaceConfig, clk clock.Clock, logger *log.Logger) *LedgerServiceImpl {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &LedgerServiceImpl{
		beginner:          beginner,
		walletStorage:     walletStorage,
		txStorage:         txStorage,
		withdrawalStorage: withdrawalStorage,
		paymentStorage:    paymentStorage,
		orderStorage:      orderStorage,
		notifier:          notifier,
		cfg:               cfg,
		clk:               clk,
		logger:            logger,
	}
}

// LockDeposit блокирует amount в кошельке пользователя: balance -= amount, locked += amount.
func (s *LedgerServiceImpl) LockDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, orderID *uuid.UUID) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.walletStorage.LockTx(ctx, tx, userID, amount); err != nil {
			return err
		}
		return s.record(ctx, tx, userID, orderID, models.TransactionTypeDepositLock, amount)
	})
}

// ReleaseDeposit возвращает amount из locked в balance.
func (s *LedgerServiceImpl) ReleaseDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, orderID *uuid.UUID) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.walletStorage.ReleaseTx(ctx, tx, userID, amount); err != nil {
			return err
		}
		return s.record(ctx, tx, userID, orderID, models.TransactionTypeDepositRelease, amount)
	})
}

// SlashDeposit безвозвратно списывает amount из locked.
func (s *LedgerServiceImpl) SlashDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, orderID *uuid.UUID) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return s.SlashDepositTx(ctx, tx, userID, amount, orderID)
	})
}

// SlashDepositTx выполняет слэш в рамках переданной транзакции.
func (s *LedgerServiceImpl) SlashDepositTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, orderID *uuid.UUID) error {
	if err := s.walletStorage.SlashTx(ctx, tx, userID, amount); err != nil {
		return err
	}
	return s.record(ctx, tx, userID, orderID, models.TransactionTypeDepositSlash, amount)
}

// CreditBalance зачисляет amount на баланс пользователя.
func (s *LedgerServiceImpl) CreditBalance(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, orderID *uuid.UUID, txType models.TransactionType) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return s.CreditBalanceTx(ctx, tx, userID, amount, orderID, txType)
	})
}

// CreditBalanceTx выполняет зачисление в рамках переданной транзакции.
func (s *LedgerServiceImpl) CreditBalanceTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, orderID *uuid.UUID, txType models.TransactionType) error {
	if err := s.walletStorage.CreditTx(ctx, tx, userID, amount); err != nil {
		return err
	}
	return s.record(ctx, tx, userID, orderID, txType, amount)
}

// RequestWithdrawal создаёт заявку на вывод, атомарно блокируя сумму в кошельке.
func (s *LedgerServiceImpl) RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, method, details string) (*models.WithdrawalRequest, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if method == "" {
		return nil, fmt.Errorf("%w: payment method is required", ErrValidation)
	}
	if method == "card" && !utils.ValidateLuhn(details) {
		return nil, fmt.Errorf("%w: invalid card number", ErrValidation)
	}

	request := &models.WithdrawalRequest{
		UserID:         userID,
		Amount:         amount,
		PaymentMethod:  method,
		PaymentDetails: details,
		Status:         models.WithdrawalStatusPending,
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.walletStorage.LockTx(ctx, tx, userID, amount); err != nil {
			return err
		}
		if err := s.withdrawalStorage.CreateTx(ctx, tx, request); err != nil {
			return err
		}
		return s.record(ctx, tx, userID, nil, models.TransactionTypeWithdrawalHold, amount)
	})
	if err != nil {
		return nil, err
	}

	return request, nil
}

// ProcessWithdrawal завершает заявку решением администратора.
// PROCESSED: средства покидают систему. REJECTED: полный возврат блокировки.
func (s *LedgerServiceImpl) ProcessWithdrawal(ctx context.Context, requestID uuid.UUID, approve bool, adminNote string) error {
	var userID uuid.UUID

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		request, err := s.withdrawalStorage.GetByIDForUpdateTx(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if request.Status != models.WithdrawalStatusPending {
			return ErrAlreadyProcessed
		}
		userID = request.UserID

		status := models.WithdrawalStatusRejected
		if approve {
			status = models.WithdrawalStatusProcessed
		}
		if err := s.withdrawalStorage.FinalizeTx(ctx, tx, requestID, status, adminNote, s.clk.Now()); err != nil {
			if errors.Is(err, storage.ErrStatusConflict) {
				return ErrAlreadyProcessed
			}
			return err
		}

		if approve {
			if err := s.walletStorage.SlashTx(ctx, tx, request.UserID, request.Amount); err != nil {
				return err
			}
			return s.record(ctx, tx, request.UserID, nil, models.TransactionTypeWithdrawal, request.Amount)
		}

		if err := s.walletStorage.ReleaseTx(ctx, tx, request.UserID, request.Amount); err != nil {
			return err
		}
		return s.record(ctx, tx, request.UserID, nil, models.TransactionTypeRefund, request.Amount)
	})
	if err != nil {
		return err
	}

	notify.BestEffort(ctx, s.notifier, s.logger, userID, notify.TemplateWithdrawalResult, map[string]string{
		"request_id": requestID.String(),
		"approved":   fmt.Sprintf("%t", approve),
	})

	return nil
}

// ReleasePayment выпускает COMPLETED эскроу-платёж: удерживает комиссию площадки
// и в той же транзакции зачисляет остаток исполнителю заказа.
// Возвращает зачисленную исполнителю сумму.
func (s *LedgerServiceImpl) ReleasePayment(ctx context.Context, paymentID uuid.UUID, note string) (decimal.Decimal, error) {
	var net decimal.Decimal

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		payment, err := s.paymentStorage.GetByIDForUpdateTx(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentStatusCompleted {
			return fmt.Errorf("%w: payment is %s", ErrInvalidState, payment.Status)
		}
		if payment.ReleasedAt != nil {
			return ErrAlreadyReleased
		}

		order, err := s.orderStorage.GetByID(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		if order.EditorID == nil {
			return fmt.Errorf("%w: order has no assigned editor", ErrInvalidState)
		}

		fee := payment.Amount.Mul(decimal.NewFromInt(s.cfg.PlatformFeePercent)).Div(decimal.NewFromInt(100))
		net = payment.Amount.Sub(fee)

		if err := s.paymentStorage.MarkReleasedTx(ctx, tx, paymentID, note, s.clk.Now()); err != nil {
			if errors.Is(err, storage.ErrStatusConflict) {
				return ErrAlreadyReleased
			}
			return err
		}
		if err := s.CreditBalanceTx(ctx, tx, *order.EditorID, net, &payment.OrderID, models.TransactionTypePaymentRelease); err != nil {
			return err
		}
		return s.orderStorage.SetPayoutStateTx(ctx, tx, order.ID, models.PayoutStateReleased)
	})
	if err != nil {
		return decimal.Zero, err
	}

	return net, nil
}

// Balance возвращает кошелёк пользователя, создавая его при первом обращении.
func (s *LedgerServiceImpl) Balance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.walletStorage.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrWalletNotFound) {
			if err := s.walletStorage.Ensure(ctx, userID); err != nil {
				return nil, err
			}
			return s.walletStorage.GetByUserID(ctx, userID)
		}
		return nil, err
	}
	return wallet, nil
}

// Transactions возвращает историю операций пользователя.
func (s *LedgerServiceImpl) Transactions(ctx context.Context, userID uuid.UUID) ([]*models.WalletTransaction, error) {
	return s.txStorage.ListByUser(ctx, userID)
}

// Withdrawals возвращает заявки пользователя на вывод.
func (s *LedgerServiceImpl) Withdrawals(ctx context.Context, userID uuid.UUID) ([]*models.WithdrawalRequest, error) {
	return s.withdrawalStorage.ListByUser(ctx, userID)
}

// inTx выполняет fn в транзакции с откатом при ошибке.
func (s *LedgerServiceImpl) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// record добавляет запись в журнал операций.
func (s *LedgerServiceImpl) record(ctx context.Context, tx pgx.Tx, userID uuid.UUID, orderID *uuid.UUID, txType models.TransactionType, amount decimal.Decimal) error {
	return s.txStorage.CreateTx(ctx, tx, &models.WalletTransaction{
		UserID:  userID,
		OrderID: orderID,
		Type:    txType,
		Amount:  amount,
	})
}

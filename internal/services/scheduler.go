package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/agamariel/editmart/internal/clock"
	"github.com/agamariel/editmart/internal/config"
	"github.com/agamariel/editmart/internal/models"
	"github.com/agamariel/editmart/internal/notify"
	"github.com/agamariel/editmart/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// OrderLifecycle - часть OrderService, нужная планировщику для переходов
// от имени системы.
type OrderLifecycle interface {
	UpdateStatusInTx(ctx context.Context, tx pgx.Tx, order *models.Order, to models.OrderStatus, actorID uuid.UUID, role models.Role) error
}

// Ledger - часть LedgerService, нужная планировщику внутри его транзакций.
type Ledger interface {
	CreditBalanceTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, orderID *uuid.UUID, txType models.TransactionType) error
	SlashDepositTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, orderID *uuid.UUID) error
}

// Scheduler - планировщик сверки. Периодически находит зависшие заказы и
// отклики и исправляет их от имени системы через те же сервисные точки входа,
// что и обычные обработчики запросов.
//
// Каждая задача перепроверяет своё условие в той же транзакции, что и мутация,
// поэтому повторные запуски идемпотентны. Планировщик рассчитан на один
// активный экземпляр на инсталляцию.
type Scheduler struct {
	beginner     TxBeginner
	orderStorage OrderStorage
	appStorage   ApplicationStorage
	fileStorage  FileStorage
	lifecycle    OrderLifecycle
	ledger       Ledger
	blobs        BlobRemover
	notifier     notify.Notifier
	cfg          config.MarketplaceConfig
	clk          clock.Clock
	logger       *log.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler создаёт планировщик сверки.
func NewScheduler(beginner TxBeginner, orderStorage OrderStorage, appStorage ApplicationStorage, fileStorage FileStorage, lifecycle OrderLifecycle, ledger Ledger, blobs BlobRemover, notifier notify.Notifier, cfg config.MarketplaceConfig, clk clock.Clock, logger *log.Logger) *Scheduler {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		beginner:     beginner,
		orderStorage: orderStorage,
		appStorage:   appStorage,
		fileStorage:  fileStorage,
		lifecycle:    lifecycle,
		ledger:       ledger,
		blobs:        blobs,
		notifier:     notifier,
		cfg:          cfg,
		clk:          clk,
		logger:       logger,
	}
}

// StartAll запускает три независимых цикла: часовой полный обход,
// шестичасовую чистку файлов и двенадцатичасовые напоминания о неактивности.
func (s *Scheduler) StartAll(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.runLoop(ctx, s.cfg.SweepInterval, "sweep", s.RunSweep)
	s.runLoop(ctx, s.cfg.CleanupInterval, "cleanup", s.RunFileCleanup)
	s.runLoop(ctx, s.cfg.InactivityInterval, "inactivity", s.RunInactivityNotices)
}

// StopAll останавливает все циклы и дожидается их завершения.
func (s *Scheduler) StopAll() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, interval time.Duration, name string, job func(ctx context.Context) error) {
	s.wg.Add(1)
	ticker := time.NewTicker(interval)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := job(ctx); err != nil {
					s.logger.Printf("scheduler %s error: %v", name, err)
				}
			}
		}
	}()
}

// RunAll выполняет все задачи сверки один раз. Используется тестами и
// ручным запуском из административного API.
func (s *Scheduler) RunAll(ctx context.Context) error {
	var errs []error
	if err := s.RunSweep(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.RunFileCleanup(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.RunInactivityNotices(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RunSweep выполняет часовой полный обход: депозиты, неназначенные заказы,
// неначатая работа, просроченные дедлайны, пропавшие исполнители.
func (s *Scheduler) RunSweep(ctx context.Context) error {
	var errs []error
	if err := s.runDepositTimeouts(ctx); err != nil {
		errs = append(errs, fmt.Errorf("deposit timeouts: %w", err))
	}
	if err := s.runUnassignedTimeouts(ctx); err != nil {
		errs = append(errs, fmt.Errorf("unassigned timeouts: %w", err))
	}
	if err := s.runNotStartedTimeouts(ctx); err != nil {
		errs = append(errs, fmt.Errorf("not-started timeouts: %w", err))
	}
	if err := s.runDeadlinePassed(ctx); err != nil {
		errs = append(errs, fmt.Errorf("deadline passed: %w", err))
	}
	if err := s.runGhostEditors(ctx); err != nil {
		errs = append(errs, fmt.Errorf("ghost editors: %w", err))
	}
	return errors.Join(errs...)
}

// runDepositTimeouts отклоняет APPLIED отклики с истёкшим сроком оплаты депозита.
// Если у заказа не осталось откликов, он возвращается в OPEN.
func (s *Scheduler) runDepositTimeouts(ctx context.Context) error {
	now := s.clk.Now()
	apps, err := s.appStorage.ListExpiredApplied(ctx, now)
	if err != nil {
		return err
	}

	for _, app := range apps {
		if err := s.expireApplication(ctx, app); err != nil {
			if errors.Is(err, storage.ErrStatusConflict) {
				continue
			}
			s.logger.Printf("expire application %s error: %v", app.ID, err)
			continue
		}

		notify.BestEffort(ctx, s.notifier, s.logger, app.EditorID, notify.TemplateDepositExpired, map[string]string{
			"order_id": app.OrderID.String(),
		})
	}
	return nil
}

func (s *Scheduler) expireApplication(ctx context.Context, app *models.OrderApplication) error {
	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Повторная проверка статуса внутри транзакции: guard в UPDATE.
	if err := s.appStorage.UpdateStatusTx(ctx, tx, app.ID, models.ApplicationStatusApplied, models.ApplicationStatusRejected); err != nil {
		return err
	}

	remaining, err := s.appStorage.CountAppliedTx(ctx, tx, app.OrderID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		if err := s.orderStorage.RevertToOpenTx(ctx, tx, app.OrderID); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// runUnassignedTimeouts отменяет открытые заказы, висящие без назначения 72 часа.
func (s *Scheduler) runUnassignedTimeouts(ctx context.Context) error {
	cutoff := s.clk.Now().Add(-s.cfg.UnassignedTimeout)
	orders, err := s.orderStorage.ListOpenCreatedBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, order := range orders {
		err := s.cancelOrder(ctx, order, func(pgx.Tx) error { return nil })
		if err != nil {
			if errors.Is(err, storage.ErrStatusConflict) {
				continue
			}
			s.logger.Printf("cancel unassigned order %s error: %v", order.ID, err)
			continue
		}

		notify.BestEffort(ctx, s.notifier, s.logger, order.CreatorID, notify.TemplateOrderCancelled, map[string]string{
			"order_id": order.ID.String(),
			"reason":   "no editor assigned in time",
		})
	}
	return nil
}

// runNotStartedTimeouts отменяет назначенные заказы, по которым работа
// не началась за 24 часа: заказчику возвращается полная сумма,
// оплаченный депозит исполнителя слэшится.
func (s *Scheduler) runNotStartedTimeouts(ctx context.Context) error {
	cutoff := s.clk.Now().Add(-s.cfg.NotStartedTimeout)
	orders, err := s.orderStorage.ListAssignedBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, order := range orders {
		order := order
		err := s.cancelOrder(ctx, order, func(tx pgx.Tx) error {
			if err := s.ledger.CreditBalanceTx(ctx, tx, order.CreatorID, order.Amount, &order.ID, models.TransactionTypeRefund); err != nil {
				return err
			}
			return s.slashPaidDeposit(ctx, tx, order)
		})
		if err != nil {
			if errors.Is(err, storage.ErrStatusConflict) {
				continue
			}
			s.logger.Printf("cancel not-started order %s error: %v", order.ID, err)
			continue
		}

		if order.EditorID != nil {
			notify.BestEffort(ctx, s.notifier, s.logger, *order.EditorID, notify.TemplateOrderCancelled, map[string]string{
				"order_id": order.ID.String(),
				"reason":   "work was not started in time",
			})
		}
	}
	return nil
}

// runDeadlinePassed отменяет заказы в работе с истёкшим дедлайном.
// Средства не двигаются: спорная оплата остаётся за эскроу-записью
// до ручного разбора.
func (s *Scheduler) runDeadlinePassed(ctx context.Context) error {
	orders, err := s.orderStorage.ListDeadlinePassed(ctx, s.clk.Now())
	if err != nil {
		return err
	}

	for _, order := range orders {
		err := s.cancelOrder(ctx, order, func(pgx.Tx) error { return nil })
		if err != nil {
			if errors.Is(err, storage.ErrStatusConflict) {
				continue
			}
			s.logger.Printf("cancel overdue order %s error: %v", order.ID, err)
			continue
		}

		data := map[string]string{
			"order_id": order.ID.String(),
			"reason":   "deadline passed",
		}
		notify.BestEffort(ctx, s.notifier, s.logger, order.CreatorID, notify.TemplateDeadlinePassed, data)
		if order.EditorID != nil {
			notify.BestEffort(ctx, s.notifier, s.logger, *order.EditorID, notify.TemplateDeadlinePassed, data)
		}
	}
	return nil
}

// runGhostEditors отменяет назначенные заказы без активности исполнителя
// 7 дней: заказчику возвращается половина суммы, депозит слэшится.
func (s *Scheduler) runGhostEditors(ctx context.Context) error {
	cutoff := s.clk.Now().Add(-s.cfg.GhostEditorTimeout)
	orders, err := s.orderStorage.ListInactiveSince(ctx, []models.OrderStatus{models.OrderStatusAssigned}, cutoff)
	if err != nil {
		return err
	}

	for _, order := range orders {
		order := order
		refund := order.Amount.Mul(decimal.NewFromInt(s.cfg.GhostRefundPercent)).Div(decimal.NewFromInt(100))
		err := s.cancelOrder(ctx, order, func(tx pgx.Tx) error {
			if err := s.ledger.CreditBalanceTx(ctx, tx, order.CreatorID, refund, &order.ID, models.TransactionTypeRefund); err != nil {
				return err
			}
			return s.slashPaidDeposit(ctx, tx, order)
		})
		if err != nil {
			if errors.Is(err, storage.ErrStatusConflict) {
				continue
			}
			s.logger.Printf("cancel ghost-editor order %s error: %v", order.ID, err)
		}
	}
	return nil
}

// RunInactivityNotices напоминает сторонам о заказах без активности два дня.
// Только уведомления, состояние не меняется.
func (s *Scheduler) RunInactivityNotices(ctx context.Context) error {
	cutoff := s.clk.Now().Add(-s.cfg.CommunicationGap)
	statuses := []models.OrderStatus{models.OrderStatusInProgress, models.OrderStatusAssigned}
	orders, err := s.orderStorage.ListInactiveSince(ctx, statuses, cutoff)
	if err != nil {
		return err
	}

	for _, order := range orders {
		data := map[string]string{
			"order_id": order.ID.String(),
		}
		notify.BestEffort(ctx, s.notifier, s.logger, order.CreatorID, notify.TemplateInactivityWarning, data)
		if order.EditorID != nil {
			notify.BestEffort(ctx, s.notifier, s.logger, *order.EditorID, notify.TemplateInactivityWarning, data)
		}
	}
	return nil
}

// RunFileCleanup удаляет записи о файлах отменённых заказов и устаревших
// превью старше срока хранения. Удаление содержимого во внешнем хранилище -
// best-effort вызов коллаборатора.
func (s *Scheduler) RunFileCleanup(ctx context.Context) error {
	cutoff := s.clk.Now().Add(-s.cfg.FileRetention)
	files, err := s.fileStorage.ListCleanupCandidates(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, f := range files {
		if s.blobs != nil {
			if err := s.blobs.Remove(ctx, f.StorageKey); err != nil {
				s.logger.Printf("remove blob %s error: %v", f.StorageKey, err)
			}
		}
		if err := s.fileStorage.Delete(ctx, f.ID); err != nil {
			s.logger.Printf("delete file record %s error: %v", f.ID, err)
		}
	}
	return nil
}

// cancelOrder отменяет заказ от имени системы и выполняет сопутствующие
// финансовые действия в той же транзакции.
func (s *Scheduler) cancelOrder(ctx context.Context, order *models.Order, sideEffects func(tx pgx.Tx) error) error {
	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.lifecycle.UpdateStatusInTx(ctx, tx, order, models.OrderStatusCancelled, uuid.Nil, models.RoleSystem); err != nil {
		return err
	}
	if err := sideEffects(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// slashPaidDeposit слэшит фиксированную сумму депозита, если депозит
// по заказу был оплачен.
func (s *Scheduler) slashPaidDeposit(ctx context.Context, tx pgx.Tx, order *models.Order) error {
	if order.EditorID == nil || !order.EditorDepositRequired {
		return nil
	}
	if order.EditorDepositStatus == nil || *order.EditorDepositStatus != models.DepositStatusPaid {
		return nil
	}
	return s.ledger.SlashDepositTx(ctx, tx, *order.EditorID, s.cfg.DepositSlashAmount, &order.ID)
}

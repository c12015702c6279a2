package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agamariel/editmart/internal/config"
	"github.com/agamariel/editmart/internal/gateway"
	"github.com/agamariel/editmart/internal/models"
	"github.com/agamariel/editmart/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// mockGateway подменяет платёжный шлюз.
type mockGateway struct {
	CreateEscrowOrderFunc  func(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (string, error)
	VerifySignatureFunc    func(gatewayOrderID, gatewayPaymentID, signature string) bool
	FetchPaymentStatusFunc func(ctx context.Context, gatewayPaymentID string) (gateway.PaymentStatus, error)
}

func (m *mockGateway) CreateEscrowOrder(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (string, error) {
	if m.CreateEscrowOrderFunc != nil {
		return m.CreateEscrowOrderFunc(ctx, amount, currency, metadata)
	}
	return "gw_order_1", nil
}

func (m *mockGateway) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	if m.VerifySignatureFunc != nil {
		return m.VerifySignatureFunc(gatewayOrderID, gatewayPaymentID, signature)
	}
	return true
}

func (m *mockGateway) FetchPaymentStatus(ctx context.Context, gatewayPaymentID string) (gateway.PaymentStatus, error) {
	if m.FetchPaymentStatusFunc != nil {
		return m.FetchPaymentStatusFunc(ctx, gatewayPaymentID)
	}
	return gateway.StatusCaptured, nil
}

func newPaymentService(payments PaymentStorage, orders OrderStorage, apps ApplicationStorage, wallets WalletStorage, txs TransactionStorage, gw gateway.Client) (*PaymentServiceImpl, *fakeBeginner) {
	beginner := newFakeBeginner()
	if payments == nil {
		payments = &mockPaymentStorage{}
	}
	if orders == nil {
		orders = &mockOrderStorage{}
	}
	if apps == nil {
		apps = &mockApplicationStorage{}
	}
	if wallets == nil {
		wallets = &mockWalletStorage{}
	}
	if txs == nil {
		txs = &mockTransactionStorage{}
	}
	if gw == nil {
		gw = &mockGateway{}
	}
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewPaymentService(beginner, payments, orders, apps, wallets, txs, gw, config.DefaultMarketplace(), clk, nil), beginner
}

func TestPaymentService_InitiateEscrow(t *testing.T) {
	ctx := context.Background()
	creatorID := uuid.New()
	orderID := uuid.New()

	unpaidOrder := &mockOrderStorage{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return &models.Order{
				ID:            orderID,
				CreatorID:     creatorID,
				Status:        models.OrderStatusOpen,
				Amount:        decimal.NewFromInt(5000),
				Currency:      "INR",
				PaymentStatus: models.PaymentStateUnpaid,
			}, nil
		},
	}

	t.Run("creates pending escrow payment", func(t *testing.T) {
		var created *models.Payment
		payments := &mockPaymentStorage{
			CreateFunc: func(ctx context.Context, p *models.Payment) error {
				created = p
				return nil
			},
		}
		svc, _ := newPaymentService(payments, unpaidOrder, nil, nil, nil, nil)

		payment, err := svc.InitiateEscrow(ctx, orderID, creatorID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if created == nil {
			t.Fatal("payment not persisted")
		}
		if payment.Status != models.PaymentStatusPending || payment.Purpose != models.PaymentPurposeEscrow {
			t.Errorf("status=%s purpose=%s", payment.Status, payment.Purpose)
		}
		if payment.GatewayOrderID != "gw_order_1" {
			t.Errorf("gateway order id = %s", payment.GatewayOrderID)
		}
	})

	t.Run("only the creator may pay", func(t *testing.T) {
		svc, _ := newPaymentService(nil, unpaidOrder, nil, nil, nil, nil)
		if _, err := svc.InitiateEscrow(ctx, orderID, uuid.New()); !errors.Is(err, ErrAccessDenied) {
			t.Fatalf("expected ErrAccessDenied, got %v", err)
		}
	})

	t.Run("already paid", func(t *testing.T) {
		paidOrder := &mockOrderStorage{
			GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
				return &models.Order{ID: orderID, CreatorID: creatorID, PaymentStatus: models.PaymentStatePaid}, nil
			},
		}
		svc, _ := newPaymentService(nil, paidOrder, nil, nil, nil, nil)
		if _, err := svc.InitiateEscrow(ctx, orderID, creatorID); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}
	})

	t.Run("gateway failure leaves no record", func(t *testing.T) {
		created := false
		payments := &mockPaymentStorage{
			CreateFunc: func(ctx context.Context, p *models.Payment) error {
				created = true
				return nil
			},
		}
		gw := &mockGateway{
			CreateEscrowOrderFunc: func(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (string, error) {
				return "", errors.New("gateway unavailable")
			},
		}
		svc, _ := newPaymentService(payments, unpaidOrder, nil, nil, nil, gw)
		if _, err := svc.InitiateEscrow(ctx, orderID, creatorID); err == nil {
			t.Fatal("expected error")
		}
		if created {
			t.Error("no payment record may exist without a gateway order")
		}
	})
}

func TestPaymentService_ConfirmEscrow(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()
	paymentID := uuid.New()

	req := models.ConfirmPaymentRequest{
		GatewayOrderID:   "gw_order_1",
		GatewayPaymentID: "gw_pay_1",
		Signature:        "sig",
	}

	escrowPayment := func() *mockPaymentStorage {
		return &mockPaymentStorage{
			GetByGatewayOrderIDFunc: func(ctx context.Context, gwID string) (*models.Payment, error) {
				return &models.Payment{ID: paymentID, OrderID: orderID, Purpose: models.PaymentPurposeEscrow, Status: models.PaymentStatusPending}, nil
			},
		}
	}

	t.Run("marks payment completed and order paid", func(t *testing.T) {
		completed := false
		payments := escrowPayment()
		payments.MarkCompletedTxFunc = func(ctx context.Context, tx pgx.Tx, id uuid.UUID, gwPaymentID string) error {
			completed = true
			return nil
		}
		statePaid := false
		orders := &mockOrderStorage{
			SetPaymentStateTxFunc: func(ctx context.Context, tx pgx.Tx, id uuid.UUID, state models.PaymentState) error {
				statePaid = state == models.PaymentStatePaid
				return nil
			},
		}
		svc, beginner := newPaymentService(payments, orders, nil, nil, nil, nil)

		if err := svc.ConfirmEscrow(ctx, req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !completed || !statePaid {
			t.Fatalf("completed=%v statePaid=%v", completed, statePaid)
		}
		if !beginner.tx.committed {
			t.Error("transaction not committed")
		}
	})

	t.Run("invalid signature rejected before any mutation", func(t *testing.T) {
		gw := &mockGateway{
			VerifySignatureFunc: func(gwOrderID, gwPaymentID, signature string) bool { return false },
		}
		payments := escrowPayment()
		payments.MarkCompletedTxFunc = func(ctx context.Context, tx pgx.Tx, id uuid.UUID, gwPaymentID string) error {
			t.Fatal("must not mutate on bad signature")
			return nil
		}
		svc, _ := newPaymentService(payments, nil, nil, nil, nil, gw)
		if err := svc.ConfirmEscrow(ctx, req); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("missing signature falls back to gateway status", func(t *testing.T) {
		fetched := false
		gw := &mockGateway{
			VerifySignatureFunc: func(gwOrderID, gwPaymentID, signature string) bool {
				t.Fatal("must not verify signature when it is absent")
				return false
			},
			FetchPaymentStatusFunc: func(ctx context.Context, gwPaymentID string) (gateway.PaymentStatus, error) {
				fetched = true
				return gateway.StatusCaptured, nil
			},
		}
		unsigned := req
		unsigned.Signature = ""
		svc, beginner := newPaymentService(escrowPayment(), nil, nil, nil, nil, gw)

		if err := svc.ConfirmEscrow(ctx, unsigned); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !fetched {
			t.Fatal("gateway status not checked")
		}
		if !beginner.tx.committed {
			t.Error("transaction not committed")
		}
	})

	t.Run("missing signature and uncaptured payment rejected", func(t *testing.T) {
		gw := &mockGateway{
			FetchPaymentStatusFunc: func(ctx context.Context, gwPaymentID string) (gateway.PaymentStatus, error) {
				return gateway.StatusCreated, nil
			},
		}
		payments := escrowPayment()
		payments.MarkCompletedTxFunc = func(ctx context.Context, tx pgx.Tx, id uuid.UUID, gwPaymentID string) error {
			t.Fatal("must not mutate on unconfirmed payment")
			return nil
		}
		unsigned := req
		unsigned.Signature = ""
		svc, _ := newPaymentService(payments, nil, nil, nil, nil, gw)
		if err := svc.ConfirmEscrow(ctx, unsigned); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("duplicate callback", func(t *testing.T) {
		payments := escrowPayment()
		payments.MarkCompletedTxFunc = func(ctx context.Context, tx pgx.Tx, id uuid.UUID, gwPaymentID string) error {
			return storage.ErrStatusConflict
		}
		svc, _ := newPaymentService(payments, nil, nil, nil, nil, nil)
		if err := svc.ConfirmEscrow(ctx, req); !errors.Is(err, ErrAlreadyProcessed) {
			t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
		}
	})
}

func TestPaymentService_ConfirmDeposit(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()
	editorID := uuid.New()
	paymentID := uuid.New()
	amount := decimal.NewFromInt(499)

	req := models.ConfirmPaymentRequest{
		GatewayOrderID:   "gw_order_2",
		GatewayPaymentID: "gw_pay_2",
		Signature:        "sig",
	}

	depositPayment := &mockPaymentStorage{
		GetByGatewayOrderIDFunc: func(ctx context.Context, gwID string) (*models.Payment, error) {
			return &models.Payment{ID: paymentID, OrderID: orderID, UserID: editorID, Purpose: models.PaymentPurposeDeposit, Amount: amount, Status: models.PaymentStatusPending}, nil
		},
	}

	t.Run("captured deposit lands already locked", func(t *testing.T) {
		w := &walletState{}
		var journal []models.TransactionType
		txs := &mockTransactionStorage{
			CreateTxFunc: func(ctx context.Context, tx pgx.Tx, wt *models.WalletTransaction) error {
				journal = append(journal, wt.Type)
				return nil
			},
		}
		depositMarked := false
		orders := &mockOrderStorage{
			SetDepositStatusTxFunc: func(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.DepositStatus) error {
				depositMarked = status == models.DepositStatusPaid
				return nil
			},
		}
		svc, _ := newPaymentService(depositPayment, orders, nil, w.asMock(), txs, nil)

		if err := svc.ConfirmDeposit(ctx, req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !w.balance.IsZero() || !w.locked.Equal(amount) {
			t.Errorf("balance=%s locked=%s, want all locked", w.balance, w.locked)
		}
		if len(journal) != 1 || journal[0] != models.TransactionTypeDepositLock {
			t.Errorf("journal = %v", journal)
		}
		if !depositMarked {
			t.Error("order deposit status not marked PAID")
		}
	})

	t.Run("escrow payment cannot confirm as deposit", func(t *testing.T) {
		payments := &mockPaymentStorage{
			GetByGatewayOrderIDFunc: func(ctx context.Context, gwID string) (*models.Payment, error) {
				return &models.Payment{ID: paymentID, Purpose: models.PaymentPurposeEscrow}, nil
			},
		}
		svc, _ := newPaymentService(payments, nil, nil, nil, nil, nil)
		if err := svc.ConfirmDeposit(ctx, req); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}
	})
}

func TestPaymentService_InitiateDeposit(t *testing.T) {
	ctx := context.Background()
	editorID := uuid.New()
	orderID := uuid.New()

	pending := models.DepositStatusPending
	assignedOrder := &mockOrderStorage{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return &models.Order{
				ID:                    orderID,
				CreatorID:             uuid.New(),
				EditorID:              &editorID,
				Status:                models.OrderStatusAssigned,
				Tier:                  models.TierProfessional,
				Currency:              "INR",
				EditorDepositRequired: true,
				EditorDepositStatus:   &pending,
			}, nil
		},
	}

	t.Run("amount comes from the approved application", func(t *testing.T) {
		apps := &mockApplicationStorage{
			GetByOrderAndEditorFunc: func(ctx context.Context, oID, eID uuid.UUID) (*models.OrderApplication, error) {
				return &models.OrderApplication{OrderID: oID, EditorID: eID, DepositAmount: decimal.NewFromInt(499)}, nil
			},
		}
		svc, _ := newPaymentService(nil, assignedOrder, apps, nil, nil, nil)

		payment, err := svc.InitiateDeposit(ctx, orderID, editorID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !payment.Amount.Equal(decimal.NewFromInt(499)) {
			t.Errorf("amount = %s, want 499", payment.Amount)
		}
		if payment.Purpose != models.PaymentPurposeDeposit {
			t.Errorf("purpose = %s, want DEPOSIT", payment.Purpose)
		}
	})

	t.Run("only the assigned editor may pay", func(t *testing.T) {
		svc, _ := newPaymentService(nil, assignedOrder, nil, nil, nil, nil)
		if _, err := svc.InitiateDeposit(ctx, orderID, uuid.New()); !errors.Is(err, ErrAccessDenied) {
			t.Fatalf("expected ErrAccessDenied, got %v", err)
		}
	})

	t.Run("deposit already paid", func(t *testing.T) {
		paid := models.DepositStatusPaid
		orders := &mockOrderStorage{
			GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
				return &models.Order{ID: orderID, EditorID: &editorID, EditorDepositRequired: true, EditorDepositStatus: &paid}, nil
			},
		}
		svc, _ := newPaymentService(nil, orders, nil, nil, nil, nil)
		if _, err := svc.InitiateDeposit(ctx, orderID, editorID); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}
	})
}

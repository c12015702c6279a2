package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus описывает статус эскроу-записи.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
)

// PaymentPurpose различает эскроу заказчика и депозит исполнителя.
type PaymentPurpose string

const (
	PaymentPurposeEscrow  PaymentPurpose = "ESCROW"
	PaymentPurposeDeposit PaymentPurpose = "DEPOSIT"
)

// Payment - эскроу-запись, связывающая внешний платёжный шлюз и леджер.
// COMPLETED с проставленным released_at - конечное состояние.
type Payment struct {
	ID               uuid.UUID       `db:"id"`
	OrderID          uuid.UUID       `db:"order_id"`
	UserID           uuid.UUID       `db:"user_id"`
	Purpose          PaymentPurpose  `db:"purpose"`
	Amount           decimal.Decimal `db:"amount"`
	Currency         string          `db:"currency"`
	Status           PaymentStatus   `db:"status"`
	GatewayOrderID   string          `db:"gateway_order_id"`
	GatewayPaymentID *string         `db:"gateway_payment_id"`
	ReleasedAt       *time.Time      `db:"released_at"`
	ReleaseNote      *string         `db:"release_note"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

// InitiatePaymentResponse DTO с данными для оплаты на стороне шлюза.
type InitiatePaymentResponse struct {
	PaymentID      string  `json:"payment_id"`
	GatewayOrderID string  `json:"gateway_order_id"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
}

// ConfirmPaymentRequest DTO подтверждения оплаты после редиректа со шлюза.
type ConfirmPaymentRequest struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
}

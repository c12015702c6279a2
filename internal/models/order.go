package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus описывает статус жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusOpen              OrderStatus = "OPEN"
	OrderStatusApplied           OrderStatus = "APPLIED"
	OrderStatusAssigned          OrderStatus = "ASSIGNED"
	OrderStatusInProgress        OrderStatus = "IN_PROGRESS"
	OrderStatusPreviewSubmitted  OrderStatus = "PREVIEW_SUBMITTED"
	OrderStatusRevisionRequested OrderStatus = "REVISION_REQUESTED"
	OrderStatusFinalSubmitted    OrderStatus = "FINAL_SUBMITTED"
	OrderStatusPublished         OrderStatus = "PUBLISHED"
	OrderStatusCompleted         OrderStatus = "COMPLETED"
	OrderStatusCancelled         OrderStatus = "CANCELLED"
)

// IsTerminal сообщает, является ли статус конечным.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// EditingTier определяет тариф монтажа, от которого зависит депозит исполнителя.
type EditingTier string

const (
	TierBasic        EditingTier = "BASIC"
	TierProfessional EditingTier = "PROFESSIONAL"
	TierPremium      EditingTier = "PREMIUM"
)

// DepositStatus описывает состояние депозита исполнителя по заказу.
type DepositStatus string

const (
	DepositStatusPending DepositStatus = "PENDING"
	DepositStatusPaid    DepositStatus = "PAID"
)

// PaymentState описывает состояние эскроу-оплаты заказа заказчиком.
type PaymentState string

const (
	PaymentStateUnpaid  PaymentState = "UNPAID"
	PaymentStatePending PaymentState = "PENDING"
	PaymentStatePaid    PaymentState = "PAID"
)

// PayoutState описывает состояние выплаты исполнителю.
type PayoutState string

const (
	PayoutStateNone     PayoutState = "NONE"
	PayoutStateReleased PayoutState = "RELEASED"
)

// Order представляет заказ на монтаж.
type Order struct {
	ID                    uuid.UUID       `db:"id"`
	CreatorID             uuid.UUID       `db:"creator_id"`
	EditorID              *uuid.UUID      `db:"editor_id"`
	Title                 string          `db:"title"`
	Status                OrderStatus     `db:"status"`
	Tier                  EditingTier     `db:"tier"`
	Amount                decimal.Decimal `db:"amount"`
	Currency              string          `db:"currency"`
	Deadline              *time.Time      `db:"deadline"`
	RevisionCount         int             `db:"revision_count"`
	LastActivityAt        time.Time       `db:"last_activity_at"`
	AssignedAt            *time.Time      `db:"assigned_at"`
	CompletedAt           *time.Time      `db:"completed_at"`
	EditorDepositRequired bool            `db:"editor_deposit_required"`
	EditorDepositStatus   *DepositStatus  `db:"editor_deposit_status"`
	PaymentStatus         PaymentState    `db:"payment_status"`
	PayoutStatus          PayoutState     `db:"payout_status"`
	Disputed              bool            `db:"disputed"`
	DisputeReason         *string         `db:"dispute_reason"`
	CreatedAt             time.Time       `db:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at"`
}

// OrderResponse ответ для списка заказов.
type OrderResponse struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Status        string  `json:"status"`
	Tier          string  `json:"tier"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	EditorID      *string `json:"editor_id,omitempty"`
	Deadline      *string `json:"deadline,omitempty"`
	RevisionCount int     `json:"revision_count"`
	PaymentStatus string  `json:"payment_status"`
	CreatedAt     string  `json:"created_at"`
}

// CreateOrderRequest DTO для создания заказа.
type CreateOrderRequest struct {
	Title    string  `json:"title"`
	Tier     string  `json:"tier"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Deadline string  `json:"deadline,omitempty"`
}

// UpdateStatusRequest DTO для смены статуса заказа.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

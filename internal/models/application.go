package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ApplicationStatus описывает статус отклика исполнителя.
type ApplicationStatus string

const (
	ApplicationStatusApplied  ApplicationStatus = "APPLIED"
	ApplicationStatusApproved ApplicationStatus = "APPROVED"
	ApplicationStatusRejected ApplicationStatus = "REJECTED"
)

// OrderApplication представляет отклик исполнителя на открытый заказ.
// Уникальность пары (order_id, editor_id) обеспечивается на уровне БД.
type OrderApplication struct {
	ID              uuid.UUID         `db:"id"`
	OrderID         uuid.UUID         `db:"order_id"`
	EditorID        uuid.UUID         `db:"editor_id"`
	Status          ApplicationStatus `db:"status"`
	DepositAmount   decimal.Decimal   `db:"deposit_amount"`
	DepositDeadline time.Time         `db:"deposit_deadline"`
	CreatedAt       time.Time         `db:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at"`
}

// ApplicationResponse DTO для списка откликов по заказу.
type ApplicationResponse struct {
	ID              string  `json:"id"`
	OrderID         string  `json:"order_id"`
	EditorID        string  `json:"editor_id"`
	Status          string  `json:"status"`
	DepositAmount   float64 `json:"deposit_amount"`
	DepositDeadline string  `json:"deposit_deadline"`
	CreatedAt       string  `json:"created_at"`
}

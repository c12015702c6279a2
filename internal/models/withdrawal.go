package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WithdrawalStatus описывает статус заявки на вывод средств.
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "PENDING"
	WithdrawalStatusProcessed WithdrawalStatus = "PROCESSED"
	WithdrawalStatusRejected  WithdrawalStatus = "REJECTED"
)

// WithdrawalRequest представляет заявку исполнителя на вывод средств.
// Создание заявки атомарно блокирует сумму в кошельке.
type WithdrawalRequest struct {
	ID             uuid.UUID        `db:"id"`
	UserID         uuid.UUID        `db:"user_id"`
	Amount         decimal.Decimal  `db:"amount"`
	PaymentMethod  string           `db:"payment_method"`
	PaymentDetails string           `db:"payment_details"`
	Status         WithdrawalStatus `db:"status"`
	AdminNote      *string          `db:"admin_note"`
	ProcessedAt    *time.Time       `db:"processed_at"`
	CreatedAt      time.Time        `db:"created_at"`
}

// WithdrawRequest DTO для запроса на вывод средств.
type WithdrawRequest struct {
	Amount         float64 `json:"amount"`
	PaymentMethod  string  `json:"payment_method"`
	PaymentDetails string  `json:"payment_details"`
}

// ProcessWithdrawalRequest DTO решения администратора по заявке.
type ProcessWithdrawalRequest struct {
	Approve   bool   `json:"approve"`
	AdminNote string `json:"admin_note,omitempty"`
}

// WithdrawalResponse DTO для списка заявок.
type WithdrawalResponse struct {
	ID            string  `json:"id"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"payment_method"`
	Status        string  `json:"status"`
	AdminNote     *string `json:"admin_note,omitempty"`
	ProcessedAt   *string `json:"processed_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

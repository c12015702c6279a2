package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet представляет кошелёк пользователя.
// Инвариант: balance >= 0 и locked >= 0 в любой момент времени;
// любое изменение проходит через именованную операцию леджера.
type Wallet struct {
	UserID    uuid.UUID       `db:"user_id"`
	Balance   decimal.Decimal `db:"balance"`
	Locked    decimal.Decimal `db:"locked"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// TransactionType описывает тип операции по кошельку.
type TransactionType string

const (
	TransactionTypeCredit         TransactionType = "CREDIT"
	TransactionTypeDepositLock    TransactionType = "DEPOSIT_LOCK"
	TransactionTypeDepositRelease TransactionType = "DEPOSIT_RELEASE"
	TransactionTypeDepositSlash   TransactionType = "DEPOSIT_SLASH"
	TransactionTypeWithdrawalHold TransactionType = "WITHDRAWAL_HOLD"
	TransactionTypeWithdrawal     TransactionType = "WITHDRAWAL"
	TransactionTypePaymentRelease TransactionType = "PAYMENT_RELEASE"
	TransactionTypeRefund         TransactionType = "REFUND"
)

// WalletTransaction - неизменяемая запись о движении средств.
// Записывается один раз и никогда не редактируется.
type WalletTransaction struct {
	ID        uuid.UUID       `db:"id"`
	UserID    uuid.UUID       `db:"user_id"`
	OrderID   *uuid.UUID      `db:"order_id"`
	Type      TransactionType `db:"type"`
	Amount    decimal.Decimal `db:"amount"`
	CreatedAt time.Time       `db:"created_at"`
}

// BalanceResponse - ответ с балансом кошелька.
type BalanceResponse struct {
	Balance float64 `json:"balance"`
	Locked  float64 `json:"locked"`
}

// WalletTransactionResponse DTO для истории операций.
type WalletTransactionResponse struct {
	Type      string  `json:"type"`
	Amount    float64 `json:"amount"`
	OrderID   *string `json:"order_id,omitempty"`
	CreatedAt string  `json:"created_at"`
}

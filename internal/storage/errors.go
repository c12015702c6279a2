package storage

import "errors"

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrApplicationNotFound = errors.New("application not found")
	ErrApplicationExists   = errors.New("application already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrLoginExists         = errors.New("login already exists")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientLocked  = errors.New("insufficient locked funds")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrWithdrawalNotFound  = errors.New("withdrawal request not found")

	// ErrStatusConflict возвращается, когда условная мутация не нашла строку
	// в ожидаемом статусе: конкурирующий актор успел изменить её первым.
	ErrStatusConflict = errors.New("row status changed concurrently")
)

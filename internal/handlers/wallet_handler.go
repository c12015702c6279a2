package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/agamariel/editmart/internal/auth"
	"github.com/agamariel/editmart/internal/models"
	"github.com/agamariel/editmart/internal/services"
	"github.com/agamariel/editmart/internal/storage"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// WalletHandler обрабатывает баланс, историю операций и вывод средств.
type WalletHandler struct {
	ledger services.LedgerService
}

// NewWalletHandler создаёт новый handler.
func NewWalletHandler(ledger services.LedgerService) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// GetBalance обрабатывает GET /api/wallet/balance.
func (h *WalletHandler) GetBalance(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}

	wallet, err := h.ledger.Balance(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	balance, _ := wallet.Balance.Float64()
	locked, _ := wallet.Locked.Float64()
	return c.JSON(http.StatusOK, models.BalanceResponse{
		Balance: balance,
		Locked:  locked,
	})
}

// GetTransactions обрабатывает GET /api/wallet/transactions.
func (h *WalletHandler) GetTransactions(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}

	list, err := h.ledger.Transactions(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if len(list) == 0 {
		return c.NoContent(http.StatusNoContent)
	}

	resp := make([]*models.WalletTransactionResponse, 0, len(list))
	for _, wt := range list {
		amount, _ := wt.Amount.Float64()
		item := &models.WalletTransactionResponse{
			Type:      string(wt.Type),
			Amount:    amount,
			CreatedAt: wt.CreatedAt.Format(time.RFC3339),
		}
		if wt.OrderID != nil {
			id := wt.OrderID.String()
			item.OrderID = &id
		}
		resp = append(resp, item)
	}
	return c.JSON(http.StatusOK, resp)
}

// Withdraw обрабатывает POST /api/wallet/withdraw.
func (h *WalletHandler) Withdraw(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}

	var req models.WithdrawRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	amount := decimal.NewFromFloat(req.Amount)
	request, err := h.ledger.RequestWithdrawal(c.Request().Context(), userID, amount, req.PaymentMethod, req.PaymentDetails)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, storage.ErrInsufficientFunds):
			return echo.NewHTTPError(http.StatusPaymentRequired, "insufficient funds")
		case errors.Is(err, storage.ErrWalletNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "wallet not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}

	return c.JSON(http.StatusCreated, mapWithdrawal(request))
}

// GetWithdrawals обрабатывает GET /api/wallet/withdrawals.
func (h *WalletHandler) GetWithdrawals(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}

	list, err := h.ledger.Withdrawals(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if len(list) == 0 {
		return c.NoContent(http.StatusNoContent)
	}

	resp := make([]*models.WithdrawalResponse, 0, len(list))
	for _, w := range list {
		resp = append(resp, mapWithdrawal(w))
	}
	return c.JSON(http.StatusOK, resp)
}

// ProcessWithdrawal обрабатывает POST /api/admin/withdrawals/:id
// (только для администратора).
func (h *WalletHandler) ProcessWithdrawal(c echo.Context) error {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request id")
	}

	var req models.ProcessWithdrawalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	if err := h.ledger.ProcessWithdrawal(c.Request().Context(), requestID, req.Approve, req.AdminNote); err != nil {
		switch {
		case errors.Is(err, storage.ErrWithdrawalNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "withdrawal request not found")
		case errors.Is(err, services.ErrAlreadyProcessed):
			return echo.NewHTTPError(http.StatusConflict, "request already processed")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}

	return c.NoContent(http.StatusOK)
}

// mapWithdrawal переводит domain модель в DTO.
func mapWithdrawal(w *models.WithdrawalRequest) *models.WithdrawalResponse {
	amount, _ := w.Amount.Float64()
	resp := &models.WithdrawalResponse{
		ID:            w.ID.String(),
		Amount:        amount,
		PaymentMethod: w.PaymentMethod,
		Status:        string(w.Status),
		AdminNote:     w.AdminNote,
		CreatedAt:     w.CreatedAt.Format(time.RFC3339),
	}
	if w.ProcessedAt != nil {
		t := w.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &t
	}
	return resp
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/agamariel/editmart/internal/auth"
	"github.com/agamariel/editmart/internal/models"
	"github.com/agamariel/editmart/internal/services"
	"github.com/agamariel/editmart/internal/storage"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// PaymentHandler обрабатывает эскроу-оплату и депозиты.
type PaymentHandler struct {
	paymentService services.PaymentService
	ledger         services.LedgerService
}

// NewPaymentHandler создаёт новый handler.
func NewPaymentHandler(paymentService services.PaymentService, ledger services.LedgerService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, ledger: ledger}
}

// InitiateEscrow обрабатывает POST /api/orders/:id/payment.
func (h *PaymentHandler) InitiateEscrow(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	payment, err := h.paymentService.InitiateEscrow(c.Request().Context(), orderID, userID)
	if err != nil {
		return mapPaymentError(err)
	}

	return c.JSON(http.StatusCreated, mapPayment(payment))
}

// ConfirmEscrow обрабатывает POST /api/payments/escrow/confirm.
func (h *PaymentHandler) ConfirmEscrow(c echo.Context) error {
	var req models.ConfirmPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	if err := h.paymentService.ConfirmEscrow(c.Request().Context(), req); err != nil {
		return mapPaymentError(err)
	}

	return c.NoContent(http.StatusOK)
}

// InitiateDeposit обрабатывает POST /api/orders/:id/deposit.
func (h *PaymentHandler) InitiateDeposit(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	payment, err := h.paymentService.InitiateDeposit(c.Request().Context(), orderID, userID)
	if err != nil {
		return mapPaymentError(err)
	}

	return c.JSON(http.StatusCreated, mapPayment(payment))
}

// ConfirmDeposit обрабатывает POST /api/payments/deposit/confirm.
func (h *PaymentHandler) ConfirmDeposit(c echo.Context) error {
	var req models.ConfirmPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	if err := h.paymentService.ConfirmDeposit(c.Request().Context(), req); err != nil {
		return mapPaymentError(err)
	}

	return c.NoContent(http.StatusOK)
}

// ReleasePayment обрабатывает POST /api/admin/payments/:id/release
// (только для администратора).
func (h *PaymentHandler) ReleasePayment(c echo.Context) error {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payment id")
	}

	var req struct {
		Note string `json:"note"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	net, err := h.ledger.ReleasePayment(c.Request().Context(), paymentID, req.Note)
	if err != nil {
		if errors.Is(err, services.ErrAlreadyReleased) {
			return echo.NewHTTPError(http.StatusConflict, "payment already released")
		}
		return mapPaymentError(err)
	}

	netVal, _ := net.Float64()
	return c.JSON(http.StatusOK, map[string]float64{"net_amount": netVal})
}

// mapPaymentError переводит ошибки платёжных сервисов в HTTP-коды.
func mapPaymentError(err error) error {
	switch {
	case errors.Is(err, storage.ErrOrderNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	case errors.Is(err, storage.ErrPaymentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "payment not found")
	case errors.Is(err, services.ErrAccessDenied):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	case errors.Is(err, services.ErrInvalidSignature):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
	case errors.Is(err, services.ErrAlreadyProcessed):
		return echo.NewHTTPError(http.StatusConflict, "payment already processed")
	case errors.Is(err, services.ErrInvalidState):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

// mapPayment переводит domain модель в DTO.
func mapPayment(p *models.Payment) *models.InitiatePaymentResponse {
	amount, _ := p.Amount.Float64()
	return &models.InitiatePaymentResponse{
		PaymentID:      p.ID.String(),
		GatewayOrderID: p.GatewayOrderID,
		Amount:         amount,
		Currency:       p.Currency,
	}
}

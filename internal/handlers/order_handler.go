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
)

// OrderHandler обрабатывает операции жизненного цикла заказа.
type OrderHandler struct {
	orderService services.OrderService
}

// NewOrderHandler создаёт новый handler.
func NewOrderHandler(orderService services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// Create обрабатывает POST /api/orders.
func (h *OrderHandler) Create(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}

	var req models.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	order, err := h.orderService.Create(c.Request().Context(), userID, req)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusCreated, mapOrder(order))
}

// Get обрабатывает GET /api/orders/:id.
func (h *OrderHandler) Get(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}
	role, err := auth.GetUserRoleFromContext(c)
	if err != nil {
		return err
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	order, err := h.orderService.Get(c.Request().Context(), orderID, userID, role)
	if err != nil {
		return mapOrderError(err)
	}

	return c.JSON(http.StatusOK, mapOrder(order))
}

// List обрабатывает GET /api/orders.
func (h *OrderHandler) List(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}
	role, err := auth.GetUserRoleFromContext(c)
	if err != nil {
		return err
	}

	orders, err := h.orderService.ListForUser(c.Request().Context(), userID, role)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if len(orders) == 0 {
		return c.NoContent(http.StatusNoContent)
	}

	resp := make([]*models.OrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, mapOrder(o))
	}
	return c.JSON(http.StatusOK, resp)
}

// UpdateStatus обрабатывает PATCH /api/orders/:id/status.
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}
	role, err := auth.GetUserRoleFromContext(c)
	if err != nil {
		return err
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	var req models.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	order, err := h.orderService.UpdateStatus(c.Request().Context(), orderID, models.OrderStatus(req.Status), userID, role)
	if err != nil {
		return mapOrderError(err)
	}

	return c.JSON(http.StatusOK, mapOrder(order))
}

// AssignEditor обрабатывает POST /api/orders/:id/assign.
func (h *OrderHandler) AssignEditor(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}
	role, err := auth.GetUserRoleFromContext(c)
	if err != nil {
		return err
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	var req struct {
		EditorID string `json:"editor_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}
	editorID, err := uuid.Parse(req.EditorID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid editor id")
	}

	if err := h.orderService.AssignEditor(c.Request().Context(), orderID, editorID, userID, role); err != nil {
		switch {
		case errors.Is(err, services.ErrNotAnEditor):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "target user is not an editor")
		case errors.Is(err, storage.ErrUserNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "editor not found")
		default:
			return mapOrderError(err)
		}
	}

	return c.NoContent(http.StatusOK)
}

// RequestRevision обрабатывает POST /api/orders/:id/revision.
func (h *OrderHandler) RequestRevision(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}
	role, err := auth.GetUserRoleFromContext(c)
	if err != nil {
		return err
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	if err := h.orderService.RequestRevision(c.Request().Context(), orderID, userID, role); err != nil {
		if errors.Is(err, services.ErrRevisionLimitReached) {
			return echo.NewHTTPError(http.StatusConflict, "revision limit reached")
		}
		return mapOrderError(err)
	}

	return c.NoContent(http.StatusOK)
}

// mapOrderError переводит ошибки сервисов заказов в HTTP-коды.
func mapOrderError(err error) error {
	switch {
	case errors.Is(err, storage.ErrOrderNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	case errors.Is(err, services.ErrAccessDenied):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	case errors.Is(err, services.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidState):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrStatusConflict):
		return echo.NewHTTPError(http.StatusConflict, "order changed concurrently, retry")
	case errors.Is(err, services.ErrValidation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

// mapOrder переводит domain модель в DTO.
func mapOrder(o *models.Order) *models.OrderResponse {
	amount, _ := o.Amount.Float64()

	resp := &models.OrderResponse{
		ID:            o.ID.String(),
		Title:         o.Title,
		Status:        string(o.Status),
		Tier:          string(o.Tier),
		Amount:        amount,
		Currency:      o.Currency,
		RevisionCount: o.RevisionCount,
		PaymentStatus: string(o.PaymentStatus),
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
	}
	if o.EditorID != nil {
		id := o.EditorID.String()
		resp.EditorID = &id
	}
	if o.Deadline != nil {
		d := o.Deadline.Format(time.RFC3339)
		resp.Deadline = &d
	}
	return resp
}

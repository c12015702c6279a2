package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Reconciler запускает все фоновые проверки маркетплейса по требованию.
type Reconciler interface {
	RunAll(ctx context.Context) error
}

// AdminHandler обрабатывает административные операции.
type AdminHandler struct {
	reconciler Reconciler
}

// NewAdminHandler создаёт новый handler.
func NewAdminHandler(reconciler Reconciler) *AdminHandler {
	return &AdminHandler{reconciler: reconciler}
}

// Reconcile обрабатывает POST /api/admin/reconcile: разовый прогон
// всех фоновых задач вне расписания.
func (h *AdminHandler) Reconcile(c echo.Context) error {
	if err := h.reconciler.RunAll(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}

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

// ApplicationHandler обрабатывает отклики исполнителей.
type ApplicationHandler struct {
	appService services.ApplicationService
}

// NewApplicationHandler создаёт новый handler.
func NewApplicationHandler(appService services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{appService: appService}
}

// Apply обрабатывает POST /api/orders/:id/applications.
func (h *ApplicationHandler) Apply(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return err
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	app, err := h.appService.Apply(c.Request().Context(), orderID, userID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrOrderNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		case errors.Is(err, services.ErrAlreadyApplied):
			return echo.NewHTTPError(http.StatusConflict, "already applied")
		case errors.Is(err, services.ErrTooManyActiveJobs):
			return echo.NewHTTPError(http.StatusConflict, "too many active jobs")
		case errors.Is(err, services.ErrInvalidState):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}

	return c.JSON(http.StatusCreated, mapApplication(app))
}

// Approve обрабатывает POST /api/orders/:id/applications/:appID/approve.
func (h *ApplicationHandler) Approve(c echo.Context) error {
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
	appID, err := uuid.Parse(c.Param("appID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid application id")
	}

	if err := h.appService.Approve(c.Request().Context(), orderID, appID, userID, role); err != nil {
		switch {
		case errors.Is(err, storage.ErrOrderNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		case errors.Is(err, storage.ErrApplicationNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "application not found")
		case errors.Is(err, services.ErrAccessDenied):
			return echo.NewHTTPError(http.StatusForbidden, "access denied")
		case errors.Is(err, services.ErrTooManyActiveJobs):
			return echo.NewHTTPError(http.StatusConflict, "editor has too many active jobs")
		case errors.Is(err, services.ErrInvalidState):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, storage.ErrStatusConflict):
			return echo.NewHTTPError(http.StatusConflict, "order changed concurrently, retry")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}

	return c.NoContent(http.StatusOK)
}

// ListForOrder обрабатывает GET /api/orders/:id/applications.
func (h *ApplicationHandler) ListForOrder(c echo.Context) error {
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

	apps, err := h.appService.ListForOrder(c.Request().Context(), orderID, userID, role)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrOrderNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		case errors.Is(err, services.ErrAccessDenied):
			return echo.NewHTTPError(http.StatusForbidden, "access denied")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}

	if len(apps) == 0 {
		return c.NoContent(http.StatusNoContent)
	}

	resp := make([]*models.ApplicationResponse, 0, len(apps))
	for _, app := range apps {
		resp = append(resp, mapApplication(app))
	}
	return c.JSON(http.StatusOK, resp)
}

// mapApplication переводит domain модель в DTO.
func mapApplication(app *models.OrderApplication) *models.ApplicationResponse {
	deposit, _ := app.DepositAmount.Float64()
	return &models.ApplicationResponse{
		ID:              app.ID.String(),
		OrderID:         app.OrderID.String(),
		EditorID:        app.EditorID.String(),
		Status:          string(app.Status),
		DepositAmount:   deposit,
		DepositDeadline: app.DepositDeadline.Format(time.RFC3339),
		CreatedAt:       app.CreatedAt.Format(time.RFC3339),
	}
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/agamariel/editmart/internal/models"
	"github.com/agamariel/editmart/internal/services"
	"github.com/agamariel/editmart/internal/storage"
	"github.com/labstack/echo/v4"
)

// UserHandler обрабатывает регистрацию и аутентификацию.
type UserHandler struct {
	userService services.UserService
}

// NewUserHandler создаёт новый handler.
func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Register обрабатывает POST /api/user/register.
func (h *UserHandler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	role := models.Role(req.Role)
	if req.Role == "" {
		role = models.RoleCreator
	}

	user, token, err := h.userService.Register(c.Request().Context(), req.Login, req.Password, role)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyCredentials):
			return echo.NewHTTPError(http.StatusBadRequest, "login and password are required")
		case errors.Is(err, services.ErrInvalidRole):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid role")
		case errors.Is(err, storage.ErrLoginExists):
			return echo.NewHTTPError(http.StatusConflict, "login already exists")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}

	c.Response().Header().Set("Authorization", "Bearer "+token)
	return c.JSON(http.StatusOK, map[string]string{
		"id":    user.ID.String(),
		"login": user.Login,
		"role":  string(user.Role),
	})
}

// Login обрабатывает POST /api/user/login.
func (h *UserHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	user, token, err := h.userService.Login(c.Request().Context(), req.Login, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyCredentials):
			return echo.NewHTTPError(http.StatusBadRequest, "login and password are required")
		case errors.Is(err, services.ErrInvalidCredentials):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}

	c.Response().Header().Set("Authorization", "Bearer "+token)
	return c.JSON(http.StatusOK, map[string]string{
		"id":    user.ID.String(),
		"login": user.Login,
		"role":  string(user.Role),
	})
}

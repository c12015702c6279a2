// Package policy содержит таблицу разрешённых переходов статусов заказа.
// Пакет чистый: никаких побочных эффектов и обращений к хранилищу.
package policy

import "github.com/agamariel/editmart/internal/models"

// transitions задаёт разрешённые переходы: из статуса -> роль -> список целевых статусов.
var transitions = map[models.OrderStatus]map[models.Role][]models.OrderStatus{
	models.OrderStatusOpen: {
		models.RoleCreator: {models.OrderStatusCancelled},
		models.RoleAdmin:   {models.OrderStatusCancelled},
	},
	models.OrderStatusApplied: {
		models.RoleCreator: {models.OrderStatusAssigned, models.OrderStatusCancelled},
		models.RoleAdmin:   {models.OrderStatusAssigned, models.OrderStatusCancelled},
	},
	models.OrderStatusAssigned: {
		models.RoleEditor:  {models.OrderStatusInProgress},
		models.RoleCreator: {models.OrderStatusCancelled},
		models.RoleAdmin:   {models.OrderStatusCancelled},
	},
	models.OrderStatusInProgress: {
		models.RoleEditor:  {models.OrderStatusPreviewSubmitted, models.OrderStatusFinalSubmitted},
		models.RoleCreator: {models.OrderStatusCancelled},
		models.RoleAdmin:   {models.OrderStatusCancelled},
	},
	models.OrderStatusPreviewSubmitted: {
		models.RoleCreator: {models.OrderStatusRevisionRequested, models.OrderStatusInProgress},
		models.RoleAdmin:   {models.OrderStatusRevisionRequested, models.OrderStatusInProgress, models.OrderStatusCancelled},
	},
	models.OrderStatusRevisionRequested: {
		models.RoleEditor: {models.OrderStatusInProgress, models.OrderStatusPreviewSubmitted},
		models.RoleAdmin:  {models.OrderStatusInProgress, models.OrderStatusPreviewSubmitted, models.OrderStatusCancelled},
	},
	models.OrderStatusFinalSubmitted: {
		models.RoleCreator: {models.OrderStatusPublished, models.OrderStatusCompleted},
		models.RoleAdmin:   {models.OrderStatusPublished, models.OrderStatusCompleted, models.OrderStatusCancelled},
	},
	models.OrderStatusPublished: {
		models.RoleCreator: {models.OrderStatusCompleted},
		models.RoleAdmin:   {models.OrderStatusCompleted},
	},
	models.OrderStatusCompleted: {},
	models.OrderStatusCancelled: {},
}

// CanTransition проверяет, разрешён ли переход from -> to для роли role.
// Переход в тот же статус разрешён всегда (идемпотентный no-op).
// Планировщик сверки действует с правами администратора.
func CanTransition(from, to models.OrderStatus, role models.Role) bool {
	if from == to {
		return true
	}
	if role == models.RoleSystem {
		role = models.RoleAdmin
	}

	byRole, ok := transitions[from]
	if !ok {
		return false
	}
	allowed, ok := byRole[role]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

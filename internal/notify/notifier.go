// Package notify содержит best-effort отправку уведомлений.
// Ошибки отправки логируются и никогда не попадают в транзакции вызывающего кода.
package notify

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// Notifier отправляет уведомление пользователю по шаблону.
type Notifier interface {
	Send(ctx context.Context, recipient uuid.UUID, template string, data map[string]string) error
}

// Шаблоны уведомлений маркетплейса.
const (
	TemplateNewApplication    = "new_application"
	TemplateApplicationResult = "application_result"
	TemplateDepositExpired    = "deposit_expired"
	TemplateOrderCancelled    = "order_cancelled"
	TemplateDeadlinePassed    = "deadline_passed"
	TemplateInactivityWarning = "inactivity_warning"
	TemplateWithdrawalResult  = "withdrawal_result"
)

// LogNotifier пишет уведомления в лог. Используется до подключения
// реального транспорта доставки и в тестах.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, recipient uuid.UUID, template string, data map[string]string) error {
	n.logger.Printf("notify user=%s template=%s data=%v", recipient, template, data)
	return nil
}

// BestEffort вызывает отправку и гасит ошибку, оставляя только запись в логе.
func BestEffort(ctx context.Context, n Notifier, logger *log.Logger, recipient uuid.UUID, template string, data map[string]string) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, recipient, template, data); err != nil {
		if logger == nil {
			logger = log.Default()
		}
		logger.Printf("notification send failed: user=%s template=%s err=%v", recipient, template, err)
	}
}

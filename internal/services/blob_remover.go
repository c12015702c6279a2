package services

import (
	"context"
	"log"
)

// LogBlobRemover - заглушка внешнего файлового хранилища: только пишет в лог.
// Используется, пока реальное хранилище не подключено, и в тестах.
type LogBlobRemover struct {
	logger *log.Logger
}

func NewLogBlobRemover(logger *log.Logger) *LogBlobRemover {
	if logger == nil {
		logger = log.Default()
	}
	return &LogBlobRemover{logger: logger}
}

func (r *LogBlobRemover) Remove(_ context.Context, storageKey string) error {
	r.logger.Printf("blob removal requested: %s", storageKey)
	return nil
}

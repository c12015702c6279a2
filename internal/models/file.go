package models

import (
	"time"

	"github.com/google/uuid"
)

// FileKind различает превью и финальные материалы заказа.
type FileKind string

const (
	FileKindPreview FileKind = "PREVIEW"
	FileKindFinal   FileKind = "FINAL"
)

// OrderFile - запись о загруженном файле заказа.
// Superseded помечает превью, заменённое более новой версией.
type OrderFile struct {
	ID         uuid.UUID `db:"id"`
	OrderID    uuid.UUID `db:"order_id"`
	Kind       FileKind  `db:"kind"`
	Version    int       `db:"version"`
	StorageKey string    `db:"storage_key"`
	Superseded bool      `db:"superseded"`
	CreatedAt  time.Time `db:"created_at"`
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/agamariel/editmart/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresFileStorage реализует хранилище записей о файлах заказов.
type PostgresFileStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresFileStorage создаёт новый экземпляр.
func NewPostgresFileStorage(pool *pgxpool.Pool) *PostgresFileStorage {
	return &PostgresFileStorage{pool: pool}
}

// Create добавляет запись о файле, помечая прежние превью как устаревшие.
func (s *PostgresFileStorage) Create(ctx context.Context, f *models.OrderFile) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if f.Kind == models.FileKindPreview {
		supersede := `
			UPDATE order_files
			SET superseded = TRUE
			WHERE order_id = $1 AND kind = 'PREVIEW' AND NOT superseded
		`
		if _, err := tx.Exec(ctx, supersede, f.OrderID); err != nil {
			return fmt.Errorf("failed to supersede previews: %w", err)
		}
	}

	query := `
		INSERT INTO order_files (id, order_id, kind, version, storage_key, superseded, created_at)
		VALUES ($1, $2, $3,
			(SELECT COALESCE(MAX(version), 0) + 1 FROM order_files WHERE order_id = $2 AND kind = $3),
			$4, FALSE, NOW())
		RETURNING version, created_at
	`

	if err := tx.QueryRow(ctx, query, f.ID, f.OrderID, f.Kind, f.StorageKey).Scan(&f.Version, &f.CreatedAt); err != nil {
		return fmt.Errorf("failed to create file record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit file record: %w", err)
	}
	return nil
}

// ListCleanupCandidates возвращает файлы отменённых заказов и устаревшие превью
// старше cutoff.
func (s *PostgresFileStorage) ListCleanupCandidates(ctx context.Context, cutoff time.Time) ([]*models.OrderFile, error) {
	query := `
		SELECT f.id, f.order_id, f.kind, f.version, f.storage_key, f.superseded, f.created_at
		FROM order_files f
		JOIN orders o ON o.id = f.order_id
		WHERE f.created_at < $1
		  AND (o.status = 'CANCELLED' OR (f.kind = 'PREVIEW' AND f.superseded))
		ORDER BY f.created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query cleanup candidates: %w", err)
	}
	defer rows.Close()

	var files []*models.OrderFile
	for rows.Next() {
		var f models.OrderFile
		if err := rows.Scan(&f.ID, &f.OrderID, &f.Kind, &f.Version, &f.StorageKey, &f.Superseded, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file record: %w", err)
		}
		files = append(files, &f)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}

	return files, nil
}

// Delete удаляет запись о файле.
func (s *PostgresFileStorage) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM order_files WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	return nil
}

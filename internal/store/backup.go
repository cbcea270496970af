package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/owenwright/cookies/internal/model"
)

type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

func (s *BackupStore) Record(objectKey string, sizeBytes int64) (*model.Backup, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO backups (object_key, size_bytes, created_at) VALUES (?, ?, ?)`,
		objectKey, sizeBytes, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert backup: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &model.Backup{ID: id, ObjectKey: objectKey, SizeBytes: sizeBytes, CreatedAt: now}, nil
}

func (s *BackupStore) List() ([]model.Backup, error) {
	rows, err := s.db.Query(`SELECT id, object_key, size_bytes, created_at FROM backups ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		var b model.Backup
		if err := rows.Scan(&b.ID, &b.ObjectKey, &b.SizeBytes, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, b)
	}
	return backups, rows.Err()
}

// PruneOlderThan returns the object keys of backups beyond the keep count,
// newest retained, and deletes their rows.
func (s *BackupStore) PruneOlderThan(keep int) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT id, object_key FROM backups ORDER BY created_at DESC LIMIT -1 OFFSET ?`, keep,
	)
	if err != nil {
		return nil, fmt.Errorf("find stale backups: %w", err)
	}
	defer rows.Close()

	var ids []int64
	var keys []string
	for rows.Next() {
		var id int64
		var key string
		if err := rows.Scan(&id, &key); err != nil {
			return nil, fmt.Errorf("scan stale backup: %w", err)
		}
		ids = append(ids, id)
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, err := s.db.Exec(`DELETE FROM backups WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("delete backup row: %w", err)
		}
	}
	return keys, nil
}

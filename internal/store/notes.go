package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// NoteStore is keyed persistence for client-side notes and metadata. It is
// kept apart from MeetingStore; the scheduling core never reads it.
type NoteStore interface {
	GetNote(ctx context.Context, key string) (string, error)
	SetNote(ctx context.Context, key, value string) error
}

// MemoryNotes is a NoteStore kept in a map.
type MemoryNotes struct {
	mu    sync.RWMutex
	notes map[string]string
}

func NewMemoryNotes() *MemoryNotes {
	return &MemoryNotes{notes: make(map[string]string)}
}

func (n *MemoryNotes) GetNote(_ context.Context, key string) (string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.notes[key]
	if !ok {
		return "", fmt.Errorf("%w: note %q", ErrNotFound, key)
	}
	return v, nil
}

func (n *MemoryNotes) SetNote(_ context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: note key is empty", ErrValidation)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes[key] = value
	return nil
}

func (s *SQLite) GetNote(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM notes WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: note %q", ErrNotFound, key)
	}
	return v, err
}

func (s *SQLite) SetNote(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: note key is empty", ErrValidation)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO notes (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	return err
}

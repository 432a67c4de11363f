// Package store owns the single mutable view of the expense table.
// Analyses never see the live slice; Snapshot hands them an independent
// copy per call.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/auditkit/expense-sentinel/internal/audit"
	"go.uber.org/zap"
)

// IDColumn is the column that uniquely identifies a record.
const IDColumn = "expense_id"

var (
	// ErrNotFound is returned when no record matches the given id.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateID is returned when adding a record whose id exists.
	ErrDuplicateID = errors.New("record id already exists")
	// ErrMissingID is returned when a record has no id value.
	ErrMissingID = errors.New("record id is required")
)

// Backend loads and persists the full expense table.
type Backend interface {
	Load(ctx context.Context) (columns []string, rows []audit.Record, err error)
	Save(ctx context.Context, columns []string, rows []audit.Record) error
}

// Store is the in-memory expense table plus its persistence backend.
// Mutations write through to the backend; readers get copies.
type Store struct {
	backend Backend
	logger  *zap.Logger

	mu      sync.RWMutex
	columns []string
	rows    []audit.Record
	index   map[string]int // id -> position in rows

	onChange func(action, id string)
}

// New creates a store and loads the initial table from the backend.
func New(ctx context.Context, backend Backend, logger *zap.Logger) (*Store, error) {
	s := &Store{
		backend: backend,
		logger:  logger,
	}
	if err := s.Reload(ctx); err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	return s, nil
}

// OnChange registers a hook invoked after every successful mutation or
// reload, with the action ("added", "updated", "deleted", "reloaded")
// and the affected record id (empty for reloads). Used to push
// record-change events to the dashboard.
func (s *Store) OnChange(fn func(action, id string)) {
	s.onChange = fn
}

// Reload replaces the in-memory table with the backend's current state.
func (s *Store) Reload(ctx context.Context) error {
	columns, rows, err := s.backend.Load(ctx)
	if err != nil {
		return err
	}

	index := make(map[string]int, len(rows))
	for i, r := range rows {
		if id := r[IDColumn]; id != "" {
			index[id] = i
		}
	}

	s.mu.Lock()
	s.columns = columns
	s.rows = rows
	s.index = index
	s.mu.Unlock()

	s.logger.Info("Expense table loaded",
		zap.Int("records", len(rows)),
		zap.Int("columns", len(columns)),
	)

	s.notify("reloaded", "")
	return nil
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Columns returns a copy of the table's column order.
func (s *Store) Columns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.columns...)
}

// Snapshot returns an independent copy of every record. The copy is safe
// to hand to analyses while the store keeps mutating.
func (s *Store) Snapshot() []audit.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make([]audit.Record, len(s.rows))
	for i, r := range s.rows {
		snap[i] = r.Clone()
	}
	return snap
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(id string) (audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.rows[i].Clone(), nil
}

// Add appends a new record. The record must carry a non-empty, unused id.
// Columns not seen before extend the table's column order.
func (s *Store) Add(ctx context.Context, rec audit.Record) error {
	id := rec[IDColumn]
	if id == "" {
		return ErrMissingID
	}

	s.mu.Lock()
	if _, exists := s.index[id]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	s.rows = append(s.rows, rec.Clone())
	s.index[id] = len(s.rows) - 1
	s.extendColumnsLocked(rec)
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.logger.Info("Record added", zap.String("expense_id", id))
	s.notify("added", id)
	return nil
}

// Update overwrites the given fields of an existing record. The id
// column itself cannot be changed.
func (s *Store) Update(ctx context.Context, id string, fields audit.Record) error {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	for k, v := range fields {
		if k == IDColumn {
			continue
		}
		s.rows[i][k] = v
	}
	s.extendColumnsLocked(fields)
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.logger.Info("Record updated", zap.String("expense_id", id))
	s.notify("updated", id)
	return nil
}

// Delete removes the record with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.rows = append(s.rows[:i], s.rows[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.rows); j++ {
		if rid := s.rows[j][IDColumn]; rid != "" {
			s.index[rid] = j
		}
	}
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.logger.Info("Record deleted", zap.String("expense_id", id))
	s.notify("deleted", id)
	return nil
}

// extendColumnsLocked appends any columns of rec that the table has not
// seen yet, preserving first-seen order.
func (s *Store) extendColumnsLocked(rec audit.Record) {
	seen := make(map[string]bool, len(s.columns))
	for _, c := range s.columns {
		seen[c] = true
	}
	for k := range rec {
		if !seen[k] {
			s.columns = append(s.columns, k)
		}
	}
}

// persistLocked writes the current table through to the backend. The
// caller holds the write lock; copies keep the backend from observing
// later mutations.
func (s *Store) persistLocked(ctx context.Context) error {
	columns := append([]string(nil), s.columns...)
	rows := make([]audit.Record, len(s.rows))
	for i, r := range s.rows {
		rows[i] = r.Clone()
	}
	if err := s.backend.Save(ctx, columns, rows); err != nil {
		return fmt.Errorf("failed to persist records: %w", err)
	}
	return nil
}

func (s *Store) notify(action, id string) {
	if s.onChange != nil {
		s.onChange(action, id)
	}
}

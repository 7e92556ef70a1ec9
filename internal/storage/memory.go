package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps every destination in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	sheets map[string][][]string
	order  []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sheets: make(map[string][][]string),
	}
}

func (s *MemoryStore) EnsureDestination(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, wrapErr("ensure", name, err)
	}
	name = SanitizeDestination(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sheets[name]; exists {
		return false, nil
	}
	s.sheets[name] = [][]string{}
	s.order = append(s.order, name)
	return true, nil
}

func (s *MemoryStore) Append(ctx context.Context, destination string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return wrapErr("append", destination, err)
	}
	destination = SanitizeDestination(destination)

	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, exists := s.sheets[destination]
	if !exists {
		return wrapErr("append", destination, ErrDestinationNotFound)
	}
	for len(sheet) > 0 && isEmptyRow(sheet[len(sheet)-1]) {
		sheet = sheet[:len(sheet)-1]
	}
	for _, row := range rows {
		sheet = append(sheet, trimRow(append([]string(nil), row...)))
	}
	s.sheets[destination] = sheet
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, destination, cell, value string) error {
	if err := ctx.Err(); err != nil {
		return wrapErr("update", destination, err)
	}
	destination = SanitizeDestination(destination)
	r, err := ParseRange(cell)
	if err != nil {
		return wrapErr("update", destination, err)
	}
	if !r.IsCell() {
		return wrapErr("update", destination, fmt.Errorf("%w: %q is not a single cell", ErrInvalidRange, cell))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, exists := s.sheets[destination]
	if !exists {
		return wrapErr("update", destination, ErrDestinationNotFound)
	}
	for len(sheet) < r.FromRow {
		sheet = append(sheet, []string{})
	}
	sheet[r.FromRow-1] = SetCell(sheet[r.FromRow-1], r.FromCol, value)
	s.sheets[destination] = sheet
	return nil
}

func (s *MemoryStore) Read(ctx context.Context, destination, cellRange string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapErr("read", destination, err)
	}
	destination = SanitizeDestination(destination)
	r, err := ParseRange(cellRange)
	if err != nil {
		return nil, wrapErr("read", destination, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sheet, exists := s.sheets[destination]
	if !exists {
		return nil, wrapErr("read", destination, ErrDestinationNotFound)
	}
	var out [][]string
	for i, row := range sheet {
		if r.ContainsRow(i + 1) {
			out = append(out, r.Slice(row))
		}
	}
	return trimRows(out), nil
}

func (s *MemoryStore) Clear(ctx context.Context, destination, cellRange string) error {
	if err := ctx.Err(); err != nil {
		return wrapErr("clear", destination, err)
	}
	destination = SanitizeDestination(destination)
	r, err := ParseRange(cellRange)
	if err != nil {
		return wrapErr("clear", destination, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, exists := s.sheets[destination]
	if !exists {
		return wrapErr("clear", destination, ErrDestinationNotFound)
	}
	for i, row := range sheet {
		if r.ContainsRow(i + 1) {
			sheet[i] = r.ClearRow(row)
		}
	}
	return nil
}

// Destinations lists destination names in creation order.
func (s *MemoryStore) Destinations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Rows returns a copy of every row of a destination.
func (s *MemoryStore) Rows(destination string) [][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sheet := s.sheets[SanitizeDestination(destination)]
	out := make([][]string, 0, len(sheet))
	for _, row := range sheet {
		out = append(out, append([]string(nil), row...))
	}
	return trimRows(out)
}

func (s *MemoryStore) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

func trimRows(rows [][]string) [][]string {
	n := len(rows)
	for n > 0 && len(rows[n-1]) == 0 {
		n--
	}
	return rows[:n]
}

package storage

import (
	"context"
	"errors"
	"fmt"
)

// SheetStore is the spreadsheet-like external store. A destination is one
// named sheet; cells are addressed in A1 notation.
type SheetStore interface {
	// EnsureDestination creates the destination if needed and reports
	// whether it was created by this call.
	EnsureDestination(ctx context.Context, name string) (bool, error)
	// Append adds rows after the last non-empty row.
	Append(ctx context.Context, destination string, rows [][]string) error
	// Update sets a single cell, e.g. "C5".
	Update(ctx context.Context, destination, cell, value string) error
	Read(ctx context.Context, destination, cellRange string) ([][]string, error)
	Clear(ctx context.Context, destination, cellRange string) error
	Close() error
}

var (
	ErrDestinationNotFound = errors.New("destination not found")
	ErrInvalidRange        = errors.New("invalid cell range")
)

// StoreError wraps any failure of an external store call.
type StoreError struct {
	Op          string
	Destination string
	Err         error
}

func (e *StoreError) Error() string {
	if e.Destination == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Destination, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func wrapErr(op, destination string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Destination: destination, Err: err}
}

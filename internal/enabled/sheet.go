package enabled

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xaenox/goodluck-bot/internal/storage"
)

const defaultSheetTimeout = 15 * time.Second

// SheetPersister keeps the set in columns A:B of a store destination. Each
// row holds a chat id and the generation that wrote it; Load only trusts the
// newest generation. Save appends a full new generation in one call and only
// then clears the older rows, so a failed save leaves the previous set
// readable. An empty set is written as a single row with no id.
type SheetPersister struct {
	store       storage.SheetStore
	destination string
	timeout     time.Duration
}

// NewSheetPersister bounds every store call by timeout.
func NewSheetPersister(store storage.SheetStore, destination string, timeout time.Duration) *SheetPersister {
	if timeout <= 0 {
		timeout = defaultSheetTimeout
	}
	return &SheetPersister{store: store, destination: destination, timeout: timeout}
}

func (p *SheetPersister) Load(ctx context.Context) ([]int64, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if _, err := p.store.EnsureDestination(callCtx, p.destination); err != nil {
		return nil, err
	}

	rows, err := p.read(ctx)
	if err != nil {
		return nil, err
	}
	newest, err := p.newestGeneration(rows)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, row := range rows {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		gen, err := generation(row)
		if err != nil {
			return nil, fmt.Errorf("bad generation in %s: %w", p.destination, err)
		}
		if gen != newest {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad chat id %q in %s: %w", row[0], p.destination, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (p *SheetPersister) Save(ctx context.Context, ids []int64) error {
	old, err := p.read(ctx)
	if err != nil {
		return err
	}
	newest, err := p.newestGeneration(old)
	if err != nil {
		return err
	}

	next := strconv.FormatInt(newest+1, 10)
	rows := make([][]string, 0, len(ids)+1)
	for _, id := range ids {
		rows = append(rows, []string{strconv.FormatInt(id, 10), next})
	}
	if len(rows) == 0 {
		rows = append(rows, []string{"", next})
	}

	appendCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.store.Append(appendCtx, p.destination, rows); err != nil {
		return err
	}

	// The new generation is durable now. A failed cleanup leaves stale rows
	// that Load ignores and the next Save clears.
	if len(old) > 0 {
		clearCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		_ = p.store.Clear(clearCtx, p.destination, fmt.Sprintf("A1:B%d", len(old)))
	}
	return nil
}

func (p *SheetPersister) read(ctx context.Context) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.store.Read(ctx, p.destination, "A:B")
}

func (p *SheetPersister) newestGeneration(rows [][]string) (int64, error) {
	var newest int64
	for _, row := range rows {
		gen, err := generation(row)
		if err != nil {
			return 0, fmt.Errorf("bad generation in %s: %w", p.destination, err)
		}
		if gen > newest {
			newest = gen
		}
	}
	return newest, nil
}

// generation returns the generation of a row. Rows without one, as written
// before generations existed, count as generation 0.
func generation(row []string) (int64, error) {
	if len(row) < 2 || strings.TrimSpace(row[1]) == "" {
		return 0, nil
	}
	return strconv.ParseInt(strings.TrimSpace(row[1]), 10, 64)
}

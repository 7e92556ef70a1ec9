package buffer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/goodluck-bot/internal/metrics"
	"github.com/xaenox/goodluck-bot/internal/models"
	"github.com/xaenox/goodluck-bot/internal/storage"
	"github.com/xaenox/goodluck-bot/internal/tally"
	"go.uber.org/zap"
)

const (
	DefaultSummaryDestination = "Summary"
	DefaultMaxAttempts        = 3
	DefaultTimeout            = 15 * time.Second
)

// ErrFlushInProgress is returned when a flush is requested while another
// one is still writing.
var ErrFlushInProgress = errors.New("flush already running")

var (
	logHeader     = []string{"Timestamp", "Sender", "Handle", "Text", "Chat", "Chat ID", "Record ID"}
	summaryHeader = []string{"Sender ID", "Name", "Count"}
)

// CountSource provides the current count of a sender for the summary.
type CountSource interface {
	Get(senderID int64) (tally.Entry, bool)
}

type Options struct {
	SummaryDestination string
	// MaxAttempts is how many failed writes a record survives before it is
	// dropped.
	MaxAttempts int
	// Timeout bounds each group of store calls.
	Timeout time.Duration
}

// Result describes one flush run.
type Result struct {
	RunID        string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Drained      int       `json:"drained"`
	Written      int       `json:"written"`
	Requeued     int       `json:"requeued"`
	Dropped      int       `json:"dropped"`
	Destinations int       `json:"destinations"`
	Upserted     int       `json:"upserted"`
	Err          error     `json:"-"`
}

// Flusher drains the Buffer into the store, one Append per destination.
type Flusher struct {
	buffer *Buffer
	store  storage.SheetStore
	counts CountSource
	opts   Options
	logger *zap.Logger

	running atomic.Bool

	mu      sync.Mutex
	known   map[string]struct{}
	dests   map[int64]string
	dirty   []int64
	last    Result
	hasLast bool
}

func NewFlusher(buf *Buffer, store storage.SheetStore, counts CountSource, opts Options, logger *zap.Logger) *Flusher {
	if opts.SummaryDestination == "" {
		opts.SummaryDestination = DefaultSummaryDestination
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Flusher{
		buffer: buf,
		store:  store,
		counts: counts,
		opts:   opts,
		logger: logger,
		known:  make(map[string]struct{}),
		dests:  make(map[int64]string),
	}
}

type group struct {
	destination string
	indexes     []int
}

// Flush writes every record buffered when it starts. Only one flush runs at
// a time; a concurrent call gets ErrFlushInProgress and drains nothing.
func (f *Flusher) Flush(ctx context.Context) (Result, error) {
	if !f.running.CompareAndSwap(false, true) {
		metrics.FlushesTotal.WithLabelValues("skipped").Inc()
		return Result{}, ErrFlushInProgress
	}
	defer f.running.Store(false)

	res := Result{RunID: uuid.NewString(), StartedAt: time.Now()}
	logger := f.logger.With(zap.String("run_id", res.RunID))

	items := f.buffer.Drain()
	res.Drained = len(items)

	var errs []error
	failed := make([]bool, len(items))
	for _, g := range f.groupByDestination(items) {
		if err := f.writeGroup(ctx, g, items); err != nil {
			logger.Error("Failed to write records",
				zap.Error(err),
				zap.String("destination", g.destination),
				zap.Int("records", len(g.indexes)))
			errs = append(errs, err)
			f.forget(g.destination)
			for _, i := range g.indexes {
				failed[i] = true
			}
			continue
		}
		res.Written += len(g.indexes)
		res.Destinations++
	}

	var requeue []Item
	for i, item := range items {
		f.markDirty(item.Record.SenderID)
		if !failed[i] {
			continue
		}
		item.Attempts++
		if item.Attempts >= f.opts.MaxAttempts {
			res.Dropped++
			logger.Error("Dropping record after repeated store failures",
				zap.String("record_id", item.Record.ID),
				zap.Int64("chat_id", item.Record.ChatID),
				zap.Int64("sender_id", item.Record.SenderID),
				zap.Int("attempts", item.Attempts))
			continue
		}
		requeue = append(requeue, item)
	}
	res.Requeued = len(requeue)
	f.buffer.Requeue(requeue)

	upserted, err := f.reconcileSummary(ctx)
	if err != nil {
		logger.Error("Failed to reconcile summary",
			zap.Error(err),
			zap.String("destination", f.opts.SummaryDestination))
		errs = append(errs, err)
	}
	res.Upserted = upserted

	res.Err = errors.Join(errs...)
	res.FinishedAt = time.Now()
	f.record(res)

	if res.Drained > 0 || res.Err != nil {
		logger.Info("Flush finished",
			zap.Int("drained", res.Drained),
			zap.Int("written", res.Written),
			zap.Int("requeued", res.Requeued),
			zap.Int("dropped", res.Dropped),
			zap.Int("upserted", res.Upserted),
			zap.Duration("took", res.FinishedAt.Sub(res.StartedAt)))
	}
	return res, res.Err
}

// Running reports whether a flush is currently writing.
func (f *Flusher) Running() bool {
	return f.running.Load()
}

// Last returns the most recent completed flush.
func (f *Flusher) Last() (Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.hasLast
}

func (f *Flusher) writeGroup(ctx context.Context, g group, items []Item) error {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	if err := f.ensure(ctx, g.destination, logHeader); err != nil {
		return err
	}
	rows := make([][]string, 0, len(g.indexes))
	for _, i := range g.indexes {
		rows = append(rows, logRow(items[i].Record))
	}
	return f.store.Append(ctx, g.destination, rows)
}

// reconcileSummary upserts the count of every sender touched since the last
// successful reconciliation: existing rows get their count cell updated,
// missing senders are appended in one call. On failure the senders stay
// dirty and are retried by the next flush.
func (f *Flusher) reconcileSummary(ctx context.Context) (int, error) {
	dirty := f.dirtySenders()
	if len(dirty) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	dest := f.opts.SummaryDestination
	if err := f.ensure(ctx, dest, summaryHeader); err != nil {
		f.forget(dest)
		return 0, err
	}
	rows, err := f.store.Read(ctx, dest, "A2:A")
	if err != nil {
		return 0, err
	}
	rowOf := make(map[string]int, len(rows))
	for i, row := range rows {
		if len(row) > 0 {
			rowOf[row[0]] = i + 2
		}
	}

	upserted := 0
	var missing [][]string
	for _, senderID := range dirty {
		entry, ok := f.counts.Get(senderID)
		if !ok {
			continue
		}
		key := strconv.FormatInt(senderID, 10)
		if row, exists := rowOf[key]; exists {
			if err := f.store.Update(ctx, dest, storage.CellRef(2, row), strconv.Itoa(entry.Count)); err != nil {
				return upserted, err
			}
			upserted++
			continue
		}
		missing = append(missing, []string{key, entry.Name, strconv.Itoa(entry.Count)})
	}
	if len(missing) > 0 {
		if err := f.store.Append(ctx, dest, missing); err != nil {
			return upserted, err
		}
		upserted += len(missing)
	}

	f.clearDirty(len(dirty))
	return upserted, nil
}

// ensure creates the destination on first use and writes its header if the
// first row is empty. Known destinations are cached so steady-state flushes
// skip the check.
func (f *Flusher) ensure(ctx context.Context, dest string, header []string) error {
	f.mu.Lock()
	_, known := f.known[dest]
	f.mu.Unlock()
	if known {
		return nil
	}

	created, err := f.store.EnsureDestination(ctx, dest)
	if err != nil {
		return err
	}
	if created {
		f.logger.Info("Created destination", zap.String("destination", dest))
	}
	first, err := f.store.Read(ctx, dest, "A1")
	if err != nil {
		return err
	}
	if len(first) == 0 {
		if err := f.store.Append(ctx, dest, [][]string{header}); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	f.mu.Lock()
	f.known[dest] = struct{}{}
	f.mu.Unlock()
	return nil
}

func (f *Flusher) forget(dest string) {
	f.mu.Lock()
	delete(f.known, dest)
	f.mu.Unlock()
}

func (f *Flusher) markDirty(senderID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.dirty {
		if id == senderID {
			return
		}
	}
	f.dirty = append(f.dirty, senderID)
}

func (f *Flusher) dirtySenders() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.dirty...)
}

// clearDirty drops the first n senders, the ones just reconciled.
func (f *Flusher) clearDirty(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirty = append([]int64(nil), f.dirty[n:]...)
}

func (f *Flusher) record(res Result) {
	outcome := "ok"
	if res.Err != nil {
		outcome = "partial"
	}
	metrics.FlushesTotal.WithLabelValues(outcome).Inc()
	metrics.FlushedRecordsTotal.WithLabelValues("written").Add(float64(res.Written))
	metrics.FlushedRecordsTotal.WithLabelValues("requeued").Add(float64(res.Requeued))
	metrics.FlushedRecordsTotal.WithLabelValues("dropped").Add(float64(res.Dropped))

	f.mu.Lock()
	f.last = res
	f.hasLast = true
	f.mu.Unlock()
}

func (f *Flusher) groupByDestination(items []Item) []group {
	var groups []group
	pos := make(map[string]int)
	for i, item := range items {
		dest := f.destinationFor(item.Record)
		idx, ok := pos[dest]
		if !ok {
			idx = len(groups)
			pos[dest] = idx
			groups = append(groups, group{destination: dest})
		}
		groups[idx].indexes = append(groups[idx].indexes, i)
	}
	return groups
}

// destinationFor pins a chat to the destination named after the first title
// it was flushed under, so a renamed chat keeps writing to the same log.
func (f *Flusher) destinationFor(rec models.PendingRecord) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if dest, ok := f.dests[rec.ChatID]; ok {
		return dest
	}
	dest := storage.ChatDestination(rec.ChatTitle, rec.ChatID)
	f.dests[rec.ChatID] = dest
	return dest
}

func logRow(rec models.PendingRecord) []string {
	handle := ""
	if rec.SenderHandle != "" {
		handle = "@" + rec.SenderHandle
	}
	return []string{
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.SenderName,
		handle,
		rec.Text,
		rec.ChatTitle,
		strconv.FormatInt(rec.ChatID, 10),
		rec.ID,
	}
}

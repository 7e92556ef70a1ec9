package enabled

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/goodluck-bot/internal/storage"
	"go.uber.org/zap"
)

type failingPersister struct {
	MemoryPersister
	fail bool
}

func (p *failingPersister) Save(ctx context.Context, ids []int64) error {
	if p.fail {
		return errors.New("disk full")
	}
	return p.MemoryPersister.Save(ctx, ids)
}

func TestSet_EnableDisableRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Load(ctx, NewMemoryPersister(1, 2), zap.NewNop())
	require.NoError(t, err)
	before := s.List()

	changed, err := s.Enable(ctx, 42)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, s.Contains(42))

	changed, err = s.Disable(ctx, 42)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, before, s.List())
}

func TestSet_EnableTwiceIsNoop(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	s, err := Load(ctx, p, zap.NewNop())
	require.NoError(t, err)

	_, err = s.Enable(ctx, 7)
	require.NoError(t, err)
	changed, err := s.Enable(ctx, 7)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, []int64{7}, s.List())

	saved, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, saved)
}

func TestSet_DisableUnknownIsNoop(t *testing.T) {
	ctx := context.Background()
	s, err := Load(ctx, NewMemoryPersister(3), zap.NewNop())
	require.NoError(t, err)

	changed, err := s.Disable(ctx, 4)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, []int64{3}, s.List())
}

func TestSet_SaveFailureLeavesSetUnchanged(t *testing.T) {
	ctx := context.Background()
	p := &failingPersister{}
	s, err := Load(ctx, p, zap.NewNop())
	require.NoError(t, err)
	_, err = s.Enable(ctx, 1)
	require.NoError(t, err)

	p.fail = true
	_, err = s.Enable(ctx, 2)
	require.Error(t, err)
	_, err = s.Disable(ctx, 1)
	require.Error(t, err)

	assert.Equal(t, []int64{1}, s.List())
	assert.False(t, s.Contains(2))
}

func TestLoad_DropsDuplicates(t *testing.T) {
	s, err := Load(context.Background(), NewMemoryPersister(5, 5, 6), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6}, s.List())
}

func TestFilePersister_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "enabled_chats.json")
	p := NewFilePersister(path)

	ids, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, p.Save(ctx, []int64{-1001, 42}))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[-1001,42]\n", string(raw))

	ids, err = p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{-1001, 42}, ids)

	require.NoError(t, p.Save(ctx, nil))
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(raw))
}

func TestFilePersister_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enabled_chats.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFilePersister(path).Load(context.Background())
	assert.Error(t, err)
}

func nonEmptyRows(rows [][]string) [][]string {
	var out [][]string
	for _, row := range rows {
		if len(row) > 0 {
			out = append(out, row)
		}
	}
	return out
}

func TestSheetPersister_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := NewSheetPersister(store, "Enabled", time.Second)

	s, err := Load(ctx, p, zap.NewNop())
	require.NoError(t, err)
	_, err = s.Enable(ctx, 10)
	require.NoError(t, err)
	_, err = s.Enable(ctx, 20)
	require.NoError(t, err)
	_, err = s.Disable(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"20", "3"}}, nonEmptyRows(store.Rows("Enabled")))

	reloaded, err := Load(ctx, p, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []int64{20}, reloaded.List())

	_, err = reloaded.Disable(ctx, 20)
	require.NoError(t, err)
	ids, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSheetPersister_ReadsRowsWithoutGeneration(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	_, err := store.EnsureDestination(ctx, "Enabled")
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, "Enabled", [][]string{{"-1001"}, {"42"}}))

	p := NewSheetPersister(store, "Enabled", time.Second)
	ids, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{-1001, 42}, ids)

	require.NoError(t, p.Save(ctx, []int64{42}))
	ids, err = p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, ids)
}

// flakyStore fails the selected calls and passes the rest to a MemoryStore.
type flakyStore struct {
	*storage.MemoryStore
	failAppend bool
	failClear  bool
}

func (s *flakyStore) Append(ctx context.Context, destination string, rows [][]string) error {
	if s.failAppend {
		return errors.New("rate limited")
	}
	return s.MemoryStore.Append(ctx, destination, rows)
}

func (s *flakyStore) Clear(ctx context.Context, destination, cellRange string) error {
	if s.failClear {
		return errors.New("rate limited")
	}
	return s.MemoryStore.Clear(ctx, destination, cellRange)
}

func TestSheetPersister_FailedAppendKeepsPreviousSet(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: storage.NewMemoryStore()}
	p := NewSheetPersister(store, "Enabled", time.Second)

	s, err := Load(ctx, p, zap.NewNop())
	require.NoError(t, err)
	_, err = s.Enable(ctx, 10)
	require.NoError(t, err)

	store.failAppend = true
	_, err = s.Enable(ctx, 20)
	require.Error(t, err)
	_, err = s.Disable(ctx, 10)
	require.Error(t, err)
	assert.Equal(t, []int64{10}, s.List())

	ids, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, ids)
}

func TestSheetPersister_FailedCleanupKeepsNewSet(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: storage.NewMemoryStore()}
	p := NewSheetPersister(store, "Enabled", time.Second)

	s, err := Load(ctx, p, zap.NewNop())
	require.NoError(t, err)
	_, err = s.Enable(ctx, 10)
	require.NoError(t, err)

	store.failClear = true
	_, err = s.Disable(ctx, 10)
	require.NoError(t, err)
	_, err = s.Enable(ctx, 20)
	require.NoError(t, err)

	ids, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{20}, ids)

	store.failClear = false
	_, err = s.Enable(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"20", "4"}, {"30", "4"}}, nonEmptyRows(store.Rows("Enabled")))
}

// stuckStore blocks every call until its context is done.
type stuckStore struct {
	*storage.MemoryStore
}

func (s stuckStore) Read(ctx context.Context, destination, cellRange string) ([][]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s stuckStore) Append(ctx context.Context, destination string, rows [][]string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s stuckStore) Clear(ctx context.Context, destination, cellRange string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSheetPersister_StoreCallsTimeOut(t *testing.T) {
	ctx := context.Background()
	p := NewSheetPersister(stuckStore{storage.NewMemoryStore()}, "Enabled", 20*time.Millisecond)
	s, err := Load(ctx, NewMemoryPersister(1), zap.NewNop())
	require.NoError(t, err)
	s.persister = p

	done := make(chan error, 1)
	go func() {
		_, err := s.Enable(ctx, 2)
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("Enable still blocked on the store")
	}
	assert.Equal(t, []int64{1}, s.List())

	_, err = p.Load(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewRedisPersister_InvalidURL(t *testing.T) {
	_, err := NewRedisPersister(context.Background(), "http://localhost:6379", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid URL")
}

func TestScoredMembers_KeepEnableOrder(t *testing.T) {
	members := scoredMembers([]int64{30, -1001, 7})
	require.Len(t, members, 3)

	var order []any
	for i, m := range members {
		assert.Equal(t, float64(i), m.Score)
		order = append(order, m.Member)
	}
	assert.Equal(t, []any{"30", "-1001", "7"}, order)
	assert.Empty(t, scoredMembers(nil))
}

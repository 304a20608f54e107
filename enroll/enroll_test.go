package enroll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/speakerid/embedding"
	"github.com/hupe1980/speakerid/store"
)

func newManager(t *testing.T, st store.Store, required, dim int) *Manager {
	t.Helper()
	m, err := NewManager(st, ManagerOptions{
		RequiredClips: required,
		Dimension:     dim,
		Now:           func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return m
}

func TestNewManagerValidation(t *testing.T) {
	st := store.NewMemoryStore()

	_, err := NewManager(st, ManagerOptions{RequiredClips: 0, Dimension: 2})
	require.Error(t, err)

	_, err = NewManager(st, ManagerOptions{RequiredClips: 4, Dimension: 0})
	require.Error(t, err)
}

func TestSubmitClipCompletion(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newManager(t, st, 4, 2)

	clips := []embedding.Vector{{1, 0}, {3, 0}, {0, 2}, {0, 6}}

	for i, v := range clips[:3] {
		res, err := m.SubmitClip(ctx, "anoushka", i+1, v)
		require.NoError(t, err)
		assert.True(t, res.Saved)
		assert.Equal(t, i+1, res.ClipsReceived)
		assert.Equal(t, 4, res.ClipsRequired)
		assert.False(t, res.Complete)
	}

	res, err := m.SubmitClip(ctx, "anoushka", 4, clips[3])
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Equal(t, 4, res.ClipsReceived)

	vp, err := st.Get(ctx, "anoushka")
	require.NoError(t, err)
	assert.Equal(t, 4, vp.ClipCount)
	assert.InDelta(t, 1, vp.Embedding[0], 1e-6)
	assert.InDelta(t, 2, vp.Embedding[1], 1e-6)

	// Working state is destroyed on commit.
	_, ok := m.Pending("anoushka")
	assert.False(t, ok)
}

func TestSubmitClipOrderIndependent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newManager(t, st, 3, 1)

	for _, idx := range []int{3, 1, 2} {
		res, err := m.SubmitClip(ctx, "bob", idx, embedding.Vector{float32(idx)})
		require.NoError(t, err)
		assert.Equal(t, idx == 2, res.Complete, "only the final submission completes")
	}

	vp, err := st.Get(ctx, "bob")
	require.NoError(t, err)
	assert.InDelta(t, 2, vp.Embedding[0], 1e-6) // mean(1, 2, 3)
}

func TestSubmitClipResubmissionDoesNotComplete(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newManager(t, st, 3, 1)

	// Fill slot 1 three times: count of submissions reaches the clip
	// requirement but slots 2 and 3 are still missing.
	for i := 0; i < 3; i++ {
		res, err := m.SubmitClip(ctx, "carol", 1, embedding.Vector{float32(i)})
		require.NoError(t, err)
		assert.False(t, res.Complete)
		assert.Equal(t, 1, res.ClipsReceived)
	}

	_, err := st.Get(ctx, "carol")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubmitClipIdempotentOverwrite(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newManager(t, st, 2, 1)

	_, err := m.SubmitClip(ctx, "dave", 1, embedding.Vector{100})
	require.NoError(t, err)

	// Overwrite slot 1; only the latest value may contribute.
	_, err = m.SubmitClip(ctx, "dave", 1, embedding.Vector{2})
	require.NoError(t, err)

	res, err := m.SubmitClip(ctx, "dave", 2, embedding.Vector{4})
	require.NoError(t, err)
	assert.True(t, res.Complete)

	vp, err := st.Get(ctx, "dave")
	require.NoError(t, err)
	assert.InDelta(t, 3, vp.Embedding[0], 1e-6) // mean(2, 4), not mean(100, 4)
}

func TestSubmitClipInvalidIndex(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, store.NewMemoryStore(), 4, 2)

	for _, idx := range []int{0, -1, 5} {
		_, err := m.SubmitClip(ctx, "erin", idx, embedding.Vector{1, 0})

		var ic *ErrInvalidClipIndex
		require.ErrorAs(t, err, &ic, "index %d", idx)
		assert.Equal(t, idx, ic.Index)
		assert.Equal(t, 4, ic.Required)
	}

	// Nothing was recorded.
	_, ok := m.Pending("erin")
	assert.False(t, ok)
}

func TestSubmitClipDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, store.NewMemoryStore(), 4, 2)

	_, err := m.SubmitClip(ctx, "frank", 1, embedding.Vector{1, 2, 3})

	var dm *embedding.ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 2, dm.Expected)
	assert.Equal(t, 3, dm.Actual)
}

// failingStore fails Put a configured number of times before succeeding.
type failingStore struct {
	store.Store
	mu       sync.Mutex
	failures int
}

func (f *failingStore) Put(ctx context.Context, vp store.Voiceprint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("disk full")
	}
	return f.Store.Put(ctx, vp)
}

func TestSubmitClipCommitFailureKeepsPending(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	st := &failingStore{Store: mem, failures: 1}
	m := newManager(t, st, 2, 1)

	_, err := m.SubmitClip(ctx, "grace", 1, embedding.Vector{1})
	require.NoError(t, err)

	_, err = m.SubmitClip(ctx, "grace", 2, embedding.Vector{3})
	require.Error(t, err)

	// The failed commit left the first clip intact and rolled back the
	// second, so retrying the second clip completes the enrollment.
	n, ok := m.Pending("grace")
	require.True(t, ok)
	assert.Equal(t, 1, n)

	res, err := m.SubmitClip(ctx, "grace", 2, embedding.Vector{3})
	require.NoError(t, err)
	assert.True(t, res.Complete)

	vp, err := mem.Get(ctx, "grace")
	require.NoError(t, err)
	assert.InDelta(t, 2, vp.Embedding[0], 1e-6)
}

func TestReEnrollmentOverwrites(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newManager(t, st, 2, 1)

	for _, val := range []float32{10, 20} {
		for idx := 1; idx <= 2; idx++ {
			_, err := m.SubmitClip(ctx, "heidi", idx, embedding.Vector{val})
			require.NoError(t, err)
		}
	}

	vp, err := st.Get(ctx, "heidi")
	require.NoError(t, err)
	assert.InDelta(t, 20, vp.Embedding[0], 1e-6)
	assert.Equal(t, 2, vp.ClipCount)
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, store.NewMemoryStore(), 4, 1)

	_, err := m.SubmitClip(ctx, "ivan", 1, embedding.Vector{1})
	require.NoError(t, err)

	assert.True(t, m.Discard("ivan"))
	assert.False(t, m.Discard("ivan"))

	_, ok := m.Pending("ivan")
	assert.False(t, ok)
}

func TestConcurrentSameUser(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newManager(t, st, 8, 1)

	// Hammer every slot from concurrent goroutines; serialization must
	// produce exactly one commit with one value per slot.
	var wg sync.WaitGroup
	for round := 0; round < 4; round++ {
		for idx := 1; idx <= 8; idx++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				_, err := m.SubmitClip(ctx, "judy", idx, embedding.Vector{float32(idx)})
				assert.NoError(t, err)
			}(idx)
		}
	}
	wg.Wait()

	vp, err := st.Get(ctx, "judy")
	require.NoError(t, err)
	assert.Equal(t, 8, vp.ClipCount)
	// Every slot always carried its index as the value, so the mean is
	// stable regardless of interleaving: mean(1..8) = 4.5.
	assert.InDelta(t, 4.5, vp.Embedding[0], 1e-6)
}

func TestConcurrentDistinctUsers(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := newManager(t, st, 2, 1)

	var wg sync.WaitGroup
	for u := 0; u < 16; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%02d", u)
			for idx := 1; idx <= 2; idx++ {
				_, err := m.SubmitClip(ctx, user, idx, embedding.Vector{float32(u)})
				assert.NoError(t, err)
			}
		}(u)
	}
	wg.Wait()

	n, err := st.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
}

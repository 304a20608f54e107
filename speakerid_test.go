package speakerid

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/speakerid/blobstore"
	"github.com/hupe1980/speakerid/extractor"
	"github.com/hupe1980/speakerid/store"
)

const testDimension = 64

func newTestEngine(t *testing.T, optFns ...Option) *Engine {
	t.Helper()

	e, err := New(extractor.NewFake(testDimension), store.NewMemoryStore(), optFns...)
	require.NoError(t, err)
	return e
}

// enrollFully submits the same audio for every clip slot, so the
// committed voiceprint equals the clip embedding exactly.
func enrollFully(t *testing.T, e *Engine, username string, audio []byte) {
	t.Helper()

	ctx := context.Background()
	for i := 1; i <= e.RequiredClips(); i++ {
		resp, err := e.Enroll(ctx, username, i, audio)
		require.NoError(t, err)
		assert.True(t, resp.Saved)
		assert.Equal(t, i, resp.ClipsReceived)
		assert.Equal(t, i == e.RequiredClips(), resp.Complete)
	}
}

func TestNew(t *testing.T) {
	t.Run("nil extractor", func(t *testing.T) {
		_, err := New(nil, store.NewMemoryStore())
		require.Error(t, err)
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := New(extractor.NewFake(testDimension), nil)
		require.Error(t, err)
	})

	t.Run("invalid threshold", func(t *testing.T) {
		_, err := New(extractor.NewFake(testDimension), store.NewMemoryStore(), WithThreshold(1.5))
		require.Error(t, err)
	})

	t.Run("invalid required clips", func(t *testing.T) {
		_, err := New(extractor.NewFake(testDimension), store.NewMemoryStore(), WithRequiredClips(-1))
		require.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		e := newTestEngine(t)
		assert.Equal(t, DefaultRequiredClips, e.RequiredClips())
		assert.InDelta(t, 0.75, e.Threshold(), 1e-6)
		assert.Equal(t, testDimension, e.Dimension())
	})
}

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{name: "lowercased", input: "Anoushka", expected: "anoushka"},
		{name: "trimmed", input: "  bob \t", expected: "bob"},
		{name: "already normal", input: "carol", expected: "carol"},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace only", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeUsername(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidUsername)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEngine_Enroll(t *testing.T) {
	ctx := context.Background()

	t.Run("progression and commit", func(t *testing.T) {
		enrolledAt := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
		e := newTestEngine(t, WithClock(func() time.Time { return enrolledAt }))

		enrollFully(t, e, "Anoushka ", []byte("clip-anoushka"))

		users, err := e.Users(ctx)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "anoushka", users[0].Username)
		assert.Equal(t, e.RequiredClips(), users[0].ClipCount)
		assert.True(t, users[0].EnrolledAt.Equal(enrolledAt))
	})

	t.Run("no commit before all slots filled", func(t *testing.T) {
		e := newTestEngine(t)

		// Resubmitting slot 1 repeatedly never completes the enrollment.
		for range 10 {
			resp, err := e.Enroll(ctx, "dave", 1, []byte("clip"))
			require.NoError(t, err)
			assert.Equal(t, 1, resp.ClipsReceived)
			assert.False(t, resp.Complete)
		}

		users, err := e.Users(ctx)
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("invalid username", func(t *testing.T) {
		e := newTestEngine(t)

		_, err := e.Enroll(ctx, "   ", 1, []byte("clip"))
		require.ErrorIs(t, err, ErrInvalidUsername)
		assert.Equal(t, "invalid_username", ErrorCode(err))
	})

	t.Run("invalid clip index", func(t *testing.T) {
		e := newTestEngine(t)

		for _, idx := range []int{0, -1, e.RequiredClips() + 1} {
			_, err := e.Enroll(ctx, "erin", idx, []byte("clip"))

			var ic *ErrInvalidClipIndex
			require.ErrorAs(t, err, &ic)
			assert.Equal(t, idx, ic.Index)
			assert.Equal(t, e.RequiredClips(), ic.Required)
			assert.Equal(t, "invalid_clip_index", ErrorCode(err))
		}
	})

	t.Run("extraction failure", func(t *testing.T) {
		ext := extractor.NewFake(testDimension)
		ext.Fail = true

		e, err := New(ext, store.NewMemoryStore())
		require.NoError(t, err)

		_, err = e.Enroll(ctx, "frank", 1, []byte("clip"))
		require.ErrorIs(t, err, ErrExtractionFailed)
		assert.Equal(t, "extraction_failed", ErrorCode(err))
	})

	t.Run("re-enrollment overwrites", func(t *testing.T) {
		e := newTestEngine(t)

		enrollFully(t, e, "grace", []byte("old-voice"))
		enrollFully(t, e, "grace", []byte("new-voice"))

		resp, err := e.Identify(ctx, []byte("new-voice"))
		require.NoError(t, err)
		assert.Equal(t, "grace", resp.Prediction)
		assert.InDelta(t, 1.0, resp.Confidence, 1e-5)

		resp, err = e.Identify(ctx, []byte("old-voice"))
		require.NoError(t, err)
		assert.Equal(t, UnknownSpeaker, resp.Prediction)
	})
}

func TestEngine_Identify(t *testing.T) {
	ctx := context.Background()

	t.Run("match", func(t *testing.T) {
		e := newTestEngine(t)
		enrollFully(t, e, "alice", []byte("voice-alice"))
		enrollFully(t, e, "bob", []byte("voice-bob"))

		resp, err := e.Identify(ctx, []byte("voice-alice"))
		require.NoError(t, err)
		assert.True(t, resp.Matched)
		assert.Equal(t, "alice", resp.Prediction)
		assert.InDelta(t, 1.0, resp.Confidence, 1e-5)
		assert.InDelta(t, e.Threshold(), resp.Threshold, 1e-6)
		require.Len(t, resp.Similarities, 2)
		assert.Contains(t, resp.Similarities, "alice")
		assert.Contains(t, resp.Similarities, "bob")
	})

	t.Run("unknown speaker", func(t *testing.T) {
		e := newTestEngine(t)
		enrollFully(t, e, "alice", []byte("voice-alice"))

		resp, err := e.Identify(ctx, []byte("voice-stranger"))
		require.NoError(t, err)
		assert.False(t, resp.Matched)
		assert.Equal(t, UnknownSpeaker, resp.Prediction)
		assert.Less(t, resp.Confidence, e.Threshold())
		// The full similarity map is still reported for auditing.
		assert.Contains(t, resp.Similarities, "alice")
	})

	t.Run("empty store", func(t *testing.T) {
		e := newTestEngine(t)

		_, err := e.Identify(ctx, []byte("voice"))
		require.ErrorIs(t, err, ErrNoEnrolledUsers)
		assert.Equal(t, "no_enrolled_users", ErrorCode(err))
	})

	t.Run("extraction failure", func(t *testing.T) {
		ext := extractor.NewFake(testDimension)
		e, err := New(ext, store.NewMemoryStore())
		require.NoError(t, err)
		enrollFully(t, e, "alice", []byte("voice-alice"))

		ext.Fail = true

		_, err = e.Identify(ctx, []byte("voice"))
		require.ErrorIs(t, err, ErrExtractionFailed)
	})
}

func TestEngine_Users_Sorted(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	for _, name := range []string{"zoe", "amy", "mia"} {
		enrollFully(t, e, name, []byte("voice-"+name))
	}

	users, err := e.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "amy", users[0].Username)
	assert.Equal(t, "mia", users[1].Username)
	assert.Equal(t, "zoe", users[2].Username)
}

func TestEngine_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("enrolled user", func(t *testing.T) {
		e := newTestEngine(t)
		enrollFully(t, e, "alice", []byte("voice-alice"))

		require.NoError(t, e.Remove(ctx, "Alice"))

		users, err := e.Users(ctx)
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("missing user", func(t *testing.T) {
		e := newTestEngine(t)

		err := e.Remove(ctx, "nobody")
		require.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, "not_found", ErrorCode(err))
	})

	t.Run("pending enrollment only", func(t *testing.T) {
		e := newTestEngine(t)

		_, err := e.Enroll(ctx, "bob", 1, []byte("clip"))
		require.NoError(t, err)
		_, err = e.Enroll(ctx, "bob", 2, []byte("clip"))
		require.NoError(t, err)

		// Pending-only state still counts as something to delete.
		require.NoError(t, e.Remove(ctx, "bob"))

		// The next submission starts from scratch.
		resp, err := e.Enroll(ctx, "bob", 1, []byte("clip"))
		require.NoError(t, err)
		assert.Equal(t, 1, resp.ClipsReceived)
	})

	t.Run("invalid username", func(t *testing.T) {
		e := newTestEngine(t)
		require.ErrorIs(t, e.Remove(ctx, " "), ErrInvalidUsername)
	})
}

func TestEngine_Snapshot(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()

	e1 := newTestEngine(t, WithCompression(store.CompressionZstd))
	enrollFully(t, e1, "alice", []byte("voice-alice"))
	enrollFully(t, e1, "bob", []byte("voice-bob"))

	require.NoError(t, e1.SaveSnapshot(ctx, bs, "voiceprints.snap"))

	e2 := newTestEngine(t)
	require.NoError(t, e2.LoadSnapshot(ctx, bs, "voiceprints.snap"))

	resp, err := e2.Identify(ctx, []byte("voice-bob"))
	require.NoError(t, err)
	assert.Equal(t, "bob", resp.Prediction)
	assert.InDelta(t, 1.0, resp.Confidence, 1e-5)

	t.Run("missing snapshot", func(t *testing.T) {
		err := e2.LoadSnapshot(ctx, bs, "does-not-exist.snap")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("non-memory store", func(t *testing.T) {
		bst, err := store.NewBadgerStore(store.BadgerOptions{InMemory: true})
		require.NoError(t, err)
		t.Cleanup(func() { _ = bst.Close() })

		e3, err := New(extractor.NewFake(testDimension), bst)
		require.NoError(t, err)
		require.Error(t, e3.LoadSnapshot(ctx, bs, "voiceprints.snap"))
	})
}

func TestEngine_Metrics(t *testing.T) {
	ctx := context.Background()
	collector := &BasicMetricsCollector{}

	e := newTestEngine(t, WithMetrics(collector))
	enrollFully(t, e, "alice", []byte("voice-alice"))

	_, err := e.Identify(ctx, []byte("voice-alice"))
	require.NoError(t, err)
	_, err = e.Identify(ctx, []byte("voice-stranger"))
	require.NoError(t, err)

	stats := collector.Stats()
	assert.Equal(t, int64(e.RequiredClips()), stats.Enrolls)
	assert.Equal(t, int64(1), stats.EnrollsCompleted)
	assert.Equal(t, int64(2), stats.Identifies)
	assert.Equal(t, int64(1), stats.IdentifiesMatched)
}

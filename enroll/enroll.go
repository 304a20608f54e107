// Package enroll implements the enrollment state machine: per-user clip
// embeddings are accumulated until all required clip slots are filled,
// then averaged into a single voiceprint and committed to the store.
//
// The manager exclusively owns in-progress enrollment state. Ownership
// of the averaged vector passes to the store at commit time, after which
// the working state is destroyed.
package enroll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/speakerid/embedding"
	"github.com/hupe1980/speakerid/store"
)

// ErrInvalidClipIndex indicates a clip index outside [1, RequiredClips].
type ErrInvalidClipIndex struct {
	Index    int
	Required int
}

func (e *ErrInvalidClipIndex) Error() string {
	return fmt.Sprintf("clip index %d out of range [1, %d]", e.Index, e.Required)
}

// Result reports the state of an enrollment after a clip submission.
type Result struct {
	Saved         bool
	ClipsReceived int
	ClipsRequired int
	Complete      bool
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// RequiredClips is the number of distinct clip slots that must be
	// filled before a voiceprint is committed. Must be positive.
	RequiredClips int

	// Dimension is the embedding dimension every submitted vector must
	// have. Must be positive.
	Dimension int

	// Now supplies commit timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Manager accumulates per-user clip embeddings and commits completed
// enrollments to the voiceprint store.
//
// Submissions for the same username are serialized; different usernames
// proceed fully in parallel.
type Manager struct {
	store     store.Store
	required  int
	dimension int
	now       func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingEnrollment
}

// pendingEnrollment is the working state for one username.
//
// consumed is set once the enrollment commits (or is discarded) while
// the entry may still be referenced by a goroutine that looked it up
// before removal; such a goroutine retries its lookup.
type pendingEnrollment struct {
	mu       sync.Mutex
	clips    map[int]embedding.Vector
	consumed bool
}

// NewManager creates an enrollment manager writing to st.
func NewManager(st store.Store, opts ManagerOptions) (*Manager, error) {
	if opts.RequiredClips <= 0 {
		return nil, fmt.Errorf("enroll: RequiredClips must be positive, got %d", opts.RequiredClips)
	}
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("enroll: Dimension must be positive, got %d", opts.Dimension)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{
		store:     st,
		required:  opts.RequiredClips,
		dimension: opts.Dimension,
		now:       now,
		pending:   make(map[string]*pendingEnrollment),
	}, nil
}

// RequiredClips returns the configured clip count.
func (m *Manager) RequiredClips() int { return m.required }

// SubmitClip records one clip embedding for a username.
//
// Re-submitting a clip index overwrites that slot only. When every index
// in 1..RequiredClips is present the mean vector is committed to the
// store (replacing any prior voiceprint for the username) and the
// working state is destroyed. A store failure leaves the working state
// exactly as it was before the call.
//
// The username is treated as an opaque, already-normalized key.
func (m *Manager) SubmitClip(ctx context.Context, username string, clipIndex int, v embedding.Vector) (Result, error) {
	if clipIndex < 1 || clipIndex > m.required {
		return Result{}, &ErrInvalidClipIndex{Index: clipIndex, Required: m.required}
	}
	if v.Dimension() != m.dimension {
		return Result{}, &embedding.ErrDimensionMismatch{Expected: m.dimension, Actual: v.Dimension()}
	}

	for {
		p := m.lookupOrCreate(username)
		p.mu.Lock()
		if p.consumed {
			// Lost a race with a commit or discard of the same username;
			// this submission starts a fresh enrollment.
			p.mu.Unlock()
			continue
		}

		res, err := m.submitLocked(ctx, username, clipIndex, v, p)
		p.mu.Unlock()
		return res, err
	}
}

func (m *Manager) lookupOrCreate(username string) *pendingEnrollment {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[username]
	if !ok {
		p = &pendingEnrollment{clips: make(map[int]embedding.Vector)}
		m.pending[username] = p
	}
	return p
}

// submitLocked does the read-modify-write under p.mu.
func (m *Manager) submitLocked(ctx context.Context, username string, clipIndex int, v embedding.Vector, p *pendingEnrollment) (Result, error) {
	prev, hadPrev := p.clips[clipIndex]
	p.clips[clipIndex] = v.Clone()

	// Completion requires every index, not merely a count: resubmitting
	// slot k while slot j is missing must not trigger a commit.
	if len(p.clips) < m.required {
		return Result{
			Saved:         true,
			ClipsReceived: len(p.clips),
			ClipsRequired: m.required,
		}, nil
	}

	vs := make([]embedding.Vector, 0, m.required)
	for i := 1; i <= m.required; i++ {
		vs = append(vs, p.clips[i])
	}

	mean, err := embedding.Mean(vs)
	if err != nil {
		// Dimensions were checked on every submission, so this is a bug.
		return Result{}, fmt.Errorf("enroll: averaging failed: %w", err)
	}

	vp := store.Voiceprint{
		Username:   username,
		Embedding:  mean,
		EnrolledAt: m.now(),
		ClipCount:  m.required,
	}
	if err := m.store.Put(ctx, vp); err != nil {
		// Roll the slot back so a retry with any clip can re-commit.
		if hadPrev {
			p.clips[clipIndex] = prev
		} else {
			delete(p.clips, clipIndex)
		}
		return Result{}, fmt.Errorf("enroll: commit voiceprint: %w", err)
	}

	p.consumed = true
	p.clips = nil

	m.mu.Lock()
	if m.pending[username] == p {
		delete(m.pending, username)
	}
	m.mu.Unlock()

	return Result{
		Saved:         true,
		ClipsReceived: m.required,
		ClipsRequired: m.required,
		Complete:      true,
	}, nil
}

// Pending reports how many distinct clips have been received for an
// in-progress enrollment, and whether one exists.
func (m *Manager) Pending(username string) (int, bool) {
	m.mu.Lock()
	p, ok := m.pending[username]
	m.mu.Unlock()
	if !ok {
		return 0, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consumed {
		return 0, false
	}
	return len(p.clips), true
}

// Discard drops any in-progress enrollment state for a username.
// It reports whether state existed.
func (m *Manager) Discard(username string) bool {
	m.mu.Lock()
	p, ok := m.pending[username]
	if ok {
		delete(m.pending, username)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consumed {
		return false
	}
	p.consumed = true
	p.clips = nil
	return true
}

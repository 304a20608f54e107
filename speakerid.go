package speakerid

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/speakerid/blobstore"
	"github.com/hupe1980/speakerid/classify"
	"github.com/hupe1980/speakerid/enroll"
	"github.com/hupe1980/speakerid/extractor"
	"github.com/hupe1980/speakerid/store"
)

// UnknownSpeaker is the boundary rendering of an identification that
// found enrolled users but none above the threshold. Inside the engine
// the unmatched state is carried as IdentifyResponse.Matched, never as
// this string mixed in with real usernames.
const UnknownSpeaker = "Unknown"

// EnrollResponse reports the state of an enrollment after one clip.
type EnrollResponse struct {
	Saved         bool `json:"saved"`
	ClipsReceived int  `json:"clips_received"`
	ClipsRequired int  `json:"clips_required"`
	Complete      bool `json:"enrollment_complete"`
}

// IdentifyResponse is the result of scoring a probe clip against every
// enrolled voiceprint.
type IdentifyResponse struct {
	// Prediction is the matched username, or UnknownSpeaker when no
	// similarity cleared the threshold.
	Prediction string `json:"prediction"`

	// Confidence is the maximum similarity observed, in [-1, 1].
	Confidence float32 `json:"confidence"`

	// Threshold echoes the configured decision threshold.
	Threshold float32 `json:"threshold"`

	// Similarities maps every enrolled username to its similarity, to
	// support auditing near-threshold decisions.
	Similarities map[string]float32 `json:"all_similarities"`

	// Matched reports whether Prediction names an enrolled user.
	Matched bool `json:"-"`
}

// User describes an enrolled user.
type User struct {
	Username   string    `json:"username"`
	EnrolledAt time.Time `json:"enrolled_date"`
	ClipCount  int       `json:"clips_count"`
}

// Engine is the speaker identification core: enrollment, identification
// and user management over one extractor and one voiceprint store.
type Engine struct {
	extractor   extractor.Extractor
	store       store.Store
	enroller    *enroll.Manager
	classifier  *classify.Classifier
	dimension   int
	logger      *Logger
	metrics     MetricsCollector
	snapshotOps store.SnapshotOptions
}

// New creates an engine using ext for embedding extraction and st as
// the voiceprint store.
func New(ext extractor.Extractor, st store.Store, optFns ...Option) (*Engine, error) {
	if ext == nil {
		return nil, errors.New("speakerid: extractor must not be nil")
	}
	if st == nil {
		return nil, errors.New("speakerid: store must not be nil")
	}

	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	dimension := opts.dimension
	if dimension == 0 {
		dimension = ext.Dimension()
	}

	enroller, err := enroll.NewManager(st, enroll.ManagerOptions{
		RequiredClips: opts.requiredClips,
		Dimension:     dimension,
		Now:           opts.now,
	})
	if err != nil {
		return nil, err
	}

	classifier, err := classify.New(st, func(o *classify.Options) {
		o.Threshold = opts.threshold
		o.Parallel = opts.parallelScan
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		extractor:  ext,
		store:      st,
		enroller:   enroller,
		classifier: classifier,
		dimension:  dimension,
		logger:     opts.logger,
		metrics:    opts.metrics,
		snapshotOps: store.SnapshotOptions{
			Codec:       opts.codec,
			Compression: opts.compression,
		},
	}, nil
}

// RequiredClips returns the configured clip count per enrollment.
func (e *Engine) RequiredClips() int { return e.enroller.RequiredClips() }

// Threshold returns the configured similarity threshold.
func (e *Engine) Threshold() float32 { return e.classifier.Threshold() }

// Dimension returns the embedding dimension the engine enforces.
func (e *Engine) Dimension() int { return e.dimension }

// NormalizeUsername applies the engine's username normalization:
// whitespace-trimmed and lowercased. It fails with ErrInvalidUsername
// when nothing remains.
func NormalizeUsername(username string) (string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return "", fmt.Errorf("%w: empty after normalization", ErrInvalidUsername)
	}
	return username, nil
}

// Enroll extracts an embedding from one audio clip and records it as
// clip clipIndex (1-based) of the username's enrollment. When the final
// missing slot fills, the averaged voiceprint commits to the store,
// replacing any previous voiceprint for that user.
func (e *Engine) Enroll(ctx context.Context, username string, clipIndex int, audio []byte) (EnrollResponse, error) {
	start := time.Now()
	resp, err := e.enrollInner(ctx, username, clipIndex, audio)

	e.metrics.RecordEnroll(time.Since(start), resp.Complete, err)
	e.logger.LogEnroll(ctx, username, clipIndex, resp.Complete, err)
	return resp, err
}

func (e *Engine) enrollInner(ctx context.Context, username string, clipIndex int, audio []byte) (EnrollResponse, error) {
	username, err := NormalizeUsername(username)
	if err != nil {
		return EnrollResponse{}, err
	}

	v, err := e.extractor.Extract(ctx, audio)
	if err != nil {
		return EnrollResponse{}, translateError(err)
	}

	res, err := e.enroller.SubmitClip(ctx, username, clipIndex, v)
	if err != nil {
		return EnrollResponse{}, persistenceError(err)
	}

	return EnrollResponse{
		Saved:         res.Saved,
		ClipsReceived: res.ClipsReceived,
		ClipsRequired: res.ClipsRequired,
		Complete:      res.Complete,
	}, nil
}

// Identify extracts an embedding from the probe clip and scores it
// against every enrolled voiceprint.
//
// An empty store fails with ErrNoEnrolledUsers; a store with users but
// no similarity above the threshold succeeds with Prediction set to
// UnknownSpeaker.
func (e *Engine) Identify(ctx context.Context, audio []byte) (IdentifyResponse, error) {
	start := time.Now()
	resp, err := e.identifyInner(ctx, audio)

	e.metrics.RecordIdentify(time.Since(start), resp.Matched, err)
	e.logger.LogIdentify(ctx, resp.Prediction, resp.Confidence, err)
	return resp, err
}

func (e *Engine) identifyInner(ctx context.Context, audio []byte) (IdentifyResponse, error) {
	v, err := e.extractor.Extract(ctx, audio)
	if err != nil {
		return IdentifyResponse{}, translateError(err)
	}

	out, err := e.classifier.Identify(ctx, v)
	if err != nil {
		return IdentifyResponse{}, persistenceError(err)
	}

	prediction := UnknownSpeaker
	if out.Matched {
		prediction = out.Best
	}

	return IdentifyResponse{
		Prediction:   prediction,
		Confidence:   out.Confidence,
		Threshold:    out.Threshold,
		Similarities: out.Similarities,
		Matched:      out.Matched,
	}, nil
}

// Users returns every enrolled user, sorted by username.
func (e *Engine) Users(ctx context.Context) ([]User, error) {
	infos, err := e.store.List(ctx)
	if err != nil {
		return nil, persistenceError(err)
	}

	users := make([]User, 0, len(infos))
	for _, info := range infos {
		users = append(users, User{
			Username:   info.Username,
			EnrolledAt: info.EnrolledAt,
			ClipCount:  info.ClipCount,
		})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// Remove deletes a user's voiceprint and discards any in-progress
// enrollment state. It fails with ErrNotFound when neither exists.
func (e *Engine) Remove(ctx context.Context, username string) error {
	start := time.Now()
	err := e.removeInner(ctx, username)

	e.metrics.RecordDelete(time.Since(start), err)
	e.logger.LogDelete(ctx, username, err)
	return err
}

func (e *Engine) removeInner(ctx context.Context, username string) error {
	username, err := NormalizeUsername(username)
	if err != nil {
		return err
	}

	discarded := e.enroller.Discard(username)

	if err := e.store.Delete(ctx, username); err != nil {
		if errors.Is(err, store.ErrNotFound) && discarded {
			// No committed voiceprint, but pending state existed and is
			// now gone: the user was deleted as far as callers care.
			return nil
		}
		return persistenceError(err)
	}
	return nil
}

// SaveSnapshot writes the full store contents as a single blob using
// the engine's configured codec and compression.
func (e *Engine) SaveSnapshot(ctx context.Context, bs blobstore.BlobStore, name string) error {
	err := store.SaveSnapshot(ctx, bs, name, e.store, e.snapshotOps)
	err = persistenceError(err)
	e.logger.LogSnapshot(ctx, "save", name, err)
	return err
}

// LoadSnapshot restores the store contents from a snapshot blob. The
// engine's store must be a *store.MemoryStore; durable stores carry
// their own persistence.
func (e *Engine) LoadSnapshot(ctx context.Context, bs blobstore.BlobStore, name string) error {
	mem, ok := e.store.(*store.MemoryStore)
	if !ok {
		return fmt.Errorf("speakerid: snapshot restore requires a memory store, have %T", e.store)
	}

	err := persistenceError(store.LoadSnapshot(ctx, bs, name, mem))
	e.logger.LogSnapshot(ctx, "load", name, err)
	return err
}

package speakerid

import (
	"errors"
	"fmt"

	"github.com/hupe1980/speakerid/blobstore"
	"github.com/hupe1980/speakerid/classify"
	"github.com/hupe1980/speakerid/embedding"
	"github.com/hupe1980/speakerid/enroll"
	"github.com/hupe1980/speakerid/extractor"
	"github.com/hupe1980/speakerid/store"
)

var (
	// ErrInvalidUsername is returned when a username is empty after
	// normalization.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrNotFound is returned when no voiceprint exists for a username.
	ErrNotFound = errors.New("not found")

	// ErrNoEnrolledUsers is returned by Identify when the store is
	// empty. It is deliberately distinct from an unmatched result: it
	// signals that enrollment, not a better probe, is the remedy.
	ErrNoEnrolledUsers = errors.New("no enrolled users")

	// ErrExtractionFailed is returned when the external encoder could
	// not produce an embedding from the supplied audio.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrDegenerateEmbedding is returned when a zero-norm vector shows
	// up where cosine similarity needs a direction.
	ErrDegenerateEmbedding = errors.New("degenerate embedding")

	// ErrPersistenceFailed is returned when the voiceprint store or the
	// snapshot backend failed an I/O operation.
	ErrPersistenceFailed = errors.New("persistence failed")

	// ErrSnapshotCorrupt is returned when a snapshot fails validation.
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")
)

// ErrInvalidClipIndex indicates a clip index outside [1, RequiredClips].
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidClipIndex struct {
	Index    int
	Required int
	cause    error
}

func (e *ErrInvalidClipIndex) Error() string {
	return fmt.Sprintf("invalid clip index %d: must be in [1, %d]", e.Index, e.Required)
}

func (e *ErrInvalidClipIndex) Unwrap() error { return e.cause }

// ErrDimensionMismatch indicates an embedding of the wrong dimension.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// translateError maps subpackage errors onto the engine's public error
// contract.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	// Extraction and scoring.
	if errors.Is(err, extractor.ErrExtractionFailed) {
		return fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	if errors.Is(err, classify.ErrNoEnrolledUsers) {
		return fmt.Errorf("%w: %w", ErrNoEnrolledUsers, err)
	}
	if errors.Is(err, classify.ErrDegenerateEmbedding) || errors.Is(err, embedding.ErrZeroVector) {
		return fmt.Errorf("%w: %w", ErrDegenerateEmbedding, err)
	}

	// Argument normalization.
	var ic *enroll.ErrInvalidClipIndex
	if errors.As(err, &ic) {
		return &ErrInvalidClipIndex{Index: ic.Index, Required: ic.Required, cause: err}
	}
	var dm *embedding.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}

	// Persistence.
	if errors.Is(err, store.ErrSnapshotCorrupt) {
		return fmt.Errorf("%w: %w", ErrSnapshotCorrupt, err)
	}

	return err
}

// persistenceError wraps a store/blobstore failure that has no more
// specific classification.
func persistenceError(err error) error {
	translated := translateError(err)
	if translated == nil {
		return nil
	}
	if isClassified(translated) {
		return translated
	}
	return fmt.Errorf("%w: %w", ErrPersistenceFailed, translated)
}

func isClassified(err error) bool {
	for _, sentinel := range []error{
		ErrInvalidUsername, ErrNotFound, ErrNoEnrolledUsers,
		ErrExtractionFailed, ErrDegenerateEmbedding,
		ErrPersistenceFailed, ErrSnapshotCorrupt,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	var ic *ErrInvalidClipIndex
	var dm *ErrDimensionMismatch
	return errors.As(err, &ic) || errors.As(err, &dm)
}

// ErrorCode returns a stable, boundary-friendly code for an engine error.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidUsername):
		return "invalid_username"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNoEnrolledUsers):
		return "no_enrolled_users"
	case errors.Is(err, ErrExtractionFailed):
		return "extraction_failed"
	case errors.Is(err, ErrDegenerateEmbedding):
		return "degenerate_embedding"
	case errors.Is(err, ErrSnapshotCorrupt):
		return "snapshot_corrupt"
	case errors.Is(err, ErrPersistenceFailed):
		return "persistence_failed"
	}

	var ic *ErrInvalidClipIndex
	if errors.As(err, &ic) {
		return "invalid_clip_index"
	}
	var dm *ErrDimensionMismatch
	if errors.As(err, &dm) {
		return "dimension_mismatch"
	}
	return "internal"
}

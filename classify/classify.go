// Package classify scores a probe embedding against every enrolled
// voiceprint and decides whether the best match is confident enough.
//
// The scan is exact and exhaustive: enrolled populations are small, so
// there is no index, only cosine similarity against each voiceprint.
package classify

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/speakerid/embedding"
	"github.com/hupe1980/speakerid/store"
)

var (
	// ErrNoEnrolledUsers is returned when the store is empty. This is a
	// distinct condition from "no match": it calls for enrollment, not a
	// better probe.
	ErrNoEnrolledUsers = errors.New("no enrolled users")

	// ErrDegenerateEmbedding is returned when the probe or a stored
	// voiceprint has zero norm; cosine similarity is undefined for it.
	ErrDegenerateEmbedding = errors.New("degenerate embedding")
)

// DefaultThreshold is the default minimum similarity for a match.
const DefaultThreshold = 0.75

// defaultParallelCutoff is the store size at which the scan fans out
// across goroutines. Below it the serial loop wins on overhead.
const defaultParallelCutoff = 64

// Outcome is the result of an identification.
//
// Best and Confidence are always populated from the highest-scoring
// voiceprint; Matched reports whether that score cleared the threshold.
// Rendering an unmatched outcome as the string "Unknown" is left to the
// boundary layer.
type Outcome struct {
	Best         string
	Confidence   float32
	Threshold    float32
	Matched      bool
	Similarities map[string]float32
}

// Options configures a Classifier.
type Options struct {
	// Threshold is the minimum similarity for a match, in [-1, 1].
	// Defaults to DefaultThreshold.
	Threshold float32

	// Parallel enables a fan-out scan for stores at or above
	// ParallelCutoff voiceprints.
	Parallel bool

	// ParallelCutoff overrides the store size at which the parallel
	// scan kicks in. Zero means the default.
	ParallelCutoff int
}

// Classifier identifies the best-matching enrolled user for a probe.
type Classifier struct {
	store          store.Store
	threshold      float32
	parallel       bool
	parallelCutoff int
}

// New creates a classifier reading from st.
func New(st store.Store, optFns ...func(*Options)) (*Classifier, error) {
	opts := Options{
		Threshold:      DefaultThreshold,
		ParallelCutoff: defaultParallelCutoff,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Threshold < -1 || opts.Threshold > 1 {
		return nil, fmt.Errorf("classify: threshold %v outside [-1, 1]", opts.Threshold)
	}
	if opts.ParallelCutoff <= 0 {
		opts.ParallelCutoff = defaultParallelCutoff
	}

	return &Classifier{
		store:          st,
		threshold:      opts.Threshold,
		parallel:       opts.Parallel,
		parallelCutoff: opts.ParallelCutoff,
	}, nil
}

// Threshold returns the configured similarity threshold.
func (c *Classifier) Threshold() float32 { return c.threshold }

// Identify scores probe against every enrolled voiceprint.
//
// Ties on the maximum similarity resolve to the lexicographically
// smallest username: voiceprints are scanned in sorted username order
// and the best candidate is replaced only on strictly greater
// similarity, so the winner is deterministic for a given store snapshot.
func (c *Classifier) Identify(ctx context.Context, probe embedding.Vector) (Outcome, error) {
	vps, err := c.store.All(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("classify: read voiceprints: %w", err)
	}
	if len(vps) == 0 {
		return Outcome{}, ErrNoEnrolledUsers
	}

	sort.Slice(vps, func(i, j int) bool { return vps[i].Username < vps[j].Username })

	sims := make([]float32, len(vps))
	if c.parallel && len(vps) >= c.parallelCutoff {
		err = c.scoreParallel(ctx, probe, vps, sims)
	} else {
		err = scoreSerial(probe, vps, sims)
	}
	if err != nil {
		return Outcome{}, err
	}

	similarities := make(map[string]float32, len(vps))
	best := vps[0].Username
	bestSim := sims[0]
	for i, vp := range vps {
		similarities[vp.Username] = sims[i]
		if sims[i] > bestSim {
			best = vp.Username
			bestSim = sims[i]
		}
	}

	return Outcome{
		Best:         best,
		Confidence:   bestSim,
		Threshold:    c.threshold,
		Matched:      bestSim >= c.threshold,
		Similarities: similarities,
	}, nil
}

func score(probe embedding.Vector, vp store.Voiceprint) (float32, error) {
	sim, err := embedding.CosineSimilarity(probe, vp.Embedding)
	if errors.Is(err, embedding.ErrZeroVector) {
		return 0, fmt.Errorf("%w: scoring %q: %v", ErrDegenerateEmbedding, vp.Username, err)
	}
	if err != nil {
		return 0, fmt.Errorf("classify: scoring %q: %w", vp.Username, err)
	}
	return sim, nil
}

func scoreSerial(probe embedding.Vector, vps []store.Voiceprint, sims []float32) error {
	for i, vp := range vps {
		sim, err := score(probe, vp)
		if err != nil {
			return err
		}
		sims[i] = sim
	}
	return nil
}

func (c *Classifier) scoreParallel(ctx context.Context, probe embedding.Vector, vps []store.Voiceprint, sims []float32) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	chunk := (len(vps) + runtime.GOMAXPROCS(0) - 1) / runtime.GOMAXPROCS(0)
	if chunk < 1 {
		chunk = 1
	}

	for start := 0; start < len(vps); start += chunk {
		end := min(start+chunk, len(vps))
		g.Go(func() error {
			return scoreSerial(probe, vps[start:end], sims[start:end])
		})
	}
	return g.Wait()
}

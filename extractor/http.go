package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hupe1980/speakerid/embedding"
	"golang.org/x/time/rate"
)

// DefaultDimension is the output dimensionality of the resemblyzer-style
// encoder the reference deployment runs behind HTTPExtractor.
const DefaultDimension = 256

// HTTPOptions configures an HTTPExtractor.
type HTTPOptions struct {
	// HTTPClient is the client used for requests.
	// Defaults to a client with a 30s timeout.
	HTTPClient *http.Client

	// Dimension is the expected embedding dimension.
	// Defaults to DefaultDimension.
	Dimension int

	// RequestsPerSecond throttles calls to the encoder service.
	// Zero means no throttling.
	RequestsPerSecond float64

	// Burst is the rate limiter burst size. Defaults to 1 when
	// RequestsPerSecond is set.
	Burst int
}

// HTTPExtractor calls a remote encoder service that accepts raw audio
// bytes and responds with a JSON embedding:
//
//	POST <endpoint>  body: audio bytes
//	200: {"embedding": [0.01, ...]}
//
// Encoder inference is the one slow step in the pipeline, so requests
// can be rate limited to protect the backend.
type HTTPExtractor struct {
	endpoint  string
	client    *http.Client
	dimension int
	limiter   *rate.Limiter
}

var _ Extractor = (*HTTPExtractor)(nil)

// NewHTTPExtractor creates an extractor client for the given endpoint.
func NewHTTPExtractor(endpoint string, optFns ...func(*HTTPOptions)) *HTTPExtractor {
	opts := HTTPOptions{
		Dimension: DefaultDimension,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &HTTPExtractor{
		endpoint:  endpoint,
		client:    client,
		dimension: opts.Dimension,
		limiter:   limiter,
	}
}

// Dimension returns the expected embedding dimension.
func (e *HTTPExtractor) Dimension() int { return e.dimension }

type encodeResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error"`
}

// Extract sends the audio to the encoder service and decodes the result.
func (e *HTTPExtractor) Extract(ctx context.Context, audio []byte) (embedding.Vector, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio", ErrExtractionFailed)
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrExtractionFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: encoder returned %s: %s", ErrExtractionFailed, resp.Status, bytes.TrimSpace(body))
	}

	var out encodeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrExtractionFailed, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrExtractionFailed, out.Error)
	}
	if len(out.Embedding) != e.dimension {
		return nil, fmt.Errorf("%w: encoder returned %d dimensions, expected %d",
			ErrExtractionFailed, len(out.Embedding), e.dimension)
	}

	return embedding.Vector(out.Embedding), nil
}

package speakerid_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/speakerid"
	"github.com/hupe1980/speakerid/extractor"
	"github.com/hupe1980/speakerid/store"
)

// Example demonstrates enrolling a speaker and identifying a probe clip.
func Example() {
	ctx := context.Background()

	// The fake extractor derives deterministic embeddings from the audio
	// bytes; production deployments use NewHTTPExtractor instead.
	engine, err := speakerid.New(extractor.NewFake(64), store.NewMemoryStore())
	if err != nil {
		log.Fatal(err)
	}

	for i := 1; i <= engine.RequiredClips(); i++ {
		if _, err := engine.Enroll(ctx, "anoushka", i, []byte("voice sample")); err != nil {
			log.Fatal(err)
		}
	}

	result, err := engine.Identify(ctx, []byte("voice sample"))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(result.Prediction)
	// Output: anoushka
}

// Example_threshold demonstrates tuning the match threshold.
func Example_threshold() {
	engine, err := speakerid.New(
		extractor.NewFake(64),
		store.NewMemoryStore(),
		speakerid.WithThreshold(0.9),
		speakerid.WithRequiredClips(3),
	)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(engine.RequiredClips(), engine.Threshold())
	// Output: 3 0.9
}

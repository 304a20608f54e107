// Package speakerid identifies a speaker from a short audio clip by
// comparing its voice embedding against a small set of enrolled
// voiceprints.
//
// The engine combines four pieces:
//
//   - an extractor.Extractor that turns raw audio into a fixed-dimension
//     embedding (the one external, potentially slow step)
//   - an enroll.Manager that accumulates per-user clip embeddings until
//     all required slots are filled, then commits the averaged voiceprint
//   - a store.Store holding one committed voiceprint per username
//   - a classify.Classifier that scores a probe against every voiceprint
//     with cosine similarity and applies the match threshold
//
// # Quick start
//
//	ext := extractor.NewHTTPExtractor("http://encoder:8080/embed")
//	st := store.NewMemoryStore()
//
//	engine, err := speakerid.New(ext, st,
//	    speakerid.WithRequiredClips(4),
//	    speakerid.WithThreshold(0.75),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Enrollment: submit clips 1..4 for a user.
//	res, err := engine.Enroll(ctx, "anoushka", 1, audioBytes)
//
//	// Identification.
//	out, err := engine.Identify(ctx, probeBytes)
//	fmt.Println(out.Prediction, out.Confidence)
//
// Enrollment submissions for the same username are serialized; different
// usernames, and identification, proceed in parallel. Voiceprints can be
// persisted durably with a BadgerDB store or via self-describing
// snapshots written through a blobstore (local disk, S3, MinIO).
package speakerid

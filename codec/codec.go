// Package codec centralizes payload encoding for persisted voiceprints.
//
// Codec selection is a compatibility boundary: snapshots record the codec
// name in their header so they can be decoded by name on load, and a
// snapshot written with one codec never silently decodes with another.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
//
// This is used by self-describing snapshot files that store the codec
// name in their header.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "msgpack":
		return Msgpack{}, true
	default:
		return nil, false
	}
}

// Default is the codec used when none is configured explicitly.
//
// Persisted snapshots are self-describing, so changing the default only
// affects newly written files.
var Default Codec = JSON{}

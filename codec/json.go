package codec

import "encoding/json"

// JSON is the standard-library JSON codec.
//
// JSON is the most portable option: snapshots stay human-inspectable and
// decodable from any language. Float32 embeddings round-trip exactly
// (encoding/json prints the shortest representation that parses back to
// the same value).
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

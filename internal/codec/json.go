package codec

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse imports a snapshot from JSON
func (c *JSONCodec) Parse(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return &snap, nil
}

// Export writes a snapshot as indented JSON
func (c *JSONCodec) Export(snap *Snapshot, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

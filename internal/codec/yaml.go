package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML import/export. Snapshot structs carry yaml tags
// alongside their json tags, so no intermediate representation is needed.
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse imports a snapshot from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if snap.Definitions == nil {
		snap.Definitions = make([]DefinitionSnapshot, 0)
	}
	if snap.Instances == nil {
		snap.Instances = make([]InstanceSnapshot, 0)
	}

	return &snap, nil
}

// Export writes a snapshot as YAML
func (c *YAMLCodec) Export(snap *Snapshot, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}

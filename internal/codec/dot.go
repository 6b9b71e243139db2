package codec

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// DOTCodec renders a snapshot as a Graphviz digraph for inspection.
// Export only: there is no way back from a drawing to a knowledge base.
type DOTCodec struct{}

// NewDOTCodec creates a new DOT exporter
func NewDOTCodec() *DOTCodec {
	return &DOTCodec{}
}

// Format returns the codec format identifier
func (c *DOTCodec) Format() string {
	return "dot"
}

// Export writes the snapshot as a digraph. Instances holding a zone
// property group into one cluster per zone; controller properties draw an
// edge from the controlling instance to the controlled one.
func (c *DOTCodec) Export(snap *Snapshot, w io.Writer) error {
	var sb strings.Builder

	sb.WriteString("digraph grimoire {\n")
	sb.WriteString("    rankdir=LR;\n")
	sb.WriteString("    node [shape=box, style=rounded];\n")

	zones := make(map[string][]InstanceSnapshot)
	for _, is := range snap.Instances {
		zones[zoneOf(is)] = append(zones[zoneOf(is)], is)
	}

	names := make([]string, 0, len(zones))
	for zone := range zones {
		names = append(names, zone)
	}
	sort.Strings(names)

	cluster := 0
	for _, zone := range names {
		if zone == "" {
			continue
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "    subgraph cluster_%d {\n", cluster)
		fmt.Fprintf(&sb, "        label=\"%s\";\n", escapeDOTLabel(zone))
		for _, is := range zones[zone] {
			fmt.Fprintf(&sb, "        %s [label=\"%s\"];\n", dotID(is.ID), nodeLabel(is))
		}
		sb.WriteString("    }\n")
		cluster++
	}

	if unzoned := zones[""]; len(unzoned) > 0 {
		sb.WriteString("\n")
		for _, is := range unzoned {
			fmt.Fprintf(&sb, "    %s [label=\"%s\"];\n", dotID(is.ID), nodeLabel(is))
		}
	}

	sb.WriteString("\n")
	for _, is := range snap.Instances {
		v, ok := is.Property("controller")
		if !ok {
			continue
		}
		controller, ok := v.(string)
		if !ok || controller == "" {
			continue
		}
		fmt.Fprintf(&sb, "    %s -> %s [label=\"controls\"];\n", dotID(controller), dotID(is.ID))
	}

	sb.WriteString("}\n")

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("failed to write DOT: %w", err)
	}

	return nil
}

func zoneOf(is InstanceSnapshot) string {
	if v, ok := is.Property("zone"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// nodeLabel prefers the display name over the id, with the class on a
// second line
func nodeLabel(is InstanceSnapshot) string {
	label := is.ID
	if v, ok := is.Property("name"); ok {
		if s, ok := v.(string); ok && s != "" {
			label = s
		}
	}
	return escapeDOTLabel(label) + `\n` + escapeDOTLabel(is.Class)
}

// dotID quotes and escapes an arbitrary string as a DOT node id
func dotID(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func escapeDOTLabel(s string) string {
	replacer := strings.NewReplacer(`"`, `\"`, "\n", `\n`)
	return replacer.Replace(s)
}

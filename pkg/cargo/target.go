package cargo

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// TargetKey selects the platform of a [target.<key>] block: a cfg()
// expression or a platform triple, written exactly as it will appear in the
// emitted manifest. cfg() expressions must be quoted by the author
// ('cfg(unix)'), since a valid key is one that parses as exactly one TOML
// table key.
type TargetKey string

// NewTargetKey validates s by planting it in a [target.<s>.x] header and
// decoding the result as TOML. Keys that fail to parse, or that smuggle in
// extra key segments, are rejected.
func NewTargetKey(s string) (TargetKey, error) {
	var doc struct {
		Target map[string]map[string]map[string]bool `toml:"target"`
	}
	src := "[target." + s + ".probe]\nok = true\n"
	if _, err := toml.Decode(src, &doc); err != nil {
		return "", fmt.Errorf("target key %q is not a valid TOML key: %w", s, err)
	}
	if len(doc.Target) != 1 {
		return "", fmt.Errorf("target key %q must be exactly one TOML key", s)
	}
	for _, inner := range doc.Target {
		if len(inner) != 1 || !inner["probe"]["ok"] {
			return "", fmt.Errorf("target key %q must be exactly one TOML key", s)
		}
	}
	return TargetKey(s), nil
}

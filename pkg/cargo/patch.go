package cargo

import (
	"encoding/json"
	"fmt"
)

// PatchMode selects how a [patch] table is seeded before explicit entries
// apply.
type PatchMode string

const (
	// PatchModeEmpty starts from no entries.
	PatchModeEmpty PatchMode = "empty"
	// PatchModeThirdPartyFull copies every entry of the third-party
	// registry's patch table.
	PatchModeThirdPartyFull PatchMode = "third-party-full"
)

// UnmarshalText decodes and validates a patch generation mode. Both config
// wires go through here: TOML project files and JSON rule extensions.
func (m *PatchMode) UnmarshalText(b []byte) error {
	switch mode := PatchMode(b); mode {
	case PatchModeEmpty, PatchModeThirdPartyFull:
		*m = mode
		return nil
	default:
		return fmt.Errorf("unknown patch generation mode %q", b)
	}
}

// PatchGeneration decides how a [patch] table is built. An unset Mode falls
// back to the context's default: third-party-full for workspace manifests,
// empty for per-unit manifests.
type PatchGeneration struct {
	Mode PatchMode `toml:"mode" json:"mode"`
	// Exclude names packages to drop from the generated entries, per
	// registry.
	Exclude map[string][]string `toml:"exclude" json:"exclude"`
}

// PatchInput lists requested [patch] entries per registry. An entry is
// either a bare crate name, copying the third-party registry's patch for
// that crate, or a [name, dependency] pair setting the patch outright:
//
//	[workspace_config.patch]
//	"crates-io" = [
//	    "addr2line",
//	    ["bytecount", { git = "https://github.com/llogiq/bytecount" }],
//	]
type PatchInput map[string][]PatchEntry

// PatchEntry is one requested patch. Dep is nil for the copy form.
type PatchEntry struct {
	Name string
	Dep  *Dependency
}

// UnmarshalTOML accepts the bare name form or the [name, dependency] pair.
func (e *PatchEntry) UnmarshalTOML(v any) error {
	switch t := v.(type) {
	case string:
		*e = PatchEntry{Name: t}
		return nil
	case []any:
		if len(t) != 2 {
			return fmt.Errorf("patch entry must be a crate name or a [name, dependency] pair, got %d elements", len(t))
		}
		name, ok := t[0].(string)
		if !ok {
			return fmt.Errorf("patch entry name must be a string, got %T", t[0])
		}
		var dep Dependency
		if err := dep.UnmarshalTOML(t[1]); err != nil {
			return err
		}
		*e = PatchEntry{Name: name, Dep: &dep}
		return nil
	default:
		return fmt.Errorf("patch entry must be a crate name or a [name, dependency] pair, got %T", v)
	}
}

// UnmarshalJSON accepts the same two forms on the JSON wire.
func (e *PatchEntry) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var name string
		if err := json.Unmarshal(b, &name); err != nil {
			return err
		}
		*e = PatchEntry{Name: name}
		return nil
	}
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("patch entry must be a crate name or a [name, dependency] pair, got %d elements", len(pair))
	}
	var name string
	if err := json.Unmarshal(pair[0], &name); err != nil {
		return fmt.Errorf("patch entry name: %w", err)
	}
	var dep Dependency
	if err := json.Unmarshal(pair[1], &dep); err != nil {
		return err
	}
	*e = PatchEntry{Name: name, Dep: &dep}
	return nil
}

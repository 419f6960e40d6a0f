package generate

import (
	"maps"
	"strings"
)

// features builds the [features] table of a unit: the configured table
// when one exists, else the default features of the member rules. Buck
// declares features flat, so each plain name becomes an empty cargo
// feature and the default set enables them all; dep/feature references
// only appear inside default.
func (u *Unit) features() map[string][]string {
	if u.Config.Features != nil {
		return *u.Config.Features
	}
	var defaults []string
	for _, m := range u.members() {
		rc := &m.Raw.RustConfig
		defaults = append(defaults, rc.Features...)
		defaults = append(defaults, rc.TestFeatures...)
	}
	features := make(map[string][]string)
	if len(defaults) > 0 {
		for _, f := range defaults {
			if !strings.Contains(f, "/") {
				features[f] = nil
			}
		}
		features["default"] = defaults
	}
	return features
}

// stripDefaultFeatures drops monorepo-only features from the default set
// of a published crate's manifest. Both plain names and dep/feature
// references match a stripped name.
func stripDefaultFeatures(features map[string][]string, strip []string) map[string][]string {
	defaults, ok := features["default"]
	if !ok {
		return features
	}
	kept := make([]string, 0, len(defaults))
	for _, f := range defaults {
		if !strippedFeature(f, strip) {
			kept = append(kept, f)
		}
	}
	out := maps.Clone(features)
	out["default"] = kept
	return out
}

func strippedFeature(f string, strip []string) bool {
	for _, s := range strip {
		if f == s || strings.HasSuffix(f, "/"+s) {
			return true
		}
	}
	return false
}

package generate

import (
	"reflect"
	"testing"

	"github.com/matzehuels/buckcargo/pkg/buck"
)

func TestUnitFeatures(t *testing.T) {
	lib := testRule("a", "mylib", buck.RuleTypeLibrary)
	lib.Raw.RustConfig.Features = []string{"tracing", "serde/derive"}
	lib.Raw.RustConfig.TestFeatures = []string{"test-util"}
	bin := testRule("a", "tool", buck.RuleTypeBinary)
	bin.Raw.RustConfig.Features = []string{"cli"}

	got := testUnit(t, "a", lib, bin).features()
	want := map[string][]string{
		"tracing":   nil,
		"test-util": nil,
		"cli":       nil,
		"default":   {"tracing", "serde/derive", "test-util", "cli"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("features = %v, want %v", got, want)
	}
}

func TestUnitFeaturesEmpty(t *testing.T) {
	got := testUnit(t, "a", testRule("a", "mylib", buck.RuleTypeLibrary)).features()
	if len(got) != 0 {
		t.Errorf("features = %v, want none", got)
	}
}

func TestUnitFeaturesConfigured(t *testing.T) {
	lib := testRule("a", "mylib", buck.RuleTypeLibrary)
	lib.Raw.RustConfig.Features = []string{"ignored"}
	u := testUnit(t, "a", lib)
	u.Config = &buck.TomlConfig{Features: &map[string][]string{
		"default": {"fancy"},
		"fancy":   {"serde"},
	}}

	got := u.features()
	if len(got) != 2 || len(got["fancy"]) != 1 {
		t.Errorf("features = %v, want the configured table verbatim", got)
	}
}

func TestStripDefaultFeatures(t *testing.T) {
	features := map[string][]string{
		"default": {"fb", "tokio/fb", "tracing"},
		"fb":      nil,
		"tracing": nil,
	}
	got := stripDefaultFeatures(features, []string{"fb"})
	if want := []string{"tracing"}; !reflect.DeepEqual(got["default"], want) {
		t.Errorf("default = %v, want %v", got["default"], want)
	}
	// Only the default list shrinks; the feature itself stays declared.
	if _, ok := got["fb"]; !ok {
		t.Errorf("features = %v, fb key removed", got)
	}
	// The input table stays untouched.
	if len(features["default"]) != 3 {
		t.Errorf("input mutated: %v", features)
	}

	noDefault := map[string][]string{"fancy": nil}
	if got := stripDefaultFeatures(noDefault, []string{"fb"}); !reflect.DeepEqual(got, noDefault) {
		t.Errorf("no-default table = %v, want unchanged", got)
	}
}

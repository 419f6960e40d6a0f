package buck

import (
	"testing"

	"github.com/matzehuels/buckcargo/pkg/repo"
)

func TestParseRuleID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    RuleID
		wantErr bool
	}{
		{
			name: "internal with cell",
			in:   "root//common/rust/foo:foo",
			want: RuleID{Cell: "root", Dir: "common/rust/foo", Name: "foo"},
		},
		{
			name: "third party cell",
			in:   "third-party//rust:serde",
			want: RuleID{Cell: "third-party", Dir: "rust", Name: "serde"},
		},
		{
			name: "dotted rule name",
			in:   "root//a/b:lib-1.2",
			want: RuleID{Cell: "root", Dir: "a/b", Name: "lib-1.2"},
		},
		{name: "missing cell", in: "//a/b:c", wantErr: true},
		{name: "bare reference", in: ":foo", wantErr: true},
		{name: "no colon", in: "root//a/b", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRuleID(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseRuleID(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRuleID(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseRuleID(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseInternalRuleID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    RuleID
		wantErr bool
	}{
		{
			name: "without cell",
			in:   "//common/rust/foo:foo",
			want: RuleID{Cell: "root", Dir: "common/rust/foo", Name: "foo"},
		},
		{
			name: "with root cell",
			in:   "root//common/rust/foo:foo-rust-manifest",
			want: RuleID{Cell: "root", Dir: "common/rust/foo", Name: "foo-rust-manifest"},
		},
		{
			name: "top level package",
			in:   "//:lib",
			want: RuleID{Cell: "root", Dir: "", Name: "lib"},
		},
		{name: "foreign cell", in: "third-party//rust:serde", wantErr: true},
		{name: "bare reference", in: ":foo", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInternalRuleID(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseInternalRuleID(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInternalRuleID(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseInternalRuleID(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseBareRule(t *testing.T) {
	tests := []struct {
		name          string
		in            string
		wantName      string
		wantSubtarget string
		wantErr       bool
	}{
		{name: "plain", in: ":foo", wantName: "foo"},
		{name: "subtarget", in: ":foo[check]", wantName: "foo", wantSubtarget: "check"},
		{name: "not bare", in: "//a:b", wantErr: true},
		{name: "empty name", in: ":", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, subtarget, err := parseBareRule(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseBareRule(%q) = %q, %q, want error", tt.in, name, subtarget)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseBareRule(%q): %v", tt.in, err)
			}
			if name != tt.wantName || subtarget != tt.wantSubtarget {
				t.Errorf("parseBareRule(%q) = %q, %q, want %q, %q", tt.in, name, subtarget, tt.wantName, tt.wantSubtarget)
			}
		})
	}
}

func TestRuleID(t *testing.T) {
	r := RuleID{Cell: "root", Dir: "common/rust/foo", Name: "foo"}
	if got, want := r.String(), "root//common/rust/foo:foo"; got != want {
		t.Errorf("String = %q, want %q", got, want)
	}
	if got, want := r.Label(), "//common/rust/foo:foo"; got != want {
		t.Errorf("Label = %q, want %q", got, want)
	}
	if got, want := r.ManifestRule().Name, "foo-rust-manifest"; got != want {
		t.Errorf("ManifestRule name = %q, want %q", got, want)
	}
	if got, want := r.TargetsPath(), repo.TargetsPathForDir("common/rust/foo"); got != want {
		t.Errorf("TargetsPath = %v, want %v", got, want)
	}
}

func TestConventionsValidate(t *testing.T) {
	t.Run("defaults fill empty fields", func(t *testing.T) {
		var c Conventions
		if err := c.Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if c != DefaultConventions() {
			t.Errorf("Validate filled %+v, want %+v", c, DefaultConventions())
		}
	})
	t.Run("prefix must end in colon", func(t *testing.T) {
		c := Conventions{ThirdPartyPrefix: "third-party//rust"}
		if err := c.Validate(); err == nil {
			t.Error("Validate accepted a prefix without trailing colon")
		}
	})
	t.Run("pseudo rules must parse", func(t *testing.T) {
		c := Conventions{ThriftCompilerRule: "not a rule"}
		if err := c.Validate(); err == nil {
			t.Error("Validate accepted a malformed thrift compiler rule")
		}
	})
}

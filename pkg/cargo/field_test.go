package cargo

import (
	"encoding/json"
	"testing"
)

func TestFieldUnmarshalJSON(t *testing.T) {
	type doc struct {
		Version Field[string] `json:"version"`
	}
	tests := []struct {
		name        string
		in          string
		wantInherit bool
		wantClear   bool
		wantValue   string
	}{
		{name: "absent inherits", in: `{}`, wantInherit: true},
		{name: "null clears", in: `{"version": null}`, wantClear: true},
		{name: "value sets", in: `{"version": "1.2.3"}`, wantValue: "1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d doc
			if err := json.Unmarshal([]byte(tt.in), &d); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got := d.Version.IsInherit(); got != tt.wantInherit {
				t.Errorf("IsInherit = %v, want %v", got, tt.wantInherit)
			}
			if got := d.Version.IsClear(); got != tt.wantClear {
				t.Errorf("IsClear = %v, want %v", got, tt.wantClear)
			}
			if v, ok := d.Version.Get(); ok && v != tt.wantValue {
				t.Errorf("Get = %q, want %q", v, tt.wantValue)
			}
		})
	}
}

func TestFieldApply(t *testing.T) {
	base := "inherited"
	tests := []struct {
		name  string
		field Field[string]
		want  *string
	}{
		{name: "inherit keeps base", field: Field[string]{}, want: &base},
		{name: "clear erases", field: ClearField[string](), want: nil},
		{name: "set replaces", field: SetField("new"), want: strp("new")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.field.Apply(&base)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("Apply = %q, want nil", *got)
			case tt.want != nil && got == nil:
				t.Errorf("Apply = nil, want %q", *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Errorf("Apply = %q, want %q", *got, *tt.want)
			}
		})
	}
}

func TestFieldApplyNilBase(t *testing.T) {
	var f Field[int]
	if got := f.Apply(nil); got != nil {
		t.Errorf("inherit over nil base = %v, want nil", *got)
	}
	if got := SetField(7).Apply(nil); got == nil || *got != 7 {
		t.Errorf("set over nil base = %v, want 7", got)
	}
}

package cli

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/buckcargo/pkg/project"
)

func pickerProjects() []*project.Config {
	return []*project.Config{
		{Name: "alpha"},
		{Name: "beta"},
		{Name: "gamma"},
	}
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace}
	}
	if s == "enter" {
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m ProjectListModel, msgs ...tea.Msg) ProjectListModel {
	t.Helper()
	var model tea.Model = m
	for _, msg := range msgs {
		model, _ = model.Update(msg)
	}
	out, ok := model.(ProjectListModel)
	if !ok {
		t.Fatalf("Update returned %T, want ProjectListModel", model)
	}
	return out
}

func TestPickerMarkAndConfirm(t *testing.T) {
	m := NewProjectListModel(pickerProjects())
	m = update(t, m, key(" "), key("j"), key("j"), key(" "), key("enter"))

	if !m.Confirmed {
		t.Fatal("enter should confirm the selection")
	}
	got := m.Picked()
	want := []string{"alpha", "gamma"}
	if len(got) != len(want) {
		t.Fatalf("Picked() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Picked()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPickerCursorFallback(t *testing.T) {
	m := NewProjectListModel(pickerProjects())
	m = update(t, m, key("j"), key("enter"))

	got := m.Picked()
	if len(got) != 1 || got[0] != "beta" {
		t.Errorf("Picked() = %v, want [beta]", got)
	}
}

func TestPickerQuitWithoutConfirm(t *testing.T) {
	m := NewProjectListModel(pickerProjects())
	m = update(t, m, key(" "), key("q"))

	if m.Confirmed {
		t.Error("q should not confirm")
	}
	if got := m.Picked(); got != nil {
		t.Errorf("Picked() = %v, want nil after quit", got)
	}
}

func TestPickerMarkAll(t *testing.T) {
	m := NewProjectListModel(pickerProjects())
	m = update(t, m, key("a"), key("enter"))

	if got := m.Picked(); len(got) != 3 {
		t.Errorf("Picked() = %v, want all three projects", got)
	}
}

func TestPickerCursorBounds(t *testing.T) {
	m := NewProjectListModel(pickerProjects())
	m = update(t, m, key("k"), key("j"), key("j"), key("j"), key("j"))

	if m.Cursor != 2 {
		t.Errorf("Cursor = %d, want 2 (clamped to last entry)", m.Cursor)
	}
}

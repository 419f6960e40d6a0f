package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/buckcargo/pkg/project"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// ProjectListModel is the bubbletea model for interactive project
// selection. Multiple projects can be marked before confirming.
type ProjectListModel struct {
	Projects  []*project.Config
	Cursor    int
	Marked    map[int]bool
	Confirmed bool
	Height    int
	Offset    int
}

// NewProjectListModel creates a new project list model.
func NewProjectListModel(projects []*project.Config) ProjectListModel {
	return ProjectListModel{
		Projects: projects,
		Marked:   map[int]bool{},
		Height:   15,
	}
}

// Picked returns the names of the marked projects, or the project under
// the cursor when nothing was marked.
func (m ProjectListModel) Picked() []string {
	if !m.Confirmed || len(m.Projects) == 0 {
		return nil
	}
	var names []string
	for i, p := range m.Projects {
		if m.Marked[i] {
			names = append(names, p.Name)
		}
	}
	if len(names) == 0 {
		names = append(names, m.Projects[m.Cursor].Name)
	}
	return names
}

func (m ProjectListModel) Init() tea.Cmd {
	return nil
}

func (m ProjectListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Projects)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ":
			if len(m.Projects) > 0 {
				m.Marked[m.Cursor] = !m.Marked[m.Cursor]
			}
		case "a":
			for i := range m.Projects {
				m.Marked[i] = true
			}
		case "enter":
			if len(m.Projects) == 0 {
				return m, tea.Quit
			}
			m.Confirmed = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m ProjectListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Projects"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space mark  a all  ⏎ confirm  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Projects) {
		end = len(m.Projects)
	}

	for i := m.Offset; i < end; i++ {
		p := m.Projects[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		mark := "[ ]"
		if m.Marked[i] {
			mark = "[x]"
		}

		style := listNormalStyle
		if i == m.Cursor {
			style = listSelectedStyle
		}

		line := fmt.Sprintf("%s%s %s", cursor, mark, style.Render(p.Name))
		if p.Oncall != "" {
			line += " " + listDimStyle.Render(p.Oncall)
		}
		if len(p.Dependencies) > 0 {
			line += " " + listDimStyle.Render(fmt.Sprintf("(%d deps)", len(p.Dependencies)))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(m.Projects) > end {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("\n… %d more", len(m.Projects)-end)))
		b.WriteString("\n")
	}

	return b.String()
}

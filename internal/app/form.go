package app

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/HaPhanBaoMinh/upmon/internal/ui/styles"
)

const (
	fieldName = iota
	fieldURL
	fieldTags
	fieldCount
)

// form collects a new service. It is shown above the list view.
type form struct {
	inputs [fieldCount]textinput.Model
	focus  int
	err    error
}

func newForm() *form {
	f := &form{}

	labels := [fieldCount]string{"Name  ", "URL   ", "Tags  "}
	placeholders := [fieldCount]string{"Main API", "https://api.example.com/health", "Production, Critical"}

	for i := range f.inputs {
		in := textinput.New()
		in.Prompt = labels[i]
		in.Placeholder = placeholders[i]
		in.CharLimit = 256
		in.Width = 40
		f.inputs[i] = in
	}
	f.inputs[fieldName].Focus()

	return f
}

func (f *form) values() (name, url, tags string) {
	return f.inputs[fieldName].Value(), f.inputs[fieldURL].Value(), f.inputs[fieldTags].Value()
}

func (f *form) move(delta int) tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + fieldCount) % fieldCount
	return f.inputs[f.focus].Focus()
}

func (f *form) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *form) view() string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Add service"))
	b.WriteString("\n\n")
	for i := range f.inputs {
		b.WriteString(f.inputs[i].View())
		b.WriteString("\n")
	}
	if f.err != nil {
		b.WriteString("\n")
		b.WriteString(styles.Danger.Render(f.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.Faint.Render("[tab] next field • [enter] save • [esc] cancel"))

	return styles.FormBox.Render(lipgloss.NewStyle().Width(48).Render(b.String()))
}

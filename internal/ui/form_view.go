package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"

	"github.com/ngmaloney/park-terminal/internal/form"
	"github.com/ngmaloney/park-terminal/internal/models"
	"github.com/ngmaloney/park-terminal/internal/validation"
)

var placeholders = map[validation.Field]string{
	validation.FieldName:         "Parque del Perro",
	validation.FieldAbbreviation: "PDP",
	validation.FieldImageURL:     "https://example.com/park.jpg",
	validation.FieldAddress:      "Calle 2 Oeste con Carrera 34",
	validation.FieldPostalCode:   "760045",
	validation.FieldLatitude:     "3.4372",
	validation.FieldLongitude:    "-76.5436",
}

// newFieldInputs creates one text input per field, seeded from the draft
func newFieldInputs(d validation.Draft) []textinput.Model {
	fields := validation.Fields()
	inputs := make([]textinput.Model, len(fields))
	for i, f := range fields {
		ti := textinput.New()
		ti.Placeholder = placeholders[f]
		ti.CharLimit = 150
		ti.Width = 48
		ti.SetValue(d[f])
		inputs[i] = ti
	}
	return inputs
}

// cityIndex returns the position of value in the allowed cities, or -1
func cityIndex(value string) int {
	for i, c := range models.Cities() {
		if string(c) == value {
			return i
		}
	}
	return -1
}

func isCity(i int) bool {
	return validation.Fields()[i] == validation.FieldCity
}

// focusField moves the cursor to field i
func (m *Model) focusField(i int) {
	n := len(m.inputs)
	if n == 0 {
		return
	}
	i = (i%n + n) % n
	for j := range m.inputs {
		m.inputs[j].Blur()
	}
	m.focus = i
	if !isCity(i) {
		m.inputs[i].Focus()
	}
}

// cycleCity moves the city selection by delta and validates it
func (m *Model) cycleCity(delta int) {
	cities := models.Cities()
	n := len(cities)
	m.city = ((m.city+delta)%n + n) % n
	_, _ = m.form.Set(validation.FieldCity, string(cities[m.city]))
}

// viewForm renders the create/edit form
func (m Model) viewForm() string {
	title := "🌳 New Park"
	if m.form.Mode() == form.ModeEdit {
		title = "🌳 Edit Park"
		if name := m.form.Value(validation.FieldName); m.form.State() != form.StateLoading && name != "" {
			title = "🌳 Edit " + name
		}
	}

	var sections []string
	sections = append(sections, titleStyle.Render(title), "")

	if m.form.State() == form.StateLoading {
		sections = append(sections, fmt.Sprintf("%s Loading park...", m.spinner.View()))
		sections = append(sections, m.viewToast(), helpStyle.Render("Esc: Back • Ctrl+C: Quit"))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	for i, f := range validation.Fields() {
		label := labelStyle.Render(validation.Label(f))
		if i == m.focus {
			label = activeTitleStyle.Width(14).Render(validation.Label(f))
		}

		var value string
		if isCity(i) {
			value = fmt.Sprintf("◀ %s ▶", m.form.Value(f))
			if m.form.Value(f) == "" {
				value = mutedStyle.Render("◀ choose ▶")
			}
		} else {
			value = m.inputs[i].View()
		}
		sections = append(sections, label+" "+value)

		if msg := m.form.FieldError(f); msg != "" {
			sections = append(sections, fieldErrorStyle.Render(msg))
		}
	}

	if m.busy {
		sections = append(sections, "", fmt.Sprintf("%s %s", m.spinner.View(), m.busyLabel))
	}

	sections = append(sections, m.viewToast())

	help := "Tab/↑/↓: Move • ←/→: Change city • Ctrl+S: Save • Esc: Cancel"
	sections = append(sections, helpStyle.Render(help))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// firstInvalid returns the index of the first field with a message
func firstInvalid(errs map[validation.Field]string) int {
	for i, f := range validation.Fields() {
		if _, ok := errs[f]; ok {
			return i
		}
	}
	return 0
}


package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ngmaloney/park-terminal/internal/models"
)

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	switch m.state {
	case StateLoading:
		return m.viewLoading()
	case StateList:
		return m.viewList()
	case StateDetail:
		return m.viewDetail()
	case StateForm:
		return m.viewForm()
	case StateConfirm:
		return m.viewConfirm()
	case StateError:
		return m.viewError()
	}

	return ""
}

// viewLoading renders the initial fetch
func (m Model) viewLoading() string {
	title := titleStyle.Render("🌳 Park Terminal")
	status := mutedStyle.Render("Fetching parks...")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		"",
		fmt.Sprintf("%s %s", m.spinner.View(), status),
	)
}

// viewError renders the error view
func (m Model) viewError() string {
	title := errorStyle.Render("✗ Error")

	var errorMsg string
	if m.err != nil {
		errorMsg = userMessage(m.err)
	} else {
		errorMsg = "An unknown error occurred"
	}

	var keys []string
	if retryable(m.err) {
		keys = append(keys, "R: Retry")
	}
	if m.list.Loaded() {
		keys = append(keys, "Esc: Back to list")
	}
	keys = append(keys, "Q: Quit")

	var sections []string
	sections = append(sections, title)
	sections = append(sections, "")
	sections = append(sections, errorMsg)
	sections = append(sections, "")
	sections = append(sections, helpStyle.Render(strings.Join(keys, " • ")))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// viewList renders the park list with its search, filter and sort
func (m Model) viewList() string {
	title := titleStyle.Render("🌳 Park Terminal")

	q := m.list.Query()
	visible := len(m.parkList.Items())
	subtitle := mutedStyle.Render(fmt.Sprintf("Showing %d of %d parks", visible, len(m.list.All())))

	city := "All"
	if q.City != "" {
		city = string(q.City)
	}
	filters := filterStyle.Render(fmt.Sprintf("City: %s • Sort: %s", city, q.Sort))

	var sections []string
	sections = append(sections, title, subtitle, filters, "")

	if m.searching || q.Search != "" {
		sections = append(sections, "Search: "+m.searchInput.View(), "")
	}

	switch {
	case m.list.Loaded() && len(m.list.All()) == 0:
		sections = append(sections, mutedStyle.Render("No parks yet. Press N to create one."))
	case visible == 0 && m.list.Loaded():
		sections = append(sections, mutedStyle.Render("No parks match the current search."))
	default:
		sections = append(sections, m.parkList.View())
	}

	if m.busy {
		sections = append(sections, fmt.Sprintf("%s %s", m.spinner.View(), m.busyLabel))
	} else if m.refreshing {
		sections = append(sections, fmt.Sprintf("%s Refreshing...", m.spinner.View()))
	}

	sections = append(sections, m.viewToast())

	help := "↑/↓: Navigate • Enter: Details • N: New • E: Edit • D: Delete • /: Search • C: City • O: Sort • R: Refresh • Q: Quit"
	if m.searching {
		help = "Type to search • Enter/Esc: Done"
	}
	sections = append(sections, helpStyle.Render(help))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// viewDetail renders a single park
func (m Model) viewDetail() string {
	if m.detailLoading {
		label := "Loading park..."
		if cached, ok := m.list.Find(m.detailID); ok {
			label = fmt.Sprintf("Loading %s...", cached.Name)
		}
		return lipgloss.JoinVertical(
			lipgloss.Left,
			titleStyle.Render("🌳 Park Terminal"),
			"",
			fmt.Sprintf("%s %s", m.spinner.View(), mutedStyle.Render(label)),
			helpStyle.Render("Esc: Back • Q: Quit"),
		)
	}
	if m.selected == nil {
		return "No park selected"
	}
	p := m.selected

	header := sectionHeaderStyle.Render("🌳 " + p.Name)

	rows := []string{
		detailRow("Abbreviation", p.Abbreviation),
		detailRow("Address", p.Address),
		detailRow("City", string(p.City)),
		detailRow("State", p.State),
		detailRow("Postal code", p.PostalCode),
		detailRow("Coordinates", fmt.Sprintf("%.4f, %.4f", p.Latitude, p.Longitude)),
		detailRow("Image", m.imageURL),
	}
	if m.imageURL == models.PlaceholderImage {
		note := "(placeholder)"
		if m.resolver.Failed(p.ID) {
			note = "(image failed to load)"
		}
		rows = append(rows, detailRow("", mutedStyle.Render(note)))
	}

	box := sectionBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))

	var sections []string
	sections = append(sections, header, box)
	if m.busy {
		sections = append(sections, fmt.Sprintf("%s %s", m.spinner.View(), m.busyLabel))
	}
	sections = append(sections, m.viewToast())
	sections = append(sections, helpStyle.Render("Y: Copy • E: Edit • D: Delete • Esc: Back • Q: Quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// viewConfirm renders the pending confirmation
func (m Model) viewConfirm() string {
	if m.confirm == nil {
		return ""
	}

	lines := []string{titleStyle.Render(m.confirm.title), ""}
	for _, line := range m.confirm.lines {
		lines = append(lines, valueStyle.Render(line))
	}
	box := confirmBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		box,
		m.viewToast(),
		helpStyle.Render("Y/Enter: Confirm • N/Esc: Cancel"),
	)
}

// viewToast renders the current notification, if any
func (m Model) viewToast() string {
	if m.toast == "" {
		return ""
	}
	if m.toastErr {
		return errorStyle.Render(m.toast)
	}
	return successStyle.Render(m.toast)
}

func detailRow(label, value string) string {
	return labelStyle.Render(label) + " " + valueStyle.Render(value)
}

package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/ngmaloney/park-terminal/internal/models"
)

// parkItem wraps a Park for use in a list
type parkItem struct {
	park models.Park
}

// FilterValue implements list.Item
func (p parkItem) FilterValue() string {
	return p.park.Name + " " + string(p.park.City)
}

// Title implements list.DefaultItem
func (p parkItem) Title() string {
	if p.park.Abbreviation == "" {
		return p.park.Name
	}
	return fmt.Sprintf("%s (%s)", p.park.Name, p.park.Abbreviation)
}

// Description implements list.DefaultItem
func (p parkItem) Description() string {
	return fmt.Sprintf("%s • %s", p.park.City, p.park.Address)
}

// createParkList creates a list.Model from parks
func createParkList(parks []models.Park, width, height int) list.Model {
	l := list.New(parkItems(parks), list.NewDefaultDelegate(), width, height)
	l.Title = "Parks"
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	return l
}

func parkItems(parks []models.Park) []list.Item {
	items := make([]list.Item, len(parks))
	for i, p := range parks {
		items[i] = parkItem{park: p}
	}
	return items
}

// selectedPark returns the park under the cursor
func selectedPark(l list.Model) (models.Park, bool) {
	item, ok := l.SelectedItem().(parkItem)
	if !ok {
		return models.Park{}, false
	}
	return item.park, true
}

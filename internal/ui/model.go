package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/ngmaloney/park-terminal/internal/form"
	"github.com/ngmaloney/park-terminal/internal/journal"
	"github.com/ngmaloney/park-terminal/internal/models"
	"github.com/ngmaloney/park-terminal/internal/parklist"
	"github.com/ngmaloney/park-terminal/internal/parksapi"
	"github.com/ngmaloney/park-terminal/internal/platform"
	"github.com/ngmaloney/park-terminal/internal/validation"
)

// AppState represents the current state of the application
type AppState int

const (
	StateLoading AppState = iota // Initial fetch of the park list
	StateList                    // Browse, search and filter parks
	StateDetail                  // Show a single park
	StateForm                    // Create or edit a park
	StateConfirm                 // Confirm a mutation or a retry
	StateError                   // A load failed and there is nothing to show
)

type confirmKind int

const (
	confirmSubmit confirmKind = iota
	confirmDelete
	confirmRetrySubmit
	confirmRetryDelete
)

// confirmation is the pending yes/no question
type confirmation struct {
	kind  confirmKind
	title string
	lines []string
	back  AppState // state to return to when declined
}

// errOrigin records which load produced the error view
type errOrigin int

const (
	errFromList errOrigin = iota
	errFromForm
	errFromDetail
)

const toastDuration = 4 * time.Second

// ImageProber checks that an image URL can be loaded
type ImageProber interface {
	ProbeImage(ctx context.Context, url string) error
}

// Options wires the model to its collaborators
type Options struct {
	Client         parksapi.Client
	Caps           platform.Capabilities
	Prober         ImageProber // nil skips image checks
	Recorder       journal.Recorder
	StorageBaseURL string
	MaxAttempts    int
	Query          parklist.Query
	Logger         *zap.Logger
}

// Model represents the application's state
type Model struct {
	state     AppState
	width     int
	height    int
	err       error
	errOrigin errOrigin

	// Collaborators
	client   parksapi.Client
	caps     platform.Capabilities
	prober   ImageProber
	recorder journal.Recorder
	resolver *models.ImageResolver
	logger   *zap.Logger

	// List
	list        *parklist.Controller
	parkList    list.Model
	searchInput textinput.Model
	searching   bool
	refreshing  bool

	// Detail
	detailID      string
	detailLoading bool
	selected      *models.Park
	imageURL      string

	// Form
	form     *form.Controller
	formOpts form.Options
	formBack AppState
	inputs   []textinput.Model
	focus    int
	city     int

	// Confirmation and in-flight mutations
	confirm   *confirmation
	deleting  models.Park
	busy      bool
	busyLabel string
	spinner   spinner.Model

	// Notifications
	toast    string
	toastErr bool
	toastSeq int
}

// NewModel creates a new application model
func NewModel(opts Options) Model {
	if opts.Caps == nil {
		opts.Caps = platform.NewSystem("")
	}
	if opts.Recorder == nil {
		opts.Recorder = journal.Discard{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ti := textinput.New()
	ti.Placeholder = "Search by name, city, state or address..."
	ti.CharLimit = 100
	ti.Width = 50
	ti.SetValue(opts.Query.Search)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	l := parklist.New(opts.Client, opts.Caps, parklist.Options{
		MaxAttempts: opts.MaxAttempts,
		Logger:      opts.Logger,
	})
	l.SetQuery(opts.Query)

	return Model{
		state:       StateLoading,
		client:      opts.Client,
		caps:        opts.Caps,
		prober:      opts.Prober,
		recorder:    opts.Recorder,
		resolver:    models.NewImageResolver(opts.StorageBaseURL),
		logger:      opts.Logger,
		list:        l,
		parkList:    createParkList(nil, 80, 20),
		searchInput: ti,
		formOpts:    form.Options{MaxAttempts: opts.MaxAttempts, Logger: opts.Logger},
		spinner:     s,
		refreshing:  true,
	}
}

// Init starts the initial fetch
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, refreshParks(m.list))
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle window size
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = msg.Width
		m.height = msg.Height
		m.parkList.SetSize(msg.Width-4, msg.Height-12)
		return m, nil
	}

	// Handle custom messages
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case parksLoadedMsg:
		return m.handleParksLoaded(msg)

	case detailLoadedMsg:
		return m.handleDetailLoaded(msg)

	case formLoadedMsg:
		return m.handleFormLoaded(msg)

	case submitDoneMsg:
		return m.handleSubmitDone(msg)

	case deleteDoneMsg:
		return m.handleDeleteDone(msg)

	case imageCheckedMsg:
		if msg.err != nil {
			m.logger.Debug("park image unavailable",
				zap.String("id", msg.parkID),
				zap.String("url", msg.url),
				zap.Error(msg.err))
			m.resolver.MarkFailed(msg.parkID)
			if m.selected != nil && m.selected.ID == msg.parkID {
				m.imageURL = m.resolver.Resolve(*m.selected)
			}
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			return m, m.flash("✗ Could not copy: "+msg.err.Error(), true)
		}
		return m, m.flash("✓ Copied to clipboard", false)

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
		}
		return m, nil
	}

	// Handle keyboard input
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		// Global keys
		if keyMsg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		// State-specific handling
		switch m.state {
		case StateLoading:
			if keyMsg.String() == "q" {
				return m, tea.Quit
			}
		case StateList:
			return m.handleList(keyMsg)
		case StateDetail:
			return m.handleDetail(keyMsg)
		case StateForm:
			return m.handleForm(keyMsg)
		case StateConfirm:
			return m.handleConfirm(keyMsg)
		case StateError:
			return m.handleError(keyMsg)
		}
	}

	return m, nil
}

func (m Model) handleParksLoaded(msg parksLoadedMsg) (tea.Model, tea.Cmd) {
	m.refreshing = false

	if msg.err != nil {
		text := "✗ " + userMessage(msg.err)
		if !m.list.Loaded() {
			m.err = msg.err
			m.errOrigin = errFromList
			m.state = StateError
		}
		return m, m.notify(journal.LevelError, "list", "", "", text, kindOf(msg.err))
	}

	m.syncList()
	if m.state == StateLoading || (m.state == StateError && m.errOrigin == errFromList) {
		m.state = StateList
		m.err = nil
	}
	return m, nil
}

func (m Model) handleDetailLoaded(msg detailLoadedMsg) (tea.Model, tea.Cmd) {
	// the user navigated away or opened another park meanwhile
	if m.state != StateDetail || msg.id != m.detailID {
		return m, nil
	}
	m.detailLoading = false

	if msg.err != nil {
		m.err = msg.err
		m.errOrigin = errFromDetail
		m.state = StateError
		cmds := []tea.Cmd{m.notify(journal.LevelError, "get", msg.id, "", "✗ "+userMessage(msg.err), kindOf(msg.err))}
		// the local copy is stale
		if parksapi.IsNotFound(msg.err) && !m.refreshing {
			m.refreshing = true
			cmds = append(cmds, refreshParks(m.list))
		}
		return m, tea.Batch(cmds...)
	}

	m.selected = msg.park
	m.imageURL = m.resolver.Resolve(*msg.park)
	if m.prober == nil || m.imageURL == models.PlaceholderImage {
		return m, nil
	}
	return m, probeImage(m.prober, msg.park.ID, m.imageURL)
}

func (m Model) handleFormLoaded(msg formLoadedMsg) (tea.Model, tea.Cmd) {
	if m.form == nil || m.state != StateForm {
		return m, nil
	}

	if msg.err != nil {
		m.err = msg.err
		m.errOrigin = errFromForm
		m.state = StateError
		return m, m.notify(journal.LevelError, "get", m.form.ID(), "", "✗ "+userMessage(msg.err), kindOf(msg.err))
	}

	m.inputs = newFieldInputs(m.form.Draft())
	m.city = cityIndex(m.form.Value(validation.FieldCity))
	m.focusField(0)
	return m, textinput.Blink
}

func (m Model) handleSubmitDone(msg submitDoneMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	res := msg.res
	if m.form == nil {
		return m, nil
	}

	action := "create"
	if m.form.Mode() == form.ModeEdit {
		action = "update"
	}

	if res.OK() {
		verb := "created"
		if action == "update" {
			verb = "updated"
		}
		text := fmt.Sprintf("✓ Park %s: %s", verb, res.Park.Summary())
		m.form = nil
		m.inputs = nil
		m.selected = nil
		m.state = StateList

		cmds := []tea.Cmd{m.notify(journal.LevelInfo, action, res.Park.ID, res.Park.Name, text, "")}
		if res.Refresh {
			m.refreshing = true
			cmds = append(cmds, refreshParks(m.list))
		}
		return m, tea.Batch(cmds...)
	}

	var verr *form.ValidationError
	if errors.As(res.Err, &verr) {
		m.focusField(firstInvalid(verr.Errors))
		return m, m.flash(fmt.Sprintf("✗ Fix %d field(s) before saving", verr.Count()), true)
	}

	cmd := m.notify(journal.LevelError, action, m.form.ID(), m.form.Value(validation.FieldName), "✗ "+res.Message(), kindOf(res.Err))
	if res.CanRetry {
		m.confirm = &confirmation{
			kind:  confirmRetrySubmit,
			title: res.Message(),
			lines: []string{fmt.Sprintf("Attempt %d of %d failed. Retry?", res.Attempt, m.form.MaxAttempts())},
			back:  StateForm,
		}
		m.state = StateConfirm
		return m, cmd
	}

	m.form.Cancel()
	m.state = StateForm
	return m, cmd
}

func (m Model) handleDeleteDone(msg deleteDoneMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	res := msg.res
	park := m.deleting

	if res.OK() {
		m.syncList()
		if m.selected != nil && m.selected.ID == res.ID {
			m.selected = nil
		}
		if m.state == StateDetail {
			m.state = StateList
		}
		return m, m.notify(journal.LevelInfo, "delete", res.ID, park.Name, "✓ Park deleted: "+park.Summary(), "")
	}

	cmd := m.notify(journal.LevelError, "delete", res.ID, park.Name, "✗ "+res.Message(), kindOf(res.Err))
	if res.CanRetry {
		back := m.state
		m.confirm = &confirmation{
			kind:  confirmRetryDelete,
			title: res.Message(),
			lines: []string{fmt.Sprintf("Attempt %d of %d to delete %s failed. Retry?", res.Attempt, m.list.MaxAttempts(), park.Name)},
			back:  back,
		}
		m.state = StateConfirm
		return m, cmd
	}

	m.list.CancelDelete()
	return m, cmd
}

// handleList handles keyboard input in list state
func (m Model) handleList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if m.searching {
		switch msg.Type {
		case tea.KeyEnter, tea.KeyEsc:
			m.searching = false
			m.searchInput.Blur()
			return m, nil
		}
		m.searchInput, cmd = m.searchInput.Update(msg)
		q := m.list.Query()
		q.Search = m.searchInput.Value()
		m.list.SetQuery(q)
		m.syncList()
		return m, cmd
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "/":
		m.searching = true
		m.searchInput.Focus()
		return m, textinput.Blink

	case "c":
		q := m.list.Query()
		q.City = nextCity(q.City)
		m.list.SetQuery(q)
		m.syncList()
		return m, nil

	case "o":
		q := m.list.Query()
		q.Sort = (q.Sort + 1) % 3
		m.list.SetQuery(q)
		m.syncList()
		return m, nil

	case "r":
		if m.refreshing {
			return m, nil
		}
		m.refreshing = true
		return m, refreshParks(m.list)

	case "n":
		return m.startCreate()

	case "enter":
		if p, ok := selectedPark(m.parkList); ok {
			return m.showDetail(p.ID)
		}
		return m, nil

	case "e":
		if p, ok := selectedPark(m.parkList); ok {
			return m.startEdit(p.ID)
		}
		return m, nil

	case "d":
		if p, ok := selectedPark(m.parkList); ok {
			return m.prepareDelete(p)
		}
		return m, nil
	}

	// Update list
	m.parkList, cmd = m.parkList.Update(msg)
	return m, cmd
}

// handleDetail handles keyboard input in detail state
func (m Model) handleDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "backspace":
		return m.backToList()
	}

	if m.selected == nil {
		if !m.detailLoading {
			return m.backToList()
		}
		return m, nil
	}

	switch msg.String() {
	case "y":
		text := fmt.Sprintf("%s\n%s, %s, %s\n%s", m.selected.Summary(), m.selected.Address, m.selected.City, m.selected.State, m.imageURL)
		return m, copyText(m.caps, text)
	case "e":
		return m.startEdit(m.selected.ID)
	case "d":
		return m.prepareDelete(*m.selected)
	}
	return m, nil
}

// handleForm handles keyboard input in form state
func (m Model) handleForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.form == nil {
		m.state = StateList
		return m, nil
	}

	if m.form.State() == form.StateLoading {
		if msg.Type == tea.KeyEsc {
			m.form = nil
			m.state = m.formBack
		}
		return m, nil
	}

	// Submit is disabled while a request is in flight
	if m.busy {
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.form = nil
		m.inputs = nil
		m.state = m.formBack
		return m, nil
	case "tab", "down":
		m.focusField(m.focus + 1)
		return m, textinput.Blink
	case "shift+tab", "up":
		m.focusField(m.focus - 1)
		return m, textinput.Blink
	case "ctrl+s":
		return m.prepareSubmit()
	case "enter":
		if m.focus == len(m.inputs)-1 {
			return m.prepareSubmit()
		}
		m.focusField(m.focus + 1)
		return m, textinput.Blink
	}

	if isCity(m.focus) {
		switch msg.String() {
		case "left", "h":
			m.cycleCity(-1)
		case "right", "l", " ":
			m.cycleCity(1)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	if _, err := m.form.Set(validation.Fields()[m.focus], m.inputs[m.focus].Value()); err != nil {
		m.logger.Debug("field update rejected", zap.Error(err))
	}
	return m, cmd
}

// handleConfirm handles the yes/no answer to the pending confirmation
func (m Model) handleConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.confirm
	if c == nil {
		m.state = StateList
		return m, nil
	}

	switch msg.String() {
	case "y", "enter":
		m.confirm = nil
		m.busy = true

		switch c.kind {
		case confirmSubmit, confirmRetrySubmit:
			m.state = StateForm
			m.busyLabel = "Saving park..."
			if c.kind == confirmRetrySubmit {
				return m, retrySubmit(m.form)
			}
			return m, executeSubmit(m.form)

		default:
			m.state = c.back
			m.busyLabel = fmt.Sprintf("Deleting %s...", m.deleting.Name)
			if c.kind == confirmRetryDelete {
				return m, retryDelete(m.list)
			}
			return m, executeDelete(m.list)
		}

	case "n", "esc":
		m.confirm = nil
		m.state = c.back

		switch c.kind {
		case confirmDelete, confirmRetryDelete:
			m.list.CancelDelete()
		case confirmRetrySubmit:
			m.form.Cancel()
		}
		if c.kind == confirmRetrySubmit || c.kind == confirmRetryDelete {
			return m, m.flash("Cancelled", false)
		}
	}

	return m, nil
}

// handleError handles keyboard input in error state
func (m Model) handleError(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "r":
		if !retryable(m.err) {
			return m, nil
		}
		m.err = nil
		if m.errOrigin == errFromForm && m.form != nil {
			m.state = StateForm
			return m, loadForm(m.form)
		}
		if m.errOrigin == errFromDetail {
			return m.showDetail(m.detailID)
		}
		m.state = StateLoading
		m.refreshing = true
		return m, refreshParks(m.list)

	case "esc":
		if m.list.Loaded() {
			m.err = nil
			m.form = nil
			return m.backToList()
		}
	}
	return m, nil
}

// showDetail opens the detail view and fetches the server copy of the park
func (m Model) showDetail(id string) (tea.Model, tea.Cmd) {
	m.detailID = id
	m.detailLoading = true
	m.selected = nil
	m.imageURL = ""
	m.err = nil
	m.state = StateDetail
	return m, loadDetail(m.client, m.caps, id)
}

// backToList returns to the list and re-fetches it
func (m Model) backToList() (tea.Model, tea.Cmd) {
	m.state = StateList
	m.selected = nil
	m.detailID = ""
	m.detailLoading = false
	if m.refreshing {
		return m, nil
	}
	m.refreshing = true
	return m, refreshParks(m.list)
}

func (m Model) startCreate() (tea.Model, tea.Cmd) {
	m.form = form.NewCreate(m.client, m.caps, m.formOpts)
	m.formBack = m.state
	m.inputs = newFieldInputs(m.form.Draft())
	m.city = -1
	m.focusField(0)
	m.state = StateForm
	return m, textinput.Blink
}

func (m Model) startEdit(id string) (tea.Model, tea.Cmd) {
	m.form = form.NewEdit(m.client, m.caps, id, m.formOpts)
	m.formBack = m.state
	m.inputs = nil
	m.state = StateForm
	return m, loadForm(m.form)
}

func (m Model) prepareSubmit() (tea.Model, tea.Cmd) {
	conf, err := m.form.Prepare()
	if err != nil {
		var verr *form.ValidationError
		switch {
		case errors.Is(err, form.ErrNoChanges):
			return m, m.notify(journal.LevelInfo, "update", m.form.ID(), "", "No changes to save", "")
		case errors.As(err, &verr):
			m.focusField(firstInvalid(verr.Errors))
			return m, m.flash(fmt.Sprintf("✗ Fix %d field(s) before saving", verr.Count()), true)
		default:
			return m, m.flash("✗ "+err.Error(), true)
		}
	}

	m.confirm = &confirmation{
		kind:  confirmSubmit,
		title: conf.Title,
		lines: conf.Lines,
		back:  StateForm,
	}
	m.state = StateConfirm
	return m, nil
}

func (m Model) prepareDelete(p models.Park) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, m.flash("✗ "+parklist.ErrBusy.Error(), true)
	}

	conf, err := m.list.PrepareDelete(p.ID)
	if err != nil {
		return m, m.flash("✗ "+err.Error(), true)
	}

	m.deleting = conf.Park
	m.confirm = &confirmation{
		kind:  confirmDelete,
		title: conf.Title,
		lines: conf.Lines,
		back:  m.state,
	}
	m.state = StateConfirm
	return m, nil
}

// syncList rebuilds the list items from the controller's current view
func (m *Model) syncList() {
	_ = m.parkList.SetItems(parkItems(m.list.Visible()))
}

// flash shows a transient notification
func (m *Model) flash(text string, isErr bool) tea.Cmd {
	m.toastSeq++
	m.toast = text
	m.toastErr = isErr
	return expireToast(m.toastSeq, toastDuration)
}

// notify shows a notification and records it in the journal
func (m *Model) notify(level journal.Level, action, parkID, parkName, text, kind string) tea.Cmd {
	logger := m.logger
	entry := journal.Entry{
		Level:     level,
		Action:    action,
		ParkID:    parkID,
		ParkName:  parkName,
		Message:   text,
		ErrorKind: kind,
	}
	return tea.Batch(
		m.flash(text, level == journal.LevelError),
		recordEntry(m.recorder, entry, func(err error) {
			logger.Warn("recording notification failed", zap.Error(err))
		}),
	)
}

func nextCity(current models.City) models.City {
	cities := models.Cities()
	if current == "" {
		return cities[0]
	}
	for i, c := range cities {
		if c == current && i+1 < len(cities) {
			return cities[i+1]
		}
	}
	return ""
}

func userMessage(err error) string {
	var apiErr *parksapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return err.Error()
}

func kindOf(err error) string {
	var apiErr *parksapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind.String()
	}
	return ""
}

func retryable(err error) bool {
	var apiErr *parksapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return err != nil
}

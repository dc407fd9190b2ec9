// Package form drives the create and edit flows for a single park: it holds
// the draft, tracks changes against the loaded record, validates fields and
// submits through the record client with a bounded, user-confirmed retry.
package form

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/ngmaloney/park-terminal/internal/models"
	"github.com/ngmaloney/park-terminal/internal/parksapi"
	"github.com/ngmaloney/park-terminal/internal/platform"
	"github.com/ngmaloney/park-terminal/internal/validation"
)

// DefaultMaxAttempts bounds the number of submissions per confirmed action
const DefaultMaxAttempts = 3

// Mode selects between creating a new park and editing an existing one
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

// State is the lifecycle state of a form
type State int

const (
	StateLoading    State = iota // fetching the record to edit
	StateEditing                 // draft held and validated live
	StateSubmitting              // request in flight
	StateDone                    // saved
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateEditing:
		return "editing"
	case StateSubmitting:
		return "submitting"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

var (
	ErrNoChanges      = errors.New("no changes to save")
	ErrBusy           = errors.New("a submission is already in progress")
	ErrNotEditing     = errors.New("form is not ready for editing")
	ErrRetryExhausted = errors.New("no retries remaining")
	ErrNothingPending = errors.New("no failed submission to retry")
)

// ValidationError is returned when the draft fails client-side validation
type ValidationError struct {
	Errors map[validation.Field]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d field(s) need attention", len(e.Errors))
}

// Count returns the number of failing fields
func (e *ValidationError) Count() int {
	return len(e.Errors)
}

// Change is a single field difference shown before saving an edit
type Change struct {
	Field  validation.Field
	Label  string
	Before string
	After  string
}

// Confirmation is the summary presented to the user before a submission
type Confirmation struct {
	Title   string
	Lines   []string
	Changes []Change
}

// Result is the outcome of a submission attempt
type Result struct {
	Park     *models.Park
	Err      error
	Attempt  int
	CanRetry bool
	Refresh  bool // the list view should re-fetch
}

// OK reports whether the submission succeeded
func (r Result) OK() bool {
	return r.Err == nil && r.Park != nil
}

// Message returns a human-readable description of the outcome
func (r Result) Message() string {
	if r.Err == nil {
		return "Park saved"
	}
	var apiErr *parksapi.Error
	if errors.As(r.Err, &apiErr) {
		return apiErr.UserMessage()
	}
	return r.Err.Error()
}

// Options configures a Controller
type Options struct {
	MaxAttempts int
	Rules       validation.Rules
	Logger      *zap.Logger
}

// Controller holds the state of one form instance
type Controller struct {
	mode        Mode
	state       State
	id          string
	draft       validation.Draft
	original    validation.Draft
	fieldErrs   map[validation.Field]string
	client      parksapi.Client
	caps        platform.Capabilities
	rules       validation.Rules
	maxAttempts int
	attempts    int
	lastErr     *parksapi.Error
	loadErr     *parksapi.Error
	saved       *models.Park
	logger      *zap.Logger
	mu          sync.Mutex
}

// NewCreate returns a form seeded with default values
func NewCreate(client parksapi.Client, caps platform.Capabilities, opts Options) *Controller {
	c := newController(client, caps, opts)
	c.mode = ModeCreate
	c.state = StateEditing
	c.draft = EmptyDraft()
	c.original = copyDraft(c.draft)
	return c
}

// NewEdit returns a form that must be loaded before editing
func NewEdit(client parksapi.Client, caps platform.Capabilities, id string, opts Options) *Controller {
	c := newController(client, caps, opts)
	c.mode = ModeEdit
	c.state = StateLoading
	c.id = id
	return c
}

func newController(client parksapi.Client, caps platform.Capabilities, opts Options) *Controller {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Rules == (validation.Rules{}) {
		opts.Rules = validation.Default()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		client:      client,
		caps:        caps,
		rules:       opts.Rules,
		maxAttempts: opts.MaxAttempts,
		fieldErrs:   make(map[validation.Field]string),
		logger:      opts.Logger,
	}
}

// EmptyDraft returns the values a new park starts with
func EmptyDraft() validation.Draft {
	d := make(validation.Draft, len(validation.Fields()))
	for _, f := range validation.Fields() {
		d[f] = ""
	}
	d[validation.FieldState] = models.DefaultState
	return d
}

// DraftFromPark converts a record into editable field values
func DraftFromPark(p models.Park) validation.Draft {
	return validation.Draft{
		validation.FieldName:         p.Name,
		validation.FieldAbbreviation: p.Abbreviation,
		validation.FieldImageURL:     p.ImageURL,
		validation.FieldAddress:      p.Address,
		validation.FieldCity:         string(p.City),
		validation.FieldState:        p.State,
		validation.FieldPostalCode:   p.PostalCode,
		validation.FieldLatitude:     strconv.FormatFloat(p.Latitude, 'f', -1, 64),
		validation.FieldLongitude:    strconv.FormatFloat(p.Longitude, 'f', -1, 64),
	}
}

// Load fetches the record being edited and seeds the draft from it.
// On failure the form stays in StateLoading and LoadErr reports why.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.mode != ModeEdit || c.state != StateLoading {
		c.mu.Unlock()
		return ErrNotEditing
	}
	id := c.id
	c.mu.Unlock()

	var park *models.Park
	var err error
	if !c.caps.Online(ctx) {
		err = &parksapi.Error{Kind: parksapi.KindOffline, Op: "get"}
	} else {
		park, err = c.client.Get(ctx, id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.loadErr = parksapi.Classify("get", err)
		c.logger.Warn("loading park failed", zap.String("id", id), zap.Error(err))
		return c.loadErr
	}

	c.loadErr = nil
	c.draft = DraftFromPark(*park)
	c.original = copyDraft(c.draft)
	c.state = StateEditing
	return nil
}

// Mode returns whether the form creates or edits
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ID returns the identifier of the park being edited
func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// LoadErr returns the classified error of the last failed Load
func (c *Controller) LoadErr() *parksapi.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// Saved returns the record returned by the last successful submission
func (c *Controller) Saved() *models.Park {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saved
}

// Draft returns a copy of the current field values
func (c *Controller) Draft() validation.Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyDraft(c.draft)
}

// Value returns the current value of a field
func (c *Controller) Value(f validation.Field) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft[f]
}

// FieldError returns the last validation message for a field
func (c *Controller) FieldError(f validation.Field) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fieldErrs[f]
}

// Set updates a field and returns its live validation message
func (c *Controller) Set(f validation.Field, value string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateEditing {
		return "", ErrNotEditing
	}
	if _, ok := c.draft[f]; !ok {
		return "", fmt.Errorf("unknown field %q", f)
	}

	c.draft[f] = value
	msg := c.rules.Validate(f, value)
	if msg == "" {
		delete(c.fieldErrs, f)
	} else {
		c.fieldErrs[f] = msg
	}
	return msg, nil
}

// HasChanges reports whether the draft differs from the seeded snapshot
func (c *Controller) HasChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasChanges()
}

func (c *Controller) hasChanges() bool {
	return !cmp.Equal(c.draft, c.original)
}

// Prepare validates the draft and builds the confirmation to show the user.
// It never touches the network.
func (c *Controller) Prepare() (*Confirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkSubmittable(); err != nil {
		return nil, err
	}

	if c.mode == ModeEdit {
		return c.editConfirmation(), nil
	}
	return c.createConfirmation(), nil
}

// checkSubmittable runs the local part of the submit sequence. Caller holds mu.
func (c *Controller) checkSubmittable() error {
	switch c.state {
	case StateSubmitting:
		return ErrBusy
	case StateEditing:
	default:
		return ErrNotEditing
	}

	if c.mode == ModeEdit && !c.hasChanges() {
		return ErrNoChanges
	}

	errs := c.rules.ValidateAll(c.draft)
	c.fieldErrs = errs
	if len(errs) > 0 {
		return &ValidationError{Errors: copyErrors(errs)}
	}
	return nil
}

func (c *Controller) createConfirmation() *Confirmation {
	conf := &Confirmation{Title: "Create this park?"}
	for _, f := range validation.Fields() {
		conf.Lines = append(conf.Lines, fmt.Sprintf("%s: %s", validation.Label(f), strings.TrimSpace(c.draft[f])))
	}
	return conf
}

func (c *Controller) editConfirmation() *Confirmation {
	name := strings.TrimSpace(c.original[validation.FieldName])
	conf := &Confirmation{Title: fmt.Sprintf("Save changes to %s?", name)}
	for _, f := range validation.Fields() {
		before, after := c.original[f], c.draft[f]
		if before == after {
			continue
		}
		ch := Change{Field: f, Label: validation.Label(f), Before: before, After: after}
		conf.Changes = append(conf.Changes, ch)
		conf.Lines = append(conf.Lines, fmt.Sprintf("%s: %q → %q", ch.Label, before, after))
	}
	return conf
}

// Execute submits the draft after the user confirmed. It starts a new
// submit sequence, resetting the attempt count.
func (c *Controller) Execute(ctx context.Context) Result {
	return c.submit(ctx, false)
}

// Retry re-runs the submit sequence after a retryable failure, as long as
// attempts remain.
func (c *Controller) Retry(ctx context.Context) Result {
	c.mu.Lock()
	if c.lastErr == nil {
		c.mu.Unlock()
		return Result{Err: ErrNothingPending}
	}
	if !c.lastErr.Retryable() || c.attempts >= c.maxAttempts {
		attempt := c.attempts
		c.mu.Unlock()
		return Result{Err: ErrRetryExhausted, Attempt: attempt}
	}
	c.mu.Unlock()

	return c.submit(ctx, true)
}

// Cancel abandons a failed submission and returns to editing
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = nil
	c.attempts = 0
}

// LastErr returns the classified error of the last failed submission
func (c *Controller) LastErr() *parksapi.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// MaxAttempts returns the submission bound of one confirmed action
func (c *Controller) MaxAttempts() int {
	return c.maxAttempts
}

// Attempts returns how many submissions the current sequence has made
func (c *Controller) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Controller) submit(ctx context.Context, retry bool) Result {
	c.mu.Lock()
	if err := c.checkSubmittable(); err != nil {
		c.mu.Unlock()
		return Result{Err: err}
	}
	in, err := Transform(c.draft)
	if err != nil {
		c.mu.Unlock()
		return Result{Err: err}
	}
	if !retry {
		c.attempts = 0
	}
	c.attempts++
	attempt := c.attempts
	c.state = StateSubmitting
	mode, id := c.mode, c.id
	c.mu.Unlock()

	var park *models.Park
	op := "create"
	if mode == ModeEdit {
		op = "update"
	}

	if !c.caps.Online(ctx) {
		err = &parksapi.Error{Kind: parksapi.KindOffline, Op: op}
	} else if mode == ModeEdit {
		park, err = c.client.Update(ctx, id, in)
	} else {
		park, err = c.client.Create(ctx, in)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state = StateEditing
		c.lastErr = parksapi.Classify(op, err)
		canRetry := c.lastErr.Retryable() && c.attempts < c.maxAttempts
		c.logger.Warn("submitting park failed",
			zap.String("op", op),
			zap.String("kind", c.lastErr.Kind.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return Result{Err: c.lastErr, Attempt: attempt, CanRetry: canRetry}
	}

	c.state = StateDone
	c.lastErr = nil
	c.saved = park
	c.original = copyDraft(c.draft)
	c.logger.Info("park saved", zap.String("op", op), zap.String("id", park.ID), zap.Int("attempt", attempt))
	return Result{Park: park, Attempt: attempt, Refresh: true}
}

// Transform converts a valid draft into the request payload: strings are
// trimmed, the abbreviation uppercased and coordinates parsed.
func Transform(d validation.Draft) (models.ParkInput, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(d[validation.FieldLatitude]), 64)
	if err != nil {
		return models.ParkInput{}, fmt.Errorf("parsing latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(d[validation.FieldLongitude]), 64)
	if err != nil {
		return models.ParkInput{}, fmt.Errorf("parsing longitude: %w", err)
	}

	state := strings.TrimSpace(d[validation.FieldState])
	if state == "" {
		state = models.DefaultState
	}

	return models.ParkInput{
		Name:         strings.TrimSpace(d[validation.FieldName]),
		Abbreviation: strings.ToUpper(strings.TrimSpace(d[validation.FieldAbbreviation])),
		ImageURL:     strings.TrimSpace(d[validation.FieldImageURL]),
		Address:      strings.TrimSpace(d[validation.FieldAddress]),
		City:         models.City(strings.TrimSpace(d[validation.FieldCity])),
		State:        state,
		PostalCode:   strings.TrimSpace(d[validation.FieldPostalCode]),
		Latitude:     lat,
		Longitude:    lon,
	}, nil
}

func copyDraft(d validation.Draft) validation.Draft {
	out := make(validation.Draft, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func copyErrors(errs map[validation.Field]string) map[validation.Field]string {
	out := make(map[validation.Field]string, len(errs))
	for k, v := range errs {
		out[k] = v
	}
	return out
}

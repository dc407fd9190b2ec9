// Package parklist holds the fetched park collection, derives the filtered
// and sorted view shown to the user, and drives confirmed deletions.
package parklist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ngmaloney/park-terminal/internal/models"
	"github.com/ngmaloney/park-terminal/internal/parksapi"
	"github.com/ngmaloney/park-terminal/internal/platform"
)

// DefaultMaxAttempts bounds the number of delete calls per confirmed action
const DefaultMaxAttempts = 3

// SortKey orders the visible parks
type SortKey int

const (
	SortByName SortKey = iota
	SortByCity
	SortByRecent // descending identifier
)

func (s SortKey) String() string {
	switch s {
	case SortByCity:
		return "city"
	case SortByRecent:
		return "recent"
	default:
		return "name"
	}
}

// ParseSortKey maps a flag value to a SortKey
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "name":
		return SortByName, nil
	case "city":
		return SortByCity, nil
	case "recent":
		return SortByRecent, nil
	default:
		return SortByName, fmt.Errorf("unknown sort key %q (want name, city or recent)", s)
	}
}

// Query describes the derived view over the collection
type Query struct {
	Search string
	City   models.City // empty matches every city
	Sort   SortKey
}

var (
	ErrBusy           = errors.New("a deletion is already in progress")
	ErrNothingPending = errors.New("no deletion is pending")
	ErrRetryExhausted = errors.New("no retries remaining")
	ErrNotLoaded      = errors.New("park is not in the list")
)

// Confirmation summarizes the park about to be deleted
type Confirmation struct {
	Title string
	Lines []string
	Park  models.Park
}

// DeleteResult is the outcome of a delete attempt
type DeleteResult struct {
	ID       string
	Err      error
	Attempt  int
	CanRetry bool
}

// OK reports whether the park was deleted
func (r DeleteResult) OK() bool {
	return r.Err == nil
}

// Message returns a human-readable description of the outcome
func (r DeleteResult) Message() string {
	if r.Err == nil {
		return "Park deleted"
	}
	var apiErr *parksapi.Error
	if errors.As(r.Err, &apiErr) {
		return apiErr.UserMessage()
	}
	return r.Err.Error()
}

type pendingDelete struct {
	park     models.Park
	attempts int
	inFlight bool
	lastErr  *parksapi.Error
}

// Options configures a Controller
type Options struct {
	MaxAttempts int
	Logger      *zap.Logger
}

// Controller owns the in-memory park collection
type Controller struct {
	client      parksapi.Client
	caps        platform.Capabilities
	parks       []models.Park
	loaded      bool
	loadErr     *parksapi.Error
	query       Query
	pending     *pendingDelete
	maxAttempts int
	logger      *zap.Logger
	mu          sync.RWMutex
}

// New creates a list controller
func New(client parksapi.Client, caps platform.Capabilities, opts Options) *Controller {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		client:      client,
		caps:        caps,
		maxAttempts: opts.MaxAttempts,
		logger:      opts.Logger,
	}
}

// Refresh re-fetches the whole collection. On failure the previous
// collection is kept.
func (c *Controller) Refresh(ctx context.Context) error {
	var parks []models.Park
	var err error
	if !c.caps.Online(ctx) {
		err = &parksapi.Error{Kind: parksapi.KindOffline, Op: "list"}
	} else {
		parks, err = c.client.List(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.loadErr = parksapi.Classify("list", err)
		c.logger.Warn("listing parks failed", zap.Error(err))
		return c.loadErr
	}

	c.parks = parks
	c.loaded = true
	c.loadErr = nil
	c.logger.Debug("parks loaded", zap.Int("count", len(parks)))
	return nil
}

// Loaded reports whether at least one fetch succeeded
func (c *Controller) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// LoadErr returns the classified error of the last failed Refresh
func (c *Controller) LoadErr() *parksapi.Error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadErr
}

// All returns a copy of the full collection
func (c *Controller) All() []models.Park {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Park(nil), c.parks...)
}

// Find returns the park with the given id from the local collection
func (c *Controller) Find(id string) (models.Park, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.parks {
		if p.ID == id {
			return p, true
		}
	}
	return models.Park{}, false
}

// SetQuery replaces the current search, filter and sort
func (c *Controller) SetQuery(q Query) {
	c.mu.Lock()
	c.query = q
	c.mu.Unlock()
}

// Query returns the current search, filter and sort
func (c *Controller) Query() Query {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.query
}

// Visible returns the parks matching the current query in sorted order
func (c *Controller) Visible() []models.Park {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Apply(c.parks, c.query)
}

// Apply filters and sorts parks according to q without modifying the input
func Apply(parks []models.Park, q Query) []models.Park {
	needle := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]models.Park, 0, len(parks))
	for _, p := range parks {
		if q.City != "" && p.City != q.City {
			continue
		}
		if needle != "" && !matches(p, needle) {
			continue
		}
		out = append(out, p)
	}

	switch q.Sort {
	case SortByCity:
		sort.SliceStable(out, func(i, j int) bool {
			ci, cj := strings.ToLower(string(out[i].City)), strings.ToLower(string(out[j].City))
			if ci != cj {
				return ci < cj
			}
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		})
	case SortByRecent:
		sort.SliceStable(out, func(i, j int) bool {
			return idGreater(out[i].ID, out[j].ID)
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		})
	}

	return out
}

func matches(p models.Park, needle string) bool {
	for _, field := range []string{p.Name, string(p.City), p.State, p.Address} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// idGreater orders identifiers for the recent sort. Integer ids come first
// in descending numeric order, followed by the rest in descending
// lexicographic order.
func idGreater(a, b string) bool {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return ai > bi
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a > b
	}
}

// PrepareDelete builds the confirmation for deleting the park with id
func (c *Controller) PrepareDelete(id string) (*Confirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil && c.pending.inFlight {
		return nil, ErrBusy
	}

	var park *models.Park
	for i := range c.parks {
		if c.parks[i].ID == id {
			park = &c.parks[i]
			break
		}
	}
	if park == nil {
		return nil, ErrNotLoaded
	}

	c.pending = &pendingDelete{park: *park}

	conf := &Confirmation{
		Title: fmt.Sprintf("Delete %s?", park.Name),
		Park:  *park,
		Lines: []string{
			park.Summary(),
			fmt.Sprintf("%s, %s", park.Address, park.State),
			"This cannot be undone.",
		},
	}
	return conf, nil
}

// ExecuteDelete deletes the prepared park. On success the park is removed
// from the local collection without re-fetching.
func (c *Controller) ExecuteDelete(ctx context.Context) DeleteResult {
	return c.deletePending(ctx, false)
}

// RetryDelete issues one more delete call for the same park after a
// retryable failure
func (c *Controller) RetryDelete(ctx context.Context) DeleteResult {
	c.mu.RLock()
	p := c.pending
	if p == nil || p.lastErr == nil {
		c.mu.RUnlock()
		return DeleteResult{Err: ErrNothingPending}
	}
	if !p.lastErr.Retryable() || p.attempts >= c.maxAttempts {
		res := DeleteResult{ID: p.park.ID, Err: ErrRetryExhausted, Attempt: p.attempts}
		c.mu.RUnlock()
		return res
	}
	c.mu.RUnlock()

	return c.deletePending(ctx, true)
}

// CancelDelete drops the pending deletion without side effects
func (c *Controller) CancelDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil && !c.pending.inFlight {
		c.pending = nil
	}
}

// Pending returns the park awaiting deletion, if any
func (c *Controller) Pending() (models.Park, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pending == nil {
		return models.Park{}, false
	}
	return c.pending.park, true
}

// MaxAttempts returns the delete bound of one confirmed action
func (c *Controller) MaxAttempts() int {
	return c.maxAttempts
}

// Deleting reports whether a delete call is in flight
func (c *Controller) Deleting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pending != nil && c.pending.inFlight
}

func (c *Controller) deletePending(ctx context.Context, retry bool) DeleteResult {
	c.mu.Lock()
	p := c.pending
	if p == nil {
		c.mu.Unlock()
		return DeleteResult{Err: ErrNothingPending}
	}
	if p.inFlight {
		c.mu.Unlock()
		return DeleteResult{ID: p.park.ID, Err: ErrBusy}
	}
	if !retry {
		p.attempts = 0
	}
	p.attempts++
	p.inFlight = true
	id, attempt := p.park.ID, p.attempts
	c.mu.Unlock()

	var err error
	if !c.caps.Online(ctx) {
		err = &parksapi.Error{Kind: parksapi.KindOffline, Op: "delete"}
	} else {
		err = c.client.Delete(ctx, id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	p.inFlight = false

	if err != nil {
		p.lastErr = parksapi.Classify("delete", err)
		canRetry := p.lastErr.Retryable() && p.attempts < c.maxAttempts
		c.logger.Warn("deleting park failed",
			zap.String("id", id),
			zap.String("kind", p.lastErr.Kind.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return DeleteResult{ID: id, Err: p.lastErr, Attempt: attempt, CanRetry: canRetry}
	}

	c.removeLocked(id)
	if c.pending == p {
		c.pending = nil
	}
	c.logger.Info("park deleted", zap.String("id", id), zap.Int("attempt", attempt))
	return DeleteResult{ID: id, Attempt: attempt}
}

func (c *Controller) removeLocked(id string) {
	kept := c.parks[:0:0]
	for _, p := range c.parks {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	c.parks = kept
}

// Package parksapitest provides an in-memory parksapi.Client for tests.
package parksapitest

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/ngmaloney/park-terminal/internal/models"
	"github.com/ngmaloney/park-terminal/internal/parksapi"
)

// Call records a single client invocation
type Call struct {
	Op    string
	ID    string
	Input models.ParkInput
}

// Client is an in-memory park collection with scriptable failures
type Client struct {
	mu     sync.Mutex
	parks  []models.Park
	queued map[string][]error
	calls  []Call
	nextID int
}

var _ parksapi.Client = (*Client)(nil)

// New returns a fake seeded with parks
func New(parks ...models.Park) *Client {
	next := 1
	for _, p := range parks {
		if n, err := strconv.Atoi(p.ID); err == nil && n >= next {
			next = n + 1
		}
	}
	return &Client{
		parks:  append([]models.Park(nil), parks...),
		queued: make(map[string][]error),
		nextID: next,
	}
}

// FailNext makes the next call of op return err. Calls queue in order.
func (c *Client) FailNext(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queued[op] = append(c.queued[op], err)
}

// Calls returns the recorded invocations of op, or all of them when op is empty
func (c *Client) Calls(op string) []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Call
	for _, call := range c.calls {
		if op == "" || call.Op == op {
			out = append(out, call)
		}
	}
	return out
}

// Parks returns the current server-side collection
func (c *Client) Parks() []models.Park {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Park(nil), c.parks...)
}

func (c *Client) begin(call Call) error {
	c.calls = append(c.calls, call)
	if errs := c.queued[call.Op]; len(errs) > 0 {
		c.queued[call.Op] = errs[1:]
		return errs[0]
	}
	return nil
}

func (c *Client) index(id string) int {
	for i, p := range c.parks {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func notFound(op string) error {
	return &parksapi.Error{Kind: parksapi.KindNotFound, Op: op, Status: http.StatusNotFound}
}

// List returns every park
func (c *Client) List(ctx context.Context) ([]models.Park, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(Call{Op: "list"}); err != nil {
		return nil, err
	}
	return append([]models.Park{}, c.parks...), nil
}

// Get returns the park with id or a NotFound error
func (c *Client) Get(ctx context.Context, id string) (*models.Park, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(Call{Op: "get", ID: id}); err != nil {
		return nil, err
	}
	i := c.index(id)
	if i < 0 {
		return nil, notFound("get")
	}
	p := c.parks[i]
	return &p, nil
}

// Create stores the park under the next numeric id
func (c *Client) Create(ctx context.Context, in models.ParkInput) (*models.Park, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(Call{Op: "create", Input: in}); err != nil {
		return nil, err
	}
	p := in.Park(strconv.Itoa(c.nextID))
	c.nextID++
	c.parks = append(c.parks, p)
	return &p, nil
}

// Update replaces the park with id
func (c *Client) Update(ctx context.Context, id string, in models.ParkInput) (*models.Park, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(Call{Op: "update", ID: id, Input: in}); err != nil {
		return nil, err
	}
	i := c.index(id)
	if i < 0 {
		return nil, notFound("update")
	}
	p := in.Park(id)
	c.parks[i] = p
	return &p, nil
}

// Delete removes the park with id
func (c *Client) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(Call{Op: "delete", ID: id}); err != nil {
		return err
	}
	i := c.index(id)
	if i < 0 {
		return notFound("delete")
	}
	c.parks = append(c.parks[:i], c.parks[i+1:]...)
	return nil
}

// Sample returns a park that passes every validation rule
func Sample(id string) models.Park {
	return models.Park{
		ID:           id,
		Name:         "Parque del Perro",
		Abbreviation: "PDP",
		ImageURL:     "https://images.example.com/parks/perro.jpg",
		Address:      "Calle 2 Oeste con Carrera 34",
		City:         models.CityCali,
		State:        models.DefaultState,
		PostalCode:   "760045",
		Latitude:     3.4372,
		Longitude:    -76.5436,
	}
}

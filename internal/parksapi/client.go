// Package parksapi is the HTTP client for the remote park collection.
package parksapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ngmaloney/park-terminal/internal/models"
)

// DefaultTimeout bounds every request issued by the client
const DefaultTimeout = 12 * time.Second

// Client defines the operations available on the park collection
type Client interface {
	// List retrieves every park in the collection
	List(ctx context.Context) ([]models.Park, error)

	// Get retrieves a single park by its identifier
	Get(ctx context.Context, id string) (*models.Park, error)

	// Create stores a new park and returns the saved record
	Create(ctx context.Context, in models.ParkInput) (*models.Park, error)

	// Update replaces the park identified by id
	Update(ctx context.Context, id string, in models.ParkInput) (*models.Park, error)

	// Delete removes the park identified by id
	Delete(ctx context.Context, id string) error
}

// Options configures an HTTPClient
type Options struct {
	BaseURL string
	APIKey  string // sent as the "apikey" header
	Token   string // sent as "Authorization: Bearer <token>"
	Timeout time.Duration
	Logger  *zap.Logger
}

// HTTPClient implements Client against a REST endpoint
type HTTPClient struct {
	baseURL    string
	apiKey     string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new park API client
func NewClient(opts Options) *HTTPClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		token:   opts.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// List retrieves every park in the collection
func (c *HTTPClient) List(ctx context.Context) ([]models.Park, error) {
	raw, _, err := c.do(ctx, "list", http.MethodGet, "/parks", nil)
	if err != nil {
		return nil, err
	}

	var parks []models.Park
	if err := json.Unmarshal(unwrapEnvelope(raw), &parks); err != nil {
		return nil, malformed("list", fmt.Errorf("failed to decode response: %w", err))
	}

	for i, p := range parks {
		if missing := p.Missing(); len(missing) > 0 {
			return nil, malformed("list", fmt.Errorf("record %d missing %s", i, strings.Join(missing, ", ")))
		}
	}

	if parks == nil {
		parks = []models.Park{}
	}
	return parks, nil
}

// Get retrieves a single park by its identifier
func (c *HTTPClient) Get(ctx context.Context, id string) (*models.Park, error) {
	raw, _, err := c.do(ctx, "get", http.MethodGet, parkPath(id), nil)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, malformed("get", fmt.Errorf("empty response body"))
	}
	return decodeOne("get", raw)
}

// Create stores a new park and returns the saved record
func (c *HTTPClient) Create(ctx context.Context, in models.ParkInput) (*models.Park, error) {
	raw, _, err := c.do(ctx, "create", http.MethodPost, "/parks", in)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		p := in.Park("")
		return &p, nil
	}
	return decodeOne("create", raw)
}

// Update replaces the park identified by id
func (c *HTTPClient) Update(ctx context.Context, id string, in models.ParkInput) (*models.Park, error) {
	raw, _, err := c.do(ctx, "update", http.MethodPut, parkPath(id), in)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		p := in.Park(id)
		return &p, nil
	}
	return decodeOne("update", raw)
}

// Delete removes the park identified by id
func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	_, _, err := c.do(ctx, "delete", http.MethodDelete, parkPath(id), nil)
	return err
}

// ProbeImage checks that an image URL can be loaded
func (c *HTTPClient) ProbeImage(ctx context.Context, imageURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, imageURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("image returned status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("unexpected content type %q", ct)
	}
	return nil
}

// do issues a single request and returns the response body of a 2xx reply.
// Every failure is returned as a classified *Error.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, &Error{Kind: KindUnknown, Op: op, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, &Error{Kind: KindUnknown, Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, 0, Classify(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, Classify(op, fmt.Errorf("failed to read response: %w", err))
	}

	c.logger.Debug("request completed",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("request_id", requestID))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, &Error{
			Kind:   kindForStatus(resp.StatusCode),
			Op:     op,
			Status: resp.StatusCode,
			Detail: errorDetail(raw),
		}
	}

	return raw, resp.StatusCode, nil
}

func parkPath(id string) string {
	return "/parks/" + url.PathEscape(id)
}

func malformed(op string, err error) *Error {
	return &Error{Kind: KindUnknown, Op: op, Detail: "malformed response", Err: err}
}

// unwrapEnvelope returns the "data" member of an envelope object, or raw itself
func unwrapEnvelope(raw []byte) []byte {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err == nil {
		if data, ok := env["data"]; ok {
			return data
		}
	}
	return raw
}

// decodeOne decodes a single record, accepting a one-element array as some
// backends return the inserted rows as a list.
func decodeOne(op string, raw []byte) (*models.Park, error) {
	payload := bytes.TrimSpace(unwrapEnvelope(raw))

	var park models.Park
	if len(payload) > 0 && payload[0] == '[' {
		var parks []models.Park
		if err := json.Unmarshal(payload, &parks); err != nil {
			return nil, malformed(op, fmt.Errorf("failed to decode response: %w", err))
		}
		if len(parks) != 1 {
			return nil, malformed(op, fmt.Errorf("expected 1 record, got %d", len(parks)))
		}
		park = parks[0]
	} else if err := json.Unmarshal(payload, &park); err != nil {
		return nil, malformed(op, fmt.Errorf("failed to decode response: %w", err))
	}

	if missing := park.Missing(); len(missing) > 0 {
		return nil, malformed(op, fmt.Errorf("record missing %s", strings.Join(missing, ", ")))
	}
	return &park, nil
}

// errorDetail extracts a message from common error body shapes
func errorDetail(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	switch {
	case body.Message != "":
		return body.Message
	case body.Detail != "":
		return body.Detail
	default:
		return body.Error
	}
}

package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/folio/internal/config"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	defaultVersion = "2022-06-28"
	defaultTimeout = 30 * time.Second

	// maxErrorBody caps how much of a failed response is kept for logging.
	maxErrorBody = 64 << 10
)

// ErrUnavailable is matched by every transport, authorization and non-2xx
// failure from the record store.
var ErrUnavailable = errors.New("record store unavailable")

// APIError is a non-2xx response from the record store.
type APIError struct {
	Status     int
	Code       string
	Message    string
	Body       string
	RetryAfter string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion: status %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("notion: status %d", e.Status)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnavailable
}

// Client talks to the record store's REST API with a bearer token.
type Client struct {
	apiKey     string
	baseURL    string
	version    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root (for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithVersion overrides the Notion-Version header.
func WithVersion(v string) Option {
	return func(c *Client) {
		if v != "" {
			c.version = v
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a Client. An empty API key is a configuration error.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, config.Missing("notion.api_key")
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		version: defaultVersion,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Query runs one page of a database query.
func (c *Client) Query(ctx context.Context, databaseID string, req QueryRequest) (*QueryResponse, error) {
	var out QueryResponse
	if err := c.do(ctx, http.MethodPost, "/databases/"+databaseID+"/query", req, &out); err != nil {
		return nil, fmt.Errorf("querying database %s: %w", databaseID, err)
	}
	if out.Results == nil {
		out.Results = []Page{}
	}
	return &out, nil
}

// QueryAll follows the result cursor until the store reports no more pages.
// A failure on any page fails the whole call.
func (c *Client) QueryAll(ctx context.Context, databaseID string, req QueryRequest) ([]Page, error) {
	pages := []Page{}
	for {
		resp, err := c.Query(ctx, databaseID, req)
		if err != nil {
			return nil, err
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			return pages, nil
		}
		req.StartCursor = *resp.NextCursor
	}
}

// CreatePage inserts a row into a database and returns the created page.
func (c *Client) CreatePage(ctx context.Context, databaseID string, props Properties) (*Page, error) {
	body := createPageRequest{
		Parent:     parent{DatabaseID: databaseID},
		Properties: props,
	}
	var out Page
	if err := c.do(ctx, http.MethodPost, "/pages", body, &out); err != nil {
		return nil, fmt.Errorf("creating page in %s: %w", databaseID, err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: executing request: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", ErrUnavailable, err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", c.version)
}

func readAPIError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{
		Status:     resp.StatusCode,
		Body:       string(raw),
		RetryAfter: resp.Header.Get("Retry-After"),
	}
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil {
		apiErr.Code = eb.Code
		apiErr.Message = eb.Message
	}
	return apiErr
}

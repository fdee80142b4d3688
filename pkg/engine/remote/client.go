package remote

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

	"github.com/matzehuels/olette/pkg/engine"
	"github.com/matzehuels/olette/pkg/errors"
	"github.com/matzehuels/olette/pkg/graph"
	"github.com/matzehuels/olette/pkg/observability"
)

// SessionHeader carries the session id for engines hosting several nets.
const SessionHeader = "X-Olette-Session"

// DefaultTimeout bounds a single engine call.
const DefaultTimeout = 30 * time.Second

// Client talks to an engine process.
type Client struct {
	http    *http.Client
	base    *url.URL
	session string
	headers map[string]string
}

var _ engine.Engine = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithSession tags every request with a session id.
func WithSession(id string) Option {
	return func(c *Client) { c.session = id }
}

// WithHeader adds a header to every request.
func WithHeader(k, v string) Option {
	return func(c *Client) { c.headers[k] = v }
}

// New creates a client for the engine at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if err := errors.ValidateURL(baseURL); err != nil {
		return nil, err
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse engine URL")
	}
	c := &Client{
		http:    &http.Client{Timeout: DefaultTimeout},
		base:    u,
		headers: map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Session returns a copy of c bound to the session id.
func (c *Client) Session(id string) *Client {
	cp := *c
	cp.session = id
	return &cp
}

type loadRequest struct {
	Term string `json:"term"`
}

type reduceRequest struct {
	Node graph.NodeID    `json:"node"`
	Rule engine.RuleKind `json:"rule"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Load implements [engine.Engine].
func (c *Client) Load(ctx context.Context, term string) (graph.Graph, error) {
	var g graph.Graph
	err := c.post(ctx, "/load", loadRequest{Term: term}, &g)
	if err != nil {
		return graph.Graph{}, err
	}
	return g, nil
}

// Update implements [engine.Engine].
func (c *Client) Update(ctx context.Context, states []graph.NodeState) error {
	if states == nil {
		states = []graph.NodeState{}
	}
	return c.post(ctx, "/update", states, nil)
}

// Reduce implements [engine.Engine].
func (c *Client) Reduce(ctx context.Context, node graph.NodeID, rule engine.RuleKind) (graph.Graph, error) {
	var g graph.Graph
	if err := c.post(ctx, "/reduce", reduceRequest{Node: node, Rule: rule}, &g); err != nil {
		return graph.Graph{}, err
	}
	return g, nil
}

// Rebuild implements [engine.Engine].
func (c *Client) Rebuild(ctx context.Context, g graph.Graph) error {
	var buf bytes.Buffer
	if err := graph.Write(g, &buf); err != nil {
		return err
	}
	return c.do(ctx, "/rebuild", &buf, nil)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode %s request", path)
	}
	return c.do(ctx, path, bytes.NewReader(body), out)
}

func (c *Client) do(ctx context.Context, path string, body io.Reader, out any) error {
	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "build %s request", path)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.session != "" {
		req.Header.Set(SessionHeader, c.session)
	}

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, http.MethodPost, u.Host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, http.MethodPost, u.Host, path, err)
		return errors.Wrap(errors.ErrCodeEngine, err, "engine %s", path)
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, http.MethodPost, u.Host, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(path, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(errors.ErrCodeEngine, err, "decode %s response", path)
	}
	return nil
}

func statusError(path string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var er errorResponse
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &er) == nil && er.Error != "" {
		msg = er.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	code := errors.Code(er.Code)
	if code == "" {
		code = errors.ErrCodeEngine
		if path == "/load" && (resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity) {
			code = errors.ErrCodeMalformedTerm
		}
	}
	return errors.New(code, "engine %s: status %d: %s", path, resp.StatusCode, msg)
}

// String returns the engine base URL.
func (c *Client) String() string {
	return fmt.Sprintf("remote engine %s", c.base)
}

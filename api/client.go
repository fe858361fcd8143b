// Package api wraps the remote resource endpoint behind a small client
// honouring the backend's response envelope. Every request carries the
// session's bearer token and active structure header once those are set.
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	statusOK = "OK"

	authorizationHeader = "Authorization"
	structureHeader     = "Structure"

	// hierarchyParam is attached to every write so the backend expands
	// nested records in its response.
	hierarchyParam = "api_hierarchy"

	defaultTimeout = 30 * time.Second
)

// envelope is the backend's uniform response shape. A non-"OK" status is
// an application-level failure carrying a human-readable message.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

// Error is an application-level failure reported inside a well-formed
// response envelope, or a transport-level failure with no envelope.
type Error struct {
	Status   string
	Message  string
	HTTPCode int
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api request failed (%s): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api request failed (%s): http %d", e.Status, e.HTTPCode)
}

// Client is the shared HTTP client for the resource endpoint. Header and
// base-URL mutation is guarded so the session layer may reconfigure the
// client while resource loads are in flight.
type Client struct {
	mu     sync.RWMutex
	rest   *resty.Client
	logger zerolog.Logger
}

// Option modifies a Client at construction time.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.rest.SetTimeout(d)
	}
}

// New creates a Client pointed at baseURL. The base URL may be empty at
// construction and set later through SetEndpoint during licence activation.
func New(baseURL string, options ...Option) *Client {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout)
	rest.JSONMarshal = sonic.Marshal
	rest.JSONUnmarshal = sonic.Unmarshal

	client := &Client{
		rest:   rest,
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(client)
	}
	return client
}

// SetEndpoint rebuilds the base URL from a host and a TLS flag, as chosen
// during licence activation.
func (c *Client) SetEndpoint(host string, tls bool) error {
	if host == "" {
		return ErrEndpointUndefined
	}
	scheme := "http"
	if tls {
		scheme = "https"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rest.SetBaseURL(fmt.Sprintf("%s://%s", scheme, host))
	return nil
}

// BaseURL returns the currently configured base URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rest.BaseURL
}

// SetBearerToken applies the session token to all subsequent requests.
func (c *Client) SetBearerToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rest.SetHeader(authorizationHeader, token)
}

// ClearBearerToken removes the session token header.
func (c *Client) ClearBearerToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rest.Header.Del(authorizationHeader)
}

// SetStructure applies the active structure (tenant) header to all
// subsequent requests.
func (c *Client) SetStructure(structureID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rest.SetHeader(structureHeader, structureID)
}

// ClearStructure removes the structure header.
func (c *Client) ClearStructure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rest.Header.Del(structureHeader)
}

// Get issues GET {base}/{path} with the given query parameters and returns
// the envelope's data field.
func (c *Client) Get(ctx context.Context, path string, query map[string]string) (any, error) {
	c.mu.RLock()
	request := c.rest.R().SetContext(ctx).SetQueryParams(query)
	c.mu.RUnlock()

	response, err := request.Get(path)
	if err != nil {
		return nil, errors.Wrapf(err, "[Get] %s", path)
	}
	return c.unwrap(path, response)
}

// PostForm issues POST {base}/{path}?api_hierarchy=1 with a form-encoded
// body and returns the envelope's data field.
func (c *Client) PostForm(ctx context.Context, path string, form map[string]string) (any, error) {
	c.mu.RLock()
	request := c.rest.R().
		SetContext(ctx).
		SetQueryParam(hierarchyParam, "1").
		SetFormData(form)
	c.mu.RUnlock()

	response, err := request.Post(path)
	if err != nil {
		return nil, errors.Wrapf(err, "[PostForm] %s", path)
	}
	return c.unwrap(path, response)
}

func (c *Client) unwrap(path string, response *resty.Response) (any, error) {
	if response.IsError() {
		return nil, &Error{Status: "HTTP", HTTPCode: response.StatusCode()}
	}

	var env envelope
	if err := sonic.Unmarshal(response.Body(), &env); err != nil {
		return nil, errors.Wrapf(err, "[unwrap] malformed envelope from %s", path)
	}
	if env.Status != statusOK {
		c.logger.Warn().Str("path", path).Str("status", env.Status).Str("message", env.Message).
			Msg("api returned failure envelope")
		return nil, &Error{Status: env.Status, Message: env.Message, HTTPCode: response.StatusCode()}
	}
	return env.Data, nil
}

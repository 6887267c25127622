// Package client talks to the SolConta HTTP API on behalf of a signed-in
// user: the transaction and category stores and the identity lifecycle.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"solconta/internal/session"
)

const apiPrefix = "/api/v1"

// ErrNoSession is returned by calls that need a signed-in user when there
// is none. Such calls never reach the network.
var ErrNoSession = errors.New("no active session")

// APIError is an error answered by the API in its error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string { return e.Message }

// Client communicates with the SolConta API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cell       *session.Cell
	now        func() time.Time

	// refresh renews an expired session before an authenticated call. It is
	// installed by NewAuth.
	refresh   func(ctx context.Context) error
	refreshMu sync.Mutex
}

// New creates a client for the API at baseURL. The bearer token of every
// authenticated call is read from cell.
func New(baseURL string, httpClient *http.Client, cell *session.Cell) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		cell:       cell,
		now:        time.Now,
	}
}

// Session returns the session cell the client reads its token from.
func (c *Client) Session() *session.Cell {
	return c.cell
}

// token returns the access token of the current session, refreshing it
// first when it has expired.
func (c *Client) token(ctx context.Context) (string, error) {
	s := c.cell.Current()
	if s == nil {
		return "", ErrNoSession
	}
	if !s.Expired(c.now()) || c.refresh == nil {
		return s.AccessToken, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	if s = c.cell.Current(); s != nil && !s.Expired(c.now()) {
		return s.AccessToken, nil
	}
	if err := c.refresh(ctx); err != nil {
		return "", err
	}
	if s = c.cell.Current(); s == nil {
		return "", ErrNoSession
	}
	return s.AccessToken, nil
}

// call performs an authenticated request.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, query, body, out, token)
}

// do performs a request against the API and decodes the JSON answer into
// out. A non-empty token is sent as a bearer token.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, token string) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	target := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return apiErr
}

// Package transport holds the HTTP plumbing shared by the two backend
// clients: bearer authentication, the AI-Resource-Group header, typed
// transport errors that keep response headers recoverable, and SSE
// streaming.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultResourceGroup = "default"

// TokenProvider supplies the bearer token for each request. Token
// acquisition and refresh belong to the caller; this layer only attaches
// the result.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider returning a fixed token.
type StaticToken string

func (t StaticToken) Token(ctx context.Context) (string, error) { return string(t), nil }

// HTTPError is a non-2xx response from a backend. It retains the status,
// headers, and body so the strategy boundary can classify it without
// re-reading the transport.
type HTTPError struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	URL        string
}

func (e *HTTPError) Error() string {
	msg := parseErrorMessage(e.Body)
	if msg == "" {
		msg = strings.TrimSpace(string(e.Body))
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, msg)
}

// HTTPStatusCode implements the status recovery probe used by the error
// classifier.
func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }

// ResponseHeaders implements the header recovery probe used by the error
// classifier.
func (e *HTTPError) ResponseHeaders() http.Header { return e.Headers }

// parseErrorMessage pulls the message out of the common error envelopes.
func parseErrorMessage(body []byte) string {
	var envelope struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if envelope.Error != nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return envelope.Message
}

// Caller issues authenticated JSON requests against one backend base URL.
type Caller struct {
	baseURL       string
	resourceGroup string
	token         TokenProvider
	httpClient    *http.Client
}

// CallerOption configures a Caller.
type CallerOption func(*Caller)

// WithHTTPClient sets a custom HTTP client (tests, VCR cassettes).
func WithHTTPClient(c *http.Client) CallerOption {
	return func(cl *Caller) { cl.httpClient = c }
}

// WithResourceGroup overrides the AI-Resource-Group header value.
func WithResourceGroup(group string) CallerOption {
	return func(cl *Caller) { cl.resourceGroup = group }
}

// NewCaller creates a Caller for baseURL. The default client carries an
// otel-instrumented transport.
func NewCaller(baseURL string, token TokenProvider, opts ...CallerOption) *Caller {
	c := &Caller{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		resourceGroup: defaultResourceGroup,
		token:         token,
		httpClient:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Caller) BaseURL() string { return c.baseURL }

func (c *Caller) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	token, err := c.token.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("AI-Resource-Group", c.resourceGroup)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// PostJSON sends payload and decodes the 2xx response into result. Non-2xx
// responses return an *HTTPError.
func (c *Caller) PostJSON(ctx context.Context, path string, payload, result any) (http.Header, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.Header, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.Header, &HTTPError{
			StatusCode: resp.StatusCode,
			Headers:    resp.Header,
			Body:       body,
			URL:        c.baseURL + path,
		}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return resp.Header, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return resp.Header, nil
}

// GetJSON issues a GET and decodes the response into result.
func (c *Caller) GetJSON(ctx context.Context, path string, result any) (http.Header, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.Header, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.Header, &HTTPError{
			StatusCode: resp.StatusCode,
			Headers:    resp.Header,
			Body:       body,
			URL:        c.baseURL + path,
		}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return resp.Header, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return resp.Header, nil
}

// SSEResult wraps one event payload or read error from a stream.
type SSEResult struct {
	Data []byte
	Err  error
}

// PostSSE sends payload and returns a channel of SSE data payloads. The
// channel is closed on [DONE], EOF, or the first read error. The caller's
// context cancels the underlying request.
func (c *Caller) PostSSE(ctx context.Context, path string, payload any) (<-chan SSEResult, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Headers:    resp.Header,
			Body:       body,
			URL:        c.baseURL + path,
		}
	}

	out := make(chan SSEResult)
	go streamReader(resp.Body, out)
	return out, nil
}

func streamReader(body io.ReadCloser, out chan<- SSEResult) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	// Chunks carrying grounding results or large tool arguments can be
	// big; grow the line buffer accordingly.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return
		}
		out <- SSEResult{Data: []byte(data)}
	}

	if err := scanner.Err(); err != nil {
		out <- SSEResult{Err: fmt.Errorf("stream read error: %w", err)}
	}
}

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Client executes requests against the Travelo backend. It is the single
// place that knows how to build a request, decode a response, and turn a
// non-2xx status into a typed Error. Authentication is the caller's
// concern: pass a bearer token or the empty string.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a backend client for the given base URL
func NewClient(baseURL string, timeout time.Duration) *Client {
	// Make sure baseURL doesn't end with a slash
	if len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do builds and executes one request. body is JSON-encoded when non-nil;
// the response body is decoded into out when out is non-nil and the
// response carries content. A nil error means a 2xx response.
func (c *Client) Do(ctx context.Context, method, path string, token string, body, out interface{}) error {
	return c.do(ctx, method, path, token, nil, body, out)
}

// DoWithHeaders is Do with extra request headers attached
func (c *Client) DoWithHeaders(ctx context.Context, method, path string, token string, headers map[string]string, body, out interface{}) error {
	return c.do(ctx, method, path, token, headers, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, token string, headers map[string]string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindValidation, Message: "invalid request body", Err: err}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: KindValidation, Message: "invalid request", Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Debug().Str("method", method).Str("path", path).Err(err).Msg("request failed before response")
		return &Error{Kind: KindNetwork, Err: fmt.Errorf("failed to execute request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFromResponse(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return &Error{Kind: KindRejected, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}
	return nil
}

// errorFromResponse turns a non-2xx response into a typed Error,
// preserving the backend's {"message": ...} body verbatim when present.
func (c *Client) errorFromResponse(resp *http.Response) *Error {
	raw, _ := io.ReadAll(resp.Body)

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	message := ""
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err == nil {
			message = payload.Message
			if message == "" {
				message = payload.Error
			}
		}
	}

	return &Error{
		Kind:    kindForStatus(resp.StatusCode),
		Status:  resp.StatusCode,
		Message: message,
	}
}

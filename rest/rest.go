// Package rest is the HTTP collaborator of the client: a thin request layer
// that authenticates with the account token and reports any 2xx response as
// success. The core only depends on the Doer interface.
package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// Response is the outcome of a successful request. The body is kept raw;
// JSON-decodable bodies are decoded on demand through Decode.
type Response struct {
	Status int
	Body   []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	return sonic.Unmarshal(r.Body, v)
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// StatusError is returned for non-2xx responses and carries the status line.
type StatusError struct {
	Status     int
	StatusLine string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server responded with: %s", e.StatusLine)
}

// Doer issues one request against the chat service API.
type Doer interface {
	Do(ctx context.Context, method, path string, headers map[string]string, body any) (*Response, error)
}

// Client is the default Doer on net/http.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	sugar   *zap.SugaredLogger
}

// NewClient returns a Doer for https://host/apiPath authorized with token.
func NewClient(host, apiPath, token string, sugar *zap.SugaredLogger) *Client {
	return &Client{
		baseURL: "https://" + host + apiPath,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		sugar:   sugar,
	}
}

// NewClientWithBaseURL is NewClient with a fully spelled base URL, which the
// tests use to point at a local server.
func NewClientWithBaseURL(baseURL, token string, sugar *zap.SugaredLogger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		sugar:   sugar,
	}
}

// Do sends one request. A non-nil body is marshaled to JSON unless it is
// already a byte slice or string.
func (c *Client) Do(ctx context.Context, method, path string, headers map[string]string, body any) (*Response, error) {
	var payload io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		payload = bytes.NewReader(b)
	case string:
		payload = bytes.NewReader([]byte(b))
	default:
		raw, err := sonic.Marshal(body)
		if err != nil {
			return nil, err
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, err
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Authorization", c.token)
	if payload != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	c.sugar.Debugf("%s %s", method, path)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		c.sugar.Debugf("%s %s failed: %s", method, path, res.Status)
		return nil, &StatusError{Status: res.StatusCode, StatusLine: res.Status}
	}

	return &Response{Status: res.StatusCode, Body: raw}, nil
}

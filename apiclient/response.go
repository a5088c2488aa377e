package apiclient

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/MailerSuite/Final-sub009/errors"
)

// Response is a completed API response. Responses served from the cache or
// shared between deduplicated callers are copies; callers may keep them.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string

	// FromCache is set when no network call was made.
	FromCache bool
	// Shared is set when the network call was shared with other callers.
	Shared bool
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.WrapInvalid(errors.Join(errors.ErrParsingFailed, err), "apiclient", "Decode", "decode response body")
	}
	return nil
}

func (r *Response) clone() *Response {
	out := *r
	out.Header = r.Header.Clone()
	out.Body = append([]byte(nil), r.Body...)
	return &out
}

// Get issues a GET and decodes the JSON response into T.
func Get[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (T, error) {
	return do[T](ctx, c, http.MethodGet, path, nil, opts)
}

// Post issues a POST with body encoded as JSON and decodes the response.
func Post[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (T, error) {
	return do[T](ctx, c, http.MethodPost, path, body, opts)
}

// Put issues a PUT with body encoded as JSON and decodes the response.
func Put[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (T, error) {
	return do[T](ctx, c, http.MethodPut, path, body, opts)
}

// Patch issues a PATCH with body encoded as JSON and decodes the response.
func Patch[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (T, error) {
	return do[T](ctx, c, http.MethodPatch, path, body, opts)
}

// Delete issues a DELETE and discards the response body.
func Delete(ctx context.Context, c *Client, path string, opts ...RequestOption) error {
	_, err := c.Request(ctx, http.MethodDelete, path, nil, opts...)
	return err
}

func do[T any](ctx context.Context, c *Client, method, path string, body any, opts []RequestOption) (T, error) {
	var out T
	resp, err := c.Request(ctx, method, path, body, opts...)
	if err != nil {
		return out, err
	}
	if err := resp.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

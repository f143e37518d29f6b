package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	apperrors "github.com/jrsteele09/repairshop-client/internal/errors"
)

var errMalformedRefresh = apperrors.Wrapf(apperrors.ErrRefreshFailed, "response missing token or user")

// Envelope is the wrapper every successful API body comes in.
type Envelope[T any] struct {
	Data T `json:"data"`
}

// Page is the skip/take paging most list endpoints accept.
type Page struct {
	Skip int
	Take int
}

// Values encodes the page as query parameters, omitting zero fields.
func (p Page) Values() url.Values {
	v := url.Values{}
	if p.Skip > 0 {
		v.Set("skip", strconv.Itoa(p.Skip))
	}
	if p.Take > 0 {
		v.Set("take", strconv.Itoa(p.Take))
	}
	return v
}

// Get fetches path and unwraps the envelope.
func Get[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var envelope Envelope[T]
	err := c.Do(ctx, http.MethodGet, path, query, nil, &envelope)
	return envelope.Data, err
}

// Post sends body as JSON and unwraps the envelope.
func Post[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var envelope Envelope[T]
	err := c.Do(ctx, http.MethodPost, path, nil, body, &envelope)
	return envelope.Data, err
}

// Put sends body as JSON and unwraps the envelope.
func Put[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var envelope Envelope[T]
	err := c.Do(ctx, http.MethodPut, path, nil, body, &envelope)
	return envelope.Data, err
}

// Delete discards any response body.
func Delete(ctx context.Context, c *Client, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// PostNoContent is for endpoints that answer 204.
func PostNoContent(ctx context.Context, c *Client, path string, body any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, nil)
}

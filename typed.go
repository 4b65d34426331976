package fetchcache

import "context"

// TypedResult is a Result whose JSON body was decoded into T.
type TypedResult[T any] struct {
	Data      T
	Body      []byte
	Response  ResponseMeta
	FromCache bool
}

// FetchJSON fetches url and decodes the JSON body into T. An empty body
// leaves Data at its zero value.
func FetchJSON[T any](ctx context.Context, c *Client, url string, opts *FetchOptions) (*TypedResult[T], error) {
	result, err := c.Fetch(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	return decodeTyped[T](result)
}

// PostJSON posts body as JSON and decodes the JSON response into T.
func PostJSON[T any](ctx context.Context, c *Client, url string, body interface{}, opts *FetchOptions) (*TypedResult[T], error) {
	result, err := c.Post(ctx, url, body, opts)
	if err != nil {
		return nil, err
	}
	return decodeTyped[T](result)
}

func decodeTyped[T any](result *Result) (*TypedResult[T], error) {
	typed := &TypedResult[T]{
		Body:      result.Body,
		Response:  result.Response,
		FromCache: result.FromCache,
	}
	if len(result.Body) == 0 {
		return typed, nil
	}
	if err := DecodeInto(result.Body, &typed.Data); err != nil {
		if fe, ok := err.(*FetchError); ok {
			fe.URL = result.Response.URL
			fe.StatusCode = result.Response.StatusCode
		}
		return nil, err
	}
	return typed, nil
}

package fetchcache

import "net/http"

// chain wraps the HTTP client's Do in the configured middleware. The first
// middleware added is the outermost.
func (c *Client) chain() RoundTripper {
	current := RoundTripper(RoundTripperFunc(c.httpClient.Do))

	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current
}

// HeaderMiddleware sets a header on every attempt unless the call already
// carries it.
func HeaderMiddleware(key, value string) Middleware {
	return func(req *http.Request, next RoundTripper) (*http.Response, error) {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
		return next.RoundTrip(req)
	}
}

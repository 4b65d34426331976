package fetchcache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultCacheTTL applies when a response carries no usable max-age.
const DefaultCacheTTL = 5 * time.Minute

// CacheDirectives holds the Cache-Control directives the client acts on.
type CacheDirectives struct {
	NoStore bool
	NoCache bool
	MaxAge  *time.Duration
}

// ParseCacheControl parses a Cache-Control header value. Unknown directives
// and malformed values are ignored.
func ParseCacheControl(header string) CacheDirectives {
	var directives CacheDirectives
	if header == "" {
		return directives
	}

	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, hasValue := strings.Cut(part, "=")
		key = strings.ToLower(strings.TrimSpace(key))

		if hasValue {
			if key != "max-age" {
				continue
			}
			value = strings.Trim(strings.TrimSpace(value), "\"")
			if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
				maxAge := time.Duration(seconds) * time.Second
				directives.MaxAge = &maxAge
			}
			continue
		}

		switch key {
		case "no-store":
			directives.NoStore = true
		case "no-cache":
			directives.NoCache = true
		}
	}

	return directives
}

// TTLFromHeader returns the max-age of a response, or fallback when the
// header has none or it cannot be parsed.
func TTLFromHeader(header http.Header, fallback time.Duration) time.Duration {
	directives := ParseCacheControl(strings.Join(header.Values("Cache-Control"), ","))
	if directives.MaxAge != nil {
		return *directives.MaxAge
	}
	return fallback
}

// IsCacheable reports whether a response may be stored: a GET with a 2xx
// status whose Cache-Control forbids neither caching nor storing.
func IsCacheable(method string, statusCode int, header http.Header) bool {
	if !strings.EqualFold(method, http.MethodGet) {
		return false
	}
	if statusCode < 200 || statusCode > 299 {
		return false
	}
	directives := ParseCacheControl(strings.Join(header.Values("Cache-Control"), ","))
	return !directives.NoCache && !directives.NoStore
}

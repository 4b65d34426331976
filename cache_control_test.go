package fetchcache

import (
	"net/http"
	"testing"
	"time"
)

func TestParseCacheControl(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		noStore    bool
		noCache    bool
		wantMaxAge *time.Duration
	}{
		{name: "empty", header: ""},
		{name: "no-cache", header: "no-cache", noCache: true},
		{name: "no-store", header: "no-store", noStore: true},
		{name: "max-age", header: "public, max-age=60", wantMaxAge: durationPtr(60 * time.Second)},
		{name: "quoted max-age", header: `max-age="120"`, wantMaxAge: durationPtr(120 * time.Second)},
		{name: "upper case", header: "No-Cache, MAX-AGE=5", noCache: true, wantMaxAge: durationPtr(5 * time.Second)},
		{name: "bad max-age", header: "max-age=abc"},
		{name: "negative max-age", header: "max-age=-1"},
		{name: "zero max-age", header: "max-age=0", wantMaxAge: durationPtr(0)},
		{name: "s-maxage ignored", header: "s-maxage=30"},
		{name: "spaces and empties", header: " , no-store ,, ", noStore: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCacheControl(tt.header)
			if got.NoStore != tt.noStore {
				t.Errorf("NoStore = %v, want %v", got.NoStore, tt.noStore)
			}
			if got.NoCache != tt.noCache {
				t.Errorf("NoCache = %v, want %v", got.NoCache, tt.noCache)
			}
			switch {
			case tt.wantMaxAge == nil && got.MaxAge != nil:
				t.Errorf("MaxAge = %v, want nil", *got.MaxAge)
			case tt.wantMaxAge != nil && got.MaxAge == nil:
				t.Errorf("MaxAge = nil, want %v", *tt.wantMaxAge)
			case tt.wantMaxAge != nil && *got.MaxAge != *tt.wantMaxAge:
				t.Errorf("MaxAge = %v, want %v", *got.MaxAge, *tt.wantMaxAge)
			}
		})
	}
}

func TestTTLFromHeader(t *testing.T) {
	h := http.Header{}
	if got := TTLFromHeader(h, DefaultCacheTTL); got != DefaultCacheTTL {
		t.Errorf("TTL without header = %v, want default", got)
	}

	h.Set("Cache-Control", "max-age=42")
	if got := TTLFromHeader(h, DefaultCacheTTL); got != 42*time.Second {
		t.Errorf("TTL = %v, want 42s", got)
	}

	h.Set("Cache-Control", "max-age=soon")
	if got := TTLFromHeader(h, time.Minute); got != time.Minute {
		t.Errorf("TTL with unparsable max-age = %v, want fallback", got)
	}

	h = http.Header{}
	h.Add("Cache-Control", "public")
	h.Add("Cache-Control", "max-age=7")
	if got := TTLFromHeader(h, DefaultCacheTTL); got != 7*time.Second {
		t.Errorf("TTL across repeated headers = %v, want 7s", got)
	}
}

func TestIsCacheable(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		status       int
		cacheControl string
		want         bool
	}{
		{name: "plain get", method: "GET", status: 200, want: true},
		{name: "lower case get", method: "get", status: 204, want: true},
		{name: "post", method: "POST", status: 200},
		{name: "redirect", method: "GET", status: 304},
		{name: "server error", method: "GET", status: 500},
		{name: "no-cache", method: "GET", status: 200, cacheControl: "no-cache"},
		{name: "no-store", method: "GET", status: 200, cacheControl: "private, no-store"},
		{name: "max-age", method: "GET", status: 200, cacheControl: "max-age=10", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.cacheControl != "" {
				h.Set("Cache-Control", tt.cacheControl)
			}
			if got := IsCacheable(tt.method, tt.status, h); got != tt.want {
				t.Errorf("IsCacheable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}

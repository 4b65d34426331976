package fetchcache

import "runtime"

// Version is the library version. It is reported in the default
// User-Agent and in the fetchcache_build_info metric.
var Version = "v0.3.0"

// DefaultUserAgent is sent on calls that carry no User-Agent and have none
// configured with WithUserAgent.
func DefaultUserAgent() string {
	return "fetchcache/" + Version + " (" + runtime.Version() + ")"
}

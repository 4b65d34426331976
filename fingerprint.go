package fetchcache

import (
	"crypto/sha256"
	"fmt"
	"hash/fnv"
	"strings"
)

// Fingerprint identifies a logical request for caching and supersession.
// Calls with the same method, URL and body share a fingerprint.
func Fingerprint(method, url string, body []byte) string {
	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(method)))
	h.Write([]byte{0})
	h.Write([]byte(url))
	h.Write([]byte{0})

	if len(body) > 0 {
		sum := sha256.Sum256(body)
		h.Write(sum[:])
	}

	return fmt.Sprintf("%x", h.Sum64())
}

// FingerprintFunc lets callers replace the default key derivation.
type FingerprintFunc func(method, url string, body []byte) string

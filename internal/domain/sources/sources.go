// Package sources caches the host's package-source list behind a
// single-flight slot that many goroutines can read without blocking while one
// invalidates it.
package sources

import "errors"

// ErrMalformedConfiguration is the distinguished condition raised by the host
// when its package-source configuration cannot be parsed. It is an expected,
// non-fatal failure: the cache treats it as "no sources available".
var ErrMalformedConfiguration = errors.New("malformed package source configuration")

// Source is one configured package source.
type Source struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

package gateway

import (
	"errors"
)

// ErrUpstreamUnavailable indicates the Pharo interop server could not be
// reached or the transport failed mid-call.
var ErrUpstreamUnavailable = errors.New("pharo server unavailable")

// ErrNotFound indicates the requested class or method does not exist in
// the remote image.
var ErrNotFound = errors.New("method not found")

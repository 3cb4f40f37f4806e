package routing

import "errors"

// Sentinel errors for the failure modes of the routing subsystem. None of
// these is fatal: every caller degrades to a safe default (no navigation, or
// default-screen navigation) instead of propagating.
var (
	// ErrTokenUnavailable means a provider token could not be fetched or
	// validated. Logged and treated as "no token", never fatal.
	ErrTokenUnavailable = errors.New("routing: provider token unavailable")

	// ErrPermissionDenied means the user declined notification permission.
	// Delivery degrades to data-only silent messages.
	ErrPermissionDenied = errors.New("routing: notification permission denied")

	// ErrMalformedPayload means an inbound event was missing a required key.
	// Routing degrades to the configured default target.
	ErrMalformedPayload = errors.New("routing: malformed message payload")
)

package ingress

import "errors"

// Request-level failures. Everything else is contained at the per-event
// boundary and never fails the webhook response.
var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrRouteNotFound    = errors.New("webhook route not found")
)

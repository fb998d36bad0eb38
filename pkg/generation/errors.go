// Package generation wraps the text-generation provider with retry,
// error classification and static fallbacks.
package generation

import (
	"context"
	"errors"
	"net"
	"strings"

	openai "github.com/openai/openai-go/v3"
)

// ErrorClass drives the retry and fallback policy.
type ErrorClass string

const (
	// ClassRetryable covers timeouts, rate limits and provider 5xx;
	// retried with exponential backoff.
	ClassRetryable ErrorClass = "retryable"
	// ClassAuth covers invalid or missing credentials; never retried.
	ClassAuth ErrorClass = "auth"
	// ClassContextLength means the prompt cannot fit; never retried.
	ClassContextLength ErrorClass = "context_length"
	// ClassUnknown is everything else; not retried.
	ClassUnknown ErrorClass = "unknown"
)

// Classify maps a provider error onto the retry taxonomy.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassRetryable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassRetryable
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return ClassAuth
		case apiErr.StatusCode == 429 || apiErr.StatusCode >= 500:
			return ClassRetryable
		case strings.Contains(strings.ToLower(apiErr.Message), "context length") ||
			strings.Contains(strings.ToLower(apiErr.Message), "maximum context"):
			return ClassContextLength
		}
	}

	return ClassUnknown
}

package generation

import (
	"context"
	"errors"
	"testing"

	openai "github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class ErrorClass
	}{
		{"deadline exceeded", context.DeadlineExceeded, ClassRetryable},
		{"rate limited", &openai.Error{StatusCode: 429}, ClassRetryable},
		{"server error", &openai.Error{StatusCode: 503}, ClassRetryable},
		{"unauthorized", &openai.Error{StatusCode: 401}, ClassAuth},
		{"forbidden", &openai.Error{StatusCode: 403}, ClassAuth},
		{"context length", &openai.Error{StatusCode: 400, Message: "This model's maximum context length is 8192 tokens"}, ClassContextLength},
		{"other api error", &openai.Error{StatusCode: 400, Message: "invalid request"}, ClassUnknown},
		{"plain error", errors.New("boom"), ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.class, Classify(tt.err))
		})
	}
}

func TestFallbackMessage(t *testing.T) {
	for _, class := range []ErrorClass{ClassRetryable, ClassAuth, ClassContextLength, ClassUnknown} {
		assert.NotEmpty(t, FallbackMessage(class))
	}

	// Unmapped classes fall back to the generic message.
	assert.Equal(t, FallbackMessage(ClassUnknown), FallbackMessage(ErrorClass("other")))
}

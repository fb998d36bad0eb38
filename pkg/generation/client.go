package generation

import (
	"context"

	"github.com/replyflow/replyflow/pkg/models"
)

// Request is one completion call. History carries the recent conversation
// window (bounded by the merchant's memory count).
type Request struct {
	Model        string
	SystemPrompt string
	History      []*models.ConversationMessage
	UserText     string
	Knowledge    string
}

// Client is the text-generation dependency of the pipeline and the
// workflow AI nodes.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)

	// Task helpers used by workflow ai nodes. Each returns a short label.
	Sentiment(ctx context.Context, model, text string) (string, error)
	Intent(ctx context.Context, model, text string) (string, error)
	Language(ctx context.Context, model, text string) (string, error)
}

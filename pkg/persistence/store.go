// Package persistence defines the storage contract consumed by the
// pipeline, with PostgreSQL and in-memory implementations.
package persistence

import (
	"context"

	"github.com/replyflow/replyflow/pkg/models"
)

// Store is the persistence dependency of the ingress controller and the
// workflow engine. Conversation messages are append-only; status changes
// are new rows.
type Store interface {
	InsertMessage(ctx context.Context, msg *models.ConversationMessage) error
	RecentMessages(ctx context.Context, contactID string, limit int) ([]*models.ConversationMessage, error)
	CountMessages(ctx context.Context, contactID string) (int, error)

	GetOrCreateContact(ctx context.Context, senderID, merchantID string) (*models.Contact, error)
	MergeContactTags(ctx context.Context, contactID string, tags []string) error

	SaveIngestion(ctx context.Context, rec *models.IngestionRecord) error
	UpdateIngestionStatus(ctx context.Context, id string, status models.IngestionStatus) error

	ActiveWorkflows(ctx context.Context, merchantID string) ([]*models.WorkflowGraph, error)

	MerchantSettings(ctx context.Context, merchantID string) (*models.MerchantSettings, error)
	BotCredentials(ctx context.Context, botID string) (*models.BotCredentials, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

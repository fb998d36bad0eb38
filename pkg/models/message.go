package models

import "time"

// MessageRole identifies who wrote a conversation message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// MessageStatus is the resolution state recorded with a message.
type MessageStatus string

const (
	StatusAIHandled  MessageStatus = "ai_handled"
	StatusNeedsHuman MessageStatus = "needs_human"
	StatusResolved   MessageStatus = "resolved"
	StatusClosed     MessageStatus = "closed"
)

// ConversationMessage is one row of the append-only conversation log.
// Status transitions are written as new rows so history stays intact
// for analytics.
type ConversationMessage struct {
	ID         string        `json:"id"`
	ContactID  string        `json:"contact_id" validate:"required"`
	Role       MessageRole   `json:"role"       validate:"required"`
	Text       string        `json:"text"`
	Status     MessageStatus `json:"status"`
	ResolvedBy string        `json:"resolved_by,omitempty"`
	Confidence *float64      `json:"confidence,omitempty"`
	ABTestID   string        `json:"ab_test_id,omitempty"`
	ABVariant  string        `json:"ab_variant,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Contact is a chat-platform user scoped to one merchant.
type Contact struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"   validate:"required"`
	MerchantID  string    `json:"merchant_id" validate:"required"`
	DisplayName string    `json:"display_name,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

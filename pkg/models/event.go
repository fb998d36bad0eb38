// Package models defines the core domain models for the message pipeline.
package models

import "time"

// EventType classifies an inbound webhook event.
type EventType string

const (
	EventTypeMessage  EventType = "message"
	EventTypeFollow   EventType = "follow"
	EventTypePostback EventType = "postback"
)

// InboundEvent is one interaction delivered by the chat platform. It is
// immutable after decoding; EventID is its identity for deduplication.
type InboundEvent struct {
	EventID    string    `json:"event_id"`
	DeliveryID string    `json:"delivery_id,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	ReplyToken string    `json:"reply_token,omitempty"`
	SenderID   string    `json:"sender_id"   validate:"required"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"        validate:"required"`
	Postback   string    `json:"postback,omitempty"`
}

// WebhookBatch is the decoded webhook request body.
type WebhookBatch struct {
	Destination string          `json:"destination"`
	Events      []*InboundEvent `json:"events"`
}

// IngestionStatus tracks the lifecycle of a persisted raw payload.
type IngestionStatus string

const (
	IngestionPending   IngestionStatus = "pending"
	IngestionProcessed IngestionStatus = "processed"
	IngestionFailed    IngestionStatus = "failed"
)

// IngestionRecord is the raw-payload audit row written before any
// event-level processing happens.
type IngestionRecord struct {
	ID         string          `json:"id"`
	BotID      string          `json:"bot_id"`
	Payload    []byte          `json:"payload"`
	Status     IngestionStatus `json:"status"`
	ReceivedAt time.Time       `json:"received_at"`
}

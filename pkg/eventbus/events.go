// Package eventbus carries best-effort side-channel events off the
// critical reply path: analytics cache invalidation and contact
// auto-tagging. Publishing is fire-and-forget with its own error
// boundary; a bus failure never delays or fails a reply.
package eventbus

import "time"

const Topic = "replyflow.side_effects"

// EventType discriminates side-channel events.
type EventType string

const (
	AnalyticsInvalidateEvent EventType = "analytics.invalidate"
	ContactAutoTagEvent      EventType = "contact.autotag"
)

const eventTypeMetadataKey = "event_type"

// Event is a side-channel payload.
type Event interface {
	GetType() EventType
}

// AnalyticsInvalidate asks the dashboard's analytics cache to refresh
// after a conversation changed.
type AnalyticsInvalidate struct {
	MerchantID string    `json:"merchant_id"`
	ContactID  string    `json:"contact_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e AnalyticsInvalidate) GetType() EventType { return AnalyticsInvalidateEvent }

// ContactAutoTag requests tag merging onto a contact based on the
// category of their message.
type ContactAutoTag struct {
	ContactID  string    `json:"contact_id"`
	Tags       []string  `json:"tags"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e ContactAutoTag) GetType() EventType { return ContactAutoTagEvent }

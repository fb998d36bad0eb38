package ingress

import (
	"fmt"

	"github.com/replyflow/replyflow/pkg/models"
)

// EventID picks the stable identifier used for deduplication. The
// ordering matters: delivery ids are the only value guaranteed unique
// across redeliveries, message ids survive most retries, and the
// composite fallback can collide under sender clock skew. Events that
// reach the composite fallback are still deduped, just with weaker
// guarantees.
func EventID(event *models.InboundEvent) string {
	if event.DeliveryID != "" {
		return event.DeliveryID
	}

	if event.MessageID != "" {
		return event.MessageID
	}

	return fmt.Sprintf("%s:%d:%s", event.ReplyToken, event.Timestamp.UnixMilli(), event.SenderID)
}

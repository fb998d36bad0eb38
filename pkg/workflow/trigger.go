package workflow

import (
	"strings"

	"github.com/replyflow/replyflow/pkg/models"
)

// triggerFires reports whether one trigger node matches the incoming
// message under the run's context flags.
func triggerFires(cfg *models.TriggerConfig, in RunInput) bool {
	switch cfg.SubType {
	case models.TriggerNewMessage:
		return true
	case models.TriggerKeywords:
		if len(cfg.Keywords) == 0 {
			return true
		}

		text := strings.ToLower(in.Event.Text)
		for _, kw := range cfg.Keywords {
			if kw == "" {
				continue
			}

			if strings.Contains(text, strings.ToLower(kw)) {
				return true
			}
		}

		return false
	case models.TriggerNewCustomer:
		return in.NewCustomer
	case models.TriggerOffHours:
		return in.OffHours
	}

	return false
}

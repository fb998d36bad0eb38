package models

// DaySchedule is one weekday entry of a business-hours schedule. Start and
// End are inclusive "HH:MM" strings in the schedule's timezone.
type DaySchedule struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// BusinessHours is a weekly schedule keyed by lowercase weekday
// abbreviation ("mon".."sun").
type BusinessHours struct {
	Timezone string                 `json:"timezone"`
	Days     map[string]DaySchedule `json:"days"`
}

// MerchantSettings is the per-merchant configuration consumed by the
// pipeline. Owned and edited by the excluded dashboard.
type MerchantSettings struct {
	MerchantID          string         `json:"merchant_id"`
	SystemPrompt        string         `json:"system_prompt"`
	AIModel             string         `json:"ai_model"`
	ConfidenceThreshold float64        `json:"confidence_threshold"`
	BusinessHours       *BusinessHours `json:"business_hours,omitempty"`
	SensitiveWords      []string       `json:"sensitive_words,omitempty"`
	QuickReplies        []string       `json:"quick_replies,omitempty"`
	MemoryCount         int            `json:"memory_count"`
	WelcomeMessage      string         `json:"welcome_message,omitempty"`
	OffHoursMessage     string         `json:"off_hours_message,omitempty"`
}

// BotCredentials are the per-bot channel secrets for the multi-tenant
// webhook route. ChannelSecret and AccessToken are stored encrypted;
// WebhookKeyHash is the SHA-256 hex digest of the path key.
type BotCredentials struct {
	BotID          string `json:"bot_id"`
	MerchantID     string `json:"merchant_id"`
	WebhookKeyHash string `json:"webhook_key_hash"`
	ChannelSecret  []byte `json:"channel_secret"`
	AccessToken    []byte `json:"access_token"`
}

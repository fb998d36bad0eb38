package models

// Action is the terminal outcome picked by the decision engine.
type Action string

const (
	ActionAuto    Action = "AUTO"    // send automatically
	ActionSuggest Action = "SUGGEST" // queue draft for human approval
	ActionAsk     Action = "ASK"     // ask the user for more detail
	ActionHandoff Action = "HANDOFF" // escalate directly to a human
)

// RiskLevel classifies how sensitive a message is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskAssessment is the screener output. It is embedded in the decision
// trail, never persisted on its own.
type RiskAssessment struct {
	Level           RiskLevel `json:"level"`
	MatchedKeywords []string  `json:"matched_keywords,omitempty"`
}

// SourcesUsed summarizes the knowledge snippets a decision drew on.
type SourcesUsed struct {
	Count  int      `json:"count"`
	Titles []string `json:"titles,omitempty"`
}

// ReplyDecision is the single decision produced per processed event.
// An ASK decision always carries a non-empty AskText; Confidence is
// always within [0,1].
type ReplyDecision struct {
	Action      Action      `json:"action"`
	DraftText   string      `json:"draft_text,omitempty"`
	AskText     string      `json:"ask_text,omitempty"`
	Confidence  float64     `json:"confidence"`
	Category    string      `json:"category"`
	SourcesUsed SourcesUsed `json:"sources_used"`
	Reason      string      `json:"reason"`
}

package risk

import (
	"strings"
	"unicode/utf8"
)

const (
	// SafeReply replaces any generated reply that trips the forbidden
	// phrase list.
	SafeReply = "这个问题比较重要，已经为您转接人工客服，请稍等。"

	// MaxReplyRunes bounds outbound reply length.
	MaxReplyRunes = 1000
)

// DefaultForbiddenPhrases are commitments and claims the assistant must
// never make on a merchant's behalf.
var DefaultForbiddenPhrases = []string{
	"保证", "百分之百", "绝对没问题", "无条件退款", "全额赔偿", "假一赔十",
	"guaranteed", "100% refund", "no questions asked", "we promise",
	"full compensation",
}

// Guardrail is the post-generation filter. It runs after the model
// produced a candidate, unlike the Screener which runs on inbound text.
type Guardrail struct {
	forbidden []string
	maxRunes  int
}

func NewGuardrail() *Guardrail {
	return &Guardrail{
		forbidden: DefaultForbiddenPhrases,
		maxRunes:  MaxReplyRunes,
	}
}

// Apply substitutes the fixed safe sentence when a forbidden phrase is
// present and truncates over-length replies. Returns the final text and
// whether it was replaced.
func (g *Guardrail) Apply(candidate string) (string, bool) {
	lowered := strings.ToLower(candidate)

	for _, phrase := range g.forbidden {
		if strings.Contains(lowered, strings.ToLower(phrase)) {
			return SafeReply, true
		}
	}

	if utf8.RuneCountInString(candidate) > g.maxRunes {
		runes := []rune(candidate)

		return string(runes[:g.maxRunes]), false
	}

	return candidate, false
}

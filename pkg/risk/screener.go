// Package risk screens message content before and after generation.
package risk

import (
	"strings"

	"github.com/replyflow/replyflow/pkg/models"
)

// Screener classifies inbound text into low/medium/high risk from a
// keyword corpus. High-risk hits bypass the reply engines entirely.
type Screener struct {
	high   []string
	medium []string
}

// DefaultHighRiskKeywords cover legal, safety and payment-dispute topics
// where an automatic reply must never be sent.
var DefaultHighRiskKeywords = []string{
	"投诉", "起诉", "律师", "法院", "工商局", "消协", "举报", "曝光",
	"诈骗", "骗子", "报警", "维权",
	"lawsuit", "lawyer", "attorney", "sue", "fraud", "scam", "police",
	"chargeback", "legal action",
}

// DefaultMediumRiskKeywords cover money-movement topics that need extra
// caution but can still be drafted.
var DefaultMediumRiskKeywords = []string{
	"退款", "退货", "退钱", "赔偿", "差评", "质量问题", "假货", "发票",
	"refund", "return", "compensation", "complaint", "broken", "damaged",
	"fake", "counterfeit", "invoice",
}

func NewScreener() *Screener {
	return &Screener{
		high:   DefaultHighRiskKeywords,
		medium: DefaultMediumRiskKeywords,
	}
}

// Screen assesses text. Matching is case-insensitive substring search;
// high keywords dominate medium ones.
func (s *Screener) Screen(text string) models.RiskAssessment {
	lowered := strings.ToLower(text)

	if matched := matchAll(lowered, s.high); len(matched) > 0 {
		return models.RiskAssessment{Level: models.RiskHigh, MatchedKeywords: matched}
	}

	if matched := matchAll(lowered, s.medium); len(matched) > 0 {
		return models.RiskAssessment{Level: models.RiskMedium, MatchedKeywords: matched}
	}

	return models.RiskAssessment{Level: models.RiskLow}
}

// MatchSensitiveWords runs the merchant-configured list against text and
// returns the words that hit.
func MatchSensitiveWords(text string, words []string) []string {
	return matchAll(strings.ToLower(text), words)
}

func matchAll(lowered string, keywords []string) []string {
	var matched []string

	for _, kw := range keywords {
		if kw == "" {
			continue
		}

		if strings.Contains(lowered, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}

	return matched
}

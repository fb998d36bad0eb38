package decision

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/replyflow/replyflow/pkg/models"
)

// Clarifying and fallback ask texts.
const (
	genericAskText    = "您好！请问有什么可以帮您？麻烦您具体描述一下想咨询的问题～"
	zeroSourceAskText = "抱歉，我暂时没有找到相关的资料。能再详细说明一下您的问题吗？"
	clarifyPrefix     = "为了尽快帮您处理，麻烦您补充以下信息："
)

// trivialRuneLimit marks greeting-length messages.
const trivialRuneLimit = 6

var greetingPattern = regexp.MustCompile(`(?i)^(你好|您好|在吗|哈喽|hi|hello|hey)[!！?？~～。.\s]*$`)

// Input is everything the engine needs; it performs no I/O.
type Input struct {
	Text         string
	Risk         models.RiskAssessment
	SourcesCount int
	SourceTitles []string
	Threshold    float64
	Draft        string
}

// Engine turns an Input into exactly one ReplyDecision. The rule ordering
// is load-bearing: risk and missing-information checks dominate
// confidence, so a high-confidence-but-risky reply is never auto-sent.
type Engine struct {
	weights Weights
}

func NewEngine(weights Weights) *Engine {
	return &Engine{weights: weights}
}

func (e *Engine) Decide(in Input) models.ReplyDecision {
	category := Categorize(in.Text)
	missing := MissingFields(category, in.Text)
	trivial := isTrivial(in.Text)
	highRisk := in.Risk.Level == models.RiskHigh || IsHighRiskCategory(category)
	confidence := e.score(in, category, trivial, len(missing) > 0)

	decision := models.ReplyDecision{
		Confidence: confidence,
		Category:   category,
		SourcesUsed: models.SourcesUsed{
			Count:  in.SourcesCount,
			Titles: in.SourceTitles,
		},
	}

	switch {
	case highRisk && len(missing) > 0:
		decision.Action = models.ActionAsk
		decision.AskText = clarifyText(missing)
		decision.Reason = "risk-sensitive request is missing required details"

	case in.SourcesCount == 0 && !trivial && highRisk:
		decision.Action = models.ActionHandoff
		decision.Reason = "no knowledge sources for a risk-sensitive request"

	case in.SourcesCount == 0 && !trivial:
		decision.Action = models.ActionAsk
		decision.AskText = zeroSourceAskText
		decision.Reason = "no knowledge sources found"

	case in.SourcesCount == 0:
		decision.Action = models.ActionAsk
		decision.AskText = genericAskText
		decision.Reason = "greeting without a concrete question"

	case confidence < in.Threshold && len(missing) > 0:
		decision.Action = models.ActionAsk
		decision.AskText = clarifyText(missing)
		decision.Reason = "low confidence and missing details"

	case confidence < in.Threshold:
		decision.Action = models.ActionSuggest
		decision.DraftText = in.Draft
		decision.Reason = "confidence below merchant threshold"

	case highRisk:
		decision.Action = models.ActionSuggest
		decision.DraftText = in.Draft
		decision.Reason = "risk-sensitive category never auto-replies"

	default:
		decision.Action = models.ActionAuto
		decision.DraftText = in.Draft
		decision.Reason = "confident answer backed by knowledge sources"
	}

	return decision
}

func (e *Engine) score(in Input, category string, trivial, missingFields bool) float64 {
	w := e.weights
	confidence := w.Base

	bonus := w.PerSource * float64(in.SourcesCount)
	if bonus > w.SourceBonusCap {
		bonus = w.SourceBonusCap
	}

	confidence += bonus

	if in.SourcesCount == 0 {
		confidence += w.ZeroSources
	}

	switch in.Risk.Level {
	case models.RiskHigh:
		confidence += w.HighRisk
	case models.RiskMedium:
		confidence += w.MediumRisk
	case models.RiskLow:
	}

	if IsHighRiskCategory(category) {
		confidence += w.HighRiskCategory
	}

	if trivial {
		confidence += w.SimpleMessage
	}

	if missingFields {
		confidence += w.MissingFields
	}

	return clampConfidence(confidence)
}

func isTrivial(text string) bool {
	trimmed := strings.TrimSpace(text)

	return utf8.RuneCountInString(trimmed) <= trivialRuneLimit || greetingPattern.MatchString(trimmed)
}

func clarifyText(missing []ClarifyingField) string {
	var b strings.Builder

	b.WriteString(clarifyPrefix)

	for i, field := range missing {
		fmt.Fprintf(&b, "%d. %s", i+1, field.Question)

		if i < len(missing)-1 {
			b.WriteString("；")
		}
	}

	return b.String()
}

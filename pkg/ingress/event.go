package ingress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/replyflow/replyflow/pkg/decision"
	"github.com/replyflow/replyflow/pkg/eventbus"
	"github.com/replyflow/replyflow/pkg/generation"
	"github.com/replyflow/replyflow/pkg/hours"
	"github.com/replyflow/replyflow/pkg/idempotency"
	"github.com/replyflow/replyflow/pkg/knowledge"
	"github.com/replyflow/replyflow/pkg/models"
	"github.com/replyflow/replyflow/pkg/otelhelper"
	"github.com/replyflow/replyflow/pkg/platform"
	"github.com/replyflow/replyflow/pkg/risk"
	"github.com/replyflow/replyflow/pkg/workflow"
)

// Fixed user-facing texts. A user-visible failure is always a graceful
// natural-language message, never a raw error.
const (
	slowDownNotice  = "您发送消息太频繁了，请稍等一下再试～"
	apologyText     = "抱歉，系统暂时出了点问题，请稍后再试。"
	handoffNotice   = "已为您转接人工客服，请稍等。"
	defaultWelcome  = "您好，感谢关注！有任何问题都可以直接给我们留言～"
	defaultOffHours = "您好，现在是非营业时间，我们会在工作时间尽快回复您。"

	defaultThreshold = 0.6
	knowledgeLimit   = 3
	knowledgeChars   = 2000
)

// handleEvent is the per-event boundary. A panic or error inside
// produces a generic apology and leaves the event unmarked so a
// redelivery can retry; it never fails the webhook request.
func (c *Controller) handleEvent(ctx context.Context, route *Route, cfg *models.MerchantSettings, event *models.InboundEvent) (err error) {
	eventID := EventID(event)
	logger := c.deps.Logger.With("event_id", eventID, "bot_id", route.BotID)

	if c.deps.Tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, c.deps.Tracer, "ingress.handle_event",
			attribute.String(otelhelper.EventIDKey, eventID),
			attribute.String(otelhelper.BotIDKey, route.BotID),
			attribute.String(otelhelper.SenderIDKey, event.SenderID),
		)

		defer func() {
			if err != nil {
				otelhelper.SetError(span, err)
			}

			span.End()
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "event handler panicked", "panic", r)
			c.notify(ctx, route, event, apologyText)
			c.releaseClaim(ctx, eventID)

			err = fmt.Errorf("panic while handling event %s: %v", eventID, r)
		}
	}()

	if !c.claimEvent(ctx, eventID, route.BotID, logger) {
		logger.InfoContext(ctx, "duplicate event skipped")
		return nil
	}

	allowed, err := c.deps.Limiter.Allow(ctx, event.SenderID)
	if err != nil {
		logger.WarnContext(ctx, "rate limit check failed, admitting", "error", err)

		allowed = true
	}

	if !allowed {
		// Best effort and no processed marker, so a legitimately
		// retried burst is re-evaluated on the next delivery.
		c.notify(ctx, route, event, slowDownNotice)
		c.releaseClaim(ctx, eventID)
		logger.InfoContext(ctx, "sender rate limited", "sender_id", event.SenderID)

		return nil
	}

	if event.Type == models.EventTypeFollow {
		err = c.handleFollow(ctx, route, cfg, event, eventID)
	} else {
		err = c.processMessage(ctx, route, cfg, event, eventID, logger)
	}

	if err != nil {
		logger.ErrorContext(ctx, "event processing failed", "error", err)
		c.notify(ctx, route, event, apologyText)
		c.releaseClaim(ctx, eventID)

		return err
	}

	return nil
}

func (c *Controller) handleFollow(ctx context.Context, route *Route, cfg *models.MerchantSettings, event *models.InboundEvent, eventID string) error {
	welcome := cfg.WelcomeMessage
	if welcome == "" {
		welcome = defaultWelcome
	}

	if c.deps.DryRun {
		return nil
	}

	contact, err := c.deps.Store.GetOrCreateContact(ctx, event.SenderID, route.MerchantID)
	if err != nil {
		return err
	}

	if err := c.send(ctx, route, event, welcome, nil); err != nil {
		return err
	}

	if err := c.insertAssistantMessage(ctx, contact.ID, welcome, models.StatusAIHandled, nil); err != nil {
		return err
	}

	c.markProcessed(ctx, eventID, route.BotID)

	return nil
}

// processMessage runs the gated pipeline for message and postback
// events: risk screen, workflow attempt, custom sensitive words,
// business hours, knowledge lookup, decision engine, persist and send.
func (c *Controller) processMessage(ctx context.Context, route *Route, cfg *models.MerchantSettings, event *models.InboundEvent, eventID string, logger *slog.Logger) error {
	text := event.Text
	if event.Type == models.EventTypePostback && event.Postback != "" {
		// Postback data feeds the same pipeline, so keyword triggers
		// can route on it.
		text = event.Postback
	}

	if text == "" {
		c.markProcessed(ctx, eventID, route.BotID)
		return nil
	}

	contact, err := c.deps.Store.GetOrCreateContact(ctx, event.SenderID, route.MerchantID)
	if err != nil {
		return err
	}

	priorMessages, err := c.deps.Store.CountMessages(ctx, contact.ID)
	if err != nil {
		return err
	}

	open := true

	if cfg.BusinessHours != nil {
		var hoursErr error

		open, hoursErr = hours.Open(cfg.BusinessHours, c.deps.Now())
		if hoursErr != nil {
			logger.WarnContext(ctx, "business hours evaluation failed, treating as open", "error", hoursErr)
		}
	}

	if !c.deps.DryRun {
		if err := c.deps.Store.InsertMessage(ctx, &models.ConversationMessage{
			ID:        uuid.NewString(),
			ContactID: contact.ID,
			Role:      models.RoleUser,
			Text:      text,
			Status:    models.StatusAIHandled,
			CreatedAt: c.deps.Now().UTC(),
		}); err != nil {
			return err
		}
	}

	assessment := c.deps.Screener.Screen(text)
	if assessment.Level == models.RiskHigh {
		logger.InfoContext(ctx, "high risk message, bypassing engines",
			"matched", assessment.MatchedKeywords)

		return c.escalate(ctx, route, event, eventID, contact, risk.SafeReply)
	}

	handled, err := c.tryWorkflows(ctx, route, cfg, event, contact, text, priorMessages == 0, !open, logger)
	if err != nil {
		return err
	}

	if handled {
		c.markProcessed(ctx, eventID, route.BotID)
		c.publishAnalytics(route.MerchantID, contact.ID)

		return nil
	}

	if matched := risk.MatchSensitiveWords(text, cfg.SensitiveWords); len(matched) > 0 {
		logger.InfoContext(ctx, "merchant sensitive word matched", "matched", matched)

		return c.escalate(ctx, route, event, eventID, contact, risk.SafeReply)
	}

	if !open {
		offHours := cfg.OffHoursMessage
		if offHours == "" {
			offHours = defaultOffHours
		}

		if c.deps.DryRun {
			return nil
		}

		if err := c.send(ctx, route, event, offHours, nil); err != nil {
			return err
		}

		if err := c.insertAssistantMessage(ctx, contact.ID, offHours, models.StatusAIHandled, nil); err != nil {
			return err
		}

		c.markProcessed(ctx, eventID, route.BotID)
		c.publishAnalytics(route.MerchantID, contact.ID)

		return nil
	}

	kb, err := c.deps.Knowledge.Search(ctx, route.MerchantID, text, knowledgeLimit, knowledgeChars)
	if err != nil {
		logger.WarnContext(ctx, "knowledge lookup failed, deciding without sources", "error", err)

		kb = &knowledge.Result{}
	}

	titles := make([]string, 0, len(kb.Sources))
	for _, src := range kb.Sources {
		titles = append(titles, src.Title)
	}

	threshold := cfg.ConfidenceThreshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}

	dec := c.deps.Engine.Decide(decision.Input{
		Text:         text,
		Risk:         assessment,
		SourcesCount: len(kb.Sources),
		SourceTitles: titles,
		Threshold:    threshold,
	})

	logger.InfoContext(ctx, "reply decision",
		"action", dec.Action,
		"category", dec.Category,
		"confidence", dec.Confidence,
		"sources", dec.SourcesUsed.Count,
		"reason", dec.Reason,
	)

	return c.dispatch(ctx, route, cfg, event, eventID, contact, text, kb.Text, dec)
}

// dispatch turns one decision into its terminal side effect.
func (c *Controller) dispatch(ctx context.Context, route *Route, cfg *models.MerchantSettings, event *models.InboundEvent, eventID string, contact *models.Contact, text, knowledgeText string, dec models.ReplyDecision) error {
	if c.deps.DryRun {
		return nil
	}

	switch dec.Action {
	case models.ActionAsk:
		if err := c.send(ctx, route, event, dec.AskText, cfg.QuickReplies); err != nil {
			return err
		}

		if err := c.insertAssistantMessage(ctx, contact.ID, dec.AskText, models.StatusAIHandled, &dec.Confidence); err != nil {
			return err
		}

	case models.ActionHandoff:
		return c.escalate(ctx, route, event, eventID, contact, handoffNotice)

	case models.ActionAuto:
		draft := c.generate(ctx, cfg, contact, text, knowledgeText)

		if err := c.send(ctx, route, event, draft, nil); err != nil {
			return err
		}

		if err := c.insertAssistantMessage(ctx, contact.ID, draft, models.StatusAIHandled, &dec.Confidence); err != nil {
			return err
		}

	case models.ActionSuggest:
		// The draft is held for human approval in the dashboard; the
		// user gets no automatic message.
		draft := c.generate(ctx, cfg, contact, text, knowledgeText)

		if err := c.insertAssistantMessage(ctx, contact.ID, draft, models.StatusNeedsHuman, &dec.Confidence); err != nil {
			return err
		}
	}

	c.markProcessed(ctx, eventID, route.BotID)
	c.publishAnalytics(route.MerchantID, contact.ID)

	return nil
}

// escalate sends a fixed safe reply, records the exchange as
// needs_human and marks the event processed.
func (c *Controller) escalate(ctx context.Context, route *Route, event *models.InboundEvent, eventID string, contact *models.Contact, reply string) error {
	if c.deps.DryRun {
		return nil
	}

	if err := c.send(ctx, route, event, reply, nil); err != nil {
		return err
	}

	if err := c.insertAssistantMessage(ctx, contact.ID, reply, models.StatusNeedsHuman, nil); err != nil {
		return err
	}

	c.markProcessed(ctx, eventID, route.BotID)
	c.publishAnalytics(route.MerchantID, contact.ID)

	return nil
}

// tryWorkflows reports whether any active graph terminally handled the
// event. A graph that fires a trigger and completes is terminal even
// when it ends quietly; a failed run is terminal only if it already
// produced a visible side effect.
func (c *Controller) tryWorkflows(ctx context.Context, route *Route, cfg *models.MerchantSettings, event *models.InboundEvent, contact *models.Contact, text string, newCustomer, offHours bool, logger *slog.Logger) (bool, error) {
	graphs, err := c.deps.Store.ActiveWorkflows(ctx, route.MerchantID)
	if err != nil {
		logger.WarnContext(ctx, "failed to load workflows, falling back to decision engine", "error", err)

		return false, nil
	}

	runEvent := *event
	runEvent.Text = text

	for _, graph := range graphs {
		if err := workflow.Decode(graph); err != nil {
			logger.WarnContext(ctx, "skipping invalid workflow",
				"workflow_id", graph.ID, "error", err)

			continue
		}

		result, err := c.deps.Executor.Execute(ctx, graph, workflow.RunInput{
			Event:       &runEvent,
			Contact:     contact,
			Settings:    cfg,
			Sender:      route.Sender,
			NewCustomer: newCustomer,
			OffHours:    offHours,
			DryRun:      c.deps.DryRun,
		})
		if err != nil {
			logger.ErrorContext(ctx, "workflow run failed",
				"workflow_id", graph.ID,
				"nodes_executed", len(result.Trace.Entries),
				"error", err)

			if result.Replied || result.Handoff {
				return true, nil
			}

			continue
		}

		if result.Triggered {
			logger.InfoContext(ctx, "workflow handled event",
				"workflow_id", graph.ID,
				"execution_id", result.Trace.ExecutionID,
				"replied", result.Replied,
				"handoff", result.Handoff)

			return true, nil
		}
	}

	return false, nil
}

// generate produces the outbound draft: bounded-retry generation with a
// static fallback per error class, then the post-generation guardrail.
func (c *Controller) generate(ctx context.Context, cfg *models.MerchantSettings, contact *models.Contact, text, knowledgeText string) string {
	var history []*models.ConversationMessage

	if cfg.MemoryCount > 0 {
		var err error

		history, err = c.deps.Store.RecentMessages(ctx, contact.ID, cfg.MemoryCount)
		if err != nil {
			c.deps.Logger.WarnContext(ctx, "failed to load conversation history", "error", err)
		}
	}

	draft, err := c.deps.Generator.Complete(ctx, generation.Request{
		Model:        cfg.AIModel,
		SystemPrompt: cfg.SystemPrompt,
		History:      history,
		UserText:     text,
		Knowledge:    knowledgeText,
	})
	if err != nil {
		class := generation.Classify(err)
		c.deps.Logger.WarnContext(ctx, "generation failed, using fallback",
			"class", class, "error", err)

		draft = generation.FallbackMessage(class)
	}

	guarded, tripped := c.deps.Guardrail.Apply(draft)
	if tripped {
		c.deps.Logger.WarnContext(ctx, "guardrail replaced generated reply")
	}

	return guarded
}

func (c *Controller) insertAssistantMessage(ctx context.Context, contactID, text string, status models.MessageStatus, confidence *float64) error {
	return c.deps.Store.InsertMessage(ctx, &models.ConversationMessage{
		ID:         uuid.NewString(),
		ContactID:  contactID,
		Role:       models.RoleAssistant,
		Text:       text,
		Status:     status,
		Confidence: confidence,
		CreatedAt:  c.deps.Now().UTC(),
	})
}

func (c *Controller) send(ctx context.Context, route *Route, event *models.InboundEvent, text string, quickReplies []string) error {
	items := make([]platform.QuickReply, 0, len(quickReplies))
	for _, label := range quickReplies {
		items = append(items, platform.QuickReply{Label: label, Text: label})
	}

	msg := platform.TextMessage(text, items...)

	if event.ReplyToken != "" {
		return route.Sender.Reply(ctx, event.ReplyToken, []platform.Message{msg})
	}

	return route.Sender.Push(ctx, event.SenderID, []platform.Message{msg})
}

// notify is the swallow-errors variant of send for best-effort notices.
func (c *Controller) notify(ctx context.Context, route *Route, event *models.InboundEvent, text string) {
	if c.deps.DryRun {
		return
	}

	if err := c.send(ctx, route, event, text, nil); err != nil {
		c.deps.Logger.DebugContext(ctx, "best-effort notice not delivered", "error", err)
	}
}

// claimEvent atomically claims the event id with a short TTL before any
// side effect runs. Claiming up front is what keeps two concurrent
// deliveries of the same event from both sending: the loser of the
// check-and-set sees false and skips. In dry-run mode the ledger is
// read-only, so a Seen check stands in for the claim.
func (c *Controller) claimEvent(ctx context.Context, eventID, botID string, logger *slog.Logger) bool {
	if c.deps.DryRun {
		seen, err := c.deps.Ledger.Seen(ctx, eventID)
		if err != nil {
			logger.WarnContext(ctx, "dedupe check failed, continuing", "error", err)
			return true
		}

		return !seen
	}

	first, err := c.deps.Ledger.Mark(ctx, eventID, botID, idempotency.ClaimTTL)
	if err != nil {
		logger.WarnContext(ctx, "event claim failed, continuing", "error", err)
		return true
	}

	return first
}

// markProcessed promotes the in-flight claim to a full-TTL processed
// marker. It runs only after terminal handling.
func (c *Controller) markProcessed(ctx context.Context, eventID, botID string) {
	if c.deps.DryRun {
		return
	}

	if err := c.deps.Ledger.Extend(ctx, eventID, botID, c.deps.LedgerTTL); err != nil {
		c.deps.Logger.ErrorContext(ctx, "failed to mark event processed",
			"event_id", eventID, "error", err)
	}
}

// releaseClaim drops the in-flight claim so a redelivery of a failed or
// rate-limited event is re-evaluated instead of silently dropped.
func (c *Controller) releaseClaim(ctx context.Context, eventID string) {
	if c.deps.DryRun {
		return
	}

	if err := c.deps.Ledger.Release(ctx, eventID); err != nil {
		c.deps.Logger.WarnContext(ctx, "failed to release event claim",
			"event_id", eventID, "error", err)
	}
}

// publishAnalytics asks the dashboard analytics cache to refresh. It is
// deliberately detached: not awaited by the reply path, with its own
// error boundary.
func (c *Controller) publishAnalytics(merchantID, contactID string) {
	if c.deps.Bus == nil || c.deps.DryRun {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := c.deps.Bus.Publish(ctx, eventbus.AnalyticsInvalidate{
			MerchantID: merchantID,
			ContactID:  contactID,
			OccurredAt: time.Now().UTC(),
		})
		if err != nil {
			c.deps.Logger.Warn("failed to publish analytics invalidation", "error", err)
		}
	}()
}

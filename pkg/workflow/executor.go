package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/replyflow/replyflow/pkg/eventbus"
	"github.com/replyflow/replyflow/pkg/generation"
	"github.com/replyflow/replyflow/pkg/models"
	"github.com/replyflow/replyflow/pkg/persistence"
	"github.com/replyflow/replyflow/pkg/platform"
)

// Publisher is the side-effect bus surface the executor needs. A nil
// publisher disables the side channel without disabling the run.
type Publisher interface {
	Publish(ctx context.Context, event eventbus.Event) error
}

// RunInput is everything one workflow run may read. The structure is
// read-only during the run; per-run mutable state lives in runState.
type RunInput struct {
	Event       *models.InboundEvent
	Contact     *models.Contact
	Settings    *models.MerchantSettings
	Sender      platform.Sender
	NewCustomer bool
	OffHours    bool

	// DryRun executes branch logic and AI calls but skips outbound
	// messages, persistence writes and bus publishes.
	DryRun bool
}

// RunResult summarizes one workflow run.
type RunResult struct {
	Triggered bool
	Replied   bool
	Handoff   bool
	Trace     *models.ExecutionTrace
	Variables map[string]any
}

// Executor walks decoded graphs. Safe for concurrent use; all run
// state is local to Execute.
type Executor struct {
	logger *slog.Logger
	gen    generation.Client
	store  persistence.Store
	bus    Publisher
}

func NewExecutor(
	logger *slog.Logger,
	gen generation.Client,
	store persistence.Store,
	bus Publisher,
) *Executor {
	return &Executor{
		logger: logger.With("module", "workflow"),
		gen:    gen,
		store:  store,
		bus:    bus,
	}
}

type runState struct {
	graph     *models.WorkflowGraph
	input     RunInput
	nodes     map[string]*models.WorkflowNode
	outgoing  map[string][]*models.WorkflowEdge
	variables map[string]any
	visited   map[string]bool
	trace     *models.ExecutionTrace
	replyUsed bool
	replied   bool
	handoff   bool
}

// Execute runs one decoded graph against one inbound message. Triggers
// that fire seed a breadth-first queue; every other node runs at most
// once. Any node error aborts the run with the partial trace attached
// to the result.
func (e *Executor) Execute(ctx context.Context, g *models.WorkflowGraph, in RunInput) (*RunResult, error) {
	st := &runState{
		graph:    g,
		input:    in,
		nodes:    make(map[string]*models.WorkflowNode, len(g.Nodes)),
		outgoing: make(map[string][]*models.WorkflowEdge, len(g.Nodes)),
		variables: map[string]any{
			"message":       in.Event.Text,
			"sender_id":     in.Event.SenderID,
			"customer_name": customerName(in.Contact),
		},
		visited: make(map[string]bool, len(g.Nodes)),
		trace: &models.ExecutionTrace{
			ExecutionID: uuid.NewString(),
			WorkflowID:  g.ID,
		},
	}

	for _, node := range g.Nodes {
		st.nodes[node.ID] = node
	}

	for _, edge := range g.Edges {
		st.outgoing[edge.Source] = append(st.outgoing[edge.Source], edge)
	}

	queue := make([]string, 0, len(g.Nodes))

	for _, node := range g.Nodes {
		if node.Type != models.NodeTypeTrigger || node.Trigger == nil {
			continue
		}

		if triggerFires(node.Trigger, in) {
			queue = append(queue, node.ID)
		}
	}

	result := &RunResult{
		Triggered: len(queue) > 0,
		Trace:     st.trace,
		Variables: st.variables,
	}

	for len(queue) > 0 {
		nodeID := queue[0]
		queue = queue[1:]

		if st.visited[nodeID] {
			continue
		}

		st.visited[nodeID] = true

		node := st.nodes[nodeID]

		next, err := e.runNode(ctx, st, node)
		if err != nil {
			result.Replied = st.replied
			result.Handoff = st.handoff

			return result, fmt.Errorf("workflow '%s' node '%s': %w", g.ID, nodeID, err)
		}

		queue = append(queue, next...)
	}

	result.Replied = st.replied
	result.Handoff = st.handoff

	return result, nil
}

// runNode executes one node and returns the IDs to enqueue next.
func (e *Executor) runNode(ctx context.Context, st *runState, node *models.WorkflowNode) ([]string, error) {
	entry := &models.TraceEntry{NodeID: node.ID, Type: node.Type}
	st.trace.Entries = append(st.trace.Entries, entry)

	switch node.Type {
	case models.NodeTypeTrigger:
		entry.SubType = node.Trigger.SubType
		return st.allTargets(node.ID), nil

	case models.NodeTypeAI:
		return e.runAINode(ctx, st, node, entry)

	case models.NodeTypeCondition:
		return e.runConditionNode(st, node, entry)

	case models.NodeTypeAction:
		entry.SubType = node.Action.SubType
		if err := e.runActionNode(ctx, st, node, entry); err != nil {
			return nil, err
		}

		return st.allTargets(node.ID), nil

	case models.NodeTypeRouting:
		entry.SubType = node.Routing.Target
		return nil, e.runRoutingNode(ctx, st, node, entry)

	case models.NodeTypeEnd:
		return nil, nil
	}

	return nil, fmt.Errorf("unknown node type '%s'", node.Type)
}

func (e *Executor) runAINode(ctx context.Context, st *runState, node *models.WorkflowNode, entry *models.TraceEntry) ([]string, error) {
	cfg := node.AI
	entry.SubType = cfg.Task
	entry.Input = map[string]any{"text": st.input.Event.Text}

	model := st.input.Settings.AIModel

	var (
		out string
		err error
	)

	switch cfg.Task {
	case models.AITaskSentiment:
		out, err = e.gen.Sentiment(ctx, model, st.input.Event.Text)
	case models.AITaskIntent:
		out, err = e.gen.Intent(ctx, model, st.input.Event.Text)
	case models.AITaskLanguage:
		out, err = e.gen.Language(ctx, model, st.input.Event.Text)
	case models.AITaskReply:
		prompt := cfg.Prompt
		if prompt == "" {
			prompt = st.input.Settings.SystemPrompt
		}

		out, err = e.gen.Complete(ctx, generation.Request{
			Model:        model,
			SystemPrompt: prompt,
			UserText:     st.input.Event.Text,
		})
	default:
		err = fmt.Errorf("unknown ai task '%s'", cfg.Task)
	}

	if err != nil {
		return nil, err
	}

	variable := cfg.OutputVariable
	if variable == "" {
		variable = cfg.Task
	}

	st.variables[variable] = out
	entry.Output = map[string]any{variable: out}

	return st.allTargets(node.ID), nil
}

func (e *Executor) runConditionNode(st *runState, node *models.WorkflowNode, entry *models.TraceEntry) ([]string, error) {
	cfg := node.Condition

	value := ""
	if v, ok := st.variables[cfg.Field]; ok {
		value = fmt.Sprint(v)
	}

	match, err := evaluateCondition(value, cfg.Operator, cfg.CompareValue)
	if err != nil {
		return nil, err
	}

	handle := models.HandleFalse
	if match {
		handle = models.HandleTrue
	}

	entry.Input = map[string]any{"field": cfg.Field, "value": value}
	entry.Output = map[string]any{"match": match}

	var next []string

	for _, edge := range st.outgoing[node.ID] {
		if edge.SourceHandle == handle {
			next = append(next, edge.Target)
		}
	}

	return next, nil
}

func (e *Executor) runActionNode(ctx context.Context, st *runState, node *models.WorkflowNode, entry *models.TraceEntry) error {
	cfg := node.Action

	switch cfg.SubType {
	case models.ActionSendMessage:
		text := substituteVariables(cfg.Message, st.variables)
		entry.Output = map[string]any{"text": text}

		if st.input.DryRun {
			return nil
		}

		if err := e.send(ctx, st, platform.TextMessage(text, quickReplies(cfg.QuickReplies)...)); err != nil {
			return err
		}

		if err := e.store.InsertMessage(ctx, &models.ConversationMessage{
			ID:        uuid.NewString(),
			ContactID: st.input.Contact.ID,
			Role:      models.RoleAssistant,
			Text:      text,
			Status:    models.StatusAIHandled,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}

		st.replied = true

		return nil

	case models.ActionAddTag:
		entry.Output = map[string]any{"tags": cfg.Tags}

		if st.input.DryRun || len(cfg.Tags) == 0 {
			return nil
		}

		if err := e.store.MergeContactTags(ctx, st.input.Contact.ID, cfg.Tags); err != nil {
			return err
		}

		e.publishAutoTag(ctx, st.input.Contact.ID, cfg.Tags)

		return nil
	}

	return fmt.Errorf("unknown action sub-type '%s'", cfg.SubType)
}

func (e *Executor) runRoutingNode(ctx context.Context, st *runState, node *models.WorkflowNode, entry *models.TraceEntry) error {
	cfg := node.Routing

	if cfg.Target != "to_human" {
		return fmt.Errorf("unknown routing target '%s'", cfg.Target)
	}

	notice := cfg.Notice
	if notice == "" {
		notice = "已为您转接人工客服，请稍等。"
	}

	entry.Output = map[string]any{"notice": notice}

	st.handoff = true

	if st.input.DryRun {
		return nil
	}

	if err := e.send(ctx, st, platform.TextMessage(notice)); err != nil {
		return err
	}

	if err := e.store.InsertMessage(ctx, &models.ConversationMessage{
		ID:        uuid.NewString(),
		ContactID: st.input.Contact.ID,
		Role:      models.RoleAssistant,
		Text:      notice,
		Status:    models.StatusNeedsHuman,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	st.replied = true

	return nil
}

// send uses the single-use reply token for the first outbound message
// of a run and pushes afterwards.
func (e *Executor) send(ctx context.Context, st *runState, msg platform.Message) error {
	if st.input.Event.ReplyToken != "" && !st.replyUsed {
		st.replyUsed = true
		return st.input.Sender.Reply(ctx, st.input.Event.ReplyToken, []platform.Message{msg})
	}

	return st.input.Sender.Push(ctx, st.input.Event.SenderID, []platform.Message{msg})
}

func (e *Executor) publishAutoTag(ctx context.Context, contactID string, tags []string) {
	if e.bus == nil {
		return
	}

	err := e.bus.Publish(ctx, eventbus.ContactAutoTag{
		ContactID:  contactID,
		Tags:       tags,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		e.logger.WarnContext(ctx, "failed to publish contact auto-tag event", "error", err)
	}
}

func (st *runState) allTargets(nodeID string) []string {
	edges := st.outgoing[nodeID]
	targets := make([]string, 0, len(edges))

	for _, edge := range edges {
		targets = append(targets, edge.Target)
	}

	return targets
}

func evaluateCondition(value, operator, compare string) (bool, error) {
	switch operator {
	case models.OperatorEquals:
		return value == compare, nil
	case models.OperatorNotEquals:
		return value != compare, nil
	case models.OperatorContains:
		return compare != "" && strings.Contains(strings.ToLower(value), strings.ToLower(compare)), nil
	}

	return false, fmt.Errorf("unknown operator '%s'", operator)
}

var variablePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// substituteVariables replaces {{name}} placeholders with run
// variables. Unknown placeholders are left as-is so a typo is visible
// in the delivered message instead of silently vanishing.
func substituteVariables(text string, variables map[string]any) string {
	return variablePattern.ReplaceAllStringFunc(text, func(match string) string {
		name := variablePattern.FindStringSubmatch(match)[1]

		v, ok := variables[name]
		if !ok {
			return match
		}

		return fmt.Sprint(v)
	})
}

func customerName(contact *models.Contact) string {
	if contact != nil && contact.DisplayName != "" {
		return contact.DisplayName
	}

	return "朋友"
}

func quickReplies(labels []string) []platform.QuickReply {
	items := make([]platform.QuickReply, 0, len(labels))
	for _, label := range labels {
		items = append(items, platform.QuickReply{Label: label, Text: label})
	}

	return items
}

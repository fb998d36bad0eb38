package models

import "time"

// NodeType is the discriminator for workflow graph nodes.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeAI        NodeType = "ai"
	NodeTypeCondition NodeType = "condition"
	NodeTypeAction    NodeType = "action"
	NodeTypeRouting   NodeType = "routing"
	NodeTypeEnd       NodeType = "end"
)

// Trigger sub-types.
const (
	TriggerNewMessage  = "new_message"
	TriggerKeywords    = "keywords"
	TriggerNewCustomer = "new_customer"
	TriggerOffHours    = "off_hours"
)

// AI node sub-tasks.
const (
	AITaskSentiment = "sentiment"
	AITaskIntent    = "intent"
	AITaskLanguage  = "language"
	AITaskReply     = "reply"
)

// Action sub-types.
const (
	ActionSendMessage = "send_message"
	ActionAddTag      = "add_tag"
)

// Condition operators.
const (
	OperatorEquals    = "equals"
	OperatorNotEquals = "not_equals"
	OperatorContains  = "contains"
)

// Condition branch handles. A condition node follows exactly one of its
// outgoing edges, selected by the edge's SourceHandle.
const (
	HandleTrue  = "output-1"
	HandleFalse = "output-2"
)

// WorkflowNode is one node of a merchant-authored automation graph. The
// raw Data bag is decoded once at graph-load time into exactly one of the
// typed config fields, keyed by Type.
type WorkflowNode struct {
	ID   string         `json:"id"   validate:"required"`
	Type NodeType       `json:"type" validate:"required"`
	Data map[string]any `json:"data"`

	Trigger   *TriggerConfig   `json:"-"`
	AI        *AIConfig        `json:"-"`
	Condition *ConditionConfig `json:"-"`
	Action    *ActionConfig    `json:"-"`
	Routing   *RoutingConfig   `json:"-"`
}

// TriggerConfig configures a graph root.
type TriggerConfig struct {
	SubType  string   `json:"sub_type"`
	Keywords []string `json:"keywords,omitempty"`
}

// AIConfig configures an AI node sub-task. OutputVariable names the slot
// of the per-run variable bag the result is written to.
type AIConfig struct {
	Task           string `json:"task"`
	Prompt         string `json:"prompt,omitempty"`
	OutputVariable string `json:"output_variable"`
}

// ConditionConfig compares a run variable against a literal.
type ConditionConfig struct {
	Field        string `json:"field"`
	Operator     string `json:"operator"`
	CompareValue string `json:"compare_value"`
}

// ActionConfig configures a side-effecting node.
type ActionConfig struct {
	SubType      string   `json:"sub_type"`
	Message      string   `json:"message,omitempty"`
	QuickReplies []string `json:"quick_replies,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// RoutingConfig configures an escalation node.
type RoutingConfig struct {
	Target string `json:"target"` // currently only "to_human"
	Notice string `json:"notice,omitempty"`
}

// WorkflowEdge connects two nodes. SourceHandle is only meaningful on
// edges leaving a condition node.
type WorkflowEdge struct {
	ID           string `json:"id"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"source_handle,omitempty"`
}

// WorkflowGraph is a merchant-owned automation. Read-only at execution
// time; editing happens in the excluded dashboard.
type WorkflowGraph struct {
	ID         string          `json:"id"`
	MerchantID string          `json:"merchant_id"`
	Name       string          `json:"name"   validate:"required,min=1"`
	Active     bool            `json:"active"`
	Nodes      []*WorkflowNode `json:"nodes"`
	Edges      []*WorkflowEdge `json:"edges"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TraceEntry records one node visit of a workflow run.
type TraceEntry struct {
	NodeID  string         `json:"node_id"`
	Type    NodeType       `json:"type"`
	SubType string         `json:"sub_type,omitempty"`
	Input   map[string]any `json:"input,omitempty"`
	Output  map[string]any `json:"output,omitempty"`
}

// ExecutionTrace is the ordered audit log of one workflow run.
type ExecutionTrace struct {
	ExecutionID string        `json:"execution_id"`
	WorkflowID  string        `json:"workflow_id"`
	Entries     []*TraceEntry `json:"entries"`
}

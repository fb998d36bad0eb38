// Package workflow loads and executes merchant-authored automation
// graphs. A graph is decoded and schema-validated once, then executed
// breadth-first with a global visited set so cycles cannot loop.
package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/replyflow/replyflow/pkg/models"
)

var validate = validator.New()

// Decode validates a stored graph and decodes each node's raw Data bag
// into its typed config. It must run before Execute; the executor
// assumes typed configs are present.
func Decode(g *models.WorkflowGraph) error {
	if err := validate.Struct(g); err != nil {
		return fmt.Errorf("workflow '%s': %w", g.ID, err)
	}

	byID := make(map[string]*models.WorkflowNode, len(g.Nodes))

	triggers := 0

	for _, node := range g.Nodes {
		if _, dup := byID[node.ID]; dup {
			return fmt.Errorf("workflow '%s': duplicate node id '%s'", g.ID, node.ID)
		}

		byID[node.ID] = node

		if err := decodeNode(node); err != nil {
			return fmt.Errorf("workflow '%s' node '%s': %w", g.ID, node.ID, err)
		}

		if node.Type == models.NodeTypeTrigger {
			triggers++
		}
	}

	if triggers == 0 {
		return fmt.Errorf("workflow '%s': no trigger node", g.ID)
	}

	for _, edge := range g.Edges {
		src, ok := byID[edge.Source]
		if !ok {
			return fmt.Errorf("workflow '%s': edge '%s' source '%s' not found", g.ID, edge.ID, edge.Source)
		}

		if _, ok := byID[edge.Target]; !ok {
			return fmt.Errorf("workflow '%s': edge '%s' target '%s' not found", g.ID, edge.ID, edge.Target)
		}

		if src.Type == models.NodeTypeCondition &&
			edge.SourceHandle != models.HandleTrue && edge.SourceHandle != models.HandleFalse {
			return fmt.Errorf("workflow '%s': edge '%s' leaves a condition without a branch handle", g.ID, edge.ID)
		}
	}

	return nil
}

// decodeNode round-trips the Data bag through JSON into the typed
// config slot matching the node type, after schema validation.
func decodeNode(node *models.WorkflowNode) error {
	if err := validateNodeData(node.Type, node.Data); err != nil {
		return err
	}

	raw, err := json.Marshal(node.Data)
	if err != nil {
		return err
	}

	switch node.Type {
	case models.NodeTypeTrigger:
		node.Trigger = &models.TriggerConfig{}
		return json.Unmarshal(raw, node.Trigger)
	case models.NodeTypeAI:
		node.AI = &models.AIConfig{}
		return json.Unmarshal(raw, node.AI)
	case models.NodeTypeCondition:
		node.Condition = &models.ConditionConfig{}
		return json.Unmarshal(raw, node.Condition)
	case models.NodeTypeAction:
		node.Action = &models.ActionConfig{}
		return json.Unmarshal(raw, node.Action)
	case models.NodeTypeRouting:
		node.Routing = &models.RoutingConfig{}
		return json.Unmarshal(raw, node.Routing)
	case models.NodeTypeEnd:
		return nil
	}

	return fmt.Errorf("unknown node type '%s'", node.Type)
}

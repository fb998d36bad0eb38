package workflow

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/replyflow/replyflow/pkg/models"
)

// Per-type JSON schemas for node Data bags. Validated once at graph
// load so the executor never sees a malformed config.
var nodeSchemas = map[models.NodeType]map[string]any{
	models.NodeTypeTrigger: {
		"type": "object",
		"properties": map[string]any{
			"sub_type": map[string]any{
				"type": "string",
				"enum": []any{
					models.TriggerNewMessage,
					models.TriggerKeywords,
					models.TriggerNewCustomer,
					models.TriggerOffHours,
				},
			},
			"keywords": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []any{"sub_type"},
	},
	models.NodeTypeAI: {
		"type": "object",
		"properties": map[string]any{
			"task": map[string]any{
				"type": "string",
				"enum": []any{
					models.AITaskSentiment,
					models.AITaskIntent,
					models.AITaskLanguage,
					models.AITaskReply,
				},
			},
			"prompt":          map[string]any{"type": "string"},
			"output_variable": map[string]any{"type": "string"},
		},
		"required": []any{"task"},
	},
	models.NodeTypeCondition: {
		"type": "object",
		"properties": map[string]any{
			"field": map[string]any{"type": "string", "minLength": 1},
			"operator": map[string]any{
				"type": "string",
				"enum": []any{
					models.OperatorEquals,
					models.OperatorNotEquals,
					models.OperatorContains,
				},
			},
			"compare_value": map[string]any{"type": "string"},
		},
		"required": []any{"field", "operator"},
	},
	models.NodeTypeAction: {
		"type": "object",
		"properties": map[string]any{
			"sub_type": map[string]any{
				"type": "string",
				"enum": []any{models.ActionSendMessage, models.ActionAddTag},
			},
			"message": map[string]any{"type": "string"},
			"quick_replies": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"tags": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []any{"sub_type"},
	},
	models.NodeTypeRouting: {
		"type": "object",
		"properties": map[string]any{
			"target": map[string]any{
				"type": "string",
				"enum": []any{"to_human"},
			},
			"notice": map[string]any{"type": "string"},
		},
		"required": []any{"target"},
	},
	models.NodeTypeEnd: {
		"type": "object",
	},
}

func validateNodeData(nodeType models.NodeType, data map[string]any) error {
	schema, ok := nodeSchemas[nodeType]
	if !ok {
		return fmt.Errorf("unknown node type '%s'", nodeType)
	}

	if data == nil {
		data = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}

		return fmt.Errorf("validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

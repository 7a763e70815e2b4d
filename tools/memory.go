package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mnemoworks/mnemo/core"
)

// FactWriter is the slice of the facts store the memory tools need.
type FactWriter interface {
	SetPreference(ctx context.Context, userID, key, value string) error
	AddFact(ctx context.Context, userID, factType, content string, confidence float64, source string) (int64, error)
}

// StorePreference returns the tool that records a user preference in
// long-term memory.
func StorePreference(fw FactWriter) *Tool {
	return &Tool{
		Definition: core.ToolDefinition{
			Name:        "store_user_preference",
			Description: "Store a user preference for future conversations (e.g., temperature unit, language)",
			InputSchema: ObjectSchema(map[string]interface{}{
				"key":   StringProperty("The preference key (e.g., 'temperature_unit', 'name')"),
				"value": StringProperty("The preference value (e.g., 'celsius', 'Alex')"),
			}, "key", "value"),
		},
		Describe: func(args map[string]interface{}) string {
			return fmt.Sprintf("store_preference(%s)", stringArg(args, "key"))
		},
		Handler: func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var in struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			}
			_ = json.Unmarshal(params.Input, &in)

			if err := fw.SetPreference(ctx, params.UserID, in.Key, in.Value); err != nil {
				return nil, err
			}
			return &core.ToolResult{
				Observation: fmt.Sprintf("Stored preference: %s = %s", in.Key, in.Value),
			}, nil
		},
	}
}

// StoreFact returns the tool that records a fact about the user in
// long-term memory.
func StoreFact(fw FactWriter) *Tool {
	return &Tool{
		Definition: core.ToolDefinition{
			Name:        "store_user_fact",
			Description: "Store a fact about the user for future reference (e.g., workplace, interests)",
			InputSchema: ObjectSchema(map[string]interface{}{
				"fact_type": StringProperty("Category of fact (e.g., 'personal', 'work', 'interest')"),
				"content":   StringProperty("The fact to store (e.g., 'Works at Acme Corp')"),
			}, "fact_type", "content"),
		},
		Describe: func(args map[string]interface{}) string {
			return fmt.Sprintf("store_fact(%s)", factTypeOrDefault(stringArg(args, "fact_type")))
		},
		Handler: func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var in struct {
				FactType string `json:"fact_type"`
				Content  string `json:"content"`
			}
			_ = json.Unmarshal(params.Input, &in)

			// Confidence 0 lets the store apply its default.
			if _, err := fw.AddFact(ctx, params.UserID, factTypeOrDefault(in.FactType), in.Content, 0, "user_stated"); err != nil {
				return nil, err
			}
			return &core.ToolResult{
				Observation: fmt.Sprintf("Stored fact: %s", in.Content),
			}, nil
		},
	}
}

func factTypeOrDefault(factType string) string {
	if factType == "" {
		return "general"
	}
	return factType
}

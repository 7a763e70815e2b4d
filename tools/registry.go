// Package tools implements the agent's tool surface: the built-in
// tools (calculator, workspace files, weather, memory writes), the
// schema helpers their definitions use, and a registry that converts
// definitions to API params and dispatches invocations to handlers.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/mnemoworks/mnemo/core"
)

// Tool couples a definition (what the model sees) with the handler
// that executes it.
type Tool struct {
	// Definition describes the tool to the model.
	Definition core.ToolDefinition

	// Handler executes an invocation.
	Handler core.Handler

	// Describe renders a compact action record like "calculator(add)"
	// from the parsed arguments. Nil falls back to "name()".
	Describe func(args map[string]interface{}) string
}

// Name returns the tool's API name.
func (t *Tool) Name() string {
	return t.Definition.Name
}

// Action renders the action record for one invocation.
func (t *Tool) Action(args map[string]interface{}) string {
	if t.Describe != nil {
		return t.Describe(args)
	}
	return t.Definition.Name + "()"
}

// Registry holds the tools available to the agent. Registration order
// is preserved so the model sees a stable tool list.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool, replacing any existing tool with the same name.
func (r *Registry) Register(t *Tool) {
	name := t.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Get returns a registered tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// APITools converts the registered definitions to Anthropic API tool
// params, in registration order.
func (r *Registry) APITools() []anthropic.ToolUnionParam {
	params := make([]anthropic.ToolUnionParam, 0, len(r.order))
	for _, name := range r.order {
		def := r.tools[name].Definition

		schema := anthropic.ToolInputSchemaParam{}
		if props, ok := def.InputSchema["properties"]; ok {
			schema.Properties = props
		}
		if req, ok := def.InputSchema["required"].([]string); ok {
			schema.Required = req
		}

		params = append(params, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        def.Name,
				Description: anthropic.String(def.Description),
				InputSchema: schema,
			},
		})
	}
	return params
}

// Call is one tool invocation requested by the model.
type Call struct {
	Name      string
	Input     json.RawMessage
	UserID    string
	RequestID string
}

// Result is the dispatcher's verdict on one invocation.
type Result struct {
	// Observation is the text fed back to the model.
	Observation string

	// IsError marks the observation as a failure report.
	IsError bool

	// Action is the compact record for the episode log. It is empty
	// when the invocation never reached a handler (unknown tool,
	// handler error).
	Action string
}

// Dispatch routes one invocation to its tool. Failures never surface
// as Go errors; unknown tools, handler errors, and panics all come
// back as error observations the model can read and recover from.
func (r *Registry) Dispatch(ctx context.Context, call *Call) *Result {
	log.Printf("[TOOLS] Executing: %s(%s)", call.Name, compactInput(call.Input))

	tool, ok := r.Get(call.Name)
	if !ok {
		return &Result{
			Observation: fmt.Sprintf("Unknown tool: %s", call.Name),
			IsError:     true,
		}
	}

	// Parsed arguments feed the action record. Handlers do their own
	// parsing from the raw input.
	var args map[string]interface{}
	if len(call.Input) > 0 {
		_ = json.Unmarshal(call.Input, &args)
	}

	res, err := safeExecute(ctx, tool, &core.ToolParams{
		UserID:    call.UserID,
		Input:     call.Input,
		RequestID: call.RequestID,
	})
	if err != nil {
		return &Result{
			Observation: fmt.Sprintf("Error executing %s: %s", call.Name, err),
			IsError:     true,
		}
	}

	out := &Result{
		Observation: res.Observation,
		IsError:     res.IsError,
		Action:      tool.Action(args),
	}
	log.Printf("[TOOLS] Result: %s", truncate(out.Observation, 100))
	return out
}

// safeExecute runs the handler, converting panics and nil results to
// errors.
func safeExecute(ctx context.Context, tool *Tool, params *core.ToolParams) (res *core.ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	res, err = tool.Handler(ctx, params)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New("tool returned no result")
	}
	return res, nil
}

// errorResult wraps a model-visible failure message.
func errorResult(msg string) *core.ToolResult {
	return &core.ToolResult{Observation: msg, IsError: true}
}

// stringArg pulls an optional string argument from parsed args.
func stringArg(args map[string]interface{}, key string) string {
	if args == nil {
		return ""
	}
	s, _ := args[key].(string)
	return s
}

// compactInput renders raw JSON arguments on one line for logs.
func compactInput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return truncate(string(raw), 120)
	}
	return truncate(buf.String(), 120)
}

// truncate shortens s for log lines.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Package core defines the shared types that tools and the agent
// engine exchange. It has no dependencies beyond the standard
// library so every other package can import it freely.
package core

import (
	"context"
	"encoding/json"
)

// ToolDefinition describes a tool to the model: its name, what it
// does, and the JSON schema of its input. Definitions are converted
// to API tool params by the registry when a reasoning request is
// assembled.
type ToolDefinition struct {
	// Name is the identifier the model uses to invoke the tool.
	Name string

	// Description tells the model when the tool is appropriate.
	Description string

	// InputSchema is a JSON-schema object describing the tool's
	// arguments. Build it with the schema helpers in the tools
	// package.
	InputSchema map[string]interface{}
}

// ToolParams carries one invocation's arguments plus the identity of
// the user and turn it belongs to.
type ToolParams struct {
	// UserID identifies whose memory a tool should read or write.
	UserID string

	// Input is the raw JSON arguments produced by the model.
	Input json.RawMessage

	// RequestID identifies the agent turn this call belongs to.
	// All calls made during one turn share the same ID.
	RequestID string
}

// ToolResult is what a tool hands back to the model.
type ToolResult struct {
	// Observation is the text the model sees as the tool's output.
	// Errors the model should recover from (bad arguments, missing
	// files) go here with IsError set rather than being returned as
	// Go errors.
	Observation string

	// IsError marks the observation as a failure report.
	IsError bool
}

// Handler executes a tool invocation. Returning a non-nil error
// signals an unexpected failure; the dispatcher converts it to an
// error observation so the model can react to it.
type Handler func(ctx context.Context, params *ToolParams) (*ToolResult, error)

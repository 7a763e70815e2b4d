// Package engine runs the agent turn: load long-term context, recall
// similar episodes, alternate Claude reasoning with tool execution,
// then optionally record the finished task as an episode.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/google/uuid"

	"github.com/mnemoworks/mnemo/memory/episodic"
	"github.com/mnemoworks/mnemo/memory/facts"
	"github.com/mnemoworks/mnemo/tools"
)

// MessageClient is the slice of the Anthropic Messages API the engine
// needs. *anthropic.MessageService satisfies it.
type MessageClient interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// StreamingMessageClient is a MessageClient that can also stream
// responses. *anthropic.MessageService satisfies it.
type StreamingMessageClient interface {
	MessageClient
	NewStreaming(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

// FactSource loads the long-term context injected into the system
// prompt. *facts.Store satisfies it.
type FactSource interface {
	UserContext(ctx context.Context, userID string) (facts.UserContext, error)
}

// EpisodeMemory recalls and records task episodes. *episodic.Store
// satisfies it.
type EpisodeMemory interface {
	RecallSimilar(ctx context.Context, task, userID string, k int, minSimilarity float64) ([]episodic.Recalled, error)
	StoreEpisode(ctx context.Context, userID, task string, actions []string, outcome string, success bool, metadata map[string]any) (string, error)
}

// ThreadHistory keeps per-thread conversation turns. *session.History
// satisfies it.
type ThreadHistory interface {
	Append(threadID string, turns ...anthropic.MessageParam)
	Get(threadID string) []anthropic.MessageParam
}

const (
	defaultModel         = "claude-sonnet-4-20250514"
	defaultMaxTokens     = 4096
	defaultTemperature   = 0.7
	defaultRecallLimit   = 3
	defaultMaxIterations = 25
)

// Engine drives the agent loop against the three memory tiers.
type Engine struct {
	llm      MessageClient
	registry *tools.Registry
	longTerm FactSource
	episodes EpisodeMemory
	history  ThreadHistory

	model         string
	maxTokens     int64
	temperature   float64
	recallLimit   int
	minSimilarity float64
	maxIterations int
}

// Option configures the engine.
type Option func(*Engine)

// WithModel sets the Claude model.
func WithModel(model string) Option {
	return func(e *Engine) {
		e.model = model
	}
}

// WithMaxTokens sets the maximum response tokens per reasoning call.
func WithMaxTokens(n int64) Option {
	return func(e *Engine) {
		e.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(e *Engine) {
		e.temperature = t
	}
}

// WithRecallLimit sets how many episodes are recalled per turn.
func WithRecallLimit(k int) Option {
	return func(e *Engine) {
		e.recallLimit = k
	}
}

// WithMinSimilarity sets the similarity floor for recalled episodes.
func WithMinSimilarity(min float64) Option {
	return func(e *Engine) {
		e.minSimilarity = min
	}
}

// WithMaxIterations caps reasoning calls per turn.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		e.maxIterations = n
	}
}

// NewEngine wires the agent loop to its collaborators: the Claude
// client, the tool registry, and the three memory tiers.
func NewEngine(llm MessageClient, registry *tools.Registry, longTerm FactSource, episodes EpisodeMemory, history ThreadHistory, opts ...Option) *Engine {
	e := &Engine{
		llm:           llm,
		registry:      registry,
		longTerm:      longTerm,
		episodes:      episodes,
		history:       history,
		model:         defaultModel,
		maxTokens:     defaultMaxTokens,
		temperature:   defaultTemperature,
		recallLimit:   defaultRecallLimit,
		maxIterations: defaultMaxIterations,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Input represents one agent turn request.
type Input struct {
	// UserID namespaces all memory reads and writes.
	UserID string

	// ThreadID selects the conversation thread in session history.
	ThreadID string

	// Message is the user's message. Empty resumes from the existing
	// history without adding a user turn.
	Message string

	// Task describes what this turn tries to accomplish. Defaults to
	// Message. Drives episode recall and storage.
	Task string

	// StoreEpisode flags the turn for episode storage. The episode is
	// written only if tool actions were actually taken.
	StoreEpisode bool

	// OnText is an optional callback for streaming response text.
	// The final call has done=true and an empty chunk.
	OnText func(chunk string, done bool)
}

// TokenUsage tracks Claude API token consumption for one turn.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// Output represents the result of one agent turn.
type Output struct {
	// Text is the agent's final reply.
	Text string

	// Actions records the tool actions taken, in order.
	Actions []string

	// EpisodeID is set when the turn stored an episode.
	EpisodeID string

	// Iterations counts reasoning calls made during the turn.
	Iterations int

	// Usage accumulates token consumption across iterations.
	Usage TokenUsage
}

// Run executes one agent turn to completion.
func (e *Engine) Run(ctx context.Context, input *Input) (*Output, error) {
	turnID := uuid.New().String()

	task := input.Task
	if task == "" {
		task = input.Message
	}
	st := newTurnState(input.UserID, task, input.StoreEpisode)

	// === PHASE 1: LOAD LONG-TERM CONTEXT ===
	log.Printf("[MEMORY] Loading user context from long-term memory...")

	uc, err := e.longTerm.UserContext(ctx, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user context: %w", err)
	}
	st.preferences = uc.Preferences
	st.facts = uc.Facts

	log.Printf("[MEMORY] Loaded %d preferences, %d facts", len(st.preferences), len(st.facts))

	// === PHASE 2: RECALL SIMILAR EPISODES ===
	if st.task == "" {
		log.Printf("[EPISODIC] No current task set, skipping episode retrieval")
	} else {
		log.Printf("[EPISODIC] Searching for similar past experiences...")

		episodes, err := e.episodes.RecallSimilar(ctx, st.task, input.UserID, e.recallLimit, e.minSimilarity)
		if err != nil {
			return nil, fmt.Errorf("recall episodes: %w", err)
		}
		st.episodes = episodes

		log.Printf("[EPISODIC] Found %d similar episodes", len(st.episodes))
		for _, ep := range st.episodes {
			task := ep.Task
			if len(task) > 50 {
				task = task[:50] + "..."
			}
			log.Printf("[EPISODIC]   - %s (similarity: %.2f)", task, ep.Similarity)
		}
	}

	// The prompt stays fixed for the turn: memory is loaded once, not
	// re-read between tool iterations.
	system := buildSystemPrompt(st)

	msgs := e.history.Get(input.ThreadID)
	var newTurns []anthropic.MessageParam
	if input.Message != "" {
		userTurn := anthropic.NewUserMessage(anthropic.NewTextBlock(input.Message))
		msgs = append(msgs, userTurn)
		newTurns = append(newTurns, userTurn)
	}

	apiTools := e.registry.APITools()

	// === PHASE 3: REASONING LOOP ===
	var (
		finalText  string
		usage      TokenUsage
		iterations int
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("turn cancelled: %w", err)
		}
		if iterations >= e.maxIterations {
			return nil, fmt.Errorf("exceeded maximum iterations (%d)", e.maxIterations)
		}

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(e.model),
			MaxTokens: e.maxTokens,
			Messages:  msgs,
			System: []anthropic.TextBlockParam{
				{Text: system},
			},
		}
		if e.temperature > 0 {
			params.Temperature = anthropic.Float(e.temperature)
		}
		if len(apiTools) > 0 {
			params.Tools = apiTools
		}

		log.Printf("[AGENT] Calling Claude for reasoning...")

		var resp *anthropic.Message
		if input.OnText != nil {
			resp, err = e.createMessageStreaming(ctx, params, input.OnText)
		} else {
			resp, err = e.llm.New(ctx, params)
		}
		if err != nil {
			return nil, fmt.Errorf("reasoning request: %w", err)
		}
		iterations++

		usage.InputTokens += resp.Usage.InputTokens
		usage.OutputTokens += resp.Usage.OutputTokens

		var toolResults []anthropic.ContentBlockParamUnion
		var texts []string

		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				texts = append(texts, block.Text)

			case "tool_use":
				res := e.registry.Dispatch(ctx, &tools.Call{
					Name:      block.Name,
					Input:     block.Input,
					UserID:    input.UserID,
					RequestID: turnID,
				})
				if res.Action != "" {
					st.actions = append(st.actions, res.Action)
				}
				toolResults = append(toolResults, anthropic.NewToolResultBlock(block.ID, res.Observation, res.IsError))
			}
		}

		// No tool calls means Claude's reply is final.
		if len(toolResults) == 0 {
			finalText = strings.Join(texts, "\n")
			newTurns = append(newTurns, resp.ToParam())
			if input.OnText != nil {
				input.OnText("", true)
			}
			break
		}

		log.Printf("[AGENT] Executed %d tool calls", len(toolResults))

		assistantTurn := resp.ToParam()
		resultTurn := anthropic.NewUserMessage(toolResults...)
		msgs = append(msgs, assistantTurn, resultTurn)
		newTurns = append(newTurns, assistantTurn, resultTurn)
	}

	// Commit history before the episode write so the conversation
	// survives a failed store.
	e.history.Append(input.ThreadID, newTurns...)

	// === PHASE 4: STORE EPISODE ===
	episodeID, err := e.maybeStoreEpisode(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("store episode: %w", err)
	}

	return &Output{
		Text:       finalText,
		Actions:    st.actions,
		EpisodeID:  episodeID,
		Iterations: iterations,
		Usage:      usage,
	}, nil
}

// createMessageStreaming handles streaming API calls. Clients that
// cannot stream fall back to a single call, delivered to the callback
// as one chunk per text block.
func (e *Engine) createMessageStreaming(ctx context.Context, params anthropic.MessageNewParams, callback func(string, bool)) (*anthropic.Message, error) {
	streamer, ok := e.llm.(StreamingMessageClient)
	if !ok {
		resp, err := e.llm.New(ctx, params)
		if err != nil {
			return nil, err
		}
		for _, block := range resp.Content {
			if block.Type == "text" && block.Text != "" {
				callback(block.Text, false)
			}
		}
		return resp, nil
	}

	stream := streamer.NewStreaming(ctx, params)
	defer stream.Close()

	// Accumulate the message from events
	message := anthropic.Message{}

	for stream.Next() {
		event := stream.Current()

		if err := message.Accumulate(event); err != nil {
			log.Printf("[AGENT] Stream accumulation error: %v", err)
		}

		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				callback(delta.Text, false)
			}
		case anthropic.MessageStopEvent:
			// Stream complete
		}
	}

	if err := stream.Err(); err != nil {
		return nil, err
	}

	return &message, nil
}

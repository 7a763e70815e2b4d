package engine

import (
	"fmt"
	"sort"
	"strings"
)

const systemPromptHeader = `You are a helpful AI assistant with access to tools and memory capabilities.

## Your Capabilities
- Calculator for math operations
- File operations (read, write, list) in the workspace
- Weather lookup for cities
- Store user preferences and facts for future conversations

## Guidelines
- Use tools when needed to complete tasks
- Store important user information using store_user_preference or store_user_fact
- Reference past experiences when relevant
- Be concise but helpful`

const (
	maxPromptFacts    = 10
	maxPromptEpisodes = 3
)

// buildSystemPrompt renders the system prompt: the static header plus
// whichever memory sections have content. Preference keys are sorted
// so the prompt is stable across turns.
func buildSystemPrompt(st *turnState) string {
	sections := []string{systemPromptHeader}

	if len(st.preferences) > 0 {
		keys := make([]string, 0, len(st.preferences))
		for k := range st.preferences {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var b strings.Builder
		b.WriteString("## User Preferences (from long-term memory)")
		for _, k := range keys {
			fmt.Fprintf(&b, "\n- %s: %s", k, st.preferences[k])
		}
		sections = append(sections, b.String())
	}

	if len(st.facts) > 0 {
		var b strings.Builder
		b.WriteString("## Known Facts About User (from long-term memory)")
		for i, fact := range st.facts {
			if i >= maxPromptFacts {
				break
			}
			fmt.Fprintf(&b, "\n- %s", fact)
		}
		sections = append(sections, b.String())
	}

	if len(st.episodes) > 0 {
		var b strings.Builder
		b.WriteString("## Similar Past Experiences (from episodic memory)")
		b.WriteString("\nUse these as guidance for how to approach similar tasks:")
		for i, ep := range st.episodes {
			if i >= maxPromptEpisodes {
				break
			}
			task := ep.Task
			if task == "" {
				task = "Unknown"
			}
			outcome := ep.Outcome
			if outcome == "" {
				outcome = "Unknown"
			}
			fmt.Fprintf(&b, "\n- Task: %s", task)
			if len(ep.Actions) > 0 {
				fmt.Fprintf(&b, "\n  Actions taken: %s", strings.Join(ep.Actions, ", "))
			}
			fmt.Fprintf(&b, "\n  Outcome: %s", outcome)
		}
		sections = append(sections, b.String())
	}

	return strings.Join(sections, "\n\n")
}

package engine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/mnemoworks/mnemo/memory/episodic"
)

func TestSystemPromptHeaderOnly(t *testing.T) {
	st := newTurnState("alice", "task", false)

	if got := buildSystemPrompt(st); got != systemPromptHeader {
		t.Fatalf("Expected bare header for empty memory, got:\n%s", got)
	}
}

func TestSystemPromptSections(t *testing.T) {
	st := newTurnState("alice", "check weather", false)
	st.preferences = map[string]string{
		"temperature_unit": "celsius",
		"name":             "Alex",
	}
	st.facts = []string{"Works at Acme Corp", "Likes hiking"}
	st.episodes = []episodic.Recalled{
		{
			Episode: episodic.Episode{
				Task:    "check weather in Paris",
				Actions: []string{"get_weather(Paris)"},
				Outcome: "Reported sunny weather",
			},
			Similarity: 0.91,
		},
	}

	got := buildSystemPrompt(st)

	want := systemPromptHeader + `

## User Preferences (from long-term memory)
- name: Alex
- temperature_unit: celsius

## Known Facts About User (from long-term memory)
- Works at Acme Corp
- Likes hiking

## Similar Past Experiences (from episodic memory)
Use these as guidance for how to approach similar tasks:
- Task: check weather in Paris
  Actions taken: get_weather(Paris)
  Outcome: Reported sunny weather`

	if got != want {
		t.Fatalf("Prompt mismatch.\nGot:\n%s\n\nWant:\n%s", got, want)
	}
}

func TestSystemPromptCapsFactsAndEpisodes(t *testing.T) {
	st := newTurnState("alice", "task", false)
	for i := 0; i < 15; i++ {
		st.facts = append(st.facts, fmt.Sprintf("fact %02d", i))
	}
	for i := 0; i < 5; i++ {
		st.episodes = append(st.episodes, episodic.Recalled{
			Episode: episodic.Episode{Task: fmt.Sprintf("task %d", i), Outcome: "done"},
		})
	}

	got := buildSystemPrompt(st)

	if !strings.Contains(got, "- fact 09") {
		t.Fatalf("Expected the tenth fact in the prompt:\n%s", got)
	}
	if strings.Contains(got, "- fact 10") {
		t.Fatalf("Expected facts beyond the tenth to be dropped:\n%s", got)
	}
	if !strings.Contains(got, "- Task: task 2") {
		t.Fatalf("Expected the third episode in the prompt:\n%s", got)
	}
	if strings.Contains(got, "- Task: task 3") {
		t.Fatalf("Expected episodes beyond the third to be dropped:\n%s", got)
	}
}

func TestSystemPromptEpisodeFallbacks(t *testing.T) {
	st := newTurnState("alice", "task", false)
	st.episodes = []episodic.Recalled{{}}

	got := buildSystemPrompt(st)

	if !strings.Contains(got, "- Task: Unknown") {
		t.Fatalf("Expected Unknown task fallback:\n%s", got)
	}
	if !strings.Contains(got, "  Outcome: Unknown") {
		t.Fatalf("Expected Unknown outcome fallback:\n%s", got)
	}
	if strings.Contains(got, "Actions taken:") {
		t.Fatalf("Expected no actions line when no actions were recorded:\n%s", got)
	}
}

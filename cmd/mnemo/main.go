// Command mnemo is an interactive conversational agent backed by
// tools and a three-tier memory system: session history, a SQLite
// fact store, and an episodic vector index.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/joho/godotenv"

	"github.com/mnemoworks/mnemo/config"
	"github.com/mnemoworks/mnemo/engine"
	"github.com/mnemoworks/mnemo/memory/episodic"
	"github.com/mnemoworks/mnemo/memory/facts"
	"github.com/mnemoworks/mnemo/memory/session"
	"github.com/mnemoworks/mnemo/tools"
)

const turnTimeout = 5 * time.Minute

func main() {
	// ============================================================
	// CONFIGURATION
	// ============================================================
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to config file")
	userFlag := flag.String("user", "", "user ID (overrides config)")
	flag.Parse()

	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	if anthropicKey == "" {
		log.Fatal("❌ ANTHROPIC_API_KEY environment variable is required")
	}

	cfg := config.Default()
	if path, err := config.FindConfig(*configPath); err == nil {
		cfg, err = config.Load(path)
		if err != nil {
			log.Fatalf("❌ Failed to load config %s: %v", path, err)
		}
		log.Printf("✅ Loaded config from %s", path)
	} else if *configPath != "" {
		log.Fatalf("❌ %v", err)
	}
	if *userFlag != "" {
		cfg.UserID = *userFlag
	}

	// ============================================================
	// MEMORY SYSTEM SETUP
	// ============================================================
	log.Println("📦 Setting up memory system...")

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("❌ Failed to create data directory: %v", err)
		}
	}
	if err := os.MkdirAll(cfg.Workspace, 0o755); err != nil {
		log.Fatalf("❌ Failed to create workspace: %v", err)
	}

	factStore, err := facts.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("❌ Failed to open long-term memory: %v", err)
	}
	defer factStore.Close()
	log.Printf("✅ Long-term memory at %s", cfg.DatabasePath)

	embedder, closeEmbedder, err := newEmbedder()
	if err != nil {
		log.Fatalf("❌ Failed to create embedder: %v", err)
	}
	defer closeEmbedder()

	var episodes *episodic.Store
	if cfg.EpisodePath != "" {
		episodes, err = episodic.NewPersistent(cfg.EpisodePath, embedder)
	} else {
		episodes, err = episodic.New(embedder)
	}
	if err != nil {
		log.Fatalf("❌ Failed to open episodic memory: %v", err)
	}
	log.Println("✅ Episodic memory configured")

	// ============================================================
	// AGENT SETUP
	// ============================================================
	workspace, err := tools.NewWorkspace(cfg.Workspace)
	if err != nil {
		log.Fatalf("❌ Failed to set up workspace: %v", err)
	}

	registry := tools.Builtin(&tools.Deps{
		Facts:     factStore,
		Workspace: workspace,
	})

	history := session.NewHistory()

	client := anthropic.NewClient(option.WithAPIKey(anthropicKey))

	opts := []engine.Option{
		engine.WithModel(cfg.Model),
		engine.WithMaxTokens(cfg.MaxTokens),
		engine.WithTemperature(cfg.Temperature),
		engine.WithRecallLimit(cfg.RecallLimit),
		engine.WithMinSimilarity(cfg.MinSimilarity),
	}
	if cfg.MaxIterations > 0 {
		opts = append(opts, engine.WithMaxIterations(cfg.MaxIterations))
	}
	agent := engine.NewEngine(&client.Messages, registry, factStore, episodes, history, opts...)
	log.Println("✅ Agent ready")

	// ============================================================
	// INTERACTIVE LOOP
	// ============================================================
	printBanner()

	userID := cfg.UserID
	threadID := newThreadID(userID)
	interactions := 0

	fmt.Printf("User ID: %s\n", userID)
	fmt.Printf("Thread ID: %s\n", threadID)
	fmt.Println("\nType your message and press Enter. Use /help for commands.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			fmt.Println("\n\nGoodbye!")
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			switch strings.ToLower(input) {
			case "/quit", "/exit", "/q":
				fmt.Println("\nGoodbye! Your memories are saved.")
				return

			case "/newthread":
				threadID = newThreadID(userID)
				interactions = 0
				fmt.Printf("\n✓ Started new thread: %s\n", threadID)
				fmt.Println("(Long-term and episodic memories persist)")
				fmt.Println()

			case "/showmemory":
				showMemory(context.Background(), factStore, episodes, userID)

			case "/clearmemory":
				fmt.Print("Are you sure? This cannot be undone. (yes/no): ")
				if scanner.Scan() && strings.EqualFold(strings.TrimSpace(scanner.Text()), "yes") {
					clearMemory(context.Background(), factStore, episodes, userID)
				} else {
					fmt.Println("Cancelled.")
					fmt.Println()
				}

			case "/help":
				printBanner()

			default:
				fmt.Printf("Unknown command: %s\n", input)
				fmt.Println("Type /help for available commands.")
				fmt.Println()
			}
			continue
		}

		interactions++
		storeEpisode := cfg.StoreEvery > 0 && interactions%cfg.StoreEvery == 0

		fmt.Print("\nAgent: ")
		ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
		out, err := agent.Run(ctx, &engine.Input{
			UserID:       userID,
			ThreadID:     threadID,
			Message:      input,
			StoreEpisode: storeEpisode,
			OnText: func(chunk string, done bool) {
				fmt.Print(chunk)
			},
		})
		cancel()

		if err != nil {
			fmt.Printf("\nError: %v\n\n", err)
			continue
		}
		if out.Text == "" {
			fmt.Print("I completed the task but have nothing to add.")
		}
		fmt.Println()
		fmt.Println()
	}
}

func newThreadID(userID string) string {
	return fmt.Sprintf("%s_%d", userID, time.Now().Unix())
}

func printBanner() {
	line := strings.Repeat("=", 60)
	fmt.Println("\n" + line)
	fmt.Println("   Conversational Agent with Tools & Tiered Memory")
	fmt.Println(line)
	fmt.Println()
	fmt.Println("This demo showcases three types of memory:")
	fmt.Println("  📝 Short-term: Conversation history (within session)")
	fmt.Println("  💾 Long-term:  User preferences & facts (across sessions)")
	fmt.Println("  🧠 Episodic:   Past experiences (for similar tasks)")
	fmt.Println()
	fmt.Println("Available tools:")
	fmt.Println("  • calculator   - Math operations")
	fmt.Println("  • read_file    - Read files from workspace")
	fmt.Println("  • write_file   - Write files to workspace")
	fmt.Println("  • list_files   - List workspace files")
	fmt.Println("  • get_weather  - Get weather for a city")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  /newthread   - Start a new conversation thread")
	fmt.Println("  /showmemory  - Show stored memories for current user")
	fmt.Println("  /clearmemory - Clear all memories for current user")
	fmt.Println("  /help        - Show this help message")
	fmt.Println("  /quit        - Exit the application")
	fmt.Println()
	fmt.Println(line + "\n")
}

func showMemory(ctx context.Context, factStore *facts.Store, episodes *episodic.Store, userID string) {
	line := strings.Repeat("-", 40)
	fmt.Println("\n" + line)
	fmt.Printf("Memory State for User: %s\n", userID)
	fmt.Println(line)

	uc, err := factStore.UserContext(ctx, userID)
	if err != nil {
		fmt.Printf("Error reading long-term memory: %v\n", err)
		return
	}

	fmt.Println("\n📝 Long-term Memory (SQLite):")
	fmt.Println("  Preferences:")
	if len(uc.Preferences) > 0 {
		keys := make([]string, 0, len(uc.Preferences))
		for k := range uc.Preferences {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("    • %s: %s\n", k, uc.Preferences[k])
		}
	} else {
		fmt.Println("    (none)")
	}

	fmt.Println("  Facts:")
	if len(uc.Facts) > 0 {
		for i, fact := range uc.Facts {
			if i >= 10 {
				break
			}
			fmt.Printf("    • %s\n", fact)
		}
	} else {
		fmt.Println("    (none)")
	}

	stats, err := episodes.Stats(ctx, userID)
	if err != nil {
		fmt.Printf("Error reading episodic memory: %v\n", err)
		return
	}
	recent, err := episodes.UserEpisodes(ctx, userID, 5, false)
	if err != nil {
		fmt.Printf("Error reading episodes: %v\n", err)
		return
	}

	fmt.Println("\n🧠 Episodic Memory (vector index):")
	fmt.Printf("  Total episodes: %d\n", stats.Total)
	fmt.Printf("  Success rate: %.0f%%\n", stats.SuccessRate*100)

	if len(recent) > 0 {
		fmt.Println("  Recent episodes:")
		for _, ep := range recent {
			task := ep.Task
			if len(task) > 50 {
				task = task[:50]
			}
			fmt.Printf("    • Task: %s...\n", task)
			if len(ep.Actions) > 0 {
				actions := ep.Actions
				if len(actions) > 3 {
					actions = actions[:3]
				}
				fmt.Printf("      Actions: %s\n", strings.Join(actions, ", "))
			}
		}
	} else {
		fmt.Println("  (no episodes)")
	}

	fmt.Println(line + "\n")
}

func clearMemory(ctx context.Context, factStore *facts.Store, episodes *episodic.Store, userID string) {
	fmt.Printf("\nClearing all memories for user: %s\n", userID)

	if err := factStore.ClearUser(ctx, userID); err != nil {
		fmt.Printf("Error clearing long-term memory: %v\n", err)
		return
	}
	fmt.Println("  ✓ Long-term memory cleared")

	removed, err := episodes.ClearUser(ctx, userID)
	if err != nil {
		fmt.Printf("Error clearing episodic memory: %v\n", err)
		return
	}
	fmt.Printf("  ✓ Episodic memory cleared (%d episodes)\n", removed)

	fmt.Println("Done!")
	fmt.Println()
}

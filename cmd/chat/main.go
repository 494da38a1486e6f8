// Package main provides the rankforge chat REPL.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rankforge/rankforge/internal/config"
	"github.com/rankforge/rankforge/internal/events"
	"github.com/rankforge/rankforge/internal/extract"
	"github.com/rankforge/rankforge/internal/llm"
	"github.com/rankforge/rankforge/internal/orchestrator"
	"github.com/rankforge/rankforge/internal/pipeline"
	"github.com/rankforge/rankforge/internal/store"
	"github.com/rankforge/rankforge/internal/store/memory"
	"github.com/rankforge/rankforge/internal/store/postgres"
)

var (
	ownerID   string
	sessionID string
)

func main() {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "rankforge-chat",
		Short: "Chat-driven SEO content planning and generation",
		Long: `An interactive chat loop over the rankforge pipeline.

Send a website URL to research it and draft a content plan, reply with
feedback to revise the plan, and say "proceed" to generate the articles.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVar(&ownerID, "owner", "local", "Owner identity for session records")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "Resume an existing session by ID")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runChat(ctx context.Context) error {
	cfg := config.Load()

	var st store.Store
	if cfg.PostgresURL == "" {
		fmt.Fprintln(os.Stderr, "No Postgres configured, sessions are held in memory only.")
		st = memory.New()
	} else {
		pg, err := postgres.New(cfg.PostgresURL)
		if err != nil {
			return err
		}
		st = pg
	}

	provider, err := llm.NewProvider(llm.Config{
		Provider:         cfg.LLMProvider,
		Model:            cfg.LLMModel,
		BaseURL:          cfg.LLMBaseURL,
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		DeepSeekAPIKey:   cfg.DeepSeekAPIKey,
		OpenRouterAPIKey: cfg.OpenRouterAPIKey,
	})
	if err != nil {
		return err
	}

	extractor := extract.New(extract.Options{
		UserAgent:   cfg.ExtractUserAgent,
		MaxBody:     cfg.ExtractMaxBody,
		MaxLinks:    cfg.ExtractMaxLinks,
		MaxSubPages: cfg.ExtractMaxSubPages,
	})
	service := pipeline.NewService(st, extractor, llm.NewCaller(provider), pipeline.Limits{
		MinWords: cfg.ArticleMinWords,
		MinChars: cfg.ArticleMinChars,
		TokenCap: cfg.ArticleTokenCap,
	})
	publisher := events.NewPublisher(st, events.NewBroker(), "chat")

	conv := orchestrator.NewConversation(service, publisher, ownerID)
	if sessionID != "" {
		session, err := service.Session(ctx, ownerID, sessionID)
		if err != nil {
			return fmt.Errorf("resume session %s: %w", sessionID, err)
		}
		conv.Resume(session)
		fmt.Printf("Resumed session for %s.\n", session.URL)
	} else {
		fmt.Println("Send me a website URL to get started.")
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		for _, reply := range conv.HandleMessage(ctx, line) {
			fmt.Printf("\n%s\n\n", reply.Content)
		}
	}
	if session := conv.Session(); session != nil {
		fmt.Printf("Session ID: %s (pass --session %s to resume)\n", session.ID, session.ID)
	}
	return scanner.Err()
}

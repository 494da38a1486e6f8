package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rankforge/rankforge/internal/api"
	"github.com/rankforge/rankforge/internal/config"
	"github.com/rankforge/rankforge/internal/events"
	"github.com/rankforge/rankforge/internal/extract"
	"github.com/rankforge/rankforge/internal/llm"
	"github.com/rankforge/rankforge/internal/pipeline"
	"github.com/rankforge/rankforge/internal/store"
	"github.com/rankforge/rankforge/internal/store/memory"
	"github.com/rankforge/rankforge/internal/store/postgres"
)

type server interface {
	Start(ctx context.Context, addr string) error
}

var (
	loadEnv    = godotenv.Load
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	newBroker = events.NewBroker
	newStore  = func(conn string) (store.Store, error) {
		if conn == "" {
			log.Printf("warning: no Postgres configured, sessions are held in memory only")
			return memory.New(), nil
		}
		return postgres.New(conn)
	}
	newProvider = llm.NewProvider
	newServer   = func(st store.Store, service *pipeline.Service, publisher *events.Publisher, cfg config.Config) server {
		return api.NewServer(st, service, publisher, cfg)
	}
	notifyContext = signal.NotifyContext
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	_ = loadEnv()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := newStore(cfg.PostgresURL)
	if err != nil {
		return err
	}

	provider, err := newProvider(llm.Config{
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
	publisher := events.NewPublisher(st, newBroker(), "api")

	srv := newServer(st, service, publisher, cfg)

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Printf("rankforge api listening on %s (model %s via %s)", addr, cfg.LLMModel, provider.Name())
	if err := srv.Start(ctx, addr); err != nil {
		return err
	}

	return nil
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"todo-relevance-backend/internal/ai"
	"todo-relevance-backend/internal/config"
	"todo-relevance-backend/internal/db"
	"todo-relevance-backend/internal/logging"
	"todo-relevance-backend/internal/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, false)
			if err != nil {
				return err
			}
			database, err := open(cfg)
			if err != nil {
				return err
			}
			defer database.Close()
			log.Printf("[INFO] migrations applied")
			return nil
		},
	}
}

func loadConfig(path string, requireSecret bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if requireSecret {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}
	return cfg, nil
}

// open connects and migrates.
func open(cfg *config.Config) (*db.DB, error) {
	dialect, err := db.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	database, err := db.Connect(dialect, cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", dialect, err)
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func runServe(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(configPath, true)
	if err != nil {
		return err
	}

	closer := logging.Setup(logging.Options{
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	defer closer.Close()

	database, err := open(cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	log.Printf("[INFO] connected to %s", database.Dialect)

	if cfg.OpenAIKey == "" {
		log.Printf("[WARN] OPENAI_API_KEY not set, voice processing will fail")
	}
	aiClient := ai.New(ai.Config{
		APIKey:             cfg.OpenAIKey,
		BaseURL:            cfg.OpenAIBaseURL,
		Model:              cfg.OpenAIModel,
		TranscriptionModel: cfg.OpenAITranscriptionModel,
		Language:           cfg.TranscriptionLanguage,
		MaxRetries:         cfg.AIMaxRetries,
		Timeout:            cfg.AITimeout(),
	})

	srv := server.New(server.Options{
		DB:             database,
		JWTSecret:      []byte(cfg.JWTSecret),
		AI:             aiClient,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx, cfg.HTTPAddr, 15*time.Second)
}

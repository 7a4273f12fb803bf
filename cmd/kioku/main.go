package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kioku-app/kioku/internal/audio"
	"github.com/kioku-app/kioku/internal/config"
	"github.com/kioku-app/kioku/internal/content"
	"github.com/kioku-app/kioku/internal/fsrs"
	"github.com/kioku-app/kioku/internal/openai"
	"github.com/kioku-app/kioku/internal/question"
	"github.com/kioku-app/kioku/internal/storage"
	"github.com/kioku-app/kioku/internal/web"
)

func main() {
	// 1. Define and parse command-line flags
	flags := pflag.NewFlagSet("kioku", pflag.ExitOnError)
	configPath := flags.String("config", "", "Path to the YAML config file")
	seedUser := flags.String("seed-user", "", "Seed cards for this user from the content directory, then continue")
	flags.String("listen_addr", ":8080", "HTTP listen address")
	flags.String("db_path", "kioku.db", "Path to the SQLite database file")
	flags.String("content.dir", "resources/words", "Directory of word JSON files")
	flags.String("content.repo_url", "", "Git repository to sync the content directory from")
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	// 2. Load and validate the configuration
	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// 3. Open the database
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.DBPath)

	// 4. Sync and seed content
	if cfg.Content.RepoURL != "" {
		if err := content.SyncRepo(cfg.Content.RepoURL, cfg.Content.Dir, logger); err != nil {
			log.Fatalf("Failed to sync content repository: %v", err)
		}
	}
	loader := content.NewLoader(cfg.Content.Dir)
	if *seedUser != "" {
		created, err := content.Seed(loader, db, *seedUser, time.Now().UTC(), logger)
		if err != nil {
			log.Fatalf("Failed to seed cards: %v", err)
		}
		logger.Info("cards seeded", "user", *seedUser, "created", created)
	}

	// 5. Build the scheduler and collaborators
	schedulerCfg, err := cfg.SchedulerSettings()
	if err != nil {
		log.Fatalf("Invalid scheduler config: %v", err)
	}
	scheduler, err := fsrs.NewScheduler(schedulerCfg)
	if err != nil {
		log.Fatalf("Invalid scheduler config: %v", err)
	}

	llm, err := openai.NewClient(openai.Config{
		APIKey:          cfg.OpenAI.APIKey,
		BaseURL:         cfg.OpenAI.BaseURL,
		Model:           cfg.OpenAI.Model,
		TranscribeModel: cfg.OpenAI.TranscribeModel,
		Timeout:         time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second,
		MaxRetries:      cfg.OpenAI.MaxRetries,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create OpenAI client: %v", err)
	}

	questions := question.NewService(llm, loader, logger)
	transcriber := audio.NewTranscriber(llm, cfg.Audio.MaxSizeKB, cfg.Audio.Language, logger)

	// 6. Serve
	server := web.NewServer(db, scheduler, questions, transcriber, web.LearnerDefaults{
		Level:           cfg.Learner.Level,
		TargetLanguages: cfg.Learner.TargetLanguages,
	}, logger)

	logger.Info("listening", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, server); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/intakeloop/intakeloop/internal/api"
	"github.com/intakeloop/intakeloop/internal/enrich"
	"github.com/intakeloop/intakeloop/internal/genai"
	"github.com/intakeloop/intakeloop/internal/interview"
	"github.com/intakeloop/intakeloop/internal/models"
	"github.com/intakeloop/intakeloop/internal/questions"
	"github.com/intakeloop/intakeloop/internal/store"
	"github.com/intakeloop/intakeloop/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for intakeloop state data
	DefaultStateDir = "/var/lib/intakeloop"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "intakeloop.db"
)

// Config holds environment configuration
type Config struct {
	DatabaseURL      string
	StateDir         string
	OpenAIKey        string
	APIAddr          string
	PackPath         string
	LogLevel         string
	EnrichEnabled    bool
	TranscriptWindow int
}

// Flags holds command line flag values
type Flags struct {
	dbDSN     *string
	stateDir  *string
	openaiKey *string
	apiAddr   *string
	packPath  *string
}

func main() {
	config := loadEnvironmentConfig()
	initializeLogger(config.LogLevel)
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping intakeloop")
	if err := run(flags, config); err != nil {
		slog.Error("intakeloop failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("intakeloop exited successfully")
}

func run(flags Flags, config Config) error {
	st, err := openStore(*flags.dbDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	// The GenAI client is optional: without it the engine still runs, URL
	// correction stops after quick fixes, and AI enrichment actions fail soft.
	var genaiClient *genai.Client
	if *flags.openaiKey != "" {
		genaiClient, err = genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
		if err != nil {
			return err
		}
	} else {
		slog.Warn("No OpenAI API key configured; AI suggestions and enrichment disabled")
	}

	registry := enrich.NewRegistry()
	switch {
	case !config.EnrichEnabled:
		slog.Warn("Auto-action enrichment disabled via ENRICHMENT_ENABLED")
	case genaiClient != nil:
		enrich.RegisterDefaults(registry, enrich.NewCrawler(), enrich.NewSuggester(genaiClient))
	default:
		crawler := enrich.NewCrawler()
		registry.Register(enrich.ActionCrawlWebsite, crawler.CrawlHandler)
	}

	var suggester interview.WebsiteSuggester
	if genaiClient != nil {
		suggester = genaiClient
	}
	controller := interview.NewController(st, interview.NewValidator(suggester), interview.NewDispatcher(registry))

	pack, err := loadQuestionPack(*flags.packPath)
	if err != nil {
		return err
	}
	if err := questions.Seed(st, pack); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(controller, st,
		api.WithAddr(*flags.apiAddr),
		api.WithTranscriptWindow(config.TranscriptWindow))
	return server.Run(ctx)
}

func openStore(dsn string) (store.Store, error) {
	if strings.Contains(dsn, "postgres://") || strings.Contains(dsn, "host=") {
		slog.Debug("Opening Postgres store", "dsn_set", true)
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Debug("Opening SQLite store", "path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

func loadQuestionPack(path string) ([]models.Question, error) {
	if path != "" {
		slog.Info("Loading question pack", "path", path)
		return questions.Load(path)
	}
	slog.Info("No question pack configured, using built-in default")
	return questions.Default()
}

// initializeLogger sets up structured logging at the configured level
func initializeLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	config := Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		StateDir:         os.Getenv("INTAKELOOP_STATE_DIR"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		APIAddr:          os.Getenv("API_ADDR"),
		PackPath:         os.Getenv("QUESTION_PACK"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		EnrichEnabled:    util.ParseBoolEnv("ENRICHMENT_ENABLED", true),
		TranscriptWindow: util.ParseIntEnv("TRANSCRIPT_WINDOW", models.DefaultTranscriptWindow),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "database DSN (overrides $DATABASE_URL)"),
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for intakeloop data (overrides $INTAKELOOP_STATE_DIR)"),
		openaiKey: flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		packPath:  flag.String("question-pack", config.PackPath, "path to a YAML question pack (overrides $QUESTION_PACK)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"dbDSN_set", *flags.dbDSN != "",
		"stateDir", *flags.stateDir,
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"questionPack", *flags.packPath)

	// Follow the state directory when the DSN was derived from it
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

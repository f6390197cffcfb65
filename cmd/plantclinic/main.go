package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cropwise/plantclinic/internal/api"
	"github.com/cropwise/plantclinic/internal/genai"
	"github.com/cropwise/plantclinic/internal/session"
	"github.com/cropwise/plantclinic/internal/tools"
	"github.com/cropwise/plantclinic/internal/util"
	"github.com/cropwise/plantclinic/internal/workflow"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for PlantClinic state data
	DefaultStateDir = "/var/lib/plantclinic"
	// DefaultSessionDirName is the session file directory under the state dir
	DefaultSessionDirName = "sessions"
	// DefaultClassifierURL is the default leaf classification service endpoint
	DefaultClassifierURL = "http://localhost:8090"
	// DefaultPrescriberURL is the default prescription service endpoint
	DefaultPrescriberURL = "http://localhost:8091"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	store, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	manager := session.NewManager(store)
	engine := workflow.NewEngine(buildToolset(flags), workflow.WithPersistence(manager.Save))
	server := api.NewServer(manager, engine, api.WithAddr(*flags.apiAddr))

	// Graceful shutdown on SIGINT/SIGTERM.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Shutdown failed", "error", err)
		}
	}()

	slog.Info("Bootstrapping PlantClinic", "store_driver", *flags.storeDriver, "api_addr", *flags.apiAddr)
	if err := server.Start(); err != nil {
		slog.Error("PlantClinic failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("PlantClinic exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir      string
	StoreDriver   string
	StoreDSN      string
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	ClassifierURL string
	PrescriberURL string
	APIAddr       string
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	storeDriver   *string
	storeDSN      *string
	openaiKey     *string
	openaiBaseURL *string
	openaiModel   *string
	classifierURL *string
	prescriberURL *string
	apiAddr       *string
}

// initializeLogger sets up structured logging; PLANTCLINIC_DEBUG enables
// debug level.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("PLANTCLINIC_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:      os.Getenv("PLANTCLINIC_STATE_DIR"),
		StoreDriver:   os.Getenv("PLANTCLINIC_STORE_DRIVER"),
		StoreDSN:      os.Getenv("PLANTCLINIC_STORE_DSN"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:   os.Getenv("OPENAI_MODEL"),
		ClassifierURL: os.Getenv("PLANTCLINIC_CLASSIFIER_URL"),
		PrescriberURL: os.Getenv("PLANTCLINIC_PRESCRIBER_URL"),
		APIAddr:       os.Getenv("PLANTCLINIC_API_ADDR"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	if config.StoreDriver == "" {
		config.StoreDriver = "file"
	}
	if config.ClassifierURL == "" {
		config.ClassifierURL = DefaultClassifierURL
	}
	if config.PrescriberURL == "" {
		config.PrescriberURL = DefaultPrescriberURL
	}
	if config.APIAddr == "" {
		config.APIAddr = ":8080"
	}

	slog.Debug("environment variables loaded",
		"PLANTCLINIC_STATE_DIR", config.StateDir,
		"PLANTCLINIC_STORE_DRIVER", config.StoreDriver,
		"PLANTCLINIC_STORE_DSN_SET", config.StoreDSN != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"PLANTCLINIC_API_ADDR", config.APIAddr)
	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "Directory for PlantClinic state data"),
		storeDriver:   flag.String("store-driver", config.StoreDriver, "Session store driver: file, sqlite, postgres, or redis"),
		storeDSN:      flag.String("store-dsn", config.StoreDSN, "Session store DSN (path, database DSN, or redis URL)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (keyword fallbacks are used when unset)"),
		openaiBaseURL: flag.String("openai-base-url", config.OpenAIBaseURL, "OpenAI-compatible API base URL"),
		openaiModel:   flag.String("openai-model", config.OpenAIModel, "Chat model override"),
		classifierURL: flag.String("classifier-url", config.ClassifierURL, "Leaf classification service URL"),
		prescriberURL: flag.String("prescriber-url", config.PrescriberURL, "Prescription service URL"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API listen address"),
	}
	flag.Parse()
	return flags
}

// buildStore creates the session store selected by the driver flag.
func buildStore(flags Flags) (session.Store, error) {
	dsn := *flags.storeDSN
	switch *flags.storeDriver {
	case "sqlite":
		if dsn == "" {
			dsn = filepath.Join(*flags.stateDir, "plantclinic.db")
		}
		return session.NewSQLiteStore(dsn)
	case "postgres":
		return session.NewPostgresStore(dsn)
	case "redis":
		return session.NewRedisStore(dsn)
	default:
		if dsn == "" {
			dsn = filepath.Join(*flags.stateDir, DefaultSessionDirName)
		}
		return session.NewFileStore(dsn)
	}
}

// buildToolset wires the tool adapters. Without an OpenAI key every
// LLM-backed adapter degrades to its keyword fallback.
func buildToolset(flags Flags) tools.Toolset {
	var llm genai.ClientInterface
	if *flags.openaiKey != "" {
		opts := []genai.Option{genai.WithAPIKey(*flags.openaiKey)}
		if *flags.openaiBaseURL != "" {
			opts = append(opts, genai.WithBaseURL(*flags.openaiBaseURL))
		}
		if *flags.openaiModel != "" {
			opts = append(opts, genai.WithModel(*flags.openaiModel))
		}
		client, err := genai.NewClient(opts...)
		if err != nil {
			slog.Error("Failed to initialize GenAI client, continuing with keyword fallbacks", "error", err)
		} else {
			llm = client
		}
	} else {
		slog.Warn("OPENAI_API_KEY not set, using keyword fallbacks for intent and goodbye detection")
	}

	return tools.Toolset{
		Classifier: tools.NewHTTPClassifier(*flags.classifierURL),
		Prescriber: tools.NewHTTPPrescriber(*flags.prescriberURL),
		Vendors:    tools.NewCatalogVendorLocator(),
		Context:    tools.NewLLMContextExtractor(llm),
		Intent:     tools.NewLLMIntentAnalyzer(llm),
		Followup:   tools.NewLLMFollowupAnalyzer(llm),
		Goodbye:    tools.NewLLMGoodbyeDetector(llm),
	}
}

// Package app wires configuration, storage, clients, and services into a
// running Replay instance shared by the server binary and tests.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/replay/internal/agent"
	"github.com/bobmcallan/replay/internal/clients/eodhd"
	"github.com/bobmcallan/replay/internal/clients/gemini"
	"github.com/bobmcallan/replay/internal/common"
	"github.com/bobmcallan/replay/internal/interfaces"
	"github.com/bobmcallan/replay/internal/services/pricecache"
	"github.com/bobmcallan/replay/internal/services/results"
	"github.com/bobmcallan/replay/internal/services/simulation"
	"github.com/bobmcallan/replay/internal/storage/sqlite"
)

// App holds all initialized services and clients.
type App struct {
	Config         *common.Config
	Logger         *common.Logger
	Storage        interfaces.StorageManager
	PriceClient    interfaces.PriceClient
	GeminiClient   *gemini.Client
	PriceCache     interfaces.PriceCache
	Runtime        interfaces.AgentRuntime
	JobManager     *simulation.Manager
	Worker         *simulation.Worker
	ResultsService *results.Service
	StartupTime    time.Time

	schedulerStop func()
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes storage, clients, and services from configuration.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()

	// Config resolution: explicit path, REPLAY_CONFIG, binary dir, dev tree.
	if configPath == "" {
		configPath = os.Getenv("REPLAY_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "replay.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/replay.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLogger(config.Logging.Level)

	storagePath := config.StoragePath()
	if storagePath != "" && !filepath.IsAbs(storagePath) {
		storagePath = filepath.Join(binDir, storagePath)
	}

	// A DEV deployment starts from a clean slate unless asked to keep data.
	if config.IsDev() && !config.Storage.PreserveDevData {
		if err := os.Remove(storagePath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to reset DEV database: %w", err)
		}
		logger.Info().Str("path", storagePath).Msg("DEV database reset")
	}

	storageManager, err := sqlite.NewManager(logger, storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	ctx := context.Background()

	eodhdKey, err := common.ResolveAPIKey("eodhd_api_key", config.Clients.EODHD.APIKey)
	if err != nil && !config.IsDev() {
		logger.Warn().Msg("EODHD API key not configured - price downloads will fail")
	}

	var priceClient interfaces.PriceClient = eodhd.NewClient(eodhdKey,
		eodhd.WithLogger(logger),
		eodhd.WithBaseURL(config.Clients.EODHD.BaseURL),
		eodhd.WithRateLimit(config.Clients.EODHD.RateLimit),
		eodhd.WithTimeout(config.Clients.EODHD.GetTimeout()),
	)

	universe := config.Simulation.Universe
	if len(universe) == 0 {
		universe = common.DefaultUniverse
	}

	priceCache := pricecache.NewService(storageManager.Prices(), priceClient, universe, logger)

	// PROD drives real Gemini sessions; DEV substitutes the deterministic
	// offline runtime and skips the LLM entirely.
	var geminiClient *gemini.Client
	var runtime interfaces.AgentRuntime
	var llm interfaces.LLMClient

	if config.IsDev() {
		runtime = agent.NewMockRuntime(universe)
		logger.Info().Msg("DEV mode: using deterministic mock agent runtime")
	} else {
		geminiKey, err := common.ResolveAPIKey("gemini_api_key", config.Clients.Gemini.APIKey)
		if err != nil {
			return nil, fmt.Errorf("gemini API key required in PROD mode: %w", err)
		}
		geminiClient, err = gemini.NewClient(ctx, geminiKey,
			gemini.WithLogger(logger),
			gemini.WithModel(config.Clients.Gemini.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		llm = geminiClient
		runtime = agent.NewGeminiRuntime(geminiClient,
			agent.WithRuntimeLogger(logger),
			agent.WithMaxSteps(config.Simulation.MaxAgentSteps),
			agent.WithMaxRetries(config.Simulation.MaxAgentRetries),
		)
	}

	summarizer := simulation.NewSummarizer(llm, logger)
	executor := simulation.NewExecutor(storageManager, priceCache, runtime, summarizer, config, logger)
	worker := simulation.NewWorker(storageManager, priceCache, executor, config, logger)
	jobManager := simulation.NewManager(storageManager, config, logger)
	resultsService := results.NewService(storageManager, logger)

	a := &App{
		Config:         config,
		Logger:         logger,
		Storage:        storageManager,
		PriceClient:    priceClient,
		GeminiClient:   geminiClient,
		PriceCache:     priceCache,
		Runtime:        runtime,
		JobManager:     jobManager,
		Worker:         worker,
		ResultsService: resultsService,
		StartupTime:    startupStart,
	}

	logger.Info().
		Dur("startup", time.Since(startupStart)).
		Str("mode", config.Simulation.DeploymentMode).
		Msg("App initialized")
	return a, nil
}

// LaunchJob runs a created job in the background.
func (a *App) LaunchJob(jobID string) {
	go a.Worker.Run(context.Background(), jobID)
}

// Close releases all resources held by the App.
func (a *App) Close() {
	if a.schedulerStop != nil {
		a.schedulerStop()
		a.schedulerStop = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}

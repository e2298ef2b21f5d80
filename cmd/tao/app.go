package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nugget/tao-agent/internal/agent"
	"github.com/nugget/tao-agent/internal/analyst"
	"github.com/nugget/tao-agent/internal/canonical"
	"github.com/nugget/tao-agent/internal/classify"
	"github.com/nugget/tao-agent/internal/config"
	"github.com/nugget/tao-agent/internal/docsearch"
	"github.com/nugget/tao-agent/internal/embeddings"
	"github.com/nugget/tao-agent/internal/httpkit"
	"github.com/nugget/tao-agent/internal/llm"
	"github.com/nugget/tao-agent/internal/offices"
	"github.com/nugget/tao-agent/internal/openmeteo"
	"github.com/nugget/tao-agent/internal/remote"
	"github.com/nugget/tao-agent/internal/router"
	"github.com/nugget/tao-agent/internal/tools"
)

// pingTimeout bounds the start-up model check.
const pingTimeout = 5 * time.Second

// app holds the wired components shared by the ask, chat and demo
// commands.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	model      *llm.OllamaClient
	classifier *classify.Classifier
	data       *offices.Dataset
	index      *docsearch.Store // nil when embeddings are disabled
	registry   *tools.Registry
	agent      *agent.Agent
	analyst    *analyst.Analyst
	router     *router.Router
}

// newClassifier builds the intent classifier from the configured weights.
func newClassifier(cfg *config.Config) *classify.Classifier {
	return classify.New(canonical.Default(), classify.Weights{
		DomainBonus:      cfg.Classifier.DomainBonus,
		SuperlativeBonus: cfg.Classifier.SuperlativeBonus,
		ProfileBonus:     cfg.Classifier.ProfileBonus,
		ProfilePenalty:   cfg.Classifier.ProfilePenalty,
		MaxConfidence:    cfg.Classifier.MaxConfidence,
		MaxAlternatives:  cfg.Classifier.MaxAlternatives,
	})
}

// loadOffices reads the configured dataset, falling back to the
// built-in sample when none is configured.
func loadOffices(cfg *config.Config, logger *slog.Logger) (*offices.Dataset, error) {
	if cfg.Data.OfficesCSV == "" {
		logger.Info("using built-in office sample")
		return offices.Sample(), nil
	}
	data, err := offices.LoadCSV(cfg.Data.OfficesCSV)
	if err != nil {
		return nil, fmt.Errorf("load offices: %w", err)
	}
	logger.Info("office dataset loaded", "path", cfg.Data.OfficesCSV, "offices", data.Len())
	return data, nil
}

// openIndex opens the document index. It returns nil when embeddings
// are disabled.
func openIndex(cfg *config.Config, logger *slog.Logger) (*docsearch.Store, error) {
	if !cfg.Embeddings.Enabled {
		return nil, nil
	}
	if dir := filepath.Dir(cfg.Data.IndexDB); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}
	emb := embeddings.New(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		Logger:  logger,
	})
	store, err := docsearch.Open(cfg.Data.IndexDB, emb, logger)
	if err != nil {
		return nil, fmt.Errorf("open document index: %w", err)
	}
	logger.Info("embeddings enabled", "model", emb.Model(), "index", cfg.Data.IndexDB)
	return store, nil
}

// remoteConfig converts the retry settings into a caller policy.
func remoteConfig(cfg *config.Config) remote.Config {
	rc := remote.DefaultConfig()
	rc.MaxAttempts = cfg.Remote.MaxAttempts
	rc.BackoffFactor = cfg.Remote.BackoffFactor
	rc.Timeout = cfg.RemoteTimeout()
	rc.RequestsPerSecond = cfg.Remote.RequestsPerSecond
	return rc
}

// newApp wires every component from cfg. The caller must Close the
// returned app.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:        cfg,
		logger:     logger,
		classifier: newClassifier(cfg),
	}

	data, err := loadOffices(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.data = data

	a.model = llm.NewOllamaClient(cfg.Models.OllamaURL,
		llm.WithModel(cfg.Models.Default),
		llm.WithTemperature(cfg.Models.Temperature),
		llm.WithHTTPClient(httpkit.NewClient(httpkit.WithTimeout(cfg.ModelTimeout()))),
		llm.WithLogger(logger),
	)

	a.index, err = openIndex(cfg, logger)
	if err != nil {
		return nil, err
	}
	if a.index != nil {
		// Indexing needs the embedding model. A failure leaves search
		// reporting errors rather than blocking analytics questions.
		if n, err := a.index.EnsurePopulated(ctx, cfg.Data.DocsDir); err != nil {
			logger.Warn("document indexing failed", "dir", cfg.Data.DocsDir, "error", err)
		} else if n > 0 {
			logger.Info("document index populated", "chunks", n)
		}
	}

	rc := remoteConfig(cfg)
	backends := tools.Backends{
		Geocoder: openmeteo.NewGeocoder(cfg.Geocoding.BaseURL, remote.New("geocoding", rc, logger)),
		Weather:  openmeteo.NewWeatherClient(cfg.Weather.BaseURL, remote.New("weather", rc, logger)),
		Offices:  data,
		TopK:     cfg.Agent.TopK,
		Logger:   logger,
	}
	if a.index != nil {
		backends.Search = a.index
	}
	a.registry = tools.NewRegistry(backends)

	agentCfg := agent.Config{
		MaxSteps: cfg.Agent.MaxSteps,
		Logger:   logger,
	}
	if a.index != nil {
		agentCfg.Search = a.index
	}
	a.agent = agent.New(a.model, a.registry, agentCfg)
	a.analyst = analyst.New(a.classifier, data, a.model, logger)

	a.router = router.NewRouter(logger, router.Config{
		Weather:   a.answerWeather,
		Analytics: a.answerAnalytics,
	})
	return a, nil
}

func (a *app) answerWeather(ctx context.Context, query string) (string, error) {
	out := a.agent.Run(ctx, query)
	return out.Answer, out.Err
}

func (a *app) answerAnalytics(ctx context.Context, query string) (string, error) {
	ans, err := a.analyst.Answer(ctx, query)
	return ans.Text, err
}

// checkModel warns when the model server cannot be reached. Analytics
// answers then fall back to calculated ones and the agent cannot run.
func (a *app) checkModel(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := a.model.Ping(ctx); err != nil {
		a.logger.Warn("model server unreachable; analytics answers will be calculated",
			"url", a.cfg.Models.OllamaURL, "error", err)
	}
}

// Close releases the document index.
func (a *app) Close() error {
	if a.index != nil {
		return a.index.Close()
	}
	return nil
}

package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"NewsDigest/internal/config"
	"NewsDigest/internal/httpapi"
	"NewsDigest/internal/infrastructure/crawler"
	"NewsDigest/internal/infrastructure/llm"
	"NewsDigest/internal/infrastructure/report"
	"NewsDigest/internal/infrastructure/storage"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/sources"
	"NewsDigest/internal/usecase"
)

// Application wires configs to the pipeline and the HTTP surface.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	router   http.Handler
	recorder *storage.PostgresRepository
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.File)
	}

	registry, rejected := sources.New(toDescriptors(cfg.Sources))
	for _, err := range rejected {
		baseLogger.Warn("source descriptor rejected", "error", err)
	}
	if registry.Len() == 0 {
		return nil, errors.New("no valid sources configured")
	}

	store, err := report.NewStore(cfg.Report.OutputDir)
	if err != nil {
		return nil, err
	}

	var chatClient ports.ChatClient
	debugPath := filepath.Join(cfg.Report.OutputDir, "debug_api_response.json")
	client, err := llm.New(cfg.Provider, debugPath)
	if err != nil {
		// The pipeline still runs on fallback summaries without a provider.
		baseLogger.Warn("provider client unavailable, summaries will use the local fallback", "error", err)
	} else {
		chatClient = client
	}

	engine := usecase.NewEngine(chatClient, cfg.Provider.MaxRetries, time.Second,
		baseLogger.With("component", "summarizer"))

	crawl := crawler.New(nil, cfg.Crawl.Timeout, baseLogger.With("component", "crawler"))

	var recorder *storage.PostgresRepository
	var runRecorder ports.RunRecorder
	if cfg.Database.DSN != "" {
		recorder, err = storage.Open(cfg.Database.DSN)
		if err != nil {
			baseLogger.Warn("run history disabled", "error", err)
		} else {
			runRecorder = recorder
		}
	}

	coordinator := usecase.NewCoordinator(usecase.CoordinatorDeps{
		Registry:    registry,
		Crawler:     crawl,
		Summarizer:  engine,
		Store:       store,
		Recorder:    runRecorder,
		Logger:      baseLogger.With("component", "coordinator"),
		MaxArticles: cfg.Crawl.MaxArticles,
	})

	handlers := httpapi.NewHandlers(coordinator, store, baseLogger.With("component", "httpapi"))

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		router:   httpapi.NewRouter(handlers),
		recorder: recorder,
	}, nil
}

// Run serves the API until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if a.recorder != nil {
		defer a.recorder.Close()
	}

	server := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "port", a.cfg.Server.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func toDescriptors(cfgs []config.SourceConfig) []sources.Descriptor {
	descs := make([]sources.Descriptor, 0, len(cfgs))
	for _, c := range cfgs {
		descs = append(descs, sources.Descriptor{
			Name:           c.Name,
			URL:            c.URL,
			BaseURL:        c.BaseURL,
			ItemSelector:   c.ItemSelector,
			TitleSelector:  c.TitleSelector,
			LinkSelector:   c.LinkSelector,
			TimeSelector:   c.TimeSelector,
			SourceSelector: c.SourceSelector,
		})
	}
	return descs
}

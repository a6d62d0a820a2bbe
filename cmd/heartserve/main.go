package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"heart-predictor/internal/cfg"
	"heart-predictor/internal/dashboard"
	"heart-predictor/internal/metrics"
	"heart-predictor/internal/ml"
	"heart-predictor/internal/storage"
)

const pruneInterval = time.Hour

func main() {
	if err := cfg.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("env file not loaded")
	}
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setLogLevel(c.LogLevel)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	predictor := ml.LoadPredictor(c.ModelDir, mw)
	m.SetModelLoaded(predictor.Available())

	opts := ml.ServerOptions{
		Addr:           c.ListenAddr,
		EnableCORS:     c.EnableCORS,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: c.RequestTimeout,
		MetricsHandler: promhttp.Handler(),
		HTTPMetrics:    mw,
		IndexHandler:   dashboard.NewFormHandler(predictor, c.EnableFeed),
	}

	store := initializeStorage(c, mw)
	if store != nil {
		defer store.Close()
		opts.Recorder = store
	}

	var publishers ml.Publishers
	if c.EnableFeed {
		feed := dashboard.NewFeed(mw.FeedClients())
		if err := feed.Start(); err != nil {
			log.Fatal().Err(err).Msg("prediction feed start failed")
		}
		defer feed.Stop()
		opts.FeedHandler = feed
		publishers = append(publishers, feed)
	}
	if drift := initializeDrift(predictor, mw); drift != nil {
		opts.Drift = drift
		publishers = append(publishers, drift)
	}
	if len(publishers) > 0 {
		opts.Publisher = publishers
	}

	server := ml.NewModelServer(predictor, opts)

	var wg sync.WaitGroup
	startPruner(ctx, &wg, store, c.RetentionDays)

	go func() {
		log.Info().
			Str("addr", c.ListenAddr).
			Bool("model_loaded", predictor.Available()).
			Bool("feed", c.EnableFeed).
			Bool("recording", store != nil).
			Msg("Starting heart disease prediction server")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			cancel()
		}
	}()

	waitForShutdown(ctx, cancel, &wg)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), c.ShutdownGrace)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown server")
	}
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Str("level", level).Msg("unknown log level, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// initializeStorage opens the prediction log when recording is enabled
func initializeStorage(c cfg.Settings, mw *metrics.MetricsWrapper) *storage.Store {
	if !c.RecordPredictions || c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without persistence")
		return nil
	}
	if n, err := store.CountPredictions(); err == nil {
		log.Info().Str("path", c.DataPath).Int("recorded", n).Msg("prediction log opened")
	}
	return store.WithRecordedCounter(mw.PredictionsRecorded())
}

// initializeDrift monitors request features against the loaded model's training data
func initializeDrift(predictor ml.PredictorInterface, mw *metrics.MetricsWrapper) *ml.DriftMonitor {
	if !predictor.Available() {
		return nil
	}
	drift, err := ml.NewDriftMonitor(predictor.Artifacts().Scaler, ml.DefaultDriftConfig(), mw)
	if err != nil {
		log.Warn().Err(err).Msg("drift monitoring disabled")
		return nil
	}
	return drift
}

// startPruner deletes recorded predictions older than the retention period once an hour
func startPruner(ctx context.Context, wg *sync.WaitGroup, store *storage.Store, retentionDays int) {
	if store == nil || retentionDays <= 0 {
		return
	}
	retention := time.Duration(retentionDays) * 24 * time.Hour

	prune := func() {
		n, err := store.PrunePredictions(time.Now().Add(-retention))
		if err != nil {
			log.Error().Err(err).Msg("prediction pruning failed")
			return
		}
		if n > 0 {
			log.Info().Int("deleted", n).Int("retention_days", retentionDays).Msg("old predictions pruned")
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		prune()
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				prune()
			}
		}
	}()
}

// waitForShutdown waits for shutdown signals and handles graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel() // Cancel context to stop all goroutines

	// Wait for all goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}

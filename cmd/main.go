package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mediafetch/internal/api"
	"mediafetch/internal/config"
	fileutil "mediafetch/internal/file"
	"mediafetch/internal/job"
	"mediafetch/internal/store"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found")
	}

	cfg, err := config.Load("config.yml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if err := fileutil.EnsureDir(cfg.DataDir); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("ensure data dir")
	}

	runner := job.NewRunner(job.Options{
		DataDir:           cfg.DataDir,
		Binary:            cfg.Binary,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		Timeout:           time.Duration(cfg.JobTimeoutSecs) * time.Second,
	})
	fileStore := store.New(cfg.DataDir, time.Duration(cfg.RetentionMinutes)*time.Minute)

	baseCtx, baseCancel := context.WithCancel(context.Background())
	fileStore.StartSweeper(baseCtx, time.Duration(cfg.SweepMinutes)*time.Minute)

	router := setupRouter()
	api.NewAPI(runner, fileStore).RegisterRoutes(router)

	const (
		readHeaderTimeout = 5 * time.Second
		shutdownTimeout   = 10 * time.Second
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Str("data_dir", cfg.DataDir).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdownSignal()
	gracefulShutdown(srv, baseCancel, shutdownTimeout)
}

func setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(api.RequestLogger())
	r.Use(api.CORS())
	return r
}

func waitForShutdownSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")
}

// gracefulShutdown drains HTTP, then cancels the base context so in-flight
// jobs and the retention sweeper stop.
func gracefulShutdown(srv *http.Server, cancelBase context.CancelFunc, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}
	cancelBase()
	log.Info().Msg("server exited cleanly")
}

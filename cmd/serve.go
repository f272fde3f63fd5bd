package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sissi0509/AI-study-buddy/internal/api"
	"github.com/sissi0509/AI-study-buddy/internal/auth"
	"github.com/sissi0509/AI-study-buddy/internal/config"
	"github.com/sissi0509/AI-study-buddy/internal/llm"
	"github.com/sissi0509/AI-study-buddy/internal/store"
	"github.com/sissi0509/AI-study-buddy/internal/tutor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func runServe(cmd *cobra.Command) error {
	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DBPath = p
	}

	if err := store.EnsureDir(cfg.DBPath); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	llmCfg := llm.ConfigFromEnv()
	if err := llmCfg.Validate(); err != nil {
		return err
	}
	provider, err := llm.NewProvider(ctx, llmCfg, st.Events())
	if err != nil {
		return fmt.Errorf("initialize LLM provider: %w", err)
	}

	tutorCfg := tutor.DefaultConfig()
	tutorCfg.SummarizeProblemEvery = cfg.Tutor.SummarizeProblemEvery
	tutorCfg.RefinePatternsThreshold = cfg.Tutor.RefinePatternsThreshold
	tutorCfg.RecentMessagesCount = cfg.Tutor.RecentMessagesCount
	tutorCfg.MinMessagesForSummary = cfg.Tutor.MinMessagesForSummary
	tutorCfg.GenerationTimeout = llmCfg.Timeout

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AuthTokenTTL)
	controller := tutor.NewController(st.Sessions(), st.Topics(), provider, tutorCfg)
	srv := api.NewServer(":"+cfg.Port, api.NewRouter(st, issuer, controller))

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("model", provider.ModelID()).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func setupLogging() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("LOG_LEVEL") == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if os.Getenv("LOG_FORMAT") != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/sahayata/saathi/backend/internal/config"
	"github.com/sahayata/saathi/backend/internal/handler"
	"github.com/sahayata/saathi/backend/internal/lexicon"
	"github.com/sahayata/saathi/backend/internal/service/ai"
	chatservice "github.com/sahayata/saathi/backend/internal/service/chat"
	crisisservice "github.com/sahayata/saathi/backend/internal/service/crisis"
	escalationservice "github.com/sahayata/saathi/backend/internal/service/escalation"
	knowledgeservice "github.com/sahayata/saathi/backend/internal/service/knowledge"
	moodservice "github.com/sahayata/saathi/backend/internal/service/mood"
	"github.com/sahayata/saathi/backend/internal/service/orchestrator"
	"github.com/sahayata/saathi/backend/internal/service/pipeline"
	privacyservice "github.com/sahayata/saathi/backend/internal/service/privacy"
	"github.com/sahayata/saathi/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Err(err).Msg("no .env file, continuing with system environment only")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	lex, err := lexicon.Load(cfg.Crisis.LexiconPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load lexicon")
	}
	logger.Info().Str("version", lex.Version).Int("entries", len(lex.Entries)).Msg("lexicon loaded")

	data := openDataStore(ctx, cfg.Store, logger)
	defer data.Close()

	cooldown := openCooldownStore(ctx, cfg.Store, logger)
	defer cooldown.Close()

	var (
		aiSvc     *ai.Service
		chatModel model.ChatModel
	)
	if cfg.AI.Enabled() {
		aiSvc, err = ai.NewService(ctx, cfg.AI, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("model initialization failed, replies degrade to the safe tier")
		} else {
			chatModel = aiSvc.GetChatModel()
			logger.Info().Str("model", cfg.AI.Model).Msg("generation model ready")
		}
	} else {
		logger.Warn().Msg("model credentials not configured, replies degrade to the safe tier")
	}

	crisisSvc, err := crisisservice.NewService(ctx, lex, chatModel, cfg.Crisis, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize crisis scorer")
	}
	moodSvc, err := moodservice.NewService(ctx, lex, chatModel, cfg.Mood, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize mood inferencer")
	}

	knowledgeSvc := knowledgeservice.NewService(cfg.Knowledge, logger)
	if !cfg.Knowledge.Enabled() {
		logger.Info().Msg("knowledge index not configured, replies stay ungrounded")
	}

	directory := escalationservice.NewMemoryDirectory(
		escalationservice.ParseMembers(os.Getenv("INSTITUTION_DIRECTORY")))

	conversations := chatservice.NewService(data)
	privacySvc := privacyservice.NewService(data, logger)
	escalationSvc := escalationservice.NewService(data, cooldown, directory, cfg.Escalation.CooldownWindow, logger)

	var generator orchestrator.Generator
	if aiSvc != nil {
		generator = aiSvc
	}
	responder := orchestrator.New(generator, cfg.AI.GenerateTimeout, logger)

	controller := pipeline.NewController(
		conversations, crisisSvc, moodSvc, knowledgeSvc, responder, escalationSvc, data, logger)

	router := handler.NewRouter(controller, conversations, privacySvc, directory, data)

	startServer(ctx, cfg.Server, router, logger)
}

func openDataStore(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) store.DataStore {
	if cfg.DatabasePath == "" {
		logger.Info().Msg("DATABASE_PATH not set, using in-memory store")
		return store.NewMemoryStore()
	}
	s, err := store.NewSQLiteStore(ctx, cfg.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("failed to open database")
	}
	logger.Info().Str("path", cfg.DatabasePath).Msg("sqlite store ready")
	return s
}

func openCooldownStore(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) store.CooldownStore {
	if cfg.RedisURL == "" {
		logger.Info().Msg("REDIS_URL not set, using in-process escalation cooldown")
		return store.NewMemoryCooldownStore()
	}
	s, err := store.NewRedisCooldownStore(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	logger.Info().Msg("redis cooldown store ready")
	return s
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger zerolog.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", serverCfg.Addr).Msg("saathi backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/businessboom/server/adapters/audiostore"
	"github.com/businessboom/server/adapters/capture"
	"github.com/businessboom/server/adapters/llm"
	"github.com/businessboom/server/adapters/memory"
	"github.com/businessboom/server/adapters/mongo"
	"github.com/businessboom/server/adapters/postgres"
	"github.com/businessboom/server/adapters/stt"
	"github.com/businessboom/server/adapters/video"
	"github.com/businessboom/server/domain/repositories"
	"github.com/businessboom/server/internal/api"
	"github.com/businessboom/server/internal/auth"
	"github.com/businessboom/server/internal/config"
	"github.com/businessboom/server/internal/logger"
	"github.com/businessboom/server/internal/saga"
	"github.com/businessboom/server/internal/websocket"
	"github.com/businessboom/server/usecase"
)

const audioURLPrefix = "/uploads/audio/"

type languageModel interface {
	repositories.ChatCompletion
	repositories.TextGenerator
}

// storage bundles the repositories of the configured driver
type storage struct {
	users         repositories.UserRepository
	businesses    repositories.BusinessRepository
	conversations repositories.ConversationRepository
	close         func(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Server.LogFilePath, cfg.Server.Production())
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize adapters
	store, err := openStorage(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}

	model, err := newLanguageModel(ctx, cfg.LLM, log)
	if err != nil {
		log.Fatal("Failed to initialize language model", zap.Error(err))
	}

	transcriber, closeSpeech, err := newTranscriber(ctx, cfg.Speech, log)
	if err != nil {
		log.Fatal("Failed to initialize speech to text", zap.Error(err))
	}

	videoProvider, err := newVideoProvider(cfg.Video, log)
	if err != nil {
		log.Fatal("Failed to initialize video provider", zap.Error(err))
	}

	recorder, err := capture.NewFileCapture(cfg.Audio.CaptureDir, cfg.Audio.MaxBytes, log)
	if err != nil {
		log.Fatal("Failed to initialize audio capture", zap.Error(err))
	}

	audio, err := audiostore.NewLocal(cfg.Audio.UploadDir, cfg.Audio.FallbackDir, audioURLPrefix, log)
	if err != nil {
		log.Fatal("Failed to initialize audio storage", zap.Error(err))
	}

	// Initialize usecase services
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, auth.DefaultTokenTTL)
	authService := usecase.NewAuthService(store.users, tokens, log)
	businessService := usecase.NewBusinessService(store.businesses, store.conversations, log)
	contextResolver := usecase.NewContextResolver(businessService, cfg.Session.ContextTTL, cfg.Session.PromptTimeout, log)
	analysisService := usecase.NewAnalysisService(businessService, model, log)

	deps := usecase.ControllerDeps{
		Persistence: usecase.NewConversationStore(store.conversations, audio),
		Chat:        model,
		Capture:     recorder,
		Fallback:    audio,
		Context:     contextResolver,
		Sagas:       saga.NewManager(log),
		Logger:      log,
	}
	if videoProvider != nil {
		deps.Video = videoProvider
	}
	if transcriber != nil {
		deps.Transcriber = transcriber
	}

	registry := usecase.NewSessionRegistry(deps)
	reaper := usecase.NewSessionReaper(registry, cfg.Session.MaxDuration, cfg.Session.SweepInterval, log)
	reaper.Start()

	// Initialize WebSocket hub
	hub := websocket.NewHub(registry, cfg.Server.AllowOrigins, log)
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Static(audioURLPrefix, cfg.Audio.UploadDir)

	// Initialize API routes
	api.InitRoutes(e, api.Dependencies{
		Auth:       authService,
		Tokens:     tokens,
		Businesses: businessService,
		Context:    contextResolver,
		Analysis:   analysisService,
		Sessions:   registry,
		Hub:        hub,
	}, log)

	go func() {
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	log.Info("Server started",
		zap.String("addr", cfg.Server.Addr),
		zap.String("env", cfg.Server.Env),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("llm", cfg.LLM.Provider),
		zap.String("transcription", cfg.Speech.Provider),
		zap.String("video", cfg.Video.Provider))

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	log.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	reaper.Stop()
	for _, controller := range registry.Controllers() {
		if controller.State() != usecase.StateActive {
			continue
		}
		if _, err := controller.End(shutdownCtx); err != nil {
			log.Warn("Failed to end session on shutdown", zap.String("userID", controller.UserID()), zap.Error(err))
		}
	}
	stopHub()

	if closeSpeech != nil {
		if err := closeSpeech(); err != nil {
			log.Warn("Failed to close speech client", zap.Error(err))
		}
	}
	if err := store.close(shutdownCtx); err != nil {
		log.Warn("Failed to close storage", zap.Error(err))
	}

	log.Info("Server exited")
}

func openStorage(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (*storage, error) {
	switch cfg.Driver {
	case config.StorageMongo:
		client, err := mongo.NewClient(ctx, mongo.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase}, log)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureIndexes(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, err
		}
		return &storage{
			users:         mongo.NewUserRepository(client.Database),
			businesses:    mongo.NewBusinessRepository(client.Database),
			conversations: mongo.NewConversationRepository(client.Database, log),
			close:         client.Close,
		}, nil

	case config.StoragePostgres:
		db, err := postgres.Open(cfg.PostgresDSN, log)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			_ = postgres.Close(db)
			return nil, err
		}
		return &storage{
			users:         postgres.NewUserRepository(db),
			businesses:    postgres.NewBusinessRepository(db),
			conversations: postgres.NewConversationRepository(db),
			close:         func(context.Context) error { return postgres.Close(db) },
		}, nil

	default:
		log.Warn("Using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return &storage{
			users:         store.Users(),
			businesses:    store.Businesses(),
			conversations: store.Conversations(),
			close:         func(context.Context) error { return nil },
		}, nil
	}
}

func newLanguageModel(ctx context.Context, cfg config.LLMConfig, log *zap.Logger) (languageModel, error) {
	if cfg.Provider == config.ProviderMock {
		log.Warn("Using mock language model")
		return llm.MockLLM{}, nil
	}

	gemini, err := llm.NewGeminiLLM(ctx, llm.GeminiConfig{
		APIKey:          cfg.APIKey,
		Model:           cfg.Model,
		Temperature:     cfg.Temperature,
		TopP:            cfg.TopP,
		TopK:            cfg.TopK,
		MaxOutputTokens: cfg.MaxOutputTokens,
		TimeoutSeconds:  cfg.TimeoutSeconds,
	}, log)
	if err != nil {
		return nil, err
	}
	return gemini, nil
}

// newTranscriber returns nil when transcription is disabled
func newTranscriber(ctx context.Context, cfg config.SpeechConfig, log *zap.Logger) (usecase.Transcriber, func() error, error) {
	audioConfig := repositories.AudioConfig{
		SampleRate: cfg.SampleRate,
		Encoding:   cfg.Encoding,
		Language:   cfg.Language,
	}

	switch cfg.Provider {
	case config.ProviderNone:
		log.Info("Audio transcription disabled")
		return nil, nil, nil
	case config.ProviderMock:
		return usecase.NewSpeechTranscriber(stt.NewMockSpeechToText(log), audioConfig, log), nil, nil
	default:
		client, err := stt.NewGoogleSpeechToText(ctx, log)
		if err != nil {
			return nil, nil, err
		}
		return usecase.NewSpeechTranscriber(client, audioConfig, log), client.Close, nil
	}
}

// newVideoProvider returns nil when video sessions are disabled
func newVideoProvider(cfg config.VideoConfig, log *zap.Logger) (repositories.VideoProvider, error) {
	switch cfg.Provider {
	case config.ProviderNone:
		log.Info("Video sessions disabled")
		return nil, nil
	case config.ProviderDemo:
		return video.NewDemoProvider(log), nil
	default:
		tavus, err := video.NewTavusProvider(video.TavusConfig{
			APIKey:    cfg.APIKey,
			ReplicaID: cfg.ReplicaID,
			BaseURL:   cfg.BaseURL,
		}, log)
		if err != nil {
			return nil, err
		}
		return tavus, nil
	}
}

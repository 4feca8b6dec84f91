package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kaizenisitmax-pixel/voxi/pkg/audio"
	"github.com/kaizenisitmax-pixel/voxi/pkg/backend"
	"github.com/kaizenisitmax-pixel/voxi/pkg/config"
	"github.com/kaizenisitmax-pixel/voxi/pkg/db"
	"github.com/kaizenisitmax-pixel/voxi/pkg/event"
	"github.com/kaizenisitmax-pixel/voxi/pkg/logger"
	"github.com/kaizenisitmax-pixel/voxi/pkg/service"
)

// realtimeURL derives the websocket endpoint from the backend base URL.
func realtimeURL(baseURL string) string {
	u := strings.Replace(baseURL, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/realtime/v1/websocket"
}

// main starts the device-side core: the local HTTP/WebSocket server the UI
// shell talks to, the backend clients, and the realtime subscription.
func main() {
	logger.Init(slog.LevelInfo)
	log := logger.Get()

	if _, err := config.EnsureDefaultConfig(); err != nil {
		log.Warn("Failed to write default config", "error", err)
	}
	cfg, configFile, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	log.Info("Config loaded", "file", configFile, "workspace", cfg.Backend.WorkspaceID)

	dbPath, err := db.DefaultPath()
	if err != nil {
		log.Error("Failed to resolve cache path", "error", err)
		os.Exit(1)
	}
	database, err := db.Open(dbPath)
	if err != nil {
		log.Error("Failed to open cache database", "error", err)
		os.Exit(1)
	}

	store := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.AnonKey, cfg.Backend.AccessToken, log)
	storage := backend.NewStorage(cfg.Backend.BaseURL, cfg.Backend.AnonKey, cfg.Backend.AccessToken, log)
	ai := backend.NewAI(cfg.AI.BaseURL, log)

	cardService := service.NewCardService(store, database, cfg.Backend.WorkspaceID, cfg.Backend.UserID, log)
	customerService := service.NewCustomerService(store, database, cfg.Backend.WorkspaceID, log)
	uploadService := service.NewUploadService(storage, cfg.Bucket(), log)
	speechService := service.NewSpeechService(ai, audio.NewExecPlayer(), audio.NewExecSynthesizer(), cfg.Language(), cfg.Rate(), cfg.Pitch(), log)
	captureService := service.NewCaptureService(audio.NewExecRecorder(), uploadService, ai, cardService, customerService, speechService, cfg.Backend.WorkspaceID, cfg.Backend.IndustryID, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Remote changes invalidate the cache; refetch through the store client.
	event.On(event.BackendChanged, func(ev event.Event) {
		if err := cardService.Refresh(ctx); err != nil {
			log.Warn("Refresh after backend change failed", "error", err)
		}
	})

	realtime := backend.NewRealtime(realtimeURL(cfg.Backend.BaseURL), cfg.Backend.AnonKey, cfg.Backend.WorkspaceID, log)
	go realtime.Run(ctx)

	// Warm the cache; failure is not fatal, the board loads stale and heals
	// on the next realtime notification.
	if err := cardService.Refresh(ctx); err != nil {
		log.Warn("Initial card refresh failed", "error", err)
	}

	server := NewServer(cfg, cardService, captureService, speechService, log)
	if err := server.Start(ctx); err != nil {
		log.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
	log.Info("Server started", "host", cfg.Host(), "port", server.port)

	<-ctx.Done()
	log.Info("Shutting down")
}

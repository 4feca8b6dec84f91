package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kaizenisitmax-pixel/voxi/pkg/config"
	"github.com/kaizenisitmax-pixel/voxi/pkg/event"
	"github.com/kaizenisitmax-pixel/voxi/pkg/handler"
	"github.com/kaizenisitmax-pixel/voxi/pkg/models"
	"github.com/kaizenisitmax-pixel/voxi/pkg/service"
)

type Server struct {
	ginEngine *gin.Engine
	logger    *slog.Logger
	host      string
	port      int
}

func NewServer(cfg *config.AppConfig, cards *service.CardService, captures *service.CaptureService, speech *service.SpeechService, logger *slog.Logger) *Server {
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())

	// CORS middleware: allow the mobile webview schemes and local dev origins.
	ginEngine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// No Origin header means it's not a browser CORS request.
		if origin != "" {
			allowed := false

			// Mobile shell webview schemes.
			if strings.HasPrefix(origin, "capacitor://localhost") || strings.HasPrefix(origin, "ionic://localhost") {
				allowed = true
			}

			// Typical localhost dev origins.
			if strings.HasPrefix(origin, "http://localhost") ||
				strings.HasPrefix(origin, "http://127.0.0.1") ||
				strings.HasPrefix(origin, "https://localhost") ||
				strings.HasPrefix(origin, "https://127.0.0.1") {
				allowed = true
			}

			if allowed {
				// Echo the Origin so custom schemes satisfy the browser.
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
			} else {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	server := &Server{
		ginEngine: ginEngine,
		logger:    logger,
		host:      cfg.Host(),
		port:      cfg.Port(),
	}

	server.SetupRoutes(cards, captures, speech)

	return server
}

func (s *Server) Start(ctx context.Context) error {
	// VOXI_PORT overrides the configured port, useful for shell dev builds.
	port := s.port
	if v := os.Getenv("VOXI_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p <= 65535 {
			port = p
		} else {
			s.logger.Warn("Invalid VOXI_PORT value, falling back to config", "value", v)
		}
	}

	addr := fmt.Sprintf("%s:%d", s.host, port)
	srv := &http.Server{Addr: addr, Handler: s.ginEngine}

	// Listen first; a bound port elsewhere should fail startup immediately.
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	} else {
		s.port = port
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	// Non-blocking: surface an immediate startup failure, otherwise let main
	// continue.
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	default:
	}
	return nil
}

func (s *Server) SetupRoutes(cards *service.CardService, captures *service.CaptureService, speech *service.SpeechService) {
	cardHandler := handler.NewCardHandler(cards, s.logger)
	captureHandler := handler.NewCaptureHandler(captures, s.logger)
	speechHandler := handler.NewSpeechHandler(speech, s.logger)
	wsHandler := event.NewWSHandler(s.logger)

	// API group
	// /api
	apiGroup := s.ginEngine.Group("/api")

	// Runtime info (the shell discovers its base URLs here)
	apiGroup.GET("/runtime", func(c *gin.Context) {
		host := s.host
		port := s.port
		if port == 0 {
			port = config.DefaultPort
		}

		c.JSON(http.StatusOK, models.RuntimeInfo{
			HTTPBaseURL: fmt.Sprintf("http://%s:%d", host, port),
			WSBaseURL:   fmt.Sprintf("ws://%s:%d", host, port),
			Port:        port,
		})
	})

	// Event stream for the UI shell
	// /api/events/ws
	apiGroup.GET("/events/ws", wsHandler.Handle)

	// Card board API routes
	// /api/cards
	cardsGroup := apiGroup.Group("/cards")
	{
		cardsGroup.GET("", cardHandler.List)
		cardsGroup.POST("/refresh", cardHandler.Refresh)
		cardsGroup.POST(":id/messages", cardHandler.RegisterMessage)
		cardsGroup.POST(":id/read", cardHandler.MarkRead)
		cardsGroup.POST(":id/issue", cardHandler.ReportIssue)
		cardsGroup.POST(":id/done", cardHandler.CompleteJob)
		cardsGroup.POST(":id/archive", cardHandler.Archive)
	}

	// Capture pipeline API routes
	// /api/captures
	capturesGroup := apiGroup.Group("/captures")
	{
		capturesGroup.POST("", captureHandler.Start)
		capturesGroup.GET(":id", captureHandler.Get)
		capturesGroup.POST(":id/file", captureHandler.AttachFile)
		capturesGroup.POST(":id/stop", captureHandler.StopRecording)
		capturesGroup.POST(":id/text", captureHandler.SubmitText)
		capturesGroup.PUT(":id/purpose", captureHandler.SetPurpose)
		capturesGroup.POST(":id/purpose/voice", captureHandler.TranscribePurpose)
		capturesGroup.POST(":id/analyze", captureHandler.Analyze)
		capturesGroup.POST(":id/cancel", captureHandler.Cancel)
		capturesGroup.POST(":id/retry", captureHandler.Retry)
		capturesGroup.PUT(":id/result", captureHandler.UpdateResult)
		capturesGroup.PUT(":id/insights", captureHandler.SelectInsights)
		capturesGroup.POST(":id/confirm", captureHandler.Confirm)
		capturesGroup.DELETE(":id", captureHandler.Close)
	}

	// Voice playback
	// /api/speak
	apiGroup.POST("/speak", speechHandler.Speak)
}

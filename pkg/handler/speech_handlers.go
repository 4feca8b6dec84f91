package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kaizenisitmax-pixel/voxi/pkg/models"
	"github.com/kaizenisitmax-pixel/voxi/pkg/service"
)

// SpeechHandler exposes voice playback to the UI shell.
type SpeechHandler struct {
	Svc    *service.SpeechService
	Logger *slog.Logger
}

func NewSpeechHandler(svc *service.SpeechService, logger *slog.Logger) *SpeechHandler {
	return &SpeechHandler{Svc: svc, Logger: logger}
}

// Speak starts playback and returns immediately. The UI tracks progress via
// the speech events on the websocket.
func (h *SpeechHandler) Speak(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "Invalid request parameters: " + err.Error()})
		return
	}
	go h.Svc.Speak(context.Background(), req.Text)
	c.JSON(http.StatusAccepted, models.Response{Code: 202, Message: "Speaking"})
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kaizenisitmax-pixel/voxi/pkg/models"
	"github.com/kaizenisitmax-pixel/voxi/pkg/service"
)

// CardHandler provides HTTP handlers for the card board.
type CardHandler struct {
	Svc    *service.CardService
	Logger *slog.Logger
}

func NewCardHandler(svc *service.CardService, logger *slog.Logger) *CardHandler {
	return &CardHandler{Svc: svc, Logger: logger}
}

// List returns the ranked board: open cards in working order, done cards
// below them.
func (h *CardHandler) List(c *gin.Context) {
	part, err := h.Svc.List()
	if err != nil {
		h.Logger.Error("Failed to list cards", "error", err)
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: "Failed to list cards: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "OK", Data: models.CardListResponse{
		Open:  part.Open,
		Done:  part.Done,
		Total: len(part.Open) + len(part.Done),
	}})
}

// Refresh pulls the workspace's cards from the backend into the local cache.
func (h *CardHandler) Refresh(c *gin.Context) {
	if err := h.Svc.Refresh(c.Request.Context()); err != nil {
		h.Logger.Error("Card refresh failed", "error", err)
		c.JSON(http.StatusBadGateway, models.Response{Code: 502, Message: "Refresh failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "OK"})
}

func (h *CardHandler) RegisterMessage(c *gin.Context) {
	var req struct {
		AuthorID string `json:"author_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "Invalid request parameters: " + err.Error()})
		return
	}
	if err := h.Svc.RegisterMessage(c.Request.Context(), c.Param("id"), req.AuthorID); err != nil {
		h.Logger.Error("Failed to register message", "cardId", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "OK"})
}

func (h *CardHandler) MarkRead(c *gin.Context) {
	if err := h.Svc.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		h.Logger.Error("Failed to mark card read", "cardId", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "OK"})
}

// ReportIssue escalates a card to urgent priority.
func (h *CardHandler) ReportIssue(c *gin.Context) {
	if err := h.Svc.ReportIssue(c.Request.Context(), c.Param("id")); err != nil {
		h.Logger.Error("Failed to report issue", "cardId", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "OK"})
}

// CompleteJob marks a card done and stamps completion time.
func (h *CardHandler) CompleteJob(c *gin.Context) {
	if err := h.Svc.CompleteJob(c.Request.Context(), c.Param("id")); err != nil {
		h.Logger.Error("Failed to complete job", "cardId", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "OK"})
}

// Archive hides a card from the board without deleting it remotely.
func (h *CardHandler) Archive(c *gin.Context) {
	if err := h.Svc.Archive(c.Request.Context(), c.Param("id")); err != nil {
		h.Logger.Error("Failed to archive card", "cardId", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, models.Response{Code: 500, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "OK"})
}

// HTTP handlers driving the capture pipeline from the UI shell
package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kaizenisitmax-pixel/voxi/pkg/models"
	"github.com/kaizenisitmax-pixel/voxi/pkg/service"
)

// CaptureHandler provides HTTP handlers for capture sessions.
type CaptureHandler struct {
	Svc    *service.CaptureService
	Logger *slog.Logger
}

func NewCaptureHandler(svc *service.CaptureService, logger *slog.Logger) *CaptureHandler {
	return &CaptureHandler{Svc: svc, Logger: logger}
}

// captureStatus maps service errors onto HTTP status codes.
func captureStatus(err error) int {
	var invalid *service.InvalidTransitionError
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrRecordingTooShort), errors.Is(err, service.ErrEmptyText):
		return http.StatusUnprocessableEntity
	case errors.As(err, &invalid):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *CaptureHandler) reply(c *gin.Context, sess models.CaptureSession, err error) {
	if err != nil {
		status := captureStatus(err)
		h.Logger.Warn("Capture operation failed", "sessionId", sess.ID, "state", sess.State, "error", err)
		c.JSON(status, models.Response{Code: status, Message: err.Error(), Data: sess})
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "OK", Data: sess})
}

func (h *CaptureHandler) Start(c *gin.Context) {
	var req struct {
		Source models.CaptureSource `json:"source" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "Invalid request parameters: " + err.Error()})
		return
	}
	sess, err := h.Svc.Start(c.Request.Context(), req.Source)
	if err != nil {
		h.Logger.Error("Failed to start capture", "source", req.Source, "error", err)
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: err.Error()})
		return
	}
	h.Logger.Info("Capture started", "sessionId", sess.ID, "source", sess.Source)
	c.JSON(http.StatusCreated, models.Response{Code: 200, Message: "Created successfully", Data: sess})
}

func (h *CaptureHandler) Get(c *gin.Context) {
	sess, err := h.Svc.Get(c.Param("id"))
	h.reply(c, sess, err)
}

func (h *CaptureHandler) AttachFile(c *gin.Context) {
	var req struct {
		FilePath string `json:"file_path" binding:"required"`
		FileName string `json:"file_name" binding:"required"`
		MimeType string `json:"mime_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "Invalid request parameters: " + err.Error()})
		return
	}
	sess, err := h.Svc.AttachFile(c.Param("id"), req.FilePath, req.FileName, req.MimeType)
	h.reply(c, sess, err)
}

func (h *CaptureHandler) StopRecording(c *gin.Context) {
	sess, err := h.Svc.StopRecording(c.Param("id"))
	h.reply(c, sess, err)
}

func (h *CaptureHandler) SubmitText(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "Invalid request parameters: " + err.Error()})
		return
	}
	sess, err := h.Svc.SubmitText(c.Param("id"), req.Text)
	h.reply(c, sess, err)
}

func (h *CaptureHandler) SetPurpose(c *gin.Context) {
	var req struct {
		Purpose string `json:"purpose"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "Invalid request parameters: " + err.Error()})
		return
	}
	sess, err := h.Svc.SetPurpose(c.Param("id"), req.Purpose)
	h.reply(c, sess, err)
}

// TranscribePurpose accepts a short spoken annotation as multipart audio.
// Transcription failure is not fatal to the capture; the UI shows a notice
// and the purpose field stays empty.
func (h *CaptureHandler) TranscribePurpose(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "Audio file is required"})
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "Failed to read audio file"})
		return
	}

	sess, err := h.Svc.TranscribePurpose(c.Request.Context(), c.Param("id"), header.Filename, audio)
	if err != nil {
		var invalid *service.InvalidTransitionError
		if errors.Is(err, service.ErrSessionNotFound) || errors.As(err, &invalid) {
			h.reply(c, sess, err)
			return
		}
		// Purpose cleared, capture continues.
		c.JSON(http.StatusOK, models.Response{Code: 200, Message: "Transcription failed, purpose cleared", Data: sess})
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "OK", Data: sess})
}

func (h *CaptureHandler) Analyze(c *gin.Context) {
	sess, err := h.Svc.Proceed(c.Param("id"))
	h.reply(c, sess, err)
}

func (h *CaptureHandler) Cancel(c *gin.Context) {
	sess, err := h.Svc.Cancel(c.Param("id"))
	h.reply(c, sess, err)
}

func (h *CaptureHandler) Retry(c *gin.Context) {
	sess, err := h.Svc.Retry(c.Param("id"))
	h.reply(c, sess, err)
}

func (h *CaptureHandler) UpdateResult(c *gin.Context) {
	var req models.AnalysisResult
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "Invalid request parameters: " + err.Error()})
		return
	}
	sess, err := h.Svc.UpdateResult(c.Param("id"), req)
	h.reply(c, sess, err)
}

func (h *CaptureHandler) SelectInsights(c *gin.Context) {
	var req struct {
		Indexes []int `json:"indexes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: "Invalid request parameters: " + err.Error()})
		return
	}
	sess, err := h.Svc.SelectInsights(c.Param("id"), req.Indexes)
	h.reply(c, sess, err)
}

func (h *CaptureHandler) Confirm(c *gin.Context) {
	sess, err := h.Svc.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.reply(c, sess, err)
		return
	}
	h.Logger.Info("Capture committed", "sessionId", sess.ID)
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "Created successfully", Data: sess})
}

func (h *CaptureHandler) Close(c *gin.Context) {
	h.Svc.Close(c.Param("id"))
	c.JSON(http.StatusOK, models.Response{Code: 200, Message: "Closed"})
}

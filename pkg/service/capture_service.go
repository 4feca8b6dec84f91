// Capture pipeline orchestrator - drives one capture flow from raw input to
// persisted cards
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kaizenisitmax-pixel/voxi/pkg/audio"
	"github.com/kaizenisitmax-pixel/voxi/pkg/backend"
	"github.com/kaizenisitmax-pixel/voxi/pkg/event"
	"github.com/kaizenisitmax-pixel/voxi/pkg/models"
)

const (
	// Recordings shorter than this are rejected without calling the backend.
	minRecordingDuration = 300 * time.Millisecond

	// Combined upload+analysis limit, kept under the upstream 60s gateway
	// timeout.
	analysisTimeout = 55 * time.Second

	// Limit for the purpose voice sub-flow transcription.
	purposeTimeout = 15 * time.Second

	// After done, the session auto-closes when playback finishes or this
	// linger elapses, whichever comes first.
	doneLinger = 8 * time.Second
)

var (
	ErrSessionNotFound   = errors.New("capture session not found")
	ErrRecordingTooShort = errors.New("recording too short")
	ErrEmptyText         = errors.New("empty text")
)

// InvalidTransitionError is returned when an operation does not apply to the
// session's current state.
type InvalidTransitionError struct {
	From models.CaptureState
	To   models.CaptureState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("capture: illegal transition %s -> %s", e.From, e.To)
}

// transitions lists the legal state changes; everything else is rejected.
// processing can only settle into confirm or error (or be cancelled back to
// choose) - creating and done are reachable solely through confirm.
var transitions = map[models.CaptureState][]models.CaptureState{
	models.StateChoose:     {models.StateRecording, models.StateText, models.StatePurposeAsk},
	models.StateRecording:  {models.StateProcessing, models.StateChoose},
	models.StateText:       {models.StateProcessing, models.StateChoose},
	models.StatePurposeAsk: {models.StateProcessing, models.StateChoose},
	models.StateProcessing: {models.StateConfirm, models.StateError, models.StateChoose},
	models.StateConfirm:    {models.StateCreating},
	models.StateCreating:   {models.StateDone, models.StateConfirm},
	models.StateDone:       {},
	models.StateError:      {models.StateChoose},
}

func canTransition(from, to models.CaptureState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AnalysisClient is the remote analysis surface the orchestrator needs.
type AnalysisClient interface {
	SmartCreate(ctx context.Context, req *backend.SmartCreateRequest) (*models.AnalysisResult, error)
	Transcribe(ctx context.Context, fileName string, audio []byte) (string, error)
}

// Uploader moves captured media within reach of the analysis endpoint.
type Uploader interface {
	Upload(ctx context.Context, filePath, mimeType, fileName, containerID string) (*models.UploadResult, error)
}

// CardCreator persists cards at commit time.
type CardCreator interface {
	Create(ctx context.Context, card *models.Card) (*models.Card, error)
}

// CustomerResolver matches or creates the customer a card links to.
type CustomerResolver interface {
	Resolve(ctx context.Context, companyName string) (*models.Customer, error)
}

// Speaker plays the confirmation text; it blocks until playback settles and
// never fails.
type Speaker interface {
	Speak(ctx context.Context, text string)
}

type captureSession struct {
	mu sync.Mutex
	s  models.CaptureSession
}

// CaptureService owns all live capture sessions. Each session runs its
// stages strictly sequentially; sessions are independent of each other.
type CaptureService struct {
	sessions sync.Map // sessionID -> *captureSession

	recorder  audio.Recorder
	uploader  Uploader
	ai        AnalysisClient
	cards     CardCreator
	customers CustomerResolver
	speaker   Speaker

	workspaceID string
	industryID  string
	logger      *slog.Logger
	now         func() time.Time
}

// NewCaptureService creates the orchestrator.
func NewCaptureService(recorder audio.Recorder, uploader Uploader, ai AnalysisClient, cards CardCreator, customers CustomerResolver, speaker Speaker, workspaceID, industryID string, logger *slog.Logger) *CaptureService {
	return &CaptureService{
		recorder:    recorder,
		uploader:    uploader,
		ai:          ai,
		cards:       cards,
		customers:   customers,
		speaker:     speaker,
		workspaceID: workspaceID,
		industryID:  industryID,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *CaptureService) handle(sessionID string) (*captureSession, bool) {
	v, ok := s.sessions.Load(sessionID)
	if !ok {
		return nil, false
	}
	return v.(*captureSession), true
}

// advanceLocked validates and applies a state change. Caller holds h.mu.
func (s *CaptureService) advanceLocked(h *captureSession, to models.CaptureState, message string) error {
	if !canTransition(h.s.State, to) {
		return &InvalidTransitionError{From: h.s.State, To: to}
	}
	h.s.State = to
	h.s.ErrorMessage = message
	event.Emit(event.CaptureStateChangedEvent{SessionID: h.s.ID, State: string(to), Message: message})
	return nil
}

// Start opens a new capture session. Voice starts recording immediately;
// photo/document sessions wait in choose for the picked file; text sessions
// go straight to the typed-note entry state.
func (s *CaptureService) Start(ctx context.Context, source models.CaptureSource) (models.CaptureSession, error) {
	sess := models.CaptureSession{
		ID:        uuid.New().String(),
		Source:    source,
		State:     models.StateChoose,
		CreatedAt: s.now(),
	}

	switch source {
	case models.SourceVoice:
		if err := s.recorder.Start(ctx); err != nil {
			return models.CaptureSession{}, fmt.Errorf("start recording: %w", err)
		}
		sess.State = models.StateRecording
		sess.RecordingStartedAt = s.now()
	case models.SourceText:
		sess.State = models.StateText
	case models.SourcePhoto, models.SourceDocument:
		// Stays in choose until the device picker delivers a file.
	default:
		return models.CaptureSession{}, fmt.Errorf("unknown capture source %q", source)
	}

	h := &captureSession{s: sess}
	s.sessions.Store(sess.ID, h)
	event.Emit(event.CaptureStateChangedEvent{SessionID: sess.ID, State: string(sess.State)})
	return sess, nil
}

// AttachFile registers the picked photo/document and moves to the purpose
// question.
func (s *CaptureService) AttachFile(sessionID, filePath, fileName, mimeType string) (models.CaptureSession, error) {
	h, ok := s.handle(sessionID)
	if !ok {
		return models.CaptureSession{}, ErrSessionNotFound
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.s.Source != models.SourcePhoto && h.s.Source != models.SourceDocument {
		return h.s, fmt.Errorf("capture: source %s takes no file", h.s.Source)
	}
	if err := s.advanceLocked(h, models.StatePurposeAsk, ""); err != nil {
		return h.s, err
	}
	h.s.FilePath = filePath
	h.s.FileName = fileName
	h.s.MimeType = mimeType
	return h.s, nil
}

// StopRecording ends the voice capture. Recordings under the minimum
// duration are rejected and the session returns to choose without any
// backend call.
func (s *CaptureService) StopRecording(sessionID string) (models.CaptureSession, error) {
	h, ok := s.handle(sessionID)
	if !ok {
		return models.CaptureSession{}, ErrSessionNotFound
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.s.State != models.StateRecording {
		return h.s, &InvalidTransitionError{From: h.s.State, To: models.StateProcessing}
	}

	duration := s.now().Sub(h.s.RecordingStartedAt)
	path, err := s.recorder.Stop()
	if err != nil {
		_ = s.advanceLocked(h, models.StateChoose, "")
		return h.s, fmt.Errorf("stop recording: %w", err)
	}

	if duration < minRecordingDuration {
		_ = os.Remove(path)
		_ = s.advanceLocked(h, models.StateChoose, "")
		return h.s, ErrRecordingTooShort
	}

	h.s.FilePath = path
	h.s.FileName = filepath.Base(path)
	h.s.MimeType = "audio/wav"
	if err := s.advanceLocked(h, models.StateProcessing, ""); err != nil {
		return h.s, err
	}
	go s.process(sessionID)
	return h.s, nil
}

// SubmitText sends a typed note to analysis. Empty text is a user-input
// rejection: no transition, no backend call.
func (s *CaptureService) SubmitText(sessionID, text string) (models.CaptureSession, error) {
	h, ok := s.handle(sessionID)
	if !ok {
		return models.CaptureSession{}, ErrSessionNotFound
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.s.State != models.StateText {
		return h.s, &InvalidTransitionError{From: h.s.State, To: models.StateProcessing}
	}
	if text == "" {
		return h.s, ErrEmptyText
	}
	h.s.Text = text
	if err := s.advanceLocked(h, models.StateProcessing, ""); err != nil {
		return h.s, err
	}
	go s.process(sessionID)
	return h.s, nil
}

// SetPurpose records the user's typed annotation for a photo/document.
func (s *CaptureService) SetPurpose(sessionID, purpose string) (models.CaptureSession, error) {
	h, ok := s.handle(sessionID)
	if !ok {
		return models.CaptureSession{}, ErrSessionNotFound
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.s.State != models.StatePurposeAsk {
		return h.s, &InvalidTransitionError{From: h.s.State, To: models.StatePurposeAsk}
	}
	h.s.Purpose = purpose
	return h.s, nil
}

// TranscribePurpose runs the spoken-purpose sub-flow. A transcription
// failure only clears the purpose field; the capture itself continues.
func (s *CaptureService) TranscribePurpose(ctx context.Context, sessionID, fileName string, audioBytes []byte) (models.CaptureSession, error) {
	h, ok := s.handle(sessionID)
	if !ok {
		return models.CaptureSession{}, ErrSessionNotFound
	}
	h.mu.Lock()
	if h.s.State != models.StatePurposeAsk {
		defer h.mu.Unlock()
		return h.s, &InvalidTransitionError{From: h.s.State, To: models.StatePurposeAsk}
	}
	h.mu.Unlock()

	tctx, cancel := context.WithTimeout(ctx, purposeTimeout)
	defer cancel()

	text, err := s.ai.Transcribe(tctx, fileName, audioBytes)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.s.State != models.StatePurposeAsk {
		return h.s, nil
	}
	if err != nil {
		h.s.Purpose = ""
		s.logger.Warn("Purpose transcription failed, purpose cleared", "sessionId", sessionID, "error", err)
		return h.s, fmt.Errorf("transcribe purpose: %w", err)
	}
	h.s.Purpose = text
	return h.s, nil
}

// Proceed leaves the purpose question (answered or skipped) for analysis.
func (s *CaptureService) Proceed(sessionID string) (models.CaptureSession, error) {
	h, ok := s.handle(sessionID)
	if !ok {
		return models.CaptureSession{}, ErrSessionNotFound
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.s.State != models.StatePurposeAsk {
		return h.s, &InvalidTransitionError{From: h.s.State, To: models.StateProcessing}
	}
	if err := s.advanceLocked(h, models.StateProcessing, ""); err != nil {
		return h.s, err
	}
	go s.process(sessionID)
	return h.s, nil
}

// Cancel abandons the in-flight work and returns to choose. An active
// recording is stopped and discarded best-effort; an in-flight analysis
// result is dropped when it lands.
func (s *CaptureService) Cancel(sessionID string) (models.CaptureSession, error) {
	h, ok := s.handle(sessionID)
	if !ok {
		return models.CaptureSession{}, ErrSessionNotFound
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.s.State == models.StateRecording {
		s.recorder.Abort()
	}
	if err := s.advanceLocked(h, models.StateChoose, ""); err != nil {
		return h.s, err
	}
	h.s.FilePath = ""
	h.s.FileName = ""
	h.s.MimeType = ""
	h.s.Text = ""
	h.s.Purpose = ""
	h.s.Result = nil
	h.s.SelectedInsights = nil
	return h.s, nil
}

// Retry leaves the error state back to choose.
func (s *CaptureService) Retry(sessionID string) (models.CaptureSession, error) {
	h, ok := s.handle(sessionID)
	if !ok {
		return models.CaptureSession{}, ErrSessionNotFound
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.s.State != models.StateError {
		return h.s, &InvalidTransitionError{From: h.s.State, To: models.StateChoose}
	}
	if err := s.advanceLocked(h, models.StateChoose, ""); err != nil {
		return h.s, err
	}
	h.s.Result = nil
	h.s.SelectedInsights = nil
	return h.s, nil
}

// process runs the upload + analysis stage. Runs off the request goroutine;
// the session surfaces progress through state events.
func (s *CaptureService) process(sessionID string) {
	h, ok := s.handle(sessionID)
	if !ok {
		return
	}

	h.mu.Lock()
	if h.s.State != models.StateProcessing {
		h.mu.Unlock()
		return
	}
	source := h.s.Source
	filePath := h.s.FilePath
	fileName := h.s.FileName
	mimeType := h.s.MimeType
	text := h.s.Text
	purpose := h.s.Purpose
	h.mu.Unlock()

	// Voice recordings are scoped temp files; remove once analysis settles.
	if source == models.SourceVoice && filePath != "" {
		defer func() { _ = os.Remove(filePath) }()
	}

	ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
	defer cancel()

	req := &backend.SmartCreateRequest{
		Type:        source,
		WorkspaceID: s.workspaceID,
		IndustryID:  s.industryID,
	}

	if source == models.SourceText {
		req.Text = text
	} else {
		// The purpose annotation rides along as analysis context.
		req.Text = purpose
		upload, err := s.uploader.Upload(ctx, filePath, mimeType, fileName, s.workspaceID)
		if err != nil {
			s.fail(sessionID, uploadErrorMessage(err))
			return
		}
		req.FileName = fileName
		req.FileType = mimeType
		if upload.Inline() {
			req.FileBase64 = upload.Base64
		} else {
			req.SignedURL = upload.SignedURL
		}
	}

	result, err := s.ai.SmartCreate(ctx, req)
	if err != nil {
		s.fail(sessionID, analysisErrorMessage(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	// A cancel may have raced the analysis; the transition check drops the
	// stale result.
	if !canTransition(h.s.State, models.StateConfirm) {
		return
	}
	h.s.Result = result
	h.s.SelectedInsights = nil
	_ = s.advanceLocked(h, models.StateConfirm, "")
}

func (s *CaptureService) fail(sessionID, message string) {
	h, ok := s.handle(sessionID)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := s.advanceLocked(h, models.StateError, message); err != nil {
		// Session was cancelled first; nothing to surface.
		return
	}
	s.logger.Warn("Capture failed", "sessionId", sessionID, "message", message)
}

// UpdateResult applies the user's edits to the analysis result.
func (s *CaptureService) UpdateResult(sessionID string, result models.AnalysisResult) (models.CaptureSession, error) {
	h, ok := s.handle(sessionID)
	if !ok {
		return models.CaptureSession{}, ErrSessionNotFound
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.s.State != models.StateConfirm || h.s.Result == nil {
		return h.s, &InvalidTransitionError{From: h.s.State, To: models.StateConfirm}
	}
	// Insights stay as analysis produced them; everything else is editable.
	result.Insights = h.s.Result.Insights
	h.s.Result = &result
	return h.s, nil
}

// SelectInsights records which suggested follow-ups to materialize.
func (s *CaptureService) SelectInsights(sessionID string, indexes []int) (models.CaptureSession, error) {
	h, ok := s.handle(sessionID)
	if !ok {
		return models.CaptureSession{}, ErrSessionNotFound
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.s.State != models.StateConfirm || h.s.Result == nil {
		return h.s, &InvalidTransitionError{From: h.s.State, To: models.StateConfirm}
	}
	for _, idx := range indexes {
		if idx < 0 || idx >= len(h.s.Result.Insights) {
			return h.s, fmt.Errorf("capture: insight index %d out of range", idx)
		}
	}
	h.s.SelectedInsights = indexes
	return h.s, nil
}

// Confirm commits the (possibly edited) result. The primary card either
// exists afterwards or the session returns to confirm with nothing lost;
// follow-up creation is best-effort and cannot fail the commit.
func (s *CaptureService) Confirm(ctx context.Context, sessionID string) (models.CaptureSession, error) {
	h, ok := s.handle(sessionID)
	if !ok {
		return models.CaptureSession{}, ErrSessionNotFound
	}

	h.mu.Lock()
	if h.s.State != models.StateConfirm || h.s.Result == nil {
		defer h.mu.Unlock()
		return h.s, &InvalidTransitionError{From: h.s.State, To: models.StateCreating}
	}
	if err := s.advanceLocked(h, models.StateCreating, ""); err != nil {
		h.mu.Unlock()
		return h.s, err
	}
	result := *h.s.Result
	selected := append([]int(nil), h.s.SelectedInsights...)
	h.mu.Unlock()

	confirmation, err := s.commit(ctx, &result, selected)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		// Back to confirm; the edited result is preserved.
		_ = s.advanceLocked(h, models.StateConfirm, err.Error())
		return h.s, err
	}

	h.s.Confirmation = confirmation
	_ = s.advanceLocked(h, models.StateDone, "")
	go s.finish(sessionID, confirmation)
	return h.s, nil
}

// commit persists the customer link, the primary card, and the selected
// follow-ups, and composes the confirmation message.
func (s *CaptureService) commit(ctx context.Context, result *models.AnalysisResult, selected []int) (string, error) {
	var customerID *string
	if result.CustomerName != "" {
		customer, err := s.customers.Resolve(ctx, result.CustomerName)
		if err != nil {
			return "", fmt.Errorf("resolve customer: %w", err)
		}
		if customer != nil {
			customerID = &customer.ID
		}
	}

	card := &models.Card{
		Title:       result.Title,
		Description: result.Description,
		Priority:    models.ParsePriority(string(result.Priority)),
		Labels:      models.StringList(result.Labels),
		NewBusiness: result.NewBusiness,
		CustomerID:  customerID,
	}
	if _, err := s.cards.Create(ctx, card); err != nil {
		return "", fmt.Errorf("create card: %w", err)
	}

	followUps := 0
	for _, idx := range selected {
		if idx < 0 || idx >= len(result.Insights) {
			continue
		}
		follow := &models.Card{
			Title:      result.Insights[idx],
			Priority:   models.PriorityNormal,
			Labels:     models.StringList{models.LabelFollowUp},
			CustomerID: customerID,
		}
		if _, err := s.cards.Create(ctx, follow); err != nil {
			// Best-effort: a lost follow-up never rolls back the card.
			s.logger.Warn("Follow-up creation failed, skipping", "title", follow.Title, "error", err)
			continue
		}
		followUps++
	}

	confirmation := result.SpokenText
	if confirmation == "" {
		confirmation = fmt.Sprintf("Card %q created.", card.Title)
	}
	if followUps > 0 {
		confirmation += fmt.Sprintf(" Added %d follow-up tasks.", followUps)
	}
	return confirmation, nil
}

// finish speaks the confirmation without blocking navigation: the session
// closes when playback ends or the linger timeout fires, whichever first.
func (s *CaptureService) finish(sessionID, confirmation string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	played := make(chan struct{})
	go func() {
		s.speaker.Speak(ctx, confirmation)
		close(played)
	}()

	select {
	case <-played:
	case <-time.After(doneLinger):
	}
	s.Close(sessionID)
}

// Get returns a snapshot of the session.
func (s *CaptureService) Get(sessionID string) (models.CaptureSession, error) {
	h, ok := s.handle(sessionID)
	if !ok {
		return models.CaptureSession{}, ErrSessionNotFound
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.s, nil
}

// Close destroys a session in any state, releasing the recorder if it was
// still active.
func (s *CaptureService) Close(sessionID string) {
	h, ok := s.handle(sessionID)
	if !ok {
		return
	}
	h.mu.Lock()
	if h.s.State == models.StateRecording {
		s.recorder.Abort()
	}
	h.mu.Unlock()
	s.sessions.Delete(sessionID)
}

// uploadErrorMessage maps upload failures onto user-facing text. Only a
// fallback payload over the size ceiling reaches here as a size error; it
// names the approximate size so the user can pick a smaller file.
func uploadErrorMessage(err error) string {
	var sizeErr *SizeExceededError
	if errors.As(err, &sizeErr) {
		return fmt.Sprintf("File is too large to send (~%.1f MB). Please choose a smaller file.", sizeErr.EstimatedMB)
	}
	return "Could not upload the file. Please try again."
}

// analysisErrorMessage maps analysis failures onto user-facing text. Our own
// deadline and an upstream 504 both read as a timeout with the smaller-file
// hint; server-provided messages pass through verbatim.
func analysisErrorMessage(err error) string {
	if errors.Is(err, backend.ErrGatewayTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return "Analysis timed out. Please try again with a smaller file."
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Analysis failed. Please try again."
}

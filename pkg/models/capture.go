package models

import "time"

// CaptureSource identifies what kind of raw input a capture session holds.
type CaptureSource string

const (
	SourceVoice    CaptureSource = "voice"
	SourcePhoto    CaptureSource = "photo"
	SourceText     CaptureSource = "text"
	SourceDocument CaptureSource = "document"
)

// CaptureState is the pipeline state of a capture session.
//
// choose -> recording -> processing -> confirm -> creating -> done
// photo/document pass through purpose_ask before processing; typed notes
// enter through text. error is reachable from processing/creating and only
// exits back to choose.
type CaptureState string

const (
	StateChoose     CaptureState = "choose"
	StateRecording  CaptureState = "recording"
	StateText       CaptureState = "text"
	StatePurposeAsk CaptureState = "purpose_ask"
	StateProcessing CaptureState = "processing"
	StateConfirm    CaptureState = "confirm"
	StateCreating   CaptureState = "creating"
	StateDone       CaptureState = "done"
	StateError      CaptureState = "error"
)

// AnalysisResult is the structured output of the remote analysis step. It is
// held transiently in the capture session and fully user-editable; nothing is
// written to the durable store until explicit confirmation.
type AnalysisResult struct {
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	CustomerName string            `json:"customer_name,omitempty"`
	Priority     CardPriority      `json:"priority"`
	Labels       []string          `json:"labels,omitempty"`
	NewBusiness  bool              `json:"new_business"`
	SpokenText   string            `json:"spoken_text,omitempty"`
	Transcript   string            `json:"transcript,omitempty"`
	Insights     []string          `json:"insights,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
}

// CaptureSession is the ephemeral state of one capture flow. Owned
// exclusively by the orchestrator; destroyed on cancel, successful
// persistence, or navigation away. Never persisted, never shared.
type CaptureSession struct {
	ID     string        `json:"id"`
	Source CaptureSource `json:"source"`
	State  CaptureState  `json:"state"`

	// Raw payload reference.
	FilePath string `json:"file_path,omitempty"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Text     string `json:"text,omitempty"`

	// Optional user annotation explaining why a photo/document was added.
	Purpose string `json:"purpose,omitempty"`

	Result           *AnalysisResult `json:"result,omitempty"`
	SelectedInsights []int           `json:"selected_insights,omitempty"`

	// Set when State is error or after a failed persistence attempt.
	ErrorMessage string `json:"error_message,omitempty"`

	// Spoken/display confirmation composed at commit.
	Confirmation string `json:"confirmation,omitempty"`

	RecordingStartedAt time.Time `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
}

// UploadResult is the outcome of the media upload step: the signed-URL path
// when object storage accepted the file, or an inline base64 payload as the
// fallback. Never both.
type UploadResult struct {
	SignedURL   string `json:"signed_url,omitempty"`
	StoragePath string `json:"storage_path,omitempty"`

	Base64   string `json:"base64,omitempty"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// Inline reports whether the fallback base64 path was taken.
func (u *UploadResult) Inline() bool {
	return u != nil && u.Base64 != ""
}

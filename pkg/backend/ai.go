package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/kaizenisitmax-pixel/voxi/pkg/models"
)

// ErrGatewayTimeout marks an upstream 504 from the analysis endpoint. The
// orchestrator rewords it as a "try a smaller file" message.
var ErrGatewayTimeout = errors.New("analysis gateway timeout")

// AI talks to the hosted analysis endpoints. Callers bound every call with a
// context deadline; this client does not impose its own.
type AI struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewAI creates an AI client.
func NewAI(baseURL string, logger *slog.Logger) *AI {
	return &AI{
		baseURL: baseURL,
		http:    &http.Client{},
		logger:  logger,
	}
}

// SmartCreateRequest is the analysis request. Exactly one of SignedURL,
// FileBase64, or Text carries the capture payload.
type SmartCreateRequest struct {
	Type        models.CaptureSource
	WorkspaceID string
	IndustryID  string
	SignedURL   string
	FileBase64  string
	FileName    string
	FileType    string
	Text        string
}

// body builds the sparse JSON request; empty optionals are omitted.
func (r *SmartCreateRequest) body() ([]byte, error) {
	out := "{}"
	var err error
	set := func(key, val string) {
		if err != nil || val == "" {
			return
		}
		out, err = sjson.Set(out, key, val)
	}

	set("type", string(r.Type))
	set("workspace_id", r.WorkspaceID)
	set("industryId", r.IndustryID)
	set("signedUrl", r.SignedURL)
	set("fileBase64", r.FileBase64)
	set("fileName", r.FileName)
	set("fileType", r.FileType)
	set("text", r.Text)
	if err != nil {
		return nil, errors.Wrap(err, "encode smart-create request")
	}
	return []byte(out), nil
}

// SmartCreate invokes the remote analysis step and returns the structured
// result. The response shape is loosely typed; fields are read defensively
// and malformed values fall back to safe defaults.
func (a *AI) SmartCreate(ctx context.Context, req *SmartCreateRequest) (*models.AnalysisResult, error) {
	payload, err := req.body()
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/smart-create", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build smart-create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "smart-create")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGatewayTimeout {
		return nil, ErrGatewayTimeout
	}
	if resp.StatusCode >= 400 {
		return nil, errors.Wrap(statusError(resp), "smart-create")
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read smart-create response")
	}
	return parseAnalysisResult(raw), nil
}

// parseAnalysisResult maps the loosely-typed response onto the editable
// result record. Missing fields stay zero; priority defaults to normal.
func parseAnalysisResult(raw []byte) *models.AnalysisResult {
	result := &models.AnalysisResult{
		Title:        gjson.GetBytes(raw, "title").String(),
		Description:  gjson.GetBytes(raw, "description").String(),
		CustomerName: gjson.GetBytes(raw, "customer_name").String(),
		Priority:     models.ParsePriority(gjson.GetBytes(raw, "priority").String()),
		NewBusiness:  gjson.GetBytes(raw, "new_business").Bool(),
		SpokenText:   gjson.GetBytes(raw, "spoken_text").String(),
		Transcript:   gjson.GetBytes(raw, "transcript").String(),
	}

	for _, v := range gjson.GetBytes(raw, "labels").Array() {
		if s := v.String(); s != "" {
			result.Labels = append(result.Labels, s)
		}
	}
	for _, v := range gjson.GetBytes(raw, "insights").Array() {
		if s := v.String(); s != "" {
			result.Insights = append(result.Insights, s)
		}
	}
	if details := gjson.GetBytes(raw, "details"); details.IsObject() {
		result.Details = make(map[string]string)
		details.ForEach(func(key, value gjson.Result) bool {
			result.Details[key.String()] = value.String()
			return true
		})
	}
	return result
}

// Transcribe sends recorded audio for speech-to-text and returns the text.
func (a *AI) Transcribe(ctx context.Context, fileName string, audio []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return "", errors.Wrap(err, "build transcribe form")
	}
	if _, err := part.Write(audio); err != nil {
		return "", errors.Wrap(err, "write transcribe form")
	}
	if err := writer.Close(); err != nil {
		return "", errors.Wrap(err, "close transcribe form")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/transcribe", &buf)
	if err != nil {
		return "", errors.Wrap(err, "build transcribe request")
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "transcribe")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", errors.Wrap(statusError(resp), "transcribe")
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read transcribe response")
	}
	return gjson.GetBytes(raw, "text").String(), nil
}

// TTS synthesizes speech for text and returns the decoded audio bytes.
// An empty payload is an error; the caller falls back to the device
// synthesizer.
func (a *AI) TTS(ctx context.Context, text string) ([]byte, error) {
	body, err := sjson.Set("", "text", text)
	if err != nil {
		return nil, errors.Wrap(err, "encode tts request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/tts", bytes.NewReader([]byte(body)))
	if err != nil {
		return nil, errors.Wrap(err, "build tts request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "tts")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, errors.Wrap(statusError(resp), "tts")
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read tts response")
	}
	encoded := gjson.GetBytes(raw, "audioBase64").String()
	if encoded == "" {
		return nil, errors.New("tts: empty audio payload")
	}
	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "decode tts audio")
	}
	return audio, nil
}

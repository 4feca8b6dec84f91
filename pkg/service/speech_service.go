// Voice playback helper: remote TTS with device-synthesizer fallback
package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/kaizenisitmax-pixel/voxi/pkg/audio"
	"github.com/kaizenisitmax-pixel/voxi/pkg/event"
)

const (
	ttsTimeout = 15 * time.Second
	// Playback safety timeout: leaving the done screen must never hang on
	// a stuck player.
	playbackTimeout = 20 * time.Second
)

// TTSClient fetches synthesized speech audio.
type TTSClient interface {
	TTS(ctx context.Context, text string) ([]byte, error)
}

// SpeechService speaks confirmation text. The remote TTS path plays a temp
// file through the exclusive playback device; any remote failure degrades to
// the on-device synthesizer. Speak never fails from the caller's view.
type SpeechService struct {
	tts      TTSClient
	player   audio.Player
	synth    audio.Synthesizer
	language string
	rate     float64
	pitch    float64
	logger   *slog.Logger
}

// NewSpeechService creates a speech service.
func NewSpeechService(tts TTSClient, player audio.Player, synth audio.Synthesizer, language string, rate, pitch float64, logger *slog.Logger) *SpeechService {
	return &SpeechService{
		tts:      tts,
		player:   player,
		synth:    synth,
		language: language,
		rate:     rate,
		pitch:    pitch,
		logger:   logger,
	}
}

// Speak plays text and returns when playback (or its fallback) completes.
// It never returns an error: every failure path degrades, and total failure
// is swallowed after a log line.
func (s *SpeechService) Speak(ctx context.Context, text string) {
	if text == "" {
		return
	}

	event.Emit(event.SpeechStartedEvent{})
	defer event.Emit(event.SpeechFinishedEvent{})

	err := s.remoteSpeak(ctx, text)
	if err == nil {
		return
	}
	s.logger.Warn("Remote TTS path failed, using device synthesizer", "error", err)

	if err := s.synth.Speak(ctx, text, s.language, s.rate, s.pitch); err != nil {
		s.logger.Warn("Device synthesizer failed for language voice, retrying generic", "language", s.language, "error", err)
		if err := s.synth.Speak(ctx, text, "", s.rate, s.pitch); err != nil {
			s.logger.Warn("Device synthesizer failed, giving up", "error", err)
		}
	}
}

// remoteSpeak fetches TTS audio into a scoped temp file and plays it. The
// temp file and the playback device are released on every exit path, exactly
// once.
func (s *SpeechService) remoteSpeak(ctx context.Context, text string) error {
	ttsCtx, cancel := context.WithTimeout(ctx, ttsTimeout)
	defer cancel()

	data, err := s.tts.TTS(ttsCtx, text)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp("", "voxi-tts-*.mp3")
	if err != nil {
		return err
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}

	res := audio.NewPlaybackResource(s.player, path)
	defer res.Release()

	playCtx, cancelPlay := context.WithTimeout(ctx, playbackTimeout)
	defer cancelPlay()

	if err := res.Play(playCtx); err != nil {
		// Hitting the safety timeout means audio was playing; that is a
		// completed playback, not a reason to speak the text twice.
		if errors.Is(playCtx.Err(), context.DeadlineExceeded) {
			return nil
		}
		return err
	}
	return nil
}

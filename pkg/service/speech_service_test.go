package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"
)

type fakeTTS struct {
	audio []byte
	err   error
	calls int
}

func (f *fakeTTS) TTS(ctx context.Context, text string) ([]byte, error) {
	f.calls++
	return f.audio, f.err
}

type fakePlayer struct {
	mu         sync.Mutex
	err        error
	blockOnCtx bool // when set, Play blocks until ctx is done and returns ctx.Err()
	played     []string
	sawFile    bool
}

func (f *fakePlayer) Play(ctx context.Context, path string) error {
	f.mu.Lock()
	f.played = append(f.played, path)
	if _, err := os.Stat(path); err == nil {
		f.sawFile = true
	}
	block := f.blockOnCtx
	err := f.err
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

type fakeSynth struct {
	mu     sync.Mutex
	errFor map[string]error // voice -> error
	calls  []string         // voices in call order
}

func (f *fakeSynth) Speak(ctx context.Context, text, voice string, rate, pitch float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, voice)
	return f.errFor[voice]
}

func newSpeechFixture(tts *fakeTTS, player *fakePlayer, synth *fakeSynth) *SpeechService {
	return NewSpeechService(tts, player, synth, "tr-TR", 1.0, 1.0, discardLogger())
}

func TestSpeakRemotePath(t *testing.T) {
	tts := &fakeTTS{audio: []byte("mp3 bytes")}
	player := &fakePlayer{}
	synth := &fakeSynth{}
	svc := newSpeechFixture(tts, player, synth)

	svc.Speak(context.Background(), "Kart oluşturuldu.")

	player.mu.Lock()
	defer player.mu.Unlock()
	if len(player.played) != 1 {
		t.Fatalf("player called %d times, want 1", len(player.played))
	}
	if !player.sawFile {
		t.Fatal("temp file did not exist during playback")
	}
	if _, err := os.Stat(player.played[0]); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file %s still exists after playback", player.played[0])
	}
	if len(synth.calls) != 0 {
		t.Fatalf("synthesizer called %v, want no fallback on success", synth.calls)
	}
}

func TestSpeakFallsBackToSynth(t *testing.T) {
	tts := &fakeTTS{err: errors.New("tts down")}
	player := &fakePlayer{}
	synth := &fakeSynth{}
	svc := newSpeechFixture(tts, player, synth)

	svc.Speak(context.Background(), "text")

	if len(player.played) != 0 {
		t.Fatalf("player called %v, want none when TTS fails", player.played)
	}
	if len(synth.calls) != 1 || synth.calls[0] != "tr-TR" {
		t.Fatalf("synth calls = %v, want one call with the configured voice", synth.calls)
	}
}

func TestSpeakPlayerFailureFallsBack(t *testing.T) {
	tts := &fakeTTS{audio: []byte("mp3")}
	player := &fakePlayer{err: errors.New("no audio device")}
	synth := &fakeSynth{}
	svc := newSpeechFixture(tts, player, synth)

	svc.Speak(context.Background(), "text")

	if len(synth.calls) != 1 {
		t.Fatalf("synth calls = %v, want fallback after player failure", synth.calls)
	}
	if _, err := os.Stat(player.played[0]); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("temp file leaked after player failure")
	}
}

func TestSpeakGenericVoiceRetry(t *testing.T) {
	tts := &fakeTTS{err: errors.New("tts down")}
	player := &fakePlayer{}
	synth := &fakeSynth{errFor: map[string]error{"tr-TR": errors.New("voice missing")}}
	svc := newSpeechFixture(tts, player, synth)

	svc.Speak(context.Background(), "text")

	if len(synth.calls) != 2 || synth.calls[1] != "" {
		t.Fatalf("synth calls = %v, want language voice then generic retry", synth.calls)
	}
}

func TestSpeakTotalFailureStillReturns(t *testing.T) {
	tts := &fakeTTS{err: errors.New("tts down")}
	player := &fakePlayer{}
	synth := &fakeSynth{errFor: map[string]error{
		"tr-TR": errors.New("voice missing"),
		"":      errors.New("no synth at all"),
	}}
	svc := newSpeechFixture(tts, player, synth)

	done := make(chan struct{})
	go func() {
		svc.Speak(context.Background(), "text")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Speak did not return after total failure")
	}
}

func TestSpeakEmptyTextIsNoop(t *testing.T) {
	tts := &fakeTTS{}
	svc := newSpeechFixture(tts, &fakePlayer{}, &fakeSynth{})

	svc.Speak(context.Background(), "")
	if tts.calls != 0 {
		t.Fatalf("TTS called %d times for empty text, want 0", tts.calls)
	}
}

func TestSpeakStuckPlayerCountsAsPlayed(t *testing.T) {
	tts := &fakeTTS{audio: []byte("mp3")}
	player := &fakePlayer{blockOnCtx: true}
	synth := &fakeSynth{}
	svc := newSpeechFixture(tts, player, synth)

	// The parent deadline fires long before the internal safety timeout; a
	// playback cut off by a deadline is treated as completed, never respoken.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	svc.Speak(ctx, "text")

	if len(synth.calls) != 0 {
		t.Fatalf("synth calls = %v, want none after a timed-out playback", synth.calls)
	}
}

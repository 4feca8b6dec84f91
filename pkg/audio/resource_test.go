package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type countingPlayer struct {
	mu    sync.Mutex
	err   error
	plays int
}

func (p *countingPlayer) Play(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays++
	return p.err
}

func tempAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tts.mp3")
	if err := os.WriteFile(path, []byte("mp3"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestPlayReleasesAndRemovesFile(t *testing.T) {
	path := tempAudioFile(t)
	res := NewPlaybackResource(&countingPlayer{}, path)

	if err := res.Play(context.Background()); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if !res.Released() {
		t.Fatal("resource not released after playback")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("temp file still exists after release")
	}
}

func TestPlayReleasesOnError(t *testing.T) {
	path := tempAudioFile(t)
	res := NewPlaybackResource(&countingPlayer{err: errors.New("device gone")}, path)

	if err := res.Play(context.Background()); err == nil {
		t.Fatal("Play() error = nil, want player error")
	}
	if !res.Released() {
		t.Fatal("resource not released after failed playback")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("temp file still exists after failed playback")
	}
}

func TestSecondPlayRejected(t *testing.T) {
	player := &countingPlayer{}
	res := NewPlaybackResource(player, tempAudioFile(t))

	if err := res.Play(context.Background()); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if err := res.Play(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Play() error = %v, want ErrBusy", err)
	}
	player.mu.Lock()
	defer player.mu.Unlock()
	if player.plays != 1 {
		t.Fatalf("player invoked %d times, want exactly once", player.plays)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	res := NewPlaybackResource(&countingPlayer{}, tempAudioFile(t))
	res.Release()
	res.Release()
	if !res.Released() {
		t.Fatal("resource not released")
	}
	if err := res.Play(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("Play() after release error = %v, want ErrBusy", err)
	}
}

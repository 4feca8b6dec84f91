package audio

import (
	"context"
	"errors"
	"os"
	"sync"
)

// Playback resource states.
const (
	stateIdle = iota
	statePlaying
	stateReleased
)

// ErrBusy is returned when a playback is requested while another is active.
var ErrBusy = errors.New("audio: playback resource busy")

// PlaybackResource wraps a Player in an idle -> playing -> released state
// machine with an exactly-once release. It owns the temp file it plays:
// Release deletes the file regardless of how playback ended.
type PlaybackResource struct {
	player Player

	mu      sync.Mutex
	state   int
	path    string
	release sync.Once
}

// NewPlaybackResource creates a resource for one temp audio file.
func NewPlaybackResource(player Player, path string) *PlaybackResource {
	return &PlaybackResource{player: player, path: path}
}

// Play runs playback to completion, ctx cancellation, or error. Whatever
// happens, the resource ends up released and the temp file removed.
func (r *PlaybackResource) Play(ctx context.Context) error {
	r.mu.Lock()
	if r.state != stateIdle {
		r.mu.Unlock()
		return ErrBusy
	}
	r.state = statePlaying
	r.mu.Unlock()

	defer r.Release()
	return r.player.Play(ctx, r.path)
}

// Release frees the playback device and deletes the temp file. Idempotent;
// every exit path may call it safely.
func (r *PlaybackResource) Release() {
	r.release.Do(func() {
		r.mu.Lock()
		r.state = stateReleased
		path := r.path
		r.mu.Unlock()
		if path != "" {
			_ = os.Remove(path)
		}
	})
}

// Released reports whether the resource has been released.
func (r *PlaybackResource) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateReleased
}

// Package audio abstracts the device audio resources. The microphone and the
// playback device are exclusive, single-owner resources: callers must release
// one before acquiring the next.
package audio

import "context"

// Recorder captures microphone audio into a local file.
type Recorder interface {
	// Start begins recording into a new temp file. Only one recording may
	// be active at a time.
	Start(ctx context.Context) error
	// Stop ends the recording and returns the file path of the audio.
	Stop() (string, error)
	// Abort discards the in-progress recording, ignoring errors. Safe to
	// call when no recording is active.
	Abort()
}

// Player plays an audio file to completion or until ctx is cancelled.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Synthesizer is the on-device speech fallback. voice may be empty for the
// device's generic voice.
type Synthesizer interface {
	Speak(ctx context.Context, text, voice string, rate, pitch float64) error
}

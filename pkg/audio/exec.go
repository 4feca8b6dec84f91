package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// Exec-backed device implementations. These shell out to whatever capture
// and playback tools the host has; the service layer only sees the
// interfaces, so tests substitute fakes.

func lookPathFirst(names ...string) (string, error) {
	for _, name := range names {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("audio: none of %v found in PATH", names)
}

// ExecRecorder records via arecord/rec/sox into a temp wav file.
type ExecRecorder struct {
	mu   sync.Mutex
	cmd  *exec.Cmd
	path string
}

func NewExecRecorder() *ExecRecorder { return &ExecRecorder{} }

func (r *ExecRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return errors.New("audio: recording already active")
	}

	bin, err := lookPathFirst("arecord", "rec", "sox")
	if err != nil {
		return err
	}
	f, err := os.CreateTemp("", "voxi-rec-*.wav")
	if err != nil {
		return fmt.Errorf("create recording file: %w", err)
	}
	path := f.Name()
	_ = f.Close()

	cmd := exec.CommandContext(ctx, bin, path)
	if err := cmd.Start(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("start recorder: %w", err)
	}
	r.cmd = cmd
	r.path = path
	return nil
}

func (r *ExecRecorder) Stop() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil {
		return "", errors.New("audio: no active recording")
	}
	cmd, path := r.cmd, r.path
	r.cmd, r.path = nil, ""

	_ = cmd.Process.Signal(os.Interrupt)
	_ = cmd.Wait()
	return path, nil
}

func (r *ExecRecorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil {
		return
	}
	// Abandoned capture: errors are irrelevant.
	_ = r.cmd.Process.Kill()
	_ = r.cmd.Wait()
	_ = os.Remove(r.path)
	r.cmd, r.path = nil, ""
}

// ExecPlayer plays a file via aplay/afplay/play.
type ExecPlayer struct{}

func NewExecPlayer() *ExecPlayer { return &ExecPlayer{} }

func (p *ExecPlayer) Play(ctx context.Context, path string) error {
	bin, err := lookPathFirst("aplay", "afplay", "play")
	if err != nil {
		return err
	}
	return exec.CommandContext(ctx, bin, path).Run()
}

// ExecSynthesizer speaks via espeak/say. An empty voice selects the tool's
// default voice.
type ExecSynthesizer struct{}

func NewExecSynthesizer() *ExecSynthesizer { return &ExecSynthesizer{} }

func (s *ExecSynthesizer) Speak(ctx context.Context, text, voice string, rate, pitch float64) error {
	bin, err := lookPathFirst("espeak-ng", "espeak", "say")
	if err != nil {
		return err
	}

	var args []string
	if voice != "" {
		args = append(args, "-v", voice)
	}
	args = append(args, text)
	return exec.CommandContext(ctx, bin, args...).Run()
}

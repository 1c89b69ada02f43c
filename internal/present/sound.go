package present

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// SoundNone disables playback when used as the sound choice.
const SoundNone = "none"

// ErrSoundAsset is returned when the chosen sound file cannot be found.
var ErrSoundAsset = errors.New("sound asset not found")

// RunFunc runs an external command to completion.
type RunFunc func(ctx context.Context, name string, args ...string) error

// runCommand is the production RunFunc. Player output is discarded.
func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run()
}

// Player plays the chosen sound asset for every trigger.
//
// The choice is read at presentation time so that settings changes apply to
// the next trigger without rebuilding the sink.
type Player struct {
	command   string
	args      []string
	assetsDir string
	choice    func() string
	run       RunFunc

	mu      sync.Mutex
	cancels map[uint64]context.CancelFunc
	next    uint64
	wg      sync.WaitGroup
}

// NewPlayer creates a Player that invokes command with args followed by the
// asset path, e.g. NewPlayer("paplay", nil, "assets", choice).
func NewPlayer(command string, args []string, assetsDir string, choice func() string) *Player {
	return &Player{
		command:   command,
		args:      args,
		assetsDir: assetsDir,
		choice:    choice,
		run:       runCommand,
		cancels:   make(map[uint64]context.CancelFunc),
	}
}

// WithRunner replaces the command runner. Used by tests.
func (p *Player) WithRunner(run RunFunc) *Player {
	p.run = run
	return p
}

// Present implements Sink. Playback runs in the background; failures of
// the player itself are logged, never returned.
func (p *Player) Present(t Trigger) error {
	choice := ""
	if p.choice != nil {
		choice = p.choice()
	}
	if choice == "" || choice == SoundNone || p.command == "" {
		return nil
	}

	path := filepath.Join(p.assetsDir, filepath.Base(choice))
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrSoundAsset, path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	id := p.next
	p.next++
	p.cancels[id] = cancel
	p.mu.Unlock()

	args := append(append([]string{}, p.args...), path)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			delete(p.cancels, id)
			p.mu.Unlock()
			cancel()
		}()

		slog.Debug("playing sound", "sound", choice, "player", p.command)
		if err := p.run(ctx, p.command, args...); err != nil && ctx.Err() == nil {
			slog.Warn("could not play sound", "sound", choice, "error", err)
		}
	}()

	return nil
}

// Dismiss implements Sink by cutting off any playback in progress.
func (p *Player) Dismiss() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cancel := range p.cancels {
		cancel()
	}
}

// Wait blocks until every playback started so far has ended.
func (p *Player) Wait() {
	p.wg.Wait()
}

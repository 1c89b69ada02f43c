package present

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Display timings of the banner.
const (
	DefaultBannerDuration = 4 * time.Second
	DefaultFadeDuration   = 1 * time.Second
	DefaultBannerWidth    = 64
)

// Terminal control sequences used to take over and release the screen.
const (
	clearScreen = "\x1b[2J\x1b[H"
)

// Phase is the visibility state of a banner.
type Phase int

const (
	PhaseHidden Phase = iota
	PhaseShown
	PhaseFading
)

func (p Phase) String() string {
	switch p {
	case PhaseHidden:
		return "hidden"
	case PhaseShown:
		return "shown"
	case PhaseFading:
		return "fading"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// BannerOption configures a Banner.
type BannerOption func(*Banner)

// WithDuration sets how long the banner stays fully visible.
func WithDuration(d time.Duration) BannerOption {
	return func(b *Banner) { b.duration = d }
}

// WithFade sets the length of the fade phase before the banner hides.
func WithFade(d time.Duration) BannerOption {
	return func(b *Banner) { b.fade = d }
}

// WithWidth sets the banner width in cells.
func WithWidth(w int) BannerOption {
	return func(b *Banner) { b.width = w }
}

// WithClock replaces the clock used for the display timers.
func WithClock(c Clock) BannerOption {
	return func(b *Banner) { b.clock = c }
}

// Banner is a terminal overlay for triggers.
//
// There is a single overlay per Banner: presenting while a trigger is shown
// replaces the text and restarts the display period.
type Banner struct {
	out      io.Writer
	renderer *lipgloss.Renderer
	clock    Clock
	duration time.Duration
	fade     time.Duration
	width    int

	mu      sync.Mutex
	phase   Phase
	current Trigger
	timer   Timer
	gen     uint64 // invalidates timers that fired while the lock was held
}

// NewBanner creates a Banner that draws to out.
func NewBanner(out io.Writer, opts ...BannerOption) *Banner {
	b := &Banner{
		out:      out,
		renderer: lipgloss.NewRenderer(out),
		clock:    SystemClock(),
		duration: DefaultBannerDuration,
		fade:     DefaultFadeDuration,
		width:    DefaultBannerWidth,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Present implements Sink.
func (b *Banner) Present(t Trigger) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopTimerLocked()
	b.current = t
	b.phase = PhaseShown

	if _, err := io.WriteString(b.out, clearScreen+b.Render(t, false)+"\n"); err != nil {
		return fmt.Errorf("draw banner: %w", err)
	}
	slog.Debug("banner displayed", "main_text", t.MainText, "sub_text", t.SubText)

	gen := b.gen
	b.timer = b.clock.AfterFunc(b.duration, func() { b.beginFade(gen) })
	return nil
}

// Dismiss implements Sink.
func (b *Banner) Dismiss() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.phase == PhaseHidden {
		return
	}
	b.stopTimerLocked()
	b.hideLocked()
}

// Phase returns the current visibility state.
func (b *Banner) Phase() Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// Current returns the trigger most recently presented.
func (b *Banner) Current() Trigger {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *Banner) beginFade(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen || b.phase != PhaseShown {
		return
	}
	b.phase = PhaseFading
	if _, err := io.WriteString(b.out, clearScreen+b.Render(b.current, true)+"\n"); err != nil {
		slog.Warn("could not draw fading banner", "error", err)
	}

	b.timer = b.clock.AfterFunc(b.fade, func() { b.finishFade(gen) })
}

func (b *Banner) finishFade(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen || b.phase != PhaseFading {
		return
	}
	b.timer = nil
	b.hideLocked()
}

func (b *Banner) hideLocked() {
	b.phase = PhaseHidden
	if _, err := io.WriteString(b.out, clearScreen); err != nil {
		slog.Warn("could not clear banner", "error", err)
	}
	slog.Debug("banner hidden")
}

func (b *Banner) stopTimerLocked() {
	b.gen++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// Render draws the banner for t without touching the screen.
// The faded variant is used during the fade phase.
func (b *Banner) Render(t Trigger, faded bool) string {
	gold := lipgloss.Color("#E8C36A")
	ash := lipgloss.Color("#C9B79C")
	ember := lipgloss.Color("#8A6D3B")
	if faded {
		gold, ash, ember = lipgloss.Color("#6B5A32"), lipgloss.Color("#5E564A"), lipgloss.Color("#3F321B")
	}

	inner := b.width - 2
	if inner < 1 {
		inner = 1
	}

	ornament := b.renderer.NewStyle().
		Foreground(ember).
		Width(inner).
		Align(lipgloss.Center).
		Render(strings.Repeat("─", inner/2))

	main := b.renderer.NewStyle().
		Bold(true).
		Foreground(gold).
		Width(inner).
		Align(lipgloss.Center).
		Render(strings.ToUpper(t.MainText))

	sub := b.renderer.NewStyle().
		Italic(true).
		Foreground(ash).
		Width(inner).
		Align(lipgloss.Center).
		Render(t.SubText)

	body := lipgloss.JoinVertical(lipgloss.Center, ornament, main, ornament, "", sub)

	return b.renderer.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(ember).
		Padding(1, 0).
		Render(body)
}

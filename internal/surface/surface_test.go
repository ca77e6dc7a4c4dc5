package surface

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
)

func TestMemoryListenersAndFrames(t *testing.T) {
	m := NewMemory(80, 40)

	var resized []Event
	remove := m.AddListener(EventResize, func(ev Event) { resized = append(resized, ev) })
	m.AddListener(EventPointer, func(Event) {})
	if m.Listeners() != 2 || m.ListenerCount(EventResize) != 1 {
		t.Fatalf("listeners = %d (resize %d), want 2 (1)", m.Listeners(), m.ListenerCount(EventResize))
	}

	m.Resize(40, 20)
	if w, h := m.Size(); w != 40 || h != 20 {
		t.Fatalf("Size = %dx%d, want 40x20", w, h)
	}
	remove()
	remove()
	m.Resize(10, 10)
	if len(resized) != 1 || resized[0].Width != 40 {
		t.Fatalf("resize events = %+v, want one 40x20", resized)
	}
	if m.ListenerCount(EventResize) != 0 {
		t.Fatalf("resize listener not removed")
	}

	canvas := image.NewRGBA(image.Rect(0, 0, 2, 2))
	m.AttachCanvas(canvas)
	canvas.SetRGBA(0, 0, color.RGBA{R: 9, A: 255})
	if err := m.Present(canvas); err != nil {
		t.Fatalf("Present: %v", err)
	}
	canvas.SetRGBA(0, 0, color.RGBA{R: 1, A: 255})
	if got := m.LastFrame().RGBAAt(0, 0).R; got != 9 {
		t.Fatalf("presented frame aliases canvas: R=%d", got)
	}
	m.DetachCanvas(canvas)
	if len(m.Canvases()) != 0 || m.Frames() != 1 {
		t.Fatalf("canvases=%d frames=%d", len(m.Canvases()), m.Frames())
	}

	m.PresentErr = errors.New("gone")
	if err := m.Present(canvas); err == nil {
		t.Fatalf("expected PresentErr")
	}
}

func newSimTerminal(t *testing.T, cols, rows int) (*Terminal, tcell.SimulationScreen) {
	t.Helper()
	sim := tcell.NewSimulationScreen("UTF-8")
	term, err := NewTerminal(sim)
	if err != nil {
		t.Fatalf("NewTerminal: %v", err)
	}
	sim.SetSize(cols, rows)
	t.Cleanup(term.Close)
	return term, sim
}

func TestTerminalPresentsHalfBlocks(t *testing.T) {
	term, sim := newSimTerminal(t, 4, 3)
	if w, h := term.Size(); w != 4 || h != 4 {
		t.Fatalf("Size = %dx%d, want 4x4", w, h)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, 4, 4))
	canvas.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	canvas.SetRGBA(0, 1, color.RGBA{B: 255, A: 255})
	term.SetStatus("spikes 4")
	if err := term.Present(canvas); err != nil {
		t.Fatalf("Present: %v", err)
	}

	r, _, style, _ := sim.GetContent(0, 0)
	if r != upperHalf {
		t.Fatalf("cell rune = %q, want %q", r, upperHalf)
	}
	fg, bg, _ := style.Decompose()
	if fg != tcell.NewRGBColor(255, 0, 0) || bg != tcell.NewRGBColor(0, 0, 255) {
		t.Fatalf("cell colours fg=%v bg=%v", fg, bg)
	}
	if r, _, _, _ := sim.GetContent(0, 2); r != 's' {
		t.Fatalf("status line starts with %q, want 's'", r)
	}
}

func TestTerminalRunDispatchesInput(t *testing.T) {
	term, sim := newSimTerminal(t, 20, 10)

	pointers := make(chan Event, 4)
	keys := make(chan Event, 4)
	term.AddListener(EventPointer, func(ev Event) { pointers <- ev })
	term.AddListener(EventKey, func(ev Event) { keys <- ev })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- term.Run(ctx) }()

	sim.InjectMouse(3, 2, tcell.Button1, tcell.ModNone)
	sim.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)

	select {
	case ev := <-pointers:
		if ev.X != 3 || ev.Y != 4 || !ev.Pressed {
			t.Fatalf("pointer event = %+v, want (3,4) pressed", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no pointer event")
	}
	select {
	case ev := <-keys:
		if ev.Rune != 'q' {
			t.Fatalf("key event = %+v, want 'q'", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no key event")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

package surface

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// upperHalf draws the top pixel as foreground and the bottom pixel as
// background, giving two square-ish pixels per cell.
const upperHalf = '▀'

// Terminal is a Container backed by a tcell screen. The last row is a status
// line; the rest holds the canvas at two pixel rows per cell row.
type Terminal struct {
	screen tcell.Screen

	mu     sync.Mutex
	status string

	listeners listeners
	closeOnce sync.Once
}

// NewTerminal initialises screen (a new terminal screen when nil) with mouse
// support enabled.
func NewTerminal(screen tcell.Screen) (*Terminal, error) {
	if screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return nil, fmt.Errorf("open terminal: %w", err)
		}
		screen = s
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init terminal: %w", err)
	}
	screen.EnableMouse()
	screen.HideCursor()
	screen.Clear()
	return &Terminal{screen: screen}, nil
}

// Size returns the canvas size in pixels.
func (t *Terminal) Size() (int, int) {
	cols, rows := t.screen.Size()
	return max(1, cols), max(1, (rows-1)*2)
}

// AttachCanvas clears the screen for a new canvas.
func (t *Terminal) AttachCanvas(*image.RGBA) {
	t.screen.Clear()
}

// DetachCanvas clears what the canvas left on screen.
func (t *Terminal) DetachCanvas(*image.RGBA) {
	t.screen.Clear()
	t.screen.Show()
}

// SetStatus sets the text shown on the bottom row at the next Present.
func (t *Terminal) SetStatus(s string) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// Present draws canvas with half-block cells and the status line.
func (t *Terminal) Present(canvas *image.RGBA) error {
	cols, rows := t.screen.Size()
	b := canvas.Bounds()
	at := func(x, y int) tcell.Color {
		if x >= b.Dx() || y >= b.Dy() {
			return tcell.ColorBlack
		}
		c := canvas.RGBAAt(b.Min.X+x, b.Min.Y+y)
		return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
	}

	for row := 0; row < rows-1; row++ {
		for x := 0; x < cols; x++ {
			style := tcell.StyleDefault.Foreground(at(x, 2*row)).Background(at(x, 2*row+1))
			t.screen.SetContent(x, row, upperHalf, nil, style)
		}
	}

	t.mu.Lock()
	status := []rune(t.status)
	t.mu.Unlock()
	statusStyle := tcell.StyleDefault.Foreground(tcell.ColorLightCyan).Background(tcell.ColorBlack)
	for x := 0; x < cols; x++ {
		r := ' '
		if x < len(status) {
			r = status[x]
		}
		t.screen.SetContent(x, rows-1, r, nil, statusStyle)
	}

	t.screen.Show()
	return nil
}

// AddListener registers fn for kind.
func (t *Terminal) AddListener(kind EventKind, fn func(Event)) func() {
	return t.listeners.add(kind, fn)
}

// Run pumps terminal events to listeners until ctx is done or the screen is
// closed.
func (t *Terminal) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = t.screen.PostEvent(tcell.NewEventInterrupt(nil))
		case <-done:
		}
	}()

	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		t.handle(ev)
	}
}

func (t *Terminal) handle(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		t.screen.Sync()
		w, h := t.Size()
		t.listeners.dispatch(Event{Kind: EventResize, Width: w, Height: h})

	case *tcell.EventMouse:
		x, y := ev.Position()
		btn := ev.Buttons()
		out := Event{Kind: EventPointer, X: x, Y: y * 2, Pressed: btn&tcell.Button1 != 0}
		switch {
		case btn&tcell.WheelUp != 0:
			out.Wheel = 1
		case btn&tcell.WheelDown != 0:
			out.Wheel = -1
		}
		t.listeners.dispatch(out)

	case *tcell.EventKey:
		out := Event{Kind: EventKey, Name: ev.Name()}
		if ev.Key() == tcell.KeyRune {
			out.Rune = ev.Rune()
		}
		t.listeners.dispatch(out)
	}
}

// Close restores the terminal. It is safe to call more than once.
func (t *Terminal) Close() {
	t.closeOnce.Do(t.screen.Fini)
}

// Package surface provides the containers a globe scene mounts into: an
// in-memory surface for tests and snapshots and a tcell terminal.
package surface

import (
	"image"
	"sync"
)

// EventKind identifies a container event stream.
type EventKind int

const (
	// EventResize fires when the container's pixel size changes.
	EventResize EventKind = iota
	// EventPointer carries pointer drags and wheel steps.
	EventPointer
	// EventKey carries keyboard input.
	EventKey
)

func (k EventKind) String() string {
	switch k {
	case EventResize:
		return "resize"
	case EventPointer:
		return "pointer"
	case EventKey:
		return "key"
	default:
		return "unknown"
	}
}

// Event is delivered to container listeners. Coordinates are canvas pixels.
type Event struct {
	Kind EventKind

	// EventResize
	Width, Height int

	// EventPointer
	X, Y    int
	Pressed bool // primary button held
	Wheel   int  // +1 zoom in, -1 zoom out, 0 none

	// EventKey
	Rune rune
	Name string
}

// Container is the host element a scene paints into. It sizes the canvas,
// displays presented frames and delivers input. The scene only attaches and
// detaches its own canvas and never assumes further ownership.
type Container interface {
	Size() (width, height int)
	AttachCanvas(canvas *image.RGBA)
	DetachCanvas(canvas *image.RGBA)
	Present(canvas *image.RGBA) error
	AddListener(kind EventKind, fn func(Event)) (remove func())
}

// listeners is a registry shared by container implementations.
type listeners struct {
	mu   sync.Mutex
	next int
	fns  map[EventKind]map[int]func(Event)
}

func (l *listeners) add(kind EventKind, fn func(Event)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[EventKind]map[int]func(Event))
	}
	if l.fns[kind] == nil {
		l.fns[kind] = make(map[int]func(Event))
	}
	id := l.next
	l.next++
	l.fns[kind][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.fns[kind], id)
		})
	}
}

// dispatch calls every listener for ev.Kind outside the lock.
func (l *listeners) dispatch(ev Event) {
	l.mu.Lock()
	fns := make([]func(Event), 0, len(l.fns[ev.Kind]))
	for _, fn := range l.fns[ev.Kind] {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (l *listeners) count(kind EventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns[kind])
}

func (l *listeners) total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.fns {
		n += len(m)
	}
	return n
}

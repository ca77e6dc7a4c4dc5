package surface

import (
	"image"
	"sync"
)

// Memory is an in-process Container. It records presented frames and lets
// callers inject resize and pointer events.
type Memory struct {
	mu       sync.Mutex
	width    int
	height   int
	canvases []*image.RGBA
	last     *image.RGBA
	frames   int

	// PresentErr, when set, is returned from every Present call.
	PresentErr error

	listeners listeners
}

// NewMemory returns a container of the given pixel size.
func NewMemory(width, height int) *Memory {
	return &Memory{width: width, height: height}
}

// Size returns the current pixel size.
func (m *Memory) Size() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.width, m.height
}

// AttachCanvas records canvas as attached.
func (m *Memory) AttachCanvas(canvas *image.RGBA) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canvases = append(m.canvases, canvas)
}

// DetachCanvas removes canvas; other attached canvases are left alone.
func (m *Memory) DetachCanvas(canvas *image.RGBA) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.canvases {
		if c == canvas {
			m.canvases = append(m.canvases[:i], m.canvases[i+1:]...)
			return
		}
	}
}

// Present copies canvas as the latest frame.
func (m *Memory) Present(canvas *image.RGBA) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PresentErr != nil {
		return m.PresentErr
	}
	cp := image.NewRGBA(canvas.Bounds())
	copy(cp.Pix, canvas.Pix)
	m.last = cp
	m.frames++
	return nil
}

// AddListener registers fn for kind.
func (m *Memory) AddListener(kind EventKind, fn func(Event)) func() {
	return m.listeners.add(kind, fn)
}

// Resize changes the size and notifies resize listeners.
func (m *Memory) Resize(width, height int) {
	m.mu.Lock()
	m.width, m.height = width, height
	m.mu.Unlock()
	m.listeners.dispatch(Event{Kind: EventResize, Width: width, Height: height})
}

// Dispatch delivers ev to its listeners.
func (m *Memory) Dispatch(ev Event) {
	m.listeners.dispatch(ev)
}

// Canvases returns the currently attached canvases.
func (m *Memory) Canvases() []*image.RGBA {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*image.RGBA(nil), m.canvases...)
}

// Frames returns the number of presented frames.
func (m *Memory) Frames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// LastFrame returns a copy of the most recently presented frame, or nil.
func (m *Memory) LastFrame() *image.RGBA {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// ListenerCount returns the listeners registered for kind.
func (m *Memory) ListenerCount(kind EventKind) int {
	return m.listeners.count(kind)
}

// Listeners returns the total number of registered listeners.
func (m *Memory) Listeners() int {
	return m.listeners.total()
}

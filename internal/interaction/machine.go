// Package interaction implements the element/region picking state machine.
// It is deliberately decoupled from any rendering surface: the owner of the
// preview feeds it synthetic pointer events and it emits location
// descriptors into a Recorder, so the whole gesture logic is testable
// without a browser.
package interaction

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Mode selects how pointer events are interpreted. Exactly one mode is
// active at a time.
type Mode string

const (
	// ModeClick records the clicked element as a descriptor.
	ModeClick Mode = "click"
	// ModeScreen records a long-press-then-drag bounding box.
	ModeScreen Mode = "screen"
)

// DefaultLongPressThreshold is how long a press must be held in screen mode
// before the gesture arms.
const DefaultLongPressThreshold = 700 * time.Millisecond

// Kind discriminates pointer events.
type Kind string

const (
	PointerClick Kind = "click"
	PointerDown  Kind = "down"
	PointerMove  Kind = "move"
	PointerUp    Kind = "up"
)

// PointerEvent is one synthetic input event from the preview surface.
// Target is only meaningful for click events.
type PointerEvent struct {
	Kind   Kind         `json:"kind"`
	X      float64      `json:"x"`
	Y      float64      `json:"y"`
	Target *ElementInfo `json:"target,omitempty"`
}

// Rect is the selection box geometry in preview pixels.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Overlay is the visual selection box the armed gesture draws into. The
// machine reads the final rendered rect back at pointer-up.
type Overlay interface {
	Show(r Rect)
	Update(r Rect)
	Hide()
	Rect() Rect
}

// Recorder receives finished location descriptors.
type Recorder interface {
	Record(descriptor string)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(string)

func (f RecorderFunc) Record(descriptor string) { f(descriptor) }

// Machine tracks the interaction mode and, in screen mode, the
// Idle -> Armed long-press gesture. At most one gesture is pending or armed
// at any time; a new pointer-down supersedes the previous one.
type Machine struct {
	mu        sync.Mutex
	mode      Mode
	recorder  Recorder
	overlay   Overlay
	threshold time.Duration
	schedule  func(d time.Duration, fn func()) *time.Timer

	gesture   int // generation counter; stale timers check it and bail
	timer     *time.Timer
	selecting bool
	startX    float64
	startY    float64
}

// New creates a machine in click mode. A nil overlay gets an in-memory
// BoxOverlay.
func New(recorder Recorder, overlay Overlay) *Machine {
	if overlay == nil {
		overlay = NewBoxOverlay()
	}
	return &Machine{
		mode:      ModeClick,
		recorder:  recorder,
		overlay:   overlay,
		threshold: DefaultLongPressThreshold,
		schedule:  time.AfterFunc,
	}
}

// SetLongPressThreshold overrides the arming delay. Zero or negative values
// are ignored.
func (m *Machine) SetLongPressThreshold(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.threshold = d
	m.mu.Unlock()
}

// Mode returns the active interaction mode.
func (m *Machine) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// SetMode switches interaction modes. The previous mode's in-flight state
// is torn down: any pending or armed gesture is cancelled and the overlay
// hidden. Bindings are never cumulative.
func (m *Machine) SetMode(mode Mode) error {
	if mode != ModeClick && mode != ModeScreen {
		return fmt.Errorf("unknown interaction mode %q", mode)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
	m.cancelGestureLocked()
	return nil
}

// Handle consumes one pointer event. Events that do not apply to the active
// mode are ignored.
func (m *Machine) Handle(ev PointerEvent) {
	m.mu.Lock()
	mode := m.mode
	m.mu.Unlock()

	switch mode {
	case ModeClick:
		if ev.Kind == PointerClick && ev.Target != nil {
			// Single atomic step: build and record, no intermediate state.
			m.recorder.Record(ElementDescriptor(*ev.Target))
		}
	case ModeScreen:
		m.handleScreen(ev)
	}
}

func (m *Machine) handleScreen(ev PointerEvent) {
	switch ev.Kind {
	case PointerDown:
		m.mu.Lock()
		// A new press supersedes any pending or armed gesture.
		m.cancelGestureLocked()
		m.gesture++
		g := m.gesture
		x, y := ev.X, ev.Y
		m.timer = m.schedule(m.threshold, func() { m.arm(g, x, y) })
		m.mu.Unlock()

	case PointerMove:
		m.mu.Lock()
		if !m.selecting {
			m.mu.Unlock()
			return
		}
		r := boundingBox(m.startX, m.startY, ev.X, ev.Y)
		m.mu.Unlock()
		m.overlay.Update(r)

	case PointerUp:
		m.mu.Lock()
		if m.timer != nil {
			m.timer.Stop()
			m.timer = nil
		}
		if !m.selecting {
			// Released before the threshold fired: no selection.
			m.mu.Unlock()
			return
		}
		m.selecting = false
		m.gesture++
		m.mu.Unlock()

		r := m.overlay.Rect()
		m.overlay.Hide()
		m.recorder.Record(ScreenAreaDescriptor(r))
	}
}

// arm is the deferred long-press callback. It is keyed to the gesture that
// scheduled it; a superseded or cancelled gesture arms nothing. The overlay
// is shown under the lock so a concurrent SetMode cannot hide it first and
// leave a stale box behind.
func (m *Machine) arm(gesture int, x, y float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gesture != m.gesture || m.mode != ModeScreen {
		return
	}
	m.selecting = true
	m.startX, m.startY = x, y
	m.overlay.Show(Rect{Left: x, Top: y})
}

func (m *Machine) cancelGestureLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.selecting {
		m.selecting = false
		m.overlay.Hide()
	}
	m.gesture++
}

// boundingBox is the axis-aligned box between the press anchor and the
// current pointer position.
func boundingBox(x0, y0, x1, y1 float64) Rect {
	return Rect{
		Left:   math.Min(x0, x1),
		Top:    math.Min(y0, y1),
		Width:  math.Abs(x1 - x0),
		Height: math.Abs(y1 - y0),
	}
}

// ScreenAreaDescriptor renders a finished region selection with rounded
// integer pixel values.
func ScreenAreaDescriptor(r Rect) string {
	return fmt.Sprintf("[Screen Area: %dx%d at (%d, %d)]",
		int(math.Round(r.Width)), int(math.Round(r.Height)),
		int(math.Round(r.Left)), int(math.Round(r.Top)))
}

// BoxOverlay is the default in-memory overlay. The HTTP layer exposes its
// state so the UI can render the selection box.
type BoxOverlay struct {
	mu      sync.Mutex
	visible bool
	rect    Rect
}

func NewBoxOverlay() *BoxOverlay {
	return &BoxOverlay{}
}

func (o *BoxOverlay) Show(r Rect) {
	o.mu.Lock()
	o.visible = true
	o.rect = r
	o.mu.Unlock()
}

func (o *BoxOverlay) Update(r Rect) {
	o.mu.Lock()
	o.rect = r
	o.mu.Unlock()
}

func (o *BoxOverlay) Hide() {
	o.mu.Lock()
	o.visible = false
	o.mu.Unlock()
}

func (o *BoxOverlay) Rect() Rect {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rect
}

// Visible reports whether the selection box is currently shown.
func (o *BoxOverlay) Visible() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.visible
}

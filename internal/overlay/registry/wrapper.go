package registry

import (
	"sync"

	"github.com/acetatelabs/acetate/internal/geometry"
)

// Wrapper is the invisible positioning box an instance's content lives in.
// Its inline geometry stays authoritative: dragging and programmatic moves
// write straight through here.
type Wrapper struct {
	mu       sync.RWMutex
	rect     geometry.Rect
	z        int
	attached bool
}

// NewWrapper creates an attached wrapper with the given geometry.
func NewWrapper(rect geometry.Rect, z int) *Wrapper {
	return &Wrapper{rect: rect, z: z, attached: true}
}

// Bounds returns the wrapper's current rectangle.
func (w *Wrapper) Bounds() geometry.Rect {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rect
}

// SetPosition moves the wrapper's origin.
func (w *Wrapper) SetPosition(p geometry.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rect.X, w.rect.Y = p.X, p.Y
}

// SetSize resizes the wrapper.
func (w *Wrapper) SetSize(s geometry.Size) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rect.Width, w.rect.Height = s.Width, s.Height
}

// Z returns the wrapper's stacking order.
func (w *Wrapper) Z() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.z
}

// SetZ changes the wrapper's stacking order.
func (w *Wrapper) SetZ(z int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.z = z
}

// Attached reports whether the wrapper is still part of the surface.
func (w *Wrapper) Attached() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.attached
}

// Detach marks the wrapper as removed from the surface.
func (w *Wrapper) Detach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attached = false
}

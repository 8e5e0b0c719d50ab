// Package drag implements the pointer-driven state machine that lets a user
// reposition one overlay wrapper. The wrapper's own geometry stays
// authoritative: every move writes straight through to the target.
package drag

import (
	"sync"

	"github.com/acetatelabs/acetate/internal/geometry"
	"github.com/acetatelabs/acetate/internal/log"
	"github.com/acetatelabs/acetate/internal/surface"
)

// PointerType classifies pointer events fed to the controller.
type PointerType int

const (
	PointerPress PointerType = iota
	PointerMove
	PointerRelease
	PointerCancel
)

// Button identifies the pressed pointer button.
type Button int

const (
	ButtonNone Button = iota
	ButtonPrimary
	ButtonSecondary
)

// PointerEvent is one pointer or touch event in surface coordinates.
// Touch maps to ButtonPrimary.
type PointerEvent struct {
	Type   PointerType
	Pos    geometry.Point
	Button Button
}

// Target is the wrapper geometry the controller mutates.
type Target interface {
	Bounds() geometry.Rect
	SetPosition(geometry.Point)
}

// Config controls drag behavior for one controller.
type Config struct {
	// Handle returns the draggable sub-region. Nil means the whole
	// wrapper is the handle.
	Handle func() geometry.Rect
	// Interactive reports whether a point is over an interactive child
	// control (button, input, link); presses there never start drags.
	Interactive func(geometry.Point) bool
	// Constrain clamps dragged positions into the boundary.
	Constrain bool
	// Boundary returns the constraint rectangle. Nil means the viewport.
	Boundary func() geometry.Rect
	// OnStart and OnEnd fire on state transitions; the manager uses them
	// to raise the wrapper and restore its stacking afterwards.
	OnStart func()
	OnEnd   func()
}

// State is the controller's externally visible drag state. Read-only to
// everyone but the controller itself.
type State struct {
	Dragging         bool
	WasDragged       bool
	Position         geometry.Point
	OriginalPosition geometry.Point
	StartPointer     geometry.Point
	GrabOffset       geometry.Point
}

// Controller runs the idle -> dragging -> idle machine for one wrapper.
type Controller struct {
	mu       sync.Mutex
	target   Target
	viewport surface.Viewport
	cfg      Config

	enabled bool
	cleaned bool

	state       State
	hasOriginal bool
}

// New creates an enabled controller for the given wrapper.
func New(target Target, vp surface.Viewport, cfg Config) *Controller {
	return &Controller{
		target:   target,
		viewport: vp,
		cfg:      cfg,
		enabled:  true,
	}
}

// HandlePointer feeds one pointer event through the state machine.
// Returns true if the event was consumed by a drag.
func (c *Controller) HandlePointer(ev PointerEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cleaned {
		return false
	}

	switch ev.Type {
	case PointerPress:
		return c.pressLocked(ev)
	case PointerMove:
		return c.moveLocked(ev)
	case PointerRelease, PointerCancel:
		return c.releaseLocked()
	}
	return false
}

func (c *Controller) pressLocked(ev PointerEvent) bool {
	// A disabled controller blocks new drags but an in-flight drag,
	// if any, keeps running.
	if !c.enabled || c.state.Dragging {
		return false
	}
	if ev.Button != ButtonPrimary {
		return false
	}

	handle := c.target.Bounds()
	if c.cfg.Handle != nil {
		handle = c.cfg.Handle()
	}
	if !handle.Contains(ev.Pos) {
		return false
	}
	if c.cfg.Interactive != nil && c.cfg.Interactive(ev.Pos) {
		return false
	}

	bounds := c.target.Bounds()
	c.captureOriginalLocked(bounds.Origin())
	c.state.Dragging = true
	c.state.StartPointer = ev.Pos
	c.state.GrabOffset = ev.Pos.Sub(bounds.Origin())
	c.state.Position = bounds.Origin()

	if c.cfg.OnStart != nil {
		c.cfg.OnStart()
	}
	log.Debug(log.CatDrag, "drag started", "pointer", ev.Pos)
	return true
}

func (c *Controller) moveLocked(ev PointerEvent) bool {
	if !c.state.Dragging {
		return false
	}

	pos := ev.Pos.Sub(c.state.GrabOffset)
	if c.cfg.Constrain {
		size := c.target.Bounds().Size()
		pos = geometry.RectAt(pos, size).ClampInto(c.boundaryLocked()).Origin()
	}

	c.state.Position = pos
	c.state.WasDragged = true
	c.target.SetPosition(pos)
	return true
}

func (c *Controller) releaseLocked() bool {
	if !c.state.Dragging {
		return false
	}
	c.state.Dragging = false
	if c.cfg.OnEnd != nil {
		c.cfg.OnEnd()
	}
	log.Debug(log.CatDrag, "drag ended", "position", c.state.Position)
	return true
}

func (c *Controller) boundaryLocked() geometry.Rect {
	if c.cfg.Boundary != nil {
		return c.cfg.Boundary()
	}
	size := c.viewport.Size()
	scroll := c.viewport.ScrollOffset()
	return geometry.Rect{X: scroll.X, Y: scroll.Y, Width: size.Width, Height: size.Height}
}

func (c *Controller) captureOriginalLocked(origin geometry.Point) {
	if !c.hasOriginal {
		c.state.OriginalPosition = origin
		c.hasOriginal = true
	}
}

// State returns a copy of the drag state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetEnabled blocks (or allows) new drag starts. An in-progress drag is
// not disturbed.
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

// SetPosition moves the wrapper programmatically, consistent with a manual
// drag: the original position is captured lazily and WasDragged is set.
func (c *Controller) SetPosition(p geometry.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleaned {
		return
	}
	c.captureOriginalLocked(c.target.Bounds().Origin())
	c.state.Position = p
	c.state.WasDragged = true
	c.target.SetPosition(p)
}

// GetPosition returns the wrapper's current origin.
func (c *Controller) GetPosition() geometry.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target.Bounds().Origin()
}

// ResetDraggedState moves the wrapper back to its original position and
// clears WasDragged.
func (c *Controller) ResetDraggedState() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleaned || !c.hasOriginal {
		c.state.WasDragged = false
		return
	}
	c.state.Position = c.state.OriginalPosition
	c.state.WasDragged = false
	c.target.SetPosition(c.state.OriginalPosition)
}

// Cleanup ends any in-flight drag and detaches the controller. Safe to
// call multiple times.
func (c *Controller) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleaned {
		return
	}
	if c.state.Dragging {
		c.state.Dragging = false
		if c.cfg.OnEnd != nil {
			c.cfg.OnEnd()
		}
	}
	c.cleaned = true
	c.enabled = false
}

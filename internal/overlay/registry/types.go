// Package registry is the single source of truth for overlay registrations
// and live instances. It holds no geometry or rendering knowledge beyond
// the positioning wrappers it sweeps.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/acetatelabs/acetate/internal/geometry"
	"github.com/acetatelabs/acetate/internal/overlay/drag"
	"github.com/acetatelabs/acetate/internal/overlay/textrange"
	"github.com/acetatelabs/acetate/internal/surface"
)

// OverlayID uniquely identifies a live overlay instance.
type OverlayID string

// NewOverlayID generates a new unique OverlayID using UUID v4.
func NewOverlayID() OverlayID {
	return OverlayID(uuid.New().String())
}

// String returns the string representation of the OverlayID.
func (id OverlayID) String() string {
	return string(id)
}

// RegistrationID uniquely identifies a registration.
type RegistrationID string

// NewRegistrationID generates a new unique RegistrationID using UUID v4.
func NewRegistrationID() RegistrationID {
	return RegistrationID(uuid.New().String())
}

// String returns the string representation of the RegistrationID.
func (id RegistrationID) String() string {
	return string(id)
}

// Kind is the registration's target-resolution strategy. It is fixed at
// registration time and decides which factory field is used.
type Kind string

const (
	// KindStandalone overlays anchor at an absolute position.
	KindStandalone Kind = "standalone"
	// KindElement overlays anchor to elements found by a resolver.
	KindElement Kind = "element"
	// KindText overlays anchor to text range matches.
	KindText Kind = "text"
)

// Content is what a content factory produces: the rendered body, optional
// explicit dimensions (measured from Body when zero), an opaque payload
// returned to the caller, and an optional cleanup run once on removal.
type Content struct {
	Body    string
	Size    geometry.Size
	Payload any
	Cleanup func()
}

// Capability is the narrow, one-directional view of the manager handed to
// content factories. It never exposes the manager's internals, so content
// cannot hold a strong back-reference.
type Capability interface {
	AddOverlay(factory StandaloneFactory, opts Options) (OverlayID, error)
	AddElementOverlay(resolver ElementResolver, factory ElementFactory, opts Options) (RegistrationID, error)
	AddTextOverlay(pattern string, factory TextFactory, opts Options) (RegistrationID, error)
	AddStyles(name string, style lipgloss.Style)
	RemoveOverlay(id OverlayID) bool
	RemoveOverlayRegistration(id RegistrationID) bool
	GetOverlay(id OverlayID) (*Instance, bool)
	GetAllActiveOverlays() []*Instance
	ClearCache()
	Destroy()
	GetMetrics() Metrics
	SetDebugMode(enabled bool)
}

// Callbacks is the object given to every content factory.
type Callbacks struct {
	CloseOverlay func()
	BringToFront func()
	Engine       Capability
}

// ElementResolver finds anchor elements in the surface. It is re-evaluated
// on every processing turn.
type ElementResolver func(s surface.Surface) []surface.Node

// StandaloneFactory builds content for an absolutely positioned overlay.
type StandaloneFactory func(cb Callbacks) (*Content, error)

// ElementFactory builds content for an element-anchored overlay.
type ElementFactory func(target surface.Node, cb Callbacks) (*Content, error)

// TextFactory builds content for a text-match-anchored overlay.
type TextFactory func(match *textrange.Match, cb Callbacks) (*Content, error)

// AbsolutePosition places a standalone overlay. Right/Bottom measure from
// the far viewport edges and only apply when Left/Top are nil.
type AbsolutePosition struct {
	Top    *int
	Left   *int
	Right  *int
	Bottom *int
}

// Animation names the enter/exit treatments applied by the host renderer.
// The engine carries these opaquely.
type Animation struct {
	Enter    string
	Exit     string
	Duration time.Duration
}

// Options are the caller-supplied creation options. Nil pointer fields
// take the documented defaults.
type Options struct {
	Draggable             bool
	DragHandleSelector    string
	PreferredSide         geometry.Side
	Offset                geometry.Point
	DismissOnOutsideClick *bool
	DismissOnEscape       *bool
	BaseZIndex            int
	Animation             Animation
	// Position applies to standalone overlays only.
	Position *AbsolutePosition
}

// ResolvedOptions are Options merged over defaults. Instances hold a
// reference to their registration's resolved options, never a copy.
type ResolvedOptions struct {
	Draggable             bool
	DragHandleSelector    string
	PreferredSide         geometry.Side
	Offset                geometry.Point
	DismissOnOutsideClick bool
	DismissOnEscape       bool
	BaseZIndex            int
	Animation             Animation
	Position              *AbsolutePosition
}

// DefaultBaseZIndex is the stacking floor for overlays.
const DefaultBaseZIndex = 10000

// Resolve merges the options over the documented defaults.
func (o Options) Resolve() ResolvedOptions {
	out := ResolvedOptions{
		Draggable:             o.Draggable,
		DragHandleSelector:    o.DragHandleSelector,
		PreferredSide:         o.PreferredSide,
		Offset:                o.Offset,
		DismissOnOutsideClick: true,
		DismissOnEscape:       true,
		BaseZIndex:            DefaultBaseZIndex,
		Animation:             o.Animation,
		Position:              o.Position,
	}
	if o.DismissOnOutsideClick != nil {
		out.DismissOnOutsideClick = *o.DismissOnOutsideClick
	}
	if o.DismissOnEscape != nil {
		out.DismissOnEscape = *o.DismissOnEscape
	}
	if !out.PreferredSide.IsValid() {
		out.PreferredSide = geometry.SideBelow
	}
	if o.BaseZIndex > 0 {
		out.BaseZIndex = o.BaseZIndex
	}
	return out
}

// TargetKind tags what an instance is anchored to.
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetElement
	TargetText
)

// Target is the anchor an instance was created from. Immutable once the
// instance exists; positioning degrades gracefully if the anchor later
// leaves the surface.
type Target struct {
	Kind  TargetKind
	Node  surface.Node
	Match *textrange.Match
}

// Registration is a persistent overlay creation rule.
type Registration struct {
	ID      RegistrationID
	Kind    Kind
	Pattern string

	Resolver   ElementResolver
	Standalone StandaloneFactory
	Element    ElementFactory
	Text       TextFactory

	Options   ResolvedOptions
	Instances map[OverlayID]*Instance
	CreatedAt time.Time

	// Usage stats, maintained by the registry.
	Created       int
	removed       int
	totalLifetime time.Duration
}

// Validate checks the tagged factory union once, at registration time.
func (r *Registration) Validate() error {
	switch r.Kind {
	case KindStandalone:
		if r.Standalone == nil || r.Element != nil || r.Text != nil {
			return fmt.Errorf("standalone registration requires exactly a standalone factory")
		}
	case KindElement:
		if r.Element == nil || r.Resolver == nil || r.Standalone != nil || r.Text != nil {
			return fmt.Errorf("element registration requires a resolver and an element factory")
		}
	case KindText:
		if r.Text == nil || r.Pattern == "" || r.Standalone != nil || r.Element != nil {
			return fmt.Errorf("text registration requires a pattern and a text factory")
		}
	default:
		return fmt.Errorf("unknown registration kind %q", r.Kind)
	}
	return nil
}

// ActiveCount returns the number of live instances.
func (r *Registration) ActiveCount() int {
	return len(r.Instances)
}

// AvgLifetime returns the running average lifetime of removed instances.
func (r *Registration) AvgLifetime() time.Duration {
	if r.removed == 0 {
		return 0
	}
	return r.totalLifetime / time.Duration(r.removed)
}

// Instance is one live, on-screen overlay.
type Instance struct {
	ID             OverlayID
	RegistrationID RegistrationID
	Body           string
	Wrapper        *Wrapper
	Payload        any
	Options        *ResolvedOptions
	Drag           *drag.Controller
	Target         Target
	Active         bool
	CreatedAt      time.Time

	// AnchorBounds are the target bounds the instance was last placed
	// against. Placement is refreshed when the anchor moves away from
	// them.
	AnchorBounds geometry.Rect

	// Timing metrics captured during creation.
	RenderTime   time.Duration
	PositionTime time.Duration

	cleanup     func()
	cleanupOnce sync.Once
}

// SetCleanup installs the instance's cleanup callback.
func (i *Instance) SetCleanup(fn func()) {
	i.cleanup = fn
}

// RunCleanup invokes the cleanup callback at most once. A panicking
// cleanup is swallowed; the caller records it.
func (i *Instance) RunCleanup() (err error) {
	i.cleanupOnce.Do(func() {
		if i.cleanup == nil {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("cleanup panicked: %v", r)
			}
		}()
		i.cleanup()
	})
	return err
}

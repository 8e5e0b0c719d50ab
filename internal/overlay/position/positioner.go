// Package position computes overlay placement: preferred side first, fixed
// flip order on failure, collision avoidance against registered overlay
// bounds, and a guaranteed clamped fallback when nothing fits.
package position

import (
	"sync"

	"github.com/acetatelabs/acetate/internal/geometry"
	"github.com/acetatelabs/acetate/internal/log"
	"github.com/acetatelabs/acetate/internal/surface"
)

// Config controls fit and collision tests.
type Config struct {
	// ViewportMargin shrinks the viewport on all sides for the fit test.
	ViewportMargin int
	// CollisionMargin expands registered overlay bounds for the
	// collision test.
	CollisionMargin int
}

// DefaultConfig returns the documented default margins.
func DefaultConfig() Config {
	return Config{ViewportMargin: 10, CollisionMargin: 5}
}

// Request describes one placement computation.
type Request struct {
	// Size is the overlay's pixel dimensions in cells.
	Size geometry.Size
	// Target is the anchor bounds the overlay is placed relative to.
	Target geometry.Rect
	// PreferredSide is tried first. Invalid values fall back to below.
	PreferredSide geometry.Side
	// Offset shifts the placement away from the target on both axes.
	Offset geometry.Point
	// AvoidCollisions enables the registered-bounds collision test.
	AvoidCollisions bool
	// Exclude names an overlay id ignored during collision checks,
	// normally the overlay being placed.
	Exclude string
}

// Space holds the available cells between the target and the margin-shrunk
// viewport on each side. Values can be negative for off-screen targets.
type Space struct {
	Above int
	Below int
	Left  int
	Right int
}

// Result is the computed placement. Position always holds a usable
// coordinate, even when FitsInViewport is false.
type Result struct {
	Position       geometry.Point
	Side           geometry.Side
	FitsInViewport bool
	WasFlipped     bool
	Space          Space
}

// alternates is the fixed retry order keyed by the preferred side.
var alternates = map[geometry.Side][]geometry.Side{
	geometry.SideBelow: {geometry.SideAbove, geometry.SideRight, geometry.SideLeft},
	geometry.SideAbove: {geometry.SideBelow, geometry.SideRight, geometry.SideLeft},
	geometry.SideRight: {geometry.SideLeft, geometry.SideBelow, geometry.SideAbove},
	geometry.SideLeft:  {geometry.SideRight, geometry.SideBelow, geometry.SideAbove},
}

// Positioner computes placements and keeps the advisory collision registry
// of currently-placed overlay bounds. It owns no overlay lifetimes.
type Positioner struct {
	mu       sync.RWMutex
	viewport surface.Viewport
	cfg      Config
	bounds   map[string]geometry.Rect
}

// New creates a Positioner over the given viewport.
func New(vp surface.Viewport, cfg Config) *Positioner {
	if cfg.ViewportMargin < 0 {
		cfg.ViewportMargin = 0
	}
	if cfg.CollisionMargin < 0 {
		cfg.CollisionMargin = 0
	}
	return &Positioner{
		viewport: vp,
		cfg:      cfg,
		bounds:   make(map[string]geometry.Rect),
	}
}

// RegisterBounds records an overlay's live bounds for collision avoidance.
func (p *Positioner) RegisterBounds(id string, r geometry.Rect) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bounds[id] = r
}

// UnregisterBounds removes an overlay from the collision registry.
func (p *Positioner) UnregisterBounds(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.bounds, id)
}

// RegisteredBounds returns a snapshot of the collision registry.
func (p *Positioner) RegisteredBounds() map[string]geometry.Rect {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]geometry.Rect, len(p.bounds))
	for id, r := range p.bounds {
		out[id] = r
	}
	return out
}

// Reset clears the collision registry.
func (p *Positioner) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bounds = make(map[string]geometry.Rect)
}

// Position computes the best placement for the request. It never fails:
// when no side fits clear of collisions, the preferred-side rectangle is
// clamped into the margin-shrunk viewport and FitsInViewport reports false.
func (p *Positioner) Position(req Request) Result {
	preferred := req.PreferredSide
	if !preferred.IsValid() {
		preferred = geometry.SideBelow
	}

	inner := p.innerViewport()
	space := Space{
		Above: req.Target.Y - inner.Y,
		Below: inner.Bottom() - req.Target.Bottom(),
		Left:  req.Target.X - inner.X,
		Right: inner.Right() - req.Target.Right(),
	}

	if rect, ok := p.try(req, preferred, inner); ok {
		return Result{
			Position:       rect.Origin(),
			Side:           preferred,
			FitsInViewport: true,
			WasFlipped:     false,
			Space:          space,
		}
	}

	for _, side := range alternates[preferred] {
		if rect, ok := p.try(req, side, inner); ok {
			log.Debug(log.CatPosition, "flipped placement",
				"preferred", preferred, "actual", side)
			return Result{
				Position:       rect.Origin(),
				Side:           side,
				FitsInViewport: true,
				WasFlipped:     true,
				Space:          space,
			}
		}
	}

	// Best-effort fallback: clamp the preferred-side rectangle into the
	// same margin-shrunk viewport the fit test uses.
	clamped := p.rectFor(req, preferred).ClampInto(inner)
	log.Debug(log.CatPosition, "clamped fallback placement", "side", preferred)
	return Result{
		Position:       clamped.Origin(),
		Side:           preferred,
		FitsInViewport: false,
		WasFlipped:     false,
		Space:          space,
	}
}

func (p *Positioner) innerViewport() geometry.Rect {
	size := p.viewport.Size()
	scroll := p.viewport.ScrollOffset()
	vp := geometry.Rect{X: scroll.X, Y: scroll.Y, Width: size.Width, Height: size.Height}
	return vp.Expand(-p.cfg.ViewportMargin)
}

// try returns the candidate rectangle for a side and whether it both fits
// the viewport and, when requested, avoids registered overlays.
func (p *Positioner) try(req Request, side geometry.Side, inner geometry.Rect) (geometry.Rect, bool) {
	rect := p.rectFor(req, side)
	if !inner.ContainsRect(rect) {
		return rect, false
	}
	if req.AvoidCollisions && p.collides(rect, req.Exclude) {
		return rect, false
	}
	return rect, true
}

func (p *Positioner) rectFor(req Request, side geometry.Side) geometry.Rect {
	t := req.Target
	s := req.Size
	var origin geometry.Point
	switch side {
	case geometry.SideAbove:
		origin = geometry.Point{X: t.X + req.Offset.X, Y: t.Y - s.Height - req.Offset.Y}
	case geometry.SideBelow:
		origin = geometry.Point{X: t.X + req.Offset.X, Y: t.Bottom() + req.Offset.Y}
	case geometry.SideLeft:
		origin = geometry.Point{X: t.X - s.Width - req.Offset.X, Y: t.Y + req.Offset.Y}
	case geometry.SideRight:
		origin = geometry.Point{X: t.Right() + req.Offset.X, Y: t.Y + req.Offset.Y}
	}
	return geometry.RectAt(origin, s)
}

func (p *Positioner) collides(rect geometry.Rect, exclude string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for id, r := range p.bounds {
		if id == exclude {
			continue
		}
		if r.Expand(p.cfg.CollisionMargin).Intersects(rect) {
			return true
		}
	}
	return false
}

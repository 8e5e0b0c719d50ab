// Package overlay is the engine's orchestrator. A Manager owns one
// registry, one positioner, one text tracker and one style scope, and
// turns registrations into live, interactive overlay instances during
// its cooperative Process turn.
package overlay

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/acetatelabs/acetate/internal/geometry"
	"github.com/acetatelabs/acetate/internal/log"
	"github.com/acetatelabs/acetate/internal/measure"
	"github.com/acetatelabs/acetate/internal/overlay/drag"
	"github.com/acetatelabs/acetate/internal/overlay/position"
	"github.com/acetatelabs/acetate/internal/overlay/registry"
	"github.com/acetatelabs/acetate/internal/overlay/textrange"
	"github.com/acetatelabs/acetate/internal/surface"
	"github.com/acetatelabs/acetate/internal/tracing"
)

// outsideClickArmDelay keeps the click that triggered a creation from
// immediately dismissing the new overlay.
const outsideClickArmDelay = 100 * time.Millisecond

// Config assembles a manager's collaborators.
type Config struct {
	Position position.Config
	Tracker  textrange.Config
	Tracing  *tracing.Provider
}

// DefaultConfig returns the documented defaults with tracing disabled.
func DefaultConfig() Config {
	return Config{
		Position: position.DefaultConfig(),
		Tracker:  textrange.DefaultConfig(),
	}
}

// pendingCreate is a standalone creation queued for the next Process
// turn. The id was already handed to the caller.
type pendingCreate struct {
	id    registry.OverlayID
	regID registry.RegistrationID
}

// Manager orchestrates overlay lifecycles over one surface and viewport.
// All collections are owned by the manager and torn down on Destroy, so
// independent managers can coexist in one process.
type Manager struct {
	surf surface.Surface
	vp   surface.Viewport

	reg     *registry.Registry
	pos     *position.Positioner
	tracker *textrange.Tracker
	styles  *StyleSheet
	meas    *measure.Measurer
	tracer  trace.Tracer

	mu        sync.Mutex
	zNext     int
	creating  bool
	pending   []pendingCreate
	debug     bool
	destroyed bool

	// now is swapped in tests to control the outside-click arm window.
	now func() time.Time
}

// New constructs a manager over the given surface and viewport.
func New(surf surface.Surface, vp surface.Viewport, cfg Config) *Manager {
	if cfg.Tracing == nil {
		cfg.Tracing, _ = tracing.NewProvider(tracing.Config{})
	}
	return &Manager{
		surf:    surf,
		vp:      vp,
		reg:     registry.New(),
		pos:     position.New(vp, cfg.Position),
		tracker: textrange.NewTracker(surf, cfg.Tracker),
		styles:  NewStyleSheet(),
		meas:    measure.New(),
		tracer:  cfg.Tracing.Tracer(),
		now:     time.Now,
	}
}

// Tracker exposes the manager's text range tracker for hosts that want
// selection tracking or direct pattern queries.
func (m *Manager) Tracker() *textrange.Tracker {
	return m.tracker
}

// Styles exposes the shared style scope.
func (m *Manager) Styles() *StyleSheet {
	return m.styles
}

// Positioner exposes the collision registry, read-only use only.
func (m *Manager) Positioner() *position.Positioner {
	return m.pos
}

// AddOverlay registers a standalone overlay. The returned id is usable
// immediately; the instance itself is created on the next Process turn.
// A call issued while another creation is in flight is dropped, not
// queued.
func (m *Manager) AddOverlay(factory registry.StandaloneFactory, opts registry.Options) (registry.OverlayID, error) {
	if factory == nil {
		return "", newError(CodeInitFailure, "register", "", fmt.Errorf("nil content factory"))
	}
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return "", newError(CodeInitFailure, "register", "", fmt.Errorf("manager destroyed"))
	}
	if m.creating {
		m.mu.Unlock()
		err := newError(CodeInitFailure, "register", "", fmt.Errorf("creation already in flight, registration dropped"))
		m.recordError(err)
		return "", err
	}
	m.mu.Unlock()

	regID, err := m.reg.AddRegistration(&registry.Registration{
		Kind:       registry.KindStandalone,
		Standalone: factory,
	}, opts)
	if err != nil {
		return "", newError(CodeInitFailure, "register", "", err)
	}

	id := registry.NewOverlayID()
	m.mu.Lock()
	m.pending = append(m.pending, pendingCreate{id: id, regID: regID})
	m.mu.Unlock()

	log.Debug(log.CatOverlay, "standalone overlay registered", "id", id, "registration", regID)
	return id, nil
}

// AddElementOverlay registers an element-anchored overlay rule. The
// resolver is re-evaluated on every Process turn; each resolved node
// without a live instance gets one.
func (m *Manager) AddElementOverlay(resolver registry.ElementResolver, factory registry.ElementFactory, opts registry.Options) (registry.RegistrationID, error) {
	if resolver == nil || factory == nil {
		return "", newError(CodeInitFailure, "register", "", fmt.Errorf("nil resolver or factory"))
	}
	if m.isDestroyed() {
		return "", newError(CodeInitFailure, "register", "", fmt.Errorf("manager destroyed"))
	}

	regID, err := m.reg.AddRegistration(&registry.Registration{
		Kind:     registry.KindElement,
		Resolver: resolver,
		Element:  factory,
	}, opts)
	if err != nil {
		return "", newError(CodeInitFailure, "register", "", err)
	}

	log.Debug(log.CatOverlay, "element overlay registered", "registration", regID)
	return regID, nil
}

// AddTextOverlay registers a text-pattern overlay rule. Matches come
// from the text range tracker; matches that fail validation never anchor
// an instance.
func (m *Manager) AddTextOverlay(pattern string, factory registry.TextFactory, opts registry.Options) (registry.RegistrationID, error) {
	if pattern == "" || factory == nil {
		return "", newError(CodeInvalidTarget, "register", "", fmt.Errorf("text overlay requires a pattern and a factory"))
	}
	if m.isDestroyed() {
		return "", newError(CodeInitFailure, "register", "", fmt.Errorf("manager destroyed"))
	}

	regID, err := m.reg.AddRegistration(&registry.Registration{
		Kind:    registry.KindText,
		Pattern: pattern,
		Text:    factory,
	}, opts)
	if err != nil {
		return "", newError(CodeInitFailure, "register", "", err)
	}

	log.Debug(log.CatOverlay, "text overlay registered", "registration", regID, "pattern", pattern)
	return regID, nil
}

// Process runs one cooperative turn: drains pending standalone
// creations, re-evaluates element and text registrations against the
// surface, prunes instances whose anchors left, and sweeps stale
// bookkeeping. Returns the number of instances created this turn.
func (m *Manager) Process() int {
	if m.isDestroyed() {
		return 0
	}
	ctx, span := m.tracer.Start(context.Background(), tracing.SpanProcess)
	defer span.End()

	m.mu.Lock()
	queue := m.pending
	m.pending = nil
	m.mu.Unlock()
	span.SetAttributes(attribute.Int(tracing.AttrPendingCount, len(queue)))

	created := 0
	for _, pc := range queue {
		reg, ok := m.reg.GetRegistration(pc.regID)
		if !ok {
			continue
		}
		if m.createInstance(ctx, reg, registry.Target{}, pc.id) {
			created++
		}
	}

	for _, reg := range m.reg.Registrations() {
		switch reg.Kind {
		case registry.KindElement:
			created += m.processElementRegistration(ctx, reg)
			m.repositionInstances(reg, span)
		case registry.KindText:
			created += m.processTextRegistration(ctx, reg)
			m.repositionInstances(reg, span)
		}
	}

	removed := len(m.reg.Cleanup())
	span.SetAttributes(
		attribute.Int(tracing.AttrCreatedCount, created),
		attribute.Int(tracing.AttrRemovedCount, removed),
	)
	return created
}

func (m *Manager) processElementRegistration(ctx context.Context, reg *registry.Registration) int {
	// Prune instances whose anchor left the surface.
	for _, inst := range instancesOf(reg) {
		if inst.Target.Node != nil && !m.surf.Attached(inst.Target.Node) {
			m.RemoveOverlay(inst.ID)
		}
	}

	anchored := make(map[string]bool)
	for _, inst := range instancesOf(reg) {
		if inst.Active && inst.Target.Node != nil {
			anchored[inst.Target.Node.ID()] = true
		}
	}

	created := 0
	for _, node := range reg.Resolver(m.surf) {
		if node == nil || anchored[node.ID()] {
			continue
		}
		if m.createInstance(ctx, reg, registry.Target{Kind: registry.TargetElement, Node: node}, "") {
			anchored[node.ID()] = true
			created++
		}
	}
	return created
}

func (m *Manager) processTextRegistration(ctx context.Context, reg *registry.Registration) int {
	matches := m.tracker.FindMatches(reg.Pattern, nil)

	current := make(map[string]*textrange.Match, len(matches))
	for _, match := range matches {
		current[matchKey(match.Node.ID(), match.Start, match.End)] = match
	}

	// Prune instances whose match no longer exists at its recorded span.
	anchored := make(map[string]bool)
	for _, inst := range instancesOf(reg) {
		if inst.Target.Match == nil {
			continue
		}
		key := matchKey(inst.Target.Match.Node.ID(), inst.Target.Match.Start, inst.Target.Match.End)
		if _, ok := current[key]; !ok || !m.tracker.Validate(inst.Target.Match) {
			m.RemoveOverlay(inst.ID)
			continue
		}
		if inst.Active {
			anchored[key] = true
		}
	}

	created := 0
	for key, match := range current {
		if anchored[key] {
			continue
		}
		if m.createInstance(ctx, reg, registry.Target{Kind: registry.TargetText, Match: match}, "") {
			anchored[key] = true
			created++
		}
	}
	return created
}

// repositionInstances re-places every live anchored instance whose
// anchor bounds moved since its last placement, so overlays follow
// their anchors across scrolls, resizes and layout mutations. Dragged
// wrappers keep the position the user gave them.
func (m *Manager) repositionInstances(reg *registry.Registration, span trace.Span) {
	for _, inst := range instancesOf(reg) {
		if !inst.Active || inst.Wrapper == nil {
			continue
		}
		if inst.Drag != nil && inst.Drag.State().WasDragged {
			continue
		}
		bounds, ok := m.targetBounds(inst.Target)
		if !ok || bounds == inst.AnchorBounds {
			continue
		}
		rect, positionTime, err := m.place(reg, inst.Target, inst.Wrapper.Bounds().Size(), inst.ID, span)
		if err != nil {
			m.recordError(newError(CodePositioning, "reposition", inst.ID, err))
			continue
		}
		m.reg.RecordPositionTime(positionTime)
		inst.Wrapper.SetPosition(rect.Origin())
		m.pos.RegisterBounds(inst.ID.String(), inst.Wrapper.Bounds())
		inst.AnchorBounds = bounds
		log.Debug(log.CatOverlay, "overlay re-placed",
			"id", inst.ID, "x", rect.X, "y", rect.Y)
	}
}

func matchKey(nodeID string, start, end int) string {
	return fmt.Sprintf("%s:%d:%d", nodeID, start, end)
}

func instancesOf(reg *registry.Registration) []*registry.Instance {
	out := make([]*registry.Instance, 0, len(reg.Instances))
	for _, inst := range reg.Instances {
		out = append(out, inst)
	}
	return out
}

// createInstance runs the full creation sequence for one instance. It is
// guarded by the manager's re-entrancy flag: a creation triggered from
// inside a content factory is dropped and recorded, never queued.
func (m *Manager) createInstance(ctx context.Context, reg *registry.Registration, target registry.Target, presetID registry.OverlayID) bool {
	m.mu.Lock()
	if m.creating {
		m.mu.Unlock()
		m.recordError(newError(CodeInitFailure, "create", presetID, fmt.Errorf("re-entrant creation dropped")))
		return false
	}
	m.creating = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.creating = false
		m.mu.Unlock()
	}()

	ctx, span := m.tracer.Start(ctx, tracing.SpanCreate,
		trace.WithAttributes(attribute.String(tracing.AttrRegistrationKind, string(reg.Kind))))
	defer span.End()

	if m.surf.Root() == nil {
		m.recordError(newError(CodeContainerNotFound, "create", presetID, fmt.Errorf("surface has no root")))
		return false
	}

	id := presetID
	if id == "" {
		id = registry.NewOverlayID()
	}
	span.SetAttributes(attribute.String(tracing.AttrOverlayID, id.String()))

	cb := registry.Callbacks{
		CloseOverlay: func() { m.RemoveOverlay(id) },
		BringToFront: func() { m.bringToFront(id) },
		Engine:       m,
	}

	renderStart := m.now()
	content, err := m.invokeFactory(reg, target, cb)
	renderTime := m.now().Sub(renderStart)
	m.reg.RecordRenderTime(renderTime)
	if err != nil {
		m.recordError(newError(CodeContentCreate, "create", id, err))
		return false
	}
	if content == nil {
		m.recordError(newError(CodeContentCreate, "create", id, fmt.Errorf("factory returned no content")))
		return false
	}
	span.AddEvent(tracing.EventContentRendered)

	size := content.Size
	if size.IsZero() {
		// Auto-sized bodies wrap to the viewport so a long single line
		// cannot produce an unplaceable overlay.
		if vw := m.vp.Size().Width; vw > 0 {
			content.Body = measure.Wrap(content.Body, vw)
		}
		size = m.meas.Measure(ctx, content.Body).Size()
	}

	m.mu.Lock()
	m.zNext++
	z := reg.Options.BaseZIndex + m.zNext
	m.mu.Unlock()

	rect, positionTime, err := m.place(reg, target, size, id, span)
	if err != nil {
		m.recordError(newError(CodePositioning, "create", id, err))
		return false
	}
	m.reg.RecordPositionTime(positionTime)

	wrapper := registry.NewWrapper(rect, z)

	var controller *drag.Controller
	if reg.Options.Draggable {
		controller, err = m.attachDrag(wrapper, reg.Options.DragHandleSelector)
		if err != nil {
			// Non-fatal: the overlay shows, it just cannot be dragged.
			m.recordError(newError(CodeDragSetup, "create", id, err))
		} else {
			span.AddEvent(tracing.EventDragAttached)
		}
	}

	inst := &registry.Instance{
		ID:             id,
		RegistrationID: reg.ID,
		Body:           content.Body,
		Wrapper:        wrapper,
		Payload:        content.Payload,
		Drag:           controller,
		Target:         target,
		Active:         true,
		CreatedAt:      m.now(),
		RenderTime:     renderTime,
		PositionTime:   positionTime,
	}
	if ab, ok := m.targetBounds(target); ok {
		inst.AnchorBounds = ab
	}
	inst.SetCleanup(content.Cleanup)

	if !m.reg.AddInstance(reg.ID, inst) {
		if controller != nil {
			controller.Cleanup()
		}
		return false
	}

	// Interaction listeners only see fully registered instances; the
	// collision set is updated in the same breath.
	m.pos.RegisterBounds(id.String(), wrapper.Bounds())
	span.AddEvent(tracing.EventListenersArmed)

	log.Info(log.CatOverlay, "overlay created",
		"id", id, "kind", reg.Kind, "z", z,
		"x", rect.X, "y", rect.Y, "w", rect.Width, "h", rect.Height)
	return true
}

// invokeFactory dispatches to the registration's factory. Panics become
// errors; a panicking factory costs only its own instance.
func (m *Manager) invokeFactory(reg *registry.Registration, target registry.Target, cb registry.Callbacks) (content *registry.Content, err error) {
	defer func() {
		if r := recover(); r != nil {
			content = nil
			err = fmt.Errorf("content factory panicked: %v", r)
		}
	}()

	switch reg.Kind {
	case registry.KindStandalone:
		return reg.Standalone(cb)
	case registry.KindElement:
		if target.Node == nil {
			return nil, newError(CodeInvalidTarget, "create", "", fmt.Errorf("element factory invoked without a node target"))
		}
		return reg.Element(target.Node, cb)
	case registry.KindText:
		if target.Match == nil {
			return nil, newError(CodeInvalidTarget, "create", "", fmt.Errorf("text factory invoked without a match target"))
		}
		return reg.Text(target.Match, cb)
	default:
		return nil, fmt.Errorf("unknown registration kind %q", reg.Kind)
	}
}

// place computes the instance's rectangle. Standalone overlays resolve
// their absolute position against the viewport; anchored overlays go
// through the positioner.
func (m *Manager) place(reg *registry.Registration, target registry.Target, size geometry.Size, id registry.OverlayID, span trace.Span) (geometry.Rect, time.Duration, error) {
	start := m.now()

	if reg.Kind == registry.KindStandalone {
		origin := m.resolveAbsolute(reg.Options.Position, size)
		return geometry.RectAt(origin, size), m.now().Sub(start), nil
	}

	targetBounds, ok := m.targetBounds(target)
	if !ok {
		return geometry.Rect{}, m.now().Sub(start), fmt.Errorf("anchor has no measurable bounds")
	}

	res := m.pos.Position(position.Request{
		Size:            size,
		Target:          targetBounds,
		PreferredSide:   reg.Options.PreferredSide,
		Offset:          reg.Options.Offset,
		AvoidCollisions: true,
		Exclude:         id.String(),
	})
	span.AddEvent(tracing.EventPlacementChosen)
	span.SetAttributes(
		attribute.String(tracing.AttrOverlaySide, string(res.Side)),
		attribute.Bool(tracing.AttrOverlayFlipped, res.WasFlipped),
	)
	return geometry.RectAt(res.Position, size), m.now().Sub(start), nil
}

func (m *Manager) targetBounds(target registry.Target) (geometry.Rect, bool) {
	switch target.Kind {
	case registry.TargetElement:
		return m.surf.Bounds(target.Node)
	case registry.TargetText:
		if target.Match == nil {
			return geometry.Rect{}, false
		}
		return target.Match.Bounds, true
	default:
		return geometry.Rect{}, false
	}
}

// resolveAbsolute turns an absolute position spec into a viewport
// coordinate. Right and Bottom measure from the far edges and lose to
// Left and Top when both are set. Nil spec or nil fields pin to origin.
func (m *Manager) resolveAbsolute(pos *registry.AbsolutePosition, size geometry.Size) geometry.Point {
	origin := m.vp.ScrollOffset()
	if pos == nil {
		return origin
	}
	vp := m.vp.Size()

	p := origin
	switch {
	case pos.Left != nil:
		p.X = origin.X + *pos.Left
	case pos.Right != nil:
		p.X = origin.X + vp.Width - *pos.Right - size.Width
	}
	switch {
	case pos.Top != nil:
		p.Y = origin.Y + *pos.Top
	case pos.Bottom != nil:
		p.Y = origin.Y + vp.Height - *pos.Bottom - size.Height
	}
	return p
}

// attachDrag builds the instance's drag controller. The handle selector
// narrows the grab region; "" means the whole wrapper, "top" its first
// row.
func (m *Manager) attachDrag(wrapper *registry.Wrapper, selector string) (controller *drag.Controller, err error) {
	defer func() {
		if r := recover(); r != nil {
			controller = nil
			err = fmt.Errorf("drag setup panicked: %v", r)
		}
	}()

	cfg := drag.Config{Constrain: true}
	switch selector {
	case "":
	case "top", "title":
		cfg.Handle = func() geometry.Rect {
			b := wrapper.Bounds()
			return geometry.Rect{X: b.X, Y: b.Y, Width: b.Width, Height: 1}
		}
	default:
		return nil, fmt.Errorf("unknown drag handle selector %q", selector)
	}
	return drag.New(wrapper, m.vp, cfg), nil
}

// RemoveOverlay removes one instance. Every teardown step is attempted
// even when an earlier one fails; the return reports whether the
// instance existed and was removed.
func (m *Manager) RemoveOverlay(id registry.OverlayID) bool {
	inst, ok := m.reg.Get(id)
	if !ok {
		return false
	}
	_, span := m.tracer.Start(context.Background(), tracing.SpanRemove,
		trace.WithAttributes(attribute.String(tracing.AttrOverlayID, id.String())))
	defer span.End()

	m.teardown(inst)
	removed, cleanupErr := m.reg.RemoveInstance(id)
	if cleanupErr != nil {
		m.recordError(newError(CodeCleanup, "remove", id, cleanupErr))
	}
	m.pos.UnregisterBounds(id.String())
	span.AddEvent(tracing.EventCleanupCompleted)

	log.Info(log.CatOverlay, "overlay removed", "id", id)
	return removed
}

// teardown releases an instance's interaction resources. Cleanup
// callbacks themselves run inside the registry removal.
func (m *Manager) teardown(inst *registry.Instance) {
	inst.Active = false
	if inst.Drag != nil {
		inst.Drag.Cleanup()
	}
	if inst.Wrapper != nil {
		inst.Wrapper.Detach()
	}
}

// RemoveOverlayRegistration removes a registration and cascades to all
// of its live instances.
func (m *Manager) RemoveOverlayRegistration(id registry.RegistrationID) bool {
	removed, ok := m.reg.RemoveRegistration(id)
	if !ok {
		return false
	}
	for _, inst := range removed {
		m.teardown(inst)
		m.pos.UnregisterBounds(inst.ID.String())
	}

	m.mu.Lock()
	kept := m.pending[:0]
	for _, pc := range m.pending {
		if pc.regID != id {
			kept = append(kept, pc)
		}
	}
	m.pending = kept
	m.mu.Unlock()

	log.Info(log.CatOverlay, "registration removed", "registration", id, "instances", len(removed))
	return true
}

// GetOverlay returns a live instance by id.
func (m *Manager) GetOverlay(id registry.OverlayID) (*registry.Instance, bool) {
	return m.reg.Get(id)
}

// GetAllActiveOverlays returns the active instances, bottom to top.
func (m *Manager) GetAllActiveOverlays() []*registry.Instance {
	instances := m.reg.ActiveInstances()
	sort.SliceStable(instances, func(i, j int) bool {
		return instances[i].Wrapper.Z() < instances[j].Wrapper.Z()
	})
	return instances
}

// AddStyles appends a named style to the shared scope.
func (m *Manager) AddStyles(name string, style lipgloss.Style) {
	m.styles.Add(name, style)
	log.Debug(log.CatOverlay, "style added", "name", name)
}

// ClearCache drops all cached content measurements.
func (m *Manager) ClearCache() {
	m.meas.Flush(context.Background())
	log.Debug(log.CatOverlay, "measure cache cleared")
}

// SetDebugMode toggles verbose diagnostics.
func (m *Manager) SetDebugMode(enabled bool) {
	m.mu.Lock()
	m.debug = enabled
	m.mu.Unlock()
	log.Info(log.CatOverlay, "debug mode", "enabled", enabled)
}

// DebugMode reports the current debug flag.
func (m *Manager) DebugMode() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debug
}

// GetMetrics returns the registry's aggregate metrics.
func (m *Manager) GetMetrics() registry.Metrics {
	return m.reg.GetMetrics()
}

// GetDebugInfo returns the registry's diagnostic snapshot.
func (m *Manager) GetDebugInfo() registry.DebugInfo {
	return m.reg.GetDebugInfo()
}

// HandlePointer routes one pointer event. Presses inside an overlay
// raise it and start a drag when one is configured; presses outside
// dismiss armed overlays that opted in. Moves and releases go to the
// in-flight drag. Returns true when the event was consumed by an
// overlay.
func (m *Manager) HandlePointer(ev drag.PointerEvent) bool {
	if m.isDestroyed() {
		return false
	}

	instances := m.GetAllActiveOverlays()

	if ev.Type == drag.PointerPress && ev.Button == drag.ButtonPrimary {
		// Top-most first.
		for i := len(instances) - 1; i >= 0; i-- {
			inst := instances[i]
			if !inst.Wrapper.Bounds().Contains(ev.Pos) {
				continue
			}
			m.bringToFront(inst.ID)
			if inst.Drag != nil {
				inst.Drag.HandlePointer(ev)
			}
			return true
		}
		return m.dismissOutside(instances)
	}

	consumed := false
	for _, inst := range instances {
		if inst.Drag == nil || !inst.Drag.State().Dragging {
			continue
		}
		if inst.Drag.HandlePointer(ev) {
			m.pos.RegisterBounds(inst.ID.String(), inst.Wrapper.Bounds())
			consumed = true
		}
	}
	return consumed
}

// dismissOutside removes every armed instance that opted into
// outside-click dismissal. Instances younger than the arm delay are
// left alone.
func (m *Manager) dismissOutside(instances []*registry.Instance) bool {
	dismissed := false
	for _, inst := range instances {
		if inst.Options == nil || !inst.Options.DismissOnOutsideClick {
			continue
		}
		if m.now().Sub(inst.CreatedAt) < outsideClickArmDelay {
			continue
		}
		if m.RemoveOverlay(inst.ID) {
			dismissed = true
		}
	}
	return dismissed
}

// HandleKey routes one key press. Escape dismisses the top-most overlay
// that opted into escape dismissal. Returns true when consumed.
func (m *Manager) HandleKey(key string) bool {
	if m.isDestroyed() {
		return false
	}
	if key != "esc" && key != "escape" {
		return false
	}

	instances := m.GetAllActiveOverlays()
	for i := len(instances) - 1; i >= 0; i-- {
		inst := instances[i]
		if inst.Options != nil && inst.Options.DismissOnEscape {
			return m.RemoveOverlay(inst.ID)
		}
	}
	return false
}

// bringToFront restacks an instance above every other overlay of this
// manager.
func (m *Manager) bringToFront(id registry.OverlayID) {
	inst, ok := m.reg.Get(id)
	if !ok {
		return
	}
	base := registry.DefaultBaseZIndex
	if inst.Options != nil {
		base = inst.Options.BaseZIndex
	}
	m.mu.Lock()
	m.zNext++
	z := base + m.zNext
	m.mu.Unlock()
	inst.Wrapper.SetZ(z)
	log.Debug(log.CatOverlay, "overlay raised", "id", id, "z", z)
}

// Destroy tears the whole manager down: tracker, every instance, every
// registration, the collision set. Idempotent; cleanups run exactly
// once and are not awaited beyond return.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	m.pending = nil
	m.mu.Unlock()

	_, span := m.tracer.Start(context.Background(), tracing.SpanDestroy)
	defer span.End()

	m.tracker.Destroy()
	removed := m.reg.Destroy()
	for _, inst := range removed {
		m.teardown(inst)
	}
	m.pos.Reset()
	span.SetAttributes(attribute.Int(tracing.AttrRemovedCount, len(removed)))

	log.Info(log.CatOverlay, "manager destroyed", "instances", len(removed))
}

func (m *Manager) isDestroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}

// recordError funnels every internal failure through one path: the log
// and the registry's bounded error ring.
func (m *Manager) recordError(err *Error) {
	log.ErrorErr(log.CatOverlay, "overlay engine error", err.Err,
		"code", string(err.Code), "phase", err.Phase, "instance", err.Instance)
	m.reg.RecordError(err.Error(), err.Instance)
}

// Manager satisfies the capability view handed to content factories.
var _ registry.Capability = (*Manager)(nil)

package tracing

// Span attribute keys for overlay engine tracing.
const (
	// Overlay attributes
	AttrOverlayID      = "overlay.id"
	AttrOverlayKind    = "overlay.kind"
	AttrOverlayZ       = "overlay.z"
	AttrOverlaySide    = "overlay.side"
	AttrOverlayFlipped = "overlay.flipped"

	// Registration attributes
	AttrRegistrationID   = "registration.id"
	AttrRegistrationKind = "registration.kind"
	AttrPattern          = "registration.pattern"

	// Target attributes
	AttrTargetNode  = "target.node"
	AttrMatchID     = "target.match_id"
	AttrMatchText   = "target.match_text"
	AttrMatchOffset = "target.match_offset"

	// Processing attributes
	AttrPendingCount = "process.pending"
	AttrCreatedCount = "process.created"
	AttrRemovedCount = "process.removed"

	// Error attributes
	AttrErrorMessage = "error.message"
	AttrErrorCode    = "error.code"
)

// Span names for the engine's traced operations.
const (
	SpanCreate   = "overlay.create"
	SpanPosition = "overlay.position"
	SpanRemove   = "overlay.remove"
	SpanProcess  = "overlay.process"
	SpanDestroy  = "overlay.destroy"
)

// Event names for span events.
const (
	EventContentRendered  = "content.rendered"
	EventPlacementChosen  = "placement.chosen"
	EventDragAttached     = "drag.attached"
	EventListenersArmed   = "listeners.armed"
	EventCreationDropped  = "creation.dropped"
	EventCleanupCompleted = "cleanup.completed"
	EventErrorOccurred    = "error.occurred"
)

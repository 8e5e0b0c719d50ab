// Package surface defines the host document abstraction the overlay engine
// positions against: a node tree with cell bounds, text content, selection
// state and mutation notification. The engine never owns the surface; it
// only queries geometry and subscribes to changes.
package surface

import (
	"github.com/acetatelabs/acetate/internal/geometry"
	"github.com/acetatelabs/acetate/internal/pubsub"
)

// NodeKind classifies surface nodes. Text matching only descends into
// KindGroup containers and reads KindText leaves; KindRaw (non-textual
// control content) and KindOverlayLayer (the engine's own rendered
// overlays) are skipped so overlays never match their own content.
type NodeKind int

const (
	KindGroup NodeKind = iota
	KindText
	KindRaw
	KindOverlayLayer
)

// String returns the string representation of the node kind.
func (k NodeKind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindText:
		return "text"
	case KindRaw:
		return "raw"
	case KindOverlayLayer:
		return "overlay-layer"
	default:
		return "unknown"
	}
}

// Node is one element of the surface tree.
type Node interface {
	// ID returns the node's stable identifier, unique within its surface.
	ID() string
	// Kind returns the node classification.
	Kind() NodeKind
	// Text returns the node's text content. Only meaningful for KindText.
	Text() string
	// Children returns the node's children in document order.
	Children() []Node
	// Visible reports whether the node participates in layout and matching.
	Visible() bool
}

// Range identifies a span of text inside a single node, in rune offsets.
type Range struct {
	Node  Node
	Start int
	End   int
}

// MutationKind classifies surface mutations.
type MutationKind int

const (
	MutationChildAdded MutationKind = iota
	MutationChildRemoved
	MutationCharData
	MutationLayout
	MutationSelection
)

// Mutation describes one change to the surface. CharData mutations carry
// the node's text before and after the edit.
type Mutation struct {
	Kind    MutationKind
	Node    Node
	OldText string
	NewText string
}

// Surface is the host document the engine works against.
type Surface interface {
	// Root returns the tree root.
	Root() Node
	// NodeByID resolves a node by identifier.
	NodeByID(id string) (Node, bool)
	// Attached reports whether the node is still reachable from the root.
	Attached(n Node) bool
	// Bounds returns the node's cell bounds, or false if it is detached
	// or has no layout.
	Bounds(n Node) (geometry.Rect, bool)
	// RangeBounds measures the given rune span of a text node in display
	// columns. Returns false for detached nodes or out-of-range offsets.
	RangeBounds(n Node, start, end int) (geometry.Rect, bool)
	// Selection returns the current text selection, or false if none.
	Selection() (Range, bool)
	// Mutations returns the broker surface changes are published through.
	Mutations() *pubsub.Broker[Mutation]
}

// Viewport provides the visible window the engine positions within.
type Viewport interface {
	Size() geometry.Size
	ScrollOffset() geometry.Point
}

// FixedViewport is a plain value Viewport for hosts with a static window.
type FixedViewport struct {
	W, H   int
	Scroll geometry.Point
}

func (v FixedViewport) Size() geometry.Size          { return geometry.Size{Width: v.W, Height: v.H} }
func (v FixedViewport) ScrollOffset() geometry.Point { return v.Scroll }

package surface

import (
	"sync"

	"github.com/mattn/go-runewidth"

	"github.com/acetatelabs/acetate/internal/geometry"
	"github.com/acetatelabs/acetate/internal/pubsub"
)

// MemNode is the node type used by MemSurface. Bounds are set explicitly
// by the host (or by the playground's line layout); text nodes are single
// line, which keeps range measurement a prefix-width computation.
type MemNode struct {
	id      string
	kind    NodeKind
	text    string
	bounds  geometry.Rect
	visible bool

	parent   *MemNode
	children []*MemNode
}

// NewMemNode creates a detached node. Attach it with MemSurface.AddNode.
func NewMemNode(id string, kind NodeKind) *MemNode {
	return &MemNode{id: id, kind: kind, visible: true}
}

func (n *MemNode) ID() string     { return n.id }
func (n *MemNode) Kind() NodeKind { return n.kind }
func (n *MemNode) Text() string   { return n.text }
func (n *MemNode) Visible() bool  { return n.visible }

func (n *MemNode) Children() []Node {
	out := make([]Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

// MemSurface is an in-memory Surface used by tests and the playground.
// All mutating operations publish through the mutation broker.
type MemSurface struct {
	mu        sync.RWMutex
	root      *MemNode
	byID      map[string]*MemNode
	selection *Range
	broker    *pubsub.Broker[Mutation]
}

// NewMemSurface creates a surface with a root group covering the given size.
func NewMemSurface(width, height int) *MemSurface {
	root := NewMemNode("root", KindGroup)
	root.bounds = geometry.Rect{Width: width, Height: height}
	return &MemSurface{
		root:   root,
		byID:   map[string]*MemNode{"root": root},
		broker: pubsub.NewBroker[Mutation](),
	}
}

// Root returns the tree root.
func (s *MemSurface) Root() Node {
	return s.root
}

// NodeByID resolves a node by identifier.
func (s *MemSurface) NodeByID(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return n, true
}

// AddNode attaches child under the parent with the given id. Returns false
// if the parent is unknown or the child's id is already taken.
func (s *MemSurface) AddNode(parentID string, child *MemNode) bool {
	s.mu.Lock()
	parent, ok := s.byID[parentID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if _, taken := s.byID[child.id]; taken {
		s.mu.Unlock()
		return false
	}
	child.parent = parent
	parent.children = append(parent.children, child)
	s.registerLocked(child)
	s.mu.Unlock()

	s.broker.Publish(Mutation{Kind: MutationChildAdded, Node: child})
	return true
}

func (s *MemSurface) registerLocked(n *MemNode) {
	s.byID[n.id] = n
	for _, c := range n.children {
		s.registerLocked(c)
	}
}

// RemoveNode detaches the node (and its subtree) from the surface.
func (s *MemSurface) RemoveNode(id string) bool {
	s.mu.Lock()
	n, ok := s.byID[id]
	if !ok || n == s.root {
		s.mu.Unlock()
		return false
	}
	parent := n.parent
	for i, c := range parent.children {
		if c == n {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			break
		}
	}
	n.parent = nil
	s.unregisterLocked(n)
	if s.selection != nil && s.selection.Node == Node(n) {
		s.selection = nil
	}
	s.mu.Unlock()

	s.broker.Publish(Mutation{Kind: MutationChildRemoved, Node: n})
	return true
}

func (s *MemSurface) unregisterLocked(n *MemNode) {
	delete(s.byID, n.id)
	for _, c := range n.children {
		s.unregisterLocked(c)
	}
}

// SetText replaces a node's text and publishes a CharData mutation carrying
// both the old and the new content.
func (s *MemSurface) SetText(id string, text string) bool {
	s.mu.Lock()
	n, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	old := n.text
	n.text = text
	s.mu.Unlock()

	s.broker.Publish(Mutation{Kind: MutationCharData, Node: n, OldText: old, NewText: text})
	return true
}

// SetBounds sets a node's cell bounds and publishes a layout mutation.
func (s *MemSurface) SetBounds(id string, r geometry.Rect) bool {
	s.mu.Lock()
	n, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	n.bounds = r
	s.mu.Unlock()

	s.broker.Publish(Mutation{Kind: MutationLayout, Node: n})
	return true
}

// SetVisible toggles a node's visibility.
func (s *MemSurface) SetVisible(id string, visible bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok {
		return false
	}
	n.visible = visible
	return true
}

// Attached reports whether the node is still reachable from the root.
func (s *MemSurface) Attached(n Node) bool {
	mn, ok := n.(*MemNode)
	if !ok {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for cur := mn; cur != nil; cur = cur.parent {
		if cur == s.root {
			return true
		}
	}
	return false
}

// Bounds returns the node's cell bounds.
func (s *MemSurface) Bounds(n Node) (geometry.Rect, bool) {
	mn, ok := n.(*MemNode)
	if !ok || !s.Attached(n) {
		return geometry.Rect{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return mn.bounds, true
}

// RangeBounds measures a rune span of a text node in display columns.
// Wide runes count for their full display width.
func (s *MemSurface) RangeBounds(n Node, start, end int) (geometry.Rect, bool) {
	mn, ok := n.(*MemNode)
	if !ok || !s.Attached(n) {
		return geometry.Rect{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	runes := []rune(mn.text)
	if start < 0 || end < start || end > len(runes) {
		return geometry.Rect{}, false
	}

	prefix := runewidth.StringWidth(string(runes[:start]))
	span := runewidth.StringWidth(string(runes[start:end]))

	height := mn.bounds.Height
	if height <= 0 {
		height = 1
	}
	return geometry.Rect{
		X:      mn.bounds.X + prefix,
		Y:      mn.bounds.Y,
		Width:  span,
		Height: height,
	}, true
}

// Selection returns the current text selection, if any.
func (s *MemSurface) Selection() (Range, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selection == nil {
		return Range{}, false
	}
	return *s.selection, true
}

// SetSelection sets the selection and publishes a selection mutation.
func (s *MemSurface) SetSelection(id string, start, end int) bool {
	s.mu.Lock()
	n, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.selection = &Range{Node: n, Start: start, End: end}
	s.mu.Unlock()

	s.broker.Publish(Mutation{Kind: MutationSelection, Node: n})
	return true
}

// ClearSelection removes the selection and publishes a selection mutation.
func (s *MemSurface) ClearSelection() {
	s.mu.Lock()
	had := s.selection != nil
	s.selection = nil
	s.mu.Unlock()

	if had {
		s.broker.Publish(Mutation{Kind: MutationSelection})
	}
}

// Mutations returns the surface's mutation broker.
func (s *MemSurface) Mutations() *pubsub.Broker[Mutation] {
	return s.broker
}

// Close shuts down the mutation broker.
func (s *MemSurface) Close() {
	s.broker.Close()
}

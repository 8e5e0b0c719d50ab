package playground

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/acetatelabs/acetate/internal/geometry"
	"github.com/acetatelabs/acetate/internal/measure"
	"github.com/acetatelabs/acetate/internal/overlay"
	"github.com/acetatelabs/acetate/internal/overlay/registry"
	"github.com/acetatelabs/acetate/internal/overlay/textrange"
	"github.com/acetatelabs/acetate/internal/surface"
)

// Scene is a declarative playground document: a node tree to populate the
// surface with, plus the overlays to register against it.
type Scene struct {
	Name     string         `yaml:"name"`
	Width    int            `yaml:"width"`
	Height   int            `yaml:"height"`
	Nodes    []SceneNode    `yaml:"nodes"`
	Overlays []SceneOverlay `yaml:"overlays"`
}

// SceneNode describes one surface node. Kind defaults to "text" for leaf
// nodes and "group" for nodes with children.
type SceneNode struct {
	ID       string      `yaml:"id"`
	Kind     string      `yaml:"kind"`
	Text     string      `yaml:"text"`
	X        int         `yaml:"x"`
	Y        int         `yaml:"y"`
	Width    int         `yaml:"width"`
	Height   int         `yaml:"height"`
	Children []SceneNode `yaml:"children"`
}

// SceneOverlay describes one overlay registration. Kind selects which
// fields apply: "standalone" uses the absolute position fields, "element"
// uses Target, "text" uses Pattern.
type SceneOverlay struct {
	Kind      string `yaml:"kind"`
	Target    string `yaml:"target"`
	Pattern   string `yaml:"pattern"`
	Body      string `yaml:"body"`
	Style     string `yaml:"style"`
	Side      string `yaml:"side"`
	OffsetX   int    `yaml:"offset_x"`
	OffsetY   int    `yaml:"offset_y"`
	Draggable bool   `yaml:"draggable"`
	Handle    string `yaml:"handle"`

	Left   *int `yaml:"left"`
	Top    *int `yaml:"top"`
	Right  *int `yaml:"right"`
	Bottom *int `yaml:"bottom"`

	DismissOnOutsideClick *bool `yaml:"dismiss_on_outside_click"`
	DismissOnEscape       *bool `yaml:"dismiss_on_escape"`
	BaseZIndex            int   `yaml:"base_z_index"`
}

// LoadScene reads and validates a YAML scene file.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene: %w", err)
	}
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scene: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the scene for structural problems before any surface or
// overlay state is built from it.
func (s *Scene) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("scene %q: width and height must be positive", s.Name)
	}
	seen := make(map[string]struct{})
	var checkNodes func(nodes []SceneNode) error
	checkNodes = func(nodes []SceneNode) error {
		for _, n := range nodes {
			if n.ID == "" {
				return fmt.Errorf("scene %q: node without id", s.Name)
			}
			if _, dup := seen[n.ID]; dup {
				return fmt.Errorf("scene %q: duplicate node id %q", s.Name, n.ID)
			}
			seen[n.ID] = struct{}{}
			switch n.Kind {
			case "", "group", "text", "raw":
			default:
				return fmt.Errorf("scene %q: node %q has unknown kind %q", s.Name, n.ID, n.Kind)
			}
			if err := checkNodes(n.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := checkNodes(s.Nodes); err != nil {
		return err
	}
	for i, ov := range s.Overlays {
		switch ov.Kind {
		case "standalone":
		case "element":
			if ov.Target == "" {
				return fmt.Errorf("scene %q: element overlay %d has no target", s.Name, i)
			}
			if _, ok := seen[ov.Target]; !ok {
				return fmt.Errorf("scene %q: element overlay %d targets unknown node %q", s.Name, i, ov.Target)
			}
		case "text":
			if ov.Pattern == "" {
				return fmt.Errorf("scene %q: text overlay %d has no pattern", s.Name, i)
			}
		default:
			return fmt.Errorf("scene %q: overlay %d has unknown kind %q", s.Name, i, ov.Kind)
		}
		if ov.Side != "" && !geometry.Side(ov.Side).IsValid() {
			return fmt.Errorf("scene %q: overlay %d has unknown side %q", s.Name, i, ov.Side)
		}
		if ov.Body == "" {
			return fmt.Errorf("scene %q: overlay %d has no body", s.Name, i)
		}
	}
	return nil
}

// BuildSurface constructs an in-memory surface from the scene's node tree.
func BuildSurface(s *Scene) *surface.MemSurface {
	surf := surface.NewMemSurface(s.Width, s.Height)
	var add func(parentID string, nodes []SceneNode)
	add = func(parentID string, nodes []SceneNode) {
		for _, sn := range nodes {
			node := surface.NewMemNode(sn.ID, nodeKind(sn))
			if !surf.AddNode(parentID, node) {
				continue
			}
			if sn.Text != "" {
				surf.SetText(sn.ID, sn.Text)
			}
			surf.SetBounds(sn.ID, sceneBounds(sn))
			add(sn.ID, sn.Children)
		}
	}
	add("root", s.Nodes)
	return surf
}

func nodeKind(sn SceneNode) surface.NodeKind {
	switch sn.Kind {
	case "group":
		return surface.KindGroup
	case "raw":
		return surface.KindRaw
	case "text":
		return surface.KindText
	}
	if len(sn.Children) > 0 {
		return surface.KindGroup
	}
	return surface.KindText
}

func sceneBounds(sn SceneNode) geometry.Rect {
	w, h := sn.Width, sn.Height
	if w == 0 || h == 0 {
		lines := strings.Split(sn.Text, "\n")
		if h == 0 {
			h = len(lines)
		}
		if w == 0 {
			for _, line := range lines {
				if lw := measure.PlainWidth(line); lw > w {
					w = lw
				}
			}
		}
	}
	return geometry.Rect{X: sn.X, Y: sn.Y, Width: w, Height: h}
}

// RegisterOverlays registers every overlay the scene declares against the
// manager. Bodies are rendered through the manager's style sheet when the
// declaration names a style.
func RegisterOverlays(m *overlay.Manager, s *Scene) error {
	for i, ov := range s.Overlays {
		opts := overlayOptions(ov)
		body := func() string {
			if ov.Style != "" {
				return m.Styles().Render(ov.Style, ov.Body)
			}
			return ov.Body
		}
		switch ov.Kind {
		case "standalone":
			if _, err := m.AddOverlay(func(cb registry.Callbacks) (*registry.Content, error) {
				return &registry.Content{Body: body()}, nil
			}, opts); err != nil {
				return fmt.Errorf("scene overlay %d: %w", i, err)
			}
		case "element":
			target := ov.Target
			resolver := func(surf surface.Surface) []surface.Node {
				if n, ok := surf.NodeByID(target); ok {
					return []surface.Node{n}
				}
				return nil
			}
			if _, err := m.AddElementOverlay(resolver, func(_ surface.Node, cb registry.Callbacks) (*registry.Content, error) {
				return &registry.Content{Body: body()}, nil
			}, opts); err != nil {
				return fmt.Errorf("scene overlay %d: %w", i, err)
			}
		case "text":
			if _, err := m.AddTextOverlay(ov.Pattern, func(_ *textrange.Match, cb registry.Callbacks) (*registry.Content, error) {
				return &registry.Content{Body: body()}, nil
			}, opts); err != nil {
				return fmt.Errorf("scene overlay %d: %w", i, err)
			}
		}
	}
	return nil
}

func overlayOptions(ov SceneOverlay) registry.Options {
	opts := registry.Options{
		Draggable:             ov.Draggable,
		DragHandleSelector:    ov.Handle,
		Offset:                geometry.Point{X: ov.OffsetX, Y: ov.OffsetY},
		DismissOnOutsideClick: ov.DismissOnOutsideClick,
		DismissOnEscape:       ov.DismissOnEscape,
		BaseZIndex:            ov.BaseZIndex,
	}
	if ov.Side != "" {
		opts.PreferredSide = geometry.Side(ov.Side)
	}
	if ov.Kind == "standalone" && (ov.Left != nil || ov.Top != nil || ov.Right != nil || ov.Bottom != nil) {
		opts.Position = &registry.AbsolutePosition{
			Left:   ov.Left,
			Top:    ov.Top,
			Right:  ov.Right,
			Bottom: ov.Bottom,
		}
	}
	return opts
}

// DefaultScene is the scene used when no scene file is configured. It
// exercises all three registration kinds.
func DefaultScene() *Scene {
	left := 4
	top := 2
	return &Scene{
		Name:   "default",
		Width:  100,
		Height: 30,
		Nodes: []SceneNode{
			{ID: "header", Text: "Acetate overlay playground", X: 2, Y: 1},
			{
				ID: "body", Kind: "group",
				X: 2, Y: 3, Width: 80, Height: 20,
				Children: []SceneNode{
					{ID: "para-1", Text: "Overlays anchor to elements, to text matches, or to nothing at all.", X: 2, Y: 4},
					{ID: "para-2", Text: "Drag the note by its title bar. Press ? for help, esc to dismiss.", X: 2, Y: 6},
					{ID: "anchor", Text: "[anchor]", X: 10, Y: 12},
				},
			},
		},
		Overlays: []SceneOverlay{
			{
				Kind: "standalone", Body: "draggable note\nedit the scene file\nto change this text",
				Style: "panel", Draggable: true, Handle: "top",
				Left: &left, Top: &top,
			},
			{Kind: "element", Target: "anchor", Body: "anchored below", Style: "tip", Side: "below"},
			{Kind: "text", Pattern: "text matches", Body: "tracked range", Style: "hint", Side: "above"},
		},
	}
}

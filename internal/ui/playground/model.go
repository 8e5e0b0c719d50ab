// Package playground hosts the overlay engine inside an interactive
// terminal program: it builds a surface from a YAML scene, pumps the
// manager once per tick, and feeds mouse and key input back into it.
package playground

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"github.com/acetatelabs/acetate/internal/config"
	"github.com/acetatelabs/acetate/internal/geometry"
	"github.com/acetatelabs/acetate/internal/log"
	"github.com/acetatelabs/acetate/internal/measure"
	"github.com/acetatelabs/acetate/internal/overlay"
	"github.com/acetatelabs/acetate/internal/overlay/drag"
	"github.com/acetatelabs/acetate/internal/overlay/registry"
	"github.com/acetatelabs/acetate/internal/surface"
	"github.com/acetatelabs/acetate/internal/tracing"
	"github.com/acetatelabs/acetate/internal/ui/compositor"
	"github.com/acetatelabs/acetate/internal/ui/markdown"
	"github.com/acetatelabs/acetate/internal/watcher"
)

// tickInterval paces the manager pump. Each tick is one engine turn.
const tickInterval = 100 * time.Millisecond

// Zone IDs for the status bar actions.
const (
	zoneReload = "playground-reload"
	zoneHelp   = "playground-help"
	zoneQuit   = "playground-quit"
)

type tickMsg time.Time

// sceneChangedMsg arrives when the watcher reports the scene file changed.
type sceneChangedMsg struct{}

// KeyMap holds the playground key bindings.
type KeyMap struct {
	Quit   key.Binding
	Help   key.Binding
	Reload key.Binding
	Debug  key.Binding
}

func defaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload scene"),
		),
		Debug: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "toggle debug"),
		),
	}
}

// termViewport adapts the terminal window to the engine's viewport. The
// status bar row at the bottom is excluded.
type termViewport struct {
	mu sync.RWMutex
	w  int
	h  int
}

func (v *termViewport) Size() geometry.Size {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return geometry.Size{Width: v.w, Height: v.h}
}

func (v *termViewport) ScrollOffset() geometry.Point { return geometry.Point{} }

func (v *termViewport) resize(w, h int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.w, v.h = w, h
}

// Model is the playground's bubbletea model.
type Model struct {
	cfg    config.Config
	keymap KeyMap

	scene  *Scene
	surf   *surface.MemSurface
	mgr    *overlay.Manager
	vp     *termViewport
	tracer *tracing.Provider

	watch  *watcher.Watcher
	reload <-chan struct{}

	helpID registry.OverlayID

	width      int
	height     int
	lastAction string
	quitting   bool
}

// New builds a playground from the configuration. When no scene file is
// configured the built-in default scene is used.
func New(cfg config.Config) (*Model, error) {
	tracer, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}
	m := &Model{
		cfg:    cfg,
		keymap: defaultKeyMap(),
		vp:     &termViewport{w: 80, h: 24},
		tracer: tracer,
	}
	if err := m.loadScene(); err != nil {
		return nil, err
	}
	if cfg.Playground.Watch && cfg.Playground.Scene != "" {
		w, err := watcher.New(watcher.DefaultConfig(cfg.Playground.Scene))
		if err != nil {
			return nil, fmt.Errorf("watching scene: %w", err)
		}
		ch, err := w.Start()
		if err != nil {
			return nil, fmt.Errorf("starting watcher: %w", err)
		}
		m.watch = w
		m.reload = ch
	}
	return m, nil
}

// loadScene (re)builds the surface and manager from the configured scene.
// Any previous engine state is destroyed first.
func (m *Model) loadScene() error {
	scene := DefaultScene()
	if m.cfg.Playground.Scene != "" {
		loaded, err := LoadScene(m.cfg.Playground.Scene)
		if err != nil {
			return err
		}
		scene = loaded
	}

	if m.mgr != nil {
		m.mgr.Destroy()
	}
	if m.surf != nil {
		m.surf.Close()
	}

	surf := BuildSurface(scene)
	mgr := overlay.New(surf, m.vp, overlay.Config{
		Position: m.cfg.Engine.PositionConfig(),
		Tracker:  m.cfg.Engine.TrackerConfig(),
		Tracing:  m.tracer,
	})
	mgr.SetDebugMode(m.cfg.Engine.Debug)
	addDefaultStyles(mgr)

	if err := RegisterOverlays(mgr, scene); err != nil {
		mgr.Destroy()
		surf.Close()
		return err
	}

	m.scene = scene
	m.surf = surf
	m.mgr = mgr
	m.helpID = ""
	log.Info(log.CatUI, "scene loaded", "name", scene.Name, "overlays", len(scene.Overlays))
	return nil
}

func addDefaultStyles(mgr *overlay.Manager) {
	mgr.AddStyles("panel", lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1))
	mgr.AddStyles("tip", lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1))
	mgr.AddStyles("hint", lipgloss.NewStyle().
		Italic(true).
		Faint(true))
}

// Manager exposes the engine for tests.
func (m *Model) Manager() *overlay.Manager { return m.mgr }

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.tick()}
	if m.cfg.Playground.MouseMotion {
		cmds = append(cmds, tea.EnableMouseCellMotion)
	}
	if cmd := m.waitForChange(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) waitForChange() tea.Cmd {
	if m.reload == nil {
		return nil
	}
	ch := m.reload
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return sceneChangedMsg{}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Reserve the bottom row for the status bar.
		m.vp.resize(msg.Width, max(msg.Height-1, 1))
		return m, nil

	case tickMsg:
		if created := m.mgr.Process(); created > 0 {
			m.lastAction = fmt.Sprintf("created %d overlay(s)", created)
		}
		return m, m.tick()

	case sceneChangedMsg:
		if err := m.loadScene(); err != nil {
			m.lastAction = "reload failed: " + err.Error()
			log.ErrorErr(log.CatUI, "scene reload failed", err)
		} else {
			m.lastAction = "scene reloaded"
		}
		return m, m.waitForChange()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		return m, m.quit()
	case key.Matches(msg, m.keymap.Help):
		m.toggleHelp()
		return m, nil
	case key.Matches(msg, m.keymap.Reload):
		if err := m.loadScene(); err != nil {
			m.lastAction = "reload failed: " + err.Error()
		} else {
			m.lastAction = "scene reloaded"
		}
		return m, nil
	case key.Matches(msg, m.keymap.Debug):
		m.mgr.SetDebugMode(!m.mgr.DebugMode())
		m.lastAction = fmt.Sprintf("debug %v", m.mgr.DebugMode())
		return m, nil
	}
	if m.mgr.HandleKey(msg.String()) {
		m.lastAction = "overlay dismissed"
	}
	return m, nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionRelease {
		if z := zone.Get(zoneQuit); z != nil && z.InBounds(msg) {
			return m, m.quit()
		}
		if z := zone.Get(zoneHelp); z != nil && z.InBounds(msg) {
			m.toggleHelp()
			return m, nil
		}
		if z := zone.Get(zoneReload); z != nil && z.InBounds(msg) {
			if err := m.loadScene(); err != nil {
				m.lastAction = "reload failed: " + err.Error()
			} else {
				m.lastAction = "scene reloaded"
			}
			return m, nil
		}
	}
	if ev, ok := pointerEvent(msg); ok {
		if m.mgr.HandlePointer(ev) {
			m.lastAction = "pointer handled"
		}
	}
	return m, nil
}

func pointerEvent(msg tea.MouseMsg) (drag.PointerEvent, bool) {
	ev := drag.PointerEvent{Pos: geometry.Point{X: msg.X, Y: msg.Y}}
	switch msg.Button {
	case tea.MouseButtonLeft:
		ev.Button = drag.ButtonPrimary
	case tea.MouseButtonRight:
		ev.Button = drag.ButtonSecondary
	}
	switch msg.Action {
	case tea.MouseActionPress:
		ev.Type = drag.PointerPress
	case tea.MouseActionRelease:
		ev.Type = drag.PointerRelease
	case tea.MouseActionMotion:
		ev.Type = drag.PointerMove
	default:
		return ev, false
	}
	return ev, true
}

func (m *Model) quit() tea.Cmd {
	m.quitting = true
	if m.watch != nil {
		_ = m.watch.Stop()
	}
	m.mgr.Destroy()
	m.surf.Close()
	if m.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.tracer.Shutdown(ctx)
	}
	return tea.Quit
}

// helpText is rendered through glamour into the help overlay.
const helpText = `# Playground

| Key | Action |
|-----|--------|
| ? | toggle this help |
| r | reload the scene file |
| d | toggle debug mode |
| esc | dismiss the top overlay |
| q | quit |

Drag overlays by their handle. Click outside an overlay to dismiss it.`

func (m *Model) toggleHelp() {
	if m.helpID != "" {
		removed := m.mgr.RemoveOverlay(m.helpID)
		m.helpID = ""
		if removed {
			m.lastAction = "help closed"
			return
		}
	}

	width := min(60, max(m.width-8, 20))
	body := helpText
	if r, err := markdown.New(width); err == nil {
		if rendered, rerr := r.Render(helpText); rerr == nil {
			body = strings.TrimRight(rendered, "\n")
		}
	}

	left, top := 4, 2
	styled := m.mgr.Styles().Render("panel", body)
	id, err := m.mgr.AddOverlay(func(cb registry.Callbacks) (*registry.Content, error) {
		return &registry.Content{Body: styled}, nil
	}, registry.Options{
		Draggable:          true,
		DragHandleSelector: "top",
		Position:           &registry.AbsolutePosition{Left: &left, Top: &top},
	})
	if err != nil {
		m.lastAction = "help failed: " + err.Error()
		return
	}
	m.helpID = id
	m.lastAction = "help opened"
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}

	vh := max(m.height-1, 1)
	bg := compositor.Compose(m.width, vh, "", m.sceneLayers())
	canvas := compositor.Compose(m.width, vh, bg, compositor.FromInstances(m.mgr.GetAllActiveOverlays()))

	return zone.Scan(canvas + "\n" + m.statusBar())
}

// sceneLayers flattens the surface's text nodes into background layers.
func (m *Model) sceneLayers() []compositor.Layer {
	var layers []compositor.Layer
	var walk func(n surface.Node)
	walk = func(n surface.Node) {
		if n == nil || !n.Visible() {
			return
		}
		if n.Kind() == surface.KindText && n.Text() != "" {
			if b, ok := m.surf.Bounds(n); ok {
				layers = append(layers, compositor.Layer{Body: n.Text(), X: b.X, Y: b.Y})
			}
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(m.surf.Root())
	return layers
}

var (
	statusBarStyle = lipgloss.NewStyle().Faint(true)
	statusKeyStyle = lipgloss.NewStyle().Bold(true)
)

func (m *Model) statusBar() string {
	name := "default"
	if m.scene != nil && m.scene.Name != "" {
		name = m.scene.Name
	}
	active := len(m.mgr.GetAllActiveOverlays())

	parts := []string{
		fmt.Sprintf("scene:%s", name),
		fmt.Sprintf("overlays:%d", active),
		zone.Mark(zoneReload, statusKeyStyle.Render("r")+" reload"),
		zone.Mark(zoneHelp, statusKeyStyle.Render("?")+" help"),
		zone.Mark(zoneQuit, statusKeyStyle.Render("q")+" quit"),
	}
	plain := []string{
		fmt.Sprintf("scene:%s", name),
		fmt.Sprintf("overlays:%d", active),
		"r reload", "? help", "q quit",
	}
	if m.mgr.DebugMode() {
		info := m.mgr.GetDebugInfo()
		dbg := fmt.Sprintf("mem:%dB errs:%d", info.MemoryEstimateBytes, info.Metrics.ErrorCount)
		parts = append(parts, dbg)
		plain = append(plain, dbg)
	}
	if m.lastAction != "" {
		parts = append(parts, m.lastAction)
		plain = append(plain, m.lastAction)
	}

	bar := strings.Join(parts, "  ")
	// Pad to the full terminal width; the styled and zone-marked parts
	// carry invisible sequences, so the width comes from the plain text.
	if pad := m.width - measure.PlainWidth(strings.Join(plain, "  ")); pad > 0 {
		bar += strings.Repeat(" ", pad)
	}
	return statusBarStyle.Render(bar)
}

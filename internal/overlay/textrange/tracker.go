// Package textrange locates spans of visible text matching a pattern and
// keeps durable handles to them. Matches are document-relative live ranges,
// not string offsets: they must be re-validated as the surface mutates, and
// an invalid match must never anchor new positioning.
package textrange

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acetatelabs/acetate/internal/geometry"
	"github.com/acetatelabs/acetate/internal/log"
	"github.com/acetatelabs/acetate/internal/surface"
)

// MatchID uniquely identifies a text range match.
type MatchID string

// NewMatchID generates a new unique MatchID using UUID v4.
func NewMatchID() MatchID {
	return MatchID(uuid.New().String())
}

// String returns the string representation of the MatchID.
func (id MatchID) String() string {
	return string(id)
}

// Match is a durable handle to a matched span of text. Bounds are only
// trusted after a fresh Validate call.
type Match struct {
	ID        MatchID
	Text      string
	Node      surface.Node
	Start     int // rune offset, inclusive
	End       int // rune offset, exclusive
	Bounds    geometry.Rect
	Pattern   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Config controls matching and change tracking.
type Config struct {
	// MaxMatches caps the result size of a single pass.
	MaxMatches int
	// MinNodeTextLen skips text nodes shorter than this many runes.
	MinNodeTextLen int
	// MergeOverlapping combines matches whose ranges touch or overlap.
	MergeOverlapping bool
	// CaseSensitive controls pattern comparison.
	CaseSensitive bool
	// TrackChanges re-runs tracked patterns when the surface mutates.
	TrackChanges bool
	// Debounce batches mutation bursts before re-scanning.
	Debounce time.Duration
	// IgnoreKinds are container kinds whose subtrees are never matched.
	IgnoreKinds []surface.NodeKind
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxMatches:       100,
		MinNodeTextLen:   2,
		MergeOverlapping: true,
		CaseSensitive:    true,
		TrackChanges:     true,
		Debounce:         300 * time.Millisecond,
		IgnoreKinds:      []surface.NodeKind{surface.KindRaw, surface.KindOverlayLayer},
	}
}

// Tracker finds and revalidates text matches against a mutating surface.
type Tracker struct {
	mu        sync.Mutex
	surf      surface.Surface
	cfg       Config
	ctx       context.Context
	cancel    context.CancelFunc
	destroyed bool
}

// NewTracker creates a tracker over the given surface.
func NewTracker(surf surface.Surface, cfg Config) *Tracker {
	if cfg.MaxMatches <= 0 {
		cfg.MaxMatches = DefaultConfig().MaxMatches
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultConfig().Debounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		surf:   surf,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// FindMatches walks visible text nodes under container (the surface root if
// nil) and returns every occurrence of pattern, merged and capped per the
// tracker config. Matches are validated before inclusion.
func (t *Tracker) FindMatches(pattern string, container surface.Node) []*Match {
	if pattern == "" {
		return nil
	}
	if container == nil {
		container = t.surf.Root()
	}

	var raw []*Match
	t.walk(container, func(n surface.Node) {
		raw = append(raw, t.matchNode(pattern, n)...)
	})

	if t.cfg.MergeOverlapping {
		raw = mergeOverlapping(raw)
	}
	if len(raw) > t.cfg.MaxMatches {
		raw = raw[:t.cfg.MaxMatches]
	}
	return raw
}

// walk visits visible text nodes in document order, skipping ignored
// container subtrees entirely.
func (t *Tracker) walk(n surface.Node, visit func(surface.Node)) {
	if n == nil || !n.Visible() {
		return
	}
	for _, kind := range t.cfg.IgnoreKinds {
		if n.Kind() == kind {
			return
		}
	}
	if n.Kind() == surface.KindText {
		visit(n)
	}
	for _, c := range n.Children() {
		t.walk(c, visit)
	}
}

func (t *Tracker) matchNode(pattern string, n surface.Node) []*Match {
	text := n.Text()
	runes := []rune(text)
	if len(runes) < t.cfg.MinNodeTextLen {
		return nil
	}

	haystack := text
	needle := pattern
	if !t.cfg.CaseSensitive {
		haystack = strings.ToLower(haystack)
		needle = strings.ToLower(needle)
	}

	var out []*Match
	byteOff := 0
	for {
		i := strings.Index(haystack[byteOff:], needle)
		if i < 0 {
			break
		}
		startByte := byteOff + i
		endByte := startByte + len(needle)

		start := len([]rune(haystack[:startByte]))
		end := start + len([]rune(needle))

		m := &Match{
			ID:        NewMatchID(),
			Text:      string(runes[start:end]),
			Node:      n,
			Start:     start,
			End:       end,
			Pattern:   pattern,
			Metadata:  map[string]any{},
			CreatedAt: time.Now(),
		}
		if t.Validate(m) {
			out = append(out, m)
		}
		byteOff = endByte
	}
	return out
}

// mergeOverlapping combines matches, already in document order, whose end
// boundary is not strictly before the next match's start. Only matches in
// the same node can merge.
func mergeOverlapping(matches []*Match) []*Match {
	if len(matches) < 2 {
		return matches
	}
	out := []*Match{matches[0]}
	for _, m := range matches[1:] {
		last := out[len(out)-1]
		if last.Node == m.Node && last.End >= m.Start {
			if m.End > last.End {
				runes := []rune(last.Node.Text())
				last.End = m.End
				last.Text = string(runes[last.Start:last.End])
			}
			last.Metadata["merged"] = true
			continue
		}
		out = append(out, m)
	}
	return out
}

// Validate re-checks a match against the current surface: its node must be
// attached, its offsets consistent with having non-empty text, and its
// bounding rectangle non-degenerate whenever its text is non-empty. On
// success the match's last-known bounds are refreshed.
func (t *Tracker) Validate(m *Match) bool {
	if m == nil || m.Node == nil {
		return false
	}
	if !t.surf.Attached(m.Node) {
		return false
	}
	runes := []rune(m.Node.Text())
	if m.Start < 0 || m.End > len(runes) || m.Start > m.End {
		return false
	}
	if len(m.Text) > 0 && m.Start == m.End {
		return false // collapsed range with non-empty text
	}

	bounds, ok := t.surf.RangeBounds(m.Node, m.Start, m.End)
	if !ok {
		return false
	}
	if len(m.Text) > 0 && (bounds.Width <= 0 || bounds.Height <= 0) {
		return false
	}
	m.Bounds = bounds
	return true
}

// TrackPattern runs an initial match pass, invokes the callback with the
// result, and when change tracking is enabled re-invokes it (debounced)
// whenever the surface's tree or character data changes. The returned stop
// function ends tracking and releases the matches it produced.
//
// Re-scan callbacks run on the tracker's goroutine.
func (t *Tracker) TrackPattern(pattern string, cb func([]*Match)) func() {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		cb(nil)
		return func() {}
	}
	t.mu.Unlock()

	matches := t.FindMatches(pattern, nil)
	cb(matches)

	if !t.cfg.TrackChanges {
		return func() {}
	}

	ctx, cancel := context.WithCancel(t.ctx)
	ch := t.surf.Mutations().Subscribe(ctx)

	go func() {
		var (
			timer   *time.Timer
			pending bool
			current = matches
		)
		fire := func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				mut := ev.Payload
				if mut.Kind == surface.MutationSelection {
					continue
				}
				if mut.Kind == surface.MutationCharData {
					// Cheap interim accuracy between rescans.
					current = adjustMatches(current, mut)
				}
				if timer == nil {
					timer = time.NewTimer(t.cfg.Debounce)
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(t.cfg.Debounce)
				}
				pending = true

			case <-fire():
				if pending {
					current = t.FindMatches(pattern, nil)
					log.Debug(log.CatText, "pattern rescan", "pattern", pattern, "matches", len(current))
					cb(current)
					pending = false
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return cancel
}

// TrackSelection reports the user's current text selection as a Match (or
// nil) and re-reports on every selection change. The returned stop function
// ends tracking.
func (t *Tracker) TrackSelection(cb func(*Match)) func() {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		cb(nil)
		return func() {}
	}
	t.mu.Unlock()

	cb(t.selectionMatch())

	ctx, cancel := context.WithCancel(t.ctx)
	ch := t.surf.Mutations().Subscribe(ctx)

	go func() {
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if ev.Payload.Kind != surface.MutationSelection {
					continue
				}
				cb(t.selectionMatch())
			case <-ctx.Done():
				return
			}
		}
	}()

	return cancel
}

func (t *Tracker) selectionMatch() *Match {
	sel, ok := t.surf.Selection()
	if !ok || sel.Node == nil {
		return nil
	}
	runes := []rune(sel.Node.Text())
	if sel.Start < 0 || sel.End > len(runes) || sel.Start > sel.End {
		return nil
	}
	m := &Match{
		ID:        NewMatchID(),
		Text:      string(runes[sel.Start:sel.End]),
		Node:      sel.Node,
		Start:     sel.Start,
		End:       sel.End,
		Metadata:  map[string]any{"selection": true},
		CreatedAt: time.Now(),
	}
	if !t.Validate(m) {
		return nil
	}
	return m
}

// Destroy stops all tracking goroutines and discards tracked state.
// Idempotent.
func (t *Tracker) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return
	}
	t.destroyed = true
	t.cancel()
}

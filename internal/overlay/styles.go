package overlay

import (
	"sort"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// StyleSheet is the shared style scope for all overlays of one manager.
// Content factories and hosts look styles up by name; AddStyles appends
// or replaces.
type StyleSheet struct {
	mu     sync.RWMutex
	styles map[string]lipgloss.Style
}

// NewStyleSheet returns an empty style scope.
func NewStyleSheet() *StyleSheet {
	return &StyleSheet{styles: make(map[string]lipgloss.Style)}
}

// Add installs a named style, replacing any previous style of that name.
func (s *StyleSheet) Add(name string, style lipgloss.Style) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.styles[name] = style
}

// Get looks a style up by name.
func (s *StyleSheet) Get(name string) (lipgloss.Style, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	style, ok := s.styles[name]
	return style, ok
}

// Names returns the registered style names, sorted.
func (s *StyleSheet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.styles))
	for name := range s.styles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render applies the named style to body. Unknown names render the body
// unchanged.
func (s *StyleSheet) Render(name, body string) string {
	style, ok := s.Get(name)
	if !ok {
		return body
	}
	return style.Render(body)
}

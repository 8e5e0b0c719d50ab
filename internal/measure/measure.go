// Package measure computes the on-surface dimensions of rendered overlay
// content. Bodies may carry ANSI escape sequences; widths are counted in
// display cells, not bytes. Results are cached because the same body is
// measured on every processing turn.
package measure

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/wordwrap"
	"github.com/rivo/uniseg"

	"github.com/acetatelabs/acetate/internal/cachemanager"
	"github.com/acetatelabs/acetate/internal/geometry"
)

const cacheTTL = 10 * time.Minute

// Result is the measured extent of a body in display cells.
type Result struct {
	Width  int
	Height int
}

// Size converts the result to a geometry size.
func (r Result) Size() geometry.Size {
	return geometry.Size{Width: r.Width, Height: r.Height}
}

// Measurer measures bodies through an in-memory read-through cache.
type Measurer struct {
	cache *cachemanager.InMemoryCacheManager[string, Result]
	rt    *cachemanager.ReadThroughCache[string, Result, string]
}

// New constructs a measurer with its own cache.
func New() *Measurer {
	cache := cachemanager.NewInMemoryCacheManager[string, Result](
		"measure", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval)
	m := &Measurer{cache: cache}
	m.rt = cachemanager.NewReadThroughCache(cache, func(ctx context.Context, body string) (Result, error) {
		return measureBody(body), nil
	}, false)
	return m
}

// Measure returns the cell dimensions of body.
func (m *Measurer) Measure(ctx context.Context, body string) Result {
	// measureBody never fails, so the error is structural only.
	r, _ := m.rt.Get(ctx, body, body, cacheTTL)
	return r
}

// Flush drops all cached measurements.
func (m *Measurer) Flush(ctx context.Context) {
	_ = m.cache.Flush(ctx)
}

func measureBody(body string) Result {
	if body == "" {
		return Result{}
	}
	lines := strings.Split(body, "\n")
	var width int
	for _, line := range lines {
		if w := ansi.StringWidth(line); w > width {
			width = w
		}
	}
	return Result{Width: width, Height: len(lines)}
}

// PlainWidth counts the display cells of text with no escape sequences,
// grapheme cluster aware.
func PlainWidth(text string) int {
	return uniseg.StringWidth(text)
}

// Wrap word-wraps body to at most maxWidth cells per line. Bodies at or
// under the limit pass through untouched.
func Wrap(body string, maxWidth int) string {
	if maxWidth <= 0 {
		return body
	}
	return wordwrap.String(body, maxWidth)
}

// Package compositor paints overlay instances on top of a rendered
// background without clearing the screen. All string handling is
// ANSI-aware so styling survives in both the overlays and the
// background.
package compositor

import (
	"sort"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/acetatelabs/acetate/internal/overlay/registry"
)

// Layer is one piece of foreground content at an absolute position.
// Higher Z paints later.
type Layer struct {
	Body string
	X    int
	Y    int
	Z    int
}

// Compose paints the layers over the background, lowest z first. The
// background is padded to width by height; layers falling outside it
// are clipped.
func Compose(width, height int, bg string, layers []Layer) string {
	bgLines := strings.Split(bg, "\n")
	for len(bgLines) < height {
		bgLines = append(bgLines, strings.Repeat(" ", width))
	}

	ordered := make([]Layer, len(layers))
	copy(ordered, layers)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Z < ordered[j].Z })

	for _, layer := range ordered {
		bgLines = paint(bgLines, layer)
	}

	return strings.Join(bgLines, "\n")
}

// FromInstances converts active overlay instances into layers. The
// caller normally passes Manager.GetAllActiveOverlays().
func FromInstances(instances []*registry.Instance) []Layer {
	layers := make([]Layer, 0, len(instances))
	for _, inst := range instances {
		if inst == nil || inst.Wrapper == nil || !inst.Active {
			continue
		}
		b := inst.Wrapper.Bounds()
		layers = append(layers, Layer{Body: inst.Body, X: b.X, Y: b.Y, Z: inst.Wrapper.Z()})
	}
	return layers
}

// paint writes one layer's lines into the background, splicing each
// line ANSI-aware around the foreground span.
func paint(bgLines []string, layer Layer) []string {
	fgLines := strings.Split(layer.Body, "\n")
	startX := layer.X
	if startX < 0 {
		startX = 0
	}

	for i, fgLine := range fgLines {
		bgY := layer.Y + i
		if bgY < 0 {
			continue
		}
		if bgY >= len(bgLines) {
			break
		}

		bgLine := bgLines[bgY]
		fgLineWidth := ansi.StringWidth(fgLine)

		// Left portion of the background up to the overlay.
		leftPart := ansi.Truncate(bgLine, startX, "")
		leftWidth := ansi.StringWidth(leftPart)
		if leftWidth < startX {
			leftPart += strings.Repeat(" ", startX-leftWidth)
		}

		// Right portion of the background after the overlay.
		endX := startX + fgLineWidth
		bgWidth := ansi.StringWidth(bgLine)
		var rightPart string
		if endX < bgWidth {
			// TruncateLeft removes chars from the left, keeping the right
			rightPart = ansi.TruncateLeft(bgLine, endX, "")
		}

		bgLines[bgY] = leftPart + fgLine + rightPart
	}

	return bgLines
}

package compositor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acetatelabs/acetate/internal/geometry"
	"github.com/acetatelabs/acetate/internal/overlay/registry"
)

func TestCompose_SingleLayer(t *testing.T) {
	bg := "ABCDE\nFGHIJ\nKLMNO"

	result := Compose(5, 3, bg, []Layer{{Body: "X", X: 2, Y: 1}})

	lines := strings.Split(result, "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "ABCDE", lines[0])
	assert.Equal(t, "FGXIJ", lines[1])
	assert.Equal(t, "KLMNO", lines[2])
}

func TestCompose_MultiLineLayer(t *testing.T) {
	bg := "AAAAA\nAAAAA\nAAAAA"

	result := Compose(5, 3, bg, []Layer{{Body: "XX\nXX", X: 1, Y: 0}})

	lines := strings.Split(result, "\n")
	assert.Equal(t, "AXXAA", lines[0])
	assert.Equal(t, "AXXAA", lines[1])
	assert.Equal(t, "AAAAA", lines[2])
}

func TestCompose_ZOrder(t *testing.T) {
	bg := "AAAAA\nAAAAA\nAAAAA"

	// Same cell, the higher z paints last.
	result := Compose(5, 3, bg, []Layer{
		{Body: "T", X: 2, Y: 1, Z: 20},
		{Body: "B", X: 2, Y: 1, Z: 10},
	})

	lines := strings.Split(result, "\n")
	assert.Equal(t, "AATAA", lines[1])
}

func TestCompose_ClipsOutsideBackground(t *testing.T) {
	bg := "AAA\nAAA"

	// Extends past the right and bottom edges; must not panic.
	result := Compose(3, 2, bg, []Layer{{Body: "XXXXX\nXXXXX\nXXXXX", X: 1, Y: 1}})

	lines := strings.Split(result, "\n")
	assert.Len(t, lines, 2)
	assert.Equal(t, "AAA", lines[0])
	assert.Equal(t, "AXXXXX", lines[1])
}

func TestCompose_NegativeOriginClamped(t *testing.T) {
	bg := "AAAAA\nAAAAA"

	result := Compose(5, 2, bg, []Layer{{Body: "XX\nXX", X: -3, Y: -1}})

	lines := strings.Split(result, "\n")
	assert.Equal(t, "XXAAA", lines[0], "the visible part paints at the clamped origin")
	assert.Equal(t, "AAAAA", lines[1])
}

func TestCompose_PadsShortBackground(t *testing.T) {
	result := Compose(5, 3, "", []Layer{{Body: "XX", X: 1, Y: 2}})

	lines := strings.Split(result, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, " XX  ", lines[2])
}

func TestCompose_PreservesANSI(t *testing.T) {
	red := "\x1b[31mAAAAA\x1b[0m"
	bg := red + "\n" + red

	result := Compose(5, 2, bg, []Layer{{Body: "X", X: 2, Y: 0}})

	lines := strings.Split(result, "\n")
	assert.Contains(t, lines[0], "X")
	assert.Contains(t, lines[0], "\x1b[31m", "background styling survives the splice")
	assert.Equal(t, red, lines[1])
}

func TestFromInstances(t *testing.T) {
	active := &registry.Instance{
		Body:    "tip",
		Wrapper: registry.NewWrapper(geometry.Rect{X: 4, Y: 2, Width: 3, Height: 1}, 10001),
		Active:  true,
	}
	inactive := &registry.Instance{
		Body:    "gone",
		Wrapper: registry.NewWrapper(geometry.Rect{}, 10002),
		Active:  false,
	}

	layers := FromInstances([]*registry.Instance{active, inactive, nil})
	require.Len(t, layers, 1)
	assert.Equal(t, Layer{Body: "tip", X: 4, Y: 2, Z: 10001}, layers[0])
}

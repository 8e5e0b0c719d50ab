package geometry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRect_Contains(t *testing.T) {
	r := Rect{X: 2, Y: 3, Width: 4, Height: 2}

	require.True(t, r.Contains(Point{X: 2, Y: 3}), "top-left corner is inside")
	require.True(t, r.Contains(Point{X: 5, Y: 4}), "last cell is inside")
	require.False(t, r.Contains(Point{X: 6, Y: 3}), "right edge is exclusive")
	require.False(t, r.Contains(Point{X: 2, Y: 5}), "bottom edge is exclusive")
}

func TestRect_Intersects(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 5, Height: 5}

	require.True(t, a.Intersects(Rect{X: 4, Y: 4, Width: 3, Height: 3}))
	require.False(t, a.Intersects(Rect{X: 5, Y: 0, Width: 3, Height: 3}), "touching edges do not intersect")
	require.False(t, a.Intersects(Rect{X: 1, Y: 1, Width: 0, Height: 4}), "empty rect never intersects")
}

func TestRect_ContainsRect(t *testing.T) {
	outer := Rect{X: 0, Y: 0, Width: 10, Height: 10}

	require.True(t, outer.ContainsRect(Rect{X: 0, Y: 0, Width: 10, Height: 10}))
	require.True(t, outer.ContainsRect(Rect{X: 3, Y: 3, Width: 2, Height: 2}))
	require.False(t, outer.ContainsRect(Rect{X: 8, Y: 8, Width: 3, Height: 3}))
}

func TestRect_Expand(t *testing.T) {
	r := Rect{X: 5, Y: 5, Width: 2, Height: 2}

	grown := r.Expand(3)
	require.Equal(t, Rect{X: 2, Y: 2, Width: 8, Height: 8}, grown)

	shrunk := r.Expand(-2)
	require.Equal(t, 0, shrunk.Width, "width floors at zero")
	require.Equal(t, 0, shrunk.Height, "height floors at zero")
}

func TestRect_ClampInto(t *testing.T) {
	bounds := Rect{X: 0, Y: 0, Width: 20, Height: 10}

	r := Rect{X: 18, Y: 8, Width: 5, Height: 5}
	clamped := r.ClampInto(bounds)
	require.Equal(t, 15, clamped.X)
	require.Equal(t, 5, clamped.Y)

	// Larger than bounds: origin pins to the bounds origin.
	big := Rect{X: 5, Y: 5, Width: 30, Height: 30}
	pinned := big.ClampInto(bounds)
	require.Equal(t, 0, pinned.X)
	require.Equal(t, 0, pinned.Y)
}

func TestSide_IsValid(t *testing.T) {
	for _, s := range []Side{SideAbove, SideBelow, SideLeft, SideRight} {
		require.True(t, s.IsValid(), "side %s", s)
	}
	require.False(t, Side("diagonal").IsValid())
	require.False(t, Side("").IsValid())
}

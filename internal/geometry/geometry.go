// Package geometry provides the cell-based value types shared by every
// engine component: points, sizes, rectangles and the four placement sides.
// All coordinates are terminal cells with the origin at the top-left.
package geometry

// Point is an absolute cell coordinate.
type Point struct {
	X int
	Y int
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p translated by -q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Size is a width/height pair in cells.
type Size struct {
	Width  int
	Height int
}

// IsZero returns true if either dimension is non-positive.
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Rect is an axis-aligned rectangle. Width and Height are never negative
// in rectangles produced by this package.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// RectAt builds a rectangle from an origin point and a size.
func RectAt(p Point, s Size) Rect {
	return Rect{X: p.X, Y: p.Y, Width: s.Width, Height: s.Height}
}

// Origin returns the top-left corner.
func (r Rect) Origin() Point {
	return Point{X: r.X, Y: r.Y}
}

// Size returns the rectangle's dimensions.
func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// Right returns the exclusive right edge.
func (r Rect) Right() int {
	return r.X + r.Width
}

// Bottom returns the exclusive bottom edge.
func (r Rect) Bottom() int {
	return r.Y + r.Height
}

// IsEmpty returns true if the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.Right() && p.Y >= r.Y && p.Y < r.Bottom()
}

// ContainsRect reports whether q lies fully inside r.
func (r Rect) ContainsRect(q Rect) bool {
	return q.X >= r.X && q.Y >= r.Y && q.Right() <= r.Right() && q.Bottom() <= r.Bottom()
}

// Intersects reports whether the two rectangles share any area.
func (r Rect) Intersects(q Rect) bool {
	if r.IsEmpty() || q.IsEmpty() {
		return false
	}
	return r.X < q.Right() && q.X < r.Right() && r.Y < q.Bottom() && q.Y < r.Bottom()
}

// Expand grows the rectangle by n cells on every side. Negative n shrinks;
// dimensions are floored at zero.
func (r Rect) Expand(n int) Rect {
	out := Rect{
		X:      r.X - n,
		Y:      r.Y - n,
		Width:  r.Width + 2*n,
		Height: r.Height + 2*n,
	}
	if out.Width < 0 {
		out.Width = 0
	}
	if out.Height < 0 {
		out.Height = 0
	}
	return out
}

// ClampInto translates r so it lies inside bounds where possible. When r is
// larger than bounds on an axis, the origin is pinned to the bounds origin.
func (r Rect) ClampInto(bounds Rect) Rect {
	out := r
	if out.Right() > bounds.Right() {
		out.X = bounds.Right() - out.Width
	}
	if out.Bottom() > bounds.Bottom() {
		out.Y = bounds.Bottom() - out.Height
	}
	if out.X < bounds.X {
		out.X = bounds.X
	}
	if out.Y < bounds.Y {
		out.Y = bounds.Y
	}
	return out
}

// Side identifies one of the four placement sides relative to a target.
type Side string

const (
	SideAbove Side = "above"
	SideBelow Side = "below"
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// String returns the string representation of the side.
func (s Side) String() string {
	return string(s)
}

// IsValid returns true if this is one of the four recognized sides.
func (s Side) IsValid() bool {
	switch s {
	case SideAbove, SideBelow, SideLeft, SideRight:
		return true
	}
	return false
}

package annotation

// Coordinates are fractions of the rendered page box, kept inside a margin so
// a sticker never renders off the page.
const (
	MinCoord = 0.05
	MaxCoord = 0.95
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func clamp(v float64) float64 {
	if v != v { // NaN
		return MinCoord
	}
	return max(MinCoord, min(MaxCoord, v))
}

func (p Position) Clamp() Position {
	return Position{X: clamp(p.X), Y: clamp(p.Y)}
}

// Drag converts a pointer movement in screen pixels into a new position.
// width and height are the container's rendered size and scale its zoom
// level; a non-positive dimension or scale leaves the start position as is.
func Drag(start Position, dxPx, dyPx, widthPx, heightPx, scale float64) Position {
	if widthPx <= 0 || heightPx <= 0 || scale <= 0 {
		return start.Clamp()
	}
	return Position{
		X: start.X + dxPx/widthPx/scale,
		Y: start.Y + dyPx/heightPx/scale,
	}.Clamp()
}

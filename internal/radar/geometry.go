package radar

import (
	"math"

	"signal-hud.klederson.com/internal/config"
	"signal-hud.klederson.com/internal/signal"
)

// Bounds is the part of the plane shown on screen, in meters.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Fit returns bounds enclosing points with margin meters on every side.
// Without points it returns a 20 m square around the origin.
func Fit(points []signal.Position, margin float64) Bounds {
	if len(points) == 0 {
		return Bounds{MinX: -10, MinY: -10, MaxX: 10, MaxY: 10}
	}
	b := Bounds{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
	for _, p := range points {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	b.MinX -= margin
	b.MinY -= margin
	b.MaxX += margin
	b.MaxY += margin
	return b
}

// Span returns the larger side of the bounds.
func (b Bounds) Span() float64 {
	return math.Max(b.MaxX-b.MinX, b.MaxY-b.MinY)
}

// Grid maps plane coordinates to terminal cells. One meter covers the same
// screen distance on both axes, so the plane is centered and letterboxed.
type Grid struct {
	Width, Height int

	bounds Bounds
	sx, sy float64 // cells per meter
	offX   float64
	offY   float64
}

func NewGrid(b Bounds, width, height int) Grid {
	w := math.Max(b.MaxX-b.MinX, 1e-3)
	h := math.Max(b.MaxY-b.MinY, 1e-3)

	sx := math.Min(float64(width-1)/w, float64(height-1)/(h*config.AspectRatio))
	sy := sx * config.AspectRatio
	return Grid{
		Width:  width,
		Height: height,
		bounds: b,
		sx:     sx,
		sy:     sy,
		offX:   (float64(width-1) - w*sx) / 2,
		offY:   (float64(height-1) - h*sy) / 2,
	}
}

// Cell returns the cell for p; ok is false when p is off screen.
func (g Grid) Cell(p signal.Position) (col, row int, ok bool) {
	col = int(math.Round((p.X-g.bounds.MinX)*g.sx + g.offX))
	row = int(math.Round((g.bounds.MaxY-p.Y)*g.sy + g.offY))
	ok = col >= 0 && col < g.Width && row >= 0 && row < g.Height
	return col, row, ok
}

// Point returns the plane coordinates of the center of a cell.
func (g Grid) Point(col, row int) signal.Position {
	return signal.Position{
		X: g.bounds.MinX + (float64(col)-g.offX)/g.sx,
		Y: g.bounds.MaxY - (float64(row)-g.offY)/g.sy,
	}
}

// MetersPerCell is the horizontal size of one cell.
func (g Grid) MetersPerCell() float64 {
	return 1 / g.sx
}

// Bearing returns the direction from one point to another in radians,
// in [0, 2π), where 0 is +Y ("north") increasing clockwise.
func Bearing(from, to signal.Position) float64 {
	return NormalizeAngle(math.Atan2(to.X-from.X, to.Y-from.Y))
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b signal.Position) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// NormalizeAngle wraps an angle to [0, 2π).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// Direction returns the 8-point compass label for an angle.
func Direction(a float64) string {
	dirs := []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
	idx := int(math.Round(NormalizeAngle(a)/(math.Pi/4))) % 8
	return dirs[idx]
}

// RingChar returns the character used to draw a ring at the given angle.
func RingChar(angle float64) rune {
	switch int(math.Round(NormalizeAngle(angle)/(math.Pi/4))) % 8 {
	case 0, 4:
		return '-'
	case 1, 5:
		return '/'
	case 2, 6:
		return '|'
	default:
		return '\\'
	}
}

// RingStep picks a round ring spacing giving about four rings over span.
func RingStep(span float64) float64 {
	raw := span / 8
	if raw <= 0 {
		return 1
	}
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 5, 10} {
		if raw <= m*mag {
			return m * mag
		}
	}
	return 10 * mag
}

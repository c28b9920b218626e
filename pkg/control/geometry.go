package control

import (
	"fmt"
	"strings"
)

// Point is a screen coordinate in pixels
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Rect is a bounding box in screen pixels
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) Left() int    { return r.X }
func (r Rect) Top() int     { return r.Y }
func (r Rect) Right() int   { return r.X + r.Width }
func (r Rect) Bottom() int  { return r.Y + r.Height }
func (r Rect) CenterX() int { return r.X + r.Width/2 }
func (r Rect) CenterY() int { return r.Y + r.Height/2 }

// IsEmpty reports whether the box has no area
func (r Rect) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// Contains reports whether p lies inside the box
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left() && p.X < r.Right() && p.Y >= r.Top() && p.Y < r.Bottom()
}

// Pivot selects the anchor point of a box that offsets are applied to
type Pivot uint8

const (
	PivotCenter Pivot = iota
	PivotTopLeft
	PivotTopRight
	PivotBottomLeft
	PivotBottomRight
)

var pivotNames = map[Pivot]string{
	PivotCenter:      "center",
	PivotTopLeft:     "top_left",
	PivotTopRight:    "top_right",
	PivotBottomLeft:  "bottom_left",
	PivotBottomRight: "bottom_right",
}

func (p Pivot) String() string {
	if name, ok := pivotNames[p]; ok {
		return name
	}
	return fmt.Sprintf("pivot(%d)", uint8(p))
}

// ParsePivot parses a pivot name
func ParsePivot(s string) (Pivot, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if key == "" {
		return PivotCenter, nil
	}
	for p, name := range pivotNames {
		if name == key || strings.ReplaceAll(name, "_", "") == key {
			return p, nil
		}
	}
	return PivotCenter, fmt.Errorf("unknown pivot %q", s)
}

func (p Pivot) MarshalText() ([]byte, error) {
	if _, ok := pivotNames[p]; !ok {
		return nil, fmt.Errorf("unknown pivot %d", uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *Pivot) UnmarshalText(text []byte) error {
	parsed, err := ParsePivot(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// PivotPoint returns the anchor point of box for pivot
func PivotPoint(box Rect, pivot Pivot) Point {
	switch pivot {
	case PivotTopLeft:
		return Point{X: box.Left(), Y: box.Top()}
	case PivotTopRight:
		return Point{X: box.Right(), Y: box.Top()}
	case PivotBottomLeft:
		return Point{X: box.Left(), Y: box.Bottom()}
	case PivotBottomRight:
		return Point{X: box.Right(), Y: box.Bottom()}
	default:
		return Point{X: box.CenterX(), Y: box.CenterY()}
	}
}

// ClickablePoint applies the identity's pivot and offsets to box
func ClickablePoint(box Rect, id *Identity) Point {
	if id == nil {
		return PivotPoint(box, PivotCenter)
	}
	p := PivotPoint(box, id.Pivot)
	return Point{X: p.X + id.OffsetX, Y: p.Y + id.OffsetY}
}

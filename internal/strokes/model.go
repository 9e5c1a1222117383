package strokes

import "strings"

type Tool string

const (
	ToolPen    = Tool("pen")
	ToolEraser = Tool("eraser")
	ToolRect   = Tool("rect")
	ToolCircle = Tool("circle")
	ToolLine   = Tool("line")
)

// ParseTool maps a wire tool name to a Tool. "rectangle" is accepted as an
// alias of rect.
func ParseTool(s string) (Tool, bool) {
	switch t := Tool(strings.ToLower(strings.TrimSpace(s))); t {
	case ToolPen, ToolEraser, ToolRect, ToolCircle, ToolLine:
		return t, true
	case "rectangle":
		return ToolRect, true
	}
	return "", false
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one committed edit. AuthorID is always the server-known
// connection identity of whoever drew it.
type Stroke struct {
	ID       string  `json:"id"`
	AuthorID string  `json:"userId"`
	Tool     Tool    `json:"tool"`
	Color    string  `json:"color"`
	Width    float64 `json:"width"`
	Points   []Point `json:"points"`
}

// Valid reports whether the stroke can be appended to a log.
func (s Stroke) Valid() bool {
	if s.ID == "" || len(s.Points) == 0 || s.Width <= 0 {
		return false
	}
	_, ok := ParseTool(string(s.Tool))
	return ok
}

// Clone returns a copy that shares no memory with s.
func (s Stroke) Clone() Stroke {
	c := s
	c.Points = append([]Point(nil), s.Points...)
	return c
}

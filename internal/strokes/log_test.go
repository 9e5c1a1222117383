package strokes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStroke(id, author string) Stroke {
	return Stroke{
		ID:       id,
		AuthorID: author,
		Tool:     ToolPen,
		Color:    "#000000",
		Width:    5,
		Points:   []Point{{X: 10, Y: 10}, {X: 100, Y: 100}},
	}
}

func TestNewLog(t *testing.T) {
	l := NewLog()
	require.NotNil(t, l)
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.List())
}

func TestLog_AppendKeepsArrivalOrder(t *testing.T) {
	l := NewLog()
	for _, id := range []string{"c", "a", "b"} {
		require.True(t, l.Append(testStroke(id, "u1")))
	}

	ids := []string{}
	for _, s := range l.List() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestLog_AppendRejectsInvalid(t *testing.T) {
	l := NewLog()

	noPoints := testStroke("s1", "u1")
	noPoints.Points = nil
	assert.False(t, l.Append(noPoints), "stroke without points")

	noID := testStroke("", "u1")
	assert.False(t, l.Append(noID), "stroke without id")

	zeroWidth := testStroke("s2", "u1")
	zeroWidth.Width = 0
	assert.False(t, l.Append(zeroWidth), "stroke with zero width")

	badTool := testStroke("s3", "u1")
	badTool.Tool = "spray"
	assert.False(t, l.Append(badTool), "stroke with unknown tool")

	assert.Equal(t, 0, l.Len())
}

func TestLog_AppendNormalizesToolAlias(t *testing.T) {
	l := NewLog()
	s := testStroke("s1", "u1")
	s.Tool = "rectangle"
	require.True(t, l.Append(s))

	got, ok := l.Get("s1")
	require.True(t, ok)
	assert.Equal(t, ToolRect, got.Tool)
}

func TestLog_IDsNeverReused(t *testing.T) {
	l := NewLog()
	require.True(t, l.Append(testStroke("s1", "u1")))
	assert.False(t, l.Append(testStroke("s1", "u2")), "duplicate id while live")

	require.True(t, l.RemoveOwned("s1", "u1"))
	assert.False(t, l.Append(testStroke("s1", "u1")), "id reused after undo")
	assert.Equal(t, 0, l.Len())
}

func TestLog_RemoveOwned(t *testing.T) {
	l := NewLog()
	l.Append(testStroke("s1", "u1"))
	l.Append(testStroke("s2", "u2"))
	l.Append(testStroke("s3", "u1"))

	assert.False(t, l.RemoveOwned("s2", "u1"), "other author's stroke")
	assert.False(t, l.RemoveOwned("missing", "u1"), "unknown stroke")
	assert.True(t, l.RemoveOwned("s1", "u1"))
	assert.False(t, l.RemoveOwned("s1", "u1"), "second undo is a no-op")

	list := l.List()
	require.Len(t, list, 2)
	assert.Equal(t, "s2", list[0].ID)
	assert.Equal(t, "s3", list[1].ID)

	// index must still resolve after the shift
	assert.True(t, l.RemoveOwned("s3", "u1"))
	assert.Equal(t, 1, l.Len())
}

func TestLog_ListIsACopy(t *testing.T) {
	l := NewLog()
	l.Append(testStroke("s1", "u1"))

	list := l.List()
	list[0].Points[0].X = 999
	list[0].AuthorID = "mallory"

	got, _ := l.Get("s1")
	assert.Equal(t, float64(10), got.Points[0].X)
	assert.Equal(t, "u1", got.AuthorID)
}

func TestParseTool(t *testing.T) {
	cases := map[string]Tool{
		"pen":       ToolPen,
		"ERASER":    ToolEraser,
		"rect":      ToolRect,
		"rectangle": ToolRect,
		" circle ":  ToolCircle,
		"line":      ToolLine,
	}
	for in, want := range cases {
		got, ok := ParseTool(in)
		if assert.True(t, ok, in) {
			assert.Equal(t, want, got, in)
		}
	}

	_, ok := ParseTool("lasso")
	assert.False(t, ok)
}

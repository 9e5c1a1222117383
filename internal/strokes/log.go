package strokes

// Log is the ordered, append-only stroke history of a single room. Order is
// the order Append was called in. A Log is not safe for concurrent use; the
// owning room serializes access.
type Log struct {
	strokes []Stroke
	index   map[string]int
	// retired holds every id ever appended, including undone ones, so an id
	// is never reused for the lifetime of the log.
	retired map[string]struct{}
}

func NewLog() *Log {
	return &Log{
		index:   make(map[string]int),
		retired: make(map[string]struct{}),
	}
}

// Append adds s to the end of the log. It returns false and leaves the log
// unchanged if s is invalid or its id has been used before.
func (l *Log) Append(s Stroke) bool {
	if !s.Valid() {
		return false
	}
	if _, used := l.retired[s.ID]; used {
		return false
	}
	tool, _ := ParseTool(string(s.Tool))
	s = s.Clone()
	s.Tool = tool
	l.index[s.ID] = len(l.strokes)
	l.retired[s.ID] = struct{}{}
	l.strokes = append(l.strokes, s)
	return true
}

func (l *Log) Get(id string) (Stroke, bool) {
	i, ok := l.index[id]
	if !ok {
		return Stroke{}, false
	}
	return l.strokes[i].Clone(), true
}

// RemoveOwned removes the stroke with the given id only if it was authored by
// authorID. It reports whether a stroke was removed.
func (l *Log) RemoveOwned(id, authorID string) bool {
	i, ok := l.index[id]
	if !ok || l.strokes[i].AuthorID != authorID {
		return false
	}
	copy(l.strokes[i:], l.strokes[i+1:])
	l.strokes[len(l.strokes)-1] = Stroke{}
	l.strokes = l.strokes[:len(l.strokes)-1]
	delete(l.index, id)
	for j := i; j < len(l.strokes); j++ {
		l.index[l.strokes[j].ID] = j
	}
	return true
}

// List returns a copy of the log in order.
func (l *Log) List() []Stroke {
	list := make([]Stroke, 0, len(l.strokes))
	for _, s := range l.strokes {
		list = append(list, s.Clone())
	}
	return list
}

func (l *Log) Len() int {
	return len(l.strokes)
}

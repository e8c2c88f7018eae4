package synteny

// AssignOffsets places seqs end to end on one axis, in slice order, starting
// at 0. The order is never changed: callers that need a particular
// chromosome order must sort the index file.
func AssignOffsets(seqs []SequenceEntry) {
	var off int64
	for i := range seqs {
		seqs[i].Offset = off
		off += seqs[i].Length
	}
}

// TotalLength returns the length of the axis covered by seqs.
func TotalLength(seqs []SequenceEntry) int64 {
	if len(seqs) == 0 {
		return 0
	}
	return seqs[len(seqs)-1].End()
}

// Layout resolves sequence names to their entries on the axis.
type Layout struct {
	seqs   []SequenceEntry
	byName map[string]int
}

// NewLayout indexes seqs by name. Offsets must already be assigned.
func NewLayout(seqs []SequenceEntry) *Layout {
	l := &Layout{seqs: seqs, byName: make(map[string]int, len(seqs))}
	for i, s := range seqs {
		l.byName[s.Name] = i
	}
	return l
}

// Lookup returns the entry for the given name.
func (l *Layout) Lookup(name string) (SequenceEntry, bool) {
	i, ok := l.byName[name]
	if !ok {
		return SequenceEntry{}, false
	}
	return l.seqs[i], true
}

// Sequences returns the entries in layout order.
func (l *Layout) Sequences() []SequenceEntry { return l.seqs }

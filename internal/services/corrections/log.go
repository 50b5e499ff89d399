package corrections

type logEntry struct {
	seq       uint64
	directive Directive
}

// Log is the ordered list of pending directives. Insertion order is replay
// order. A Log is not safe for concurrent use; the Committer guards it.
type Log struct {
	entries []logEntry
	nextSeq uint64
}

// Snapshot is the portion of a log handed to a commit.
type Snapshot struct {
	Directives []Directive
	through    uint64
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append validates d and adds it to the end of the log.
func (l *Log) Append(d Directive) error {
	if err := d.Validate(); err != nil {
		return err
	}
	l.nextSeq++
	l.entries = append(l.entries, logEntry{seq: l.nextSeq, directive: d})
	return nil
}

func (l *Log) Len() int { return len(l.entries) }

// IsEmpty reports whether there is nothing to commit.
func (l *Log) IsEmpty() bool { return len(l.entries) == 0 }

// Directives returns a copy of the pending directives in order.
func (l *Log) Directives() []Directive {
	out := make([]Directive, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.directive
	}
	return out
}

// Snapshot captures the current directives for a commit.
func (l *Log) Snapshot() Snapshot {
	s := Snapshot{Directives: l.Directives()}
	if n := len(l.entries); n > 0 {
		s.through = l.entries[n-1].seq
	}
	return s
}

// ClearThrough drops every directive captured by s. Directives appended after
// the snapshot was taken are kept. Clearing the same snapshot twice is harmless.
func (l *Log) ClearThrough(s Snapshot) {
	if s.through == 0 {
		return
	}
	if n := len(l.entries); n == 0 || l.entries[n-1].seq <= s.through {
		l.Clear()
		return
	}
	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.seq > s.through {
			kept = append(kept, e)
		}
	}
	l.entries = kept
}

// Clear empties the log.
func (l *Log) Clear() {
	l.entries = nil
}

// Package keyframes indexes the frames where a tracked identity ends, the
// candidates a reviewer steps between when looking for identity switches.
package keyframes

import (
	"sort"
)

// Entry marks a frame flagged by upstream tracking analysis as a likely
// identity switch, together with the track identifier involved.
type Entry struct {
	Frame   int    `json:"frame"`
	TrackID string `json:"trackId"`
}

// Index is an immutable, frame-ordered set of key frames. It is rebuilt
// wholesale whenever new annotation data arrives and never mutated in place.
// The zero value and a nil *Index are both valid empty indexes.
type Index struct {
	entries []Entry
}

// Build sorts entries by frame and removes duplicate frames. When the input
// repeats a frame, the entry appearing later in the input wins.
// The input slice is not modified.
func Build(entries []Entry) *Index {
	if len(entries) == 0 {
		return &Index{}
	}

	latest := make(map[int]int, len(entries))
	for i, e := range entries {
		latest[e.Frame] = i
	}

	out := make([]Entry, 0, len(latest))
	for i, e := range entries {
		if latest[e.Frame] == i {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Frame < out[b].Frame })

	return &Index{entries: out}
}

// Len returns the number of key frames.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.entries)
}

// Empty reports whether the index holds no key frames.
func (x *Index) Empty() bool {
	return x.Len() == 0
}

// Entries returns a copy of the ordered entries.
func (x *Index) Entries() []Entry {
	if x.Empty() {
		return []Entry{}
	}
	out := make([]Entry, len(x.entries))
	copy(out, x.entries)
	return out
}

// At returns the entry at position i.
func (x *Index) At(i int) (Entry, bool) {
	if i < 0 || i >= x.Len() {
		return Entry{}, false
	}
	return x.entries[i], true
}

// First returns the earliest key frame.
func (x *Index) First() (Entry, bool) {
	return x.At(0)
}

// Last returns the latest key frame.
func (x *Index) Last() (Entry, bool) {
	return x.At(x.Len() - 1)
}

// IndexOf returns the position of frame in the index, or -1 when frame is not
// itself a key frame. There is no nearest-neighbour fallback.
func (x *Index) IndexOf(frame int) int {
	n := x.Len()
	if n == 0 {
		return -1
	}
	i := sort.Search(n, func(i int) bool { return x.entries[i].Frame >= frame })
	if i < n && x.entries[i].Frame == frame {
		return i
	}
	return -1
}

// Before returns the entry immediately preceding cursor. A cursor of -1 or 0
// has nothing before it.
func (x *Index) Before(cursor int) (Entry, bool) {
	if cursor <= 0 {
		return Entry{}, false
	}
	return x.At(cursor - 1)
}

// After returns the entry immediately following cursor. A cursor of -1 is
// treated as sitting before the first entry.
func (x *Index) After(cursor int) (Entry, bool) {
	if cursor < -1 {
		return Entry{}, false
	}
	return x.At(cursor + 1)
}

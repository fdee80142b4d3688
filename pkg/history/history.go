// Package history implements the linear undo log of graph snapshots.
//
// The log is a vector of serialized graphs with a cursor. Appending after
// moving back drops every entry after the cursor first, so the log never
// branches:
//
//	h.AddHead(s0)
//	h.Append(s1)
//	h.Append(s2)
//	h.Back()      // cursor on s1
//	h.Append(s3)  // s2 is gone; log is s0 s1 s3
//
// Snapshots are copied on the way in and out. A [Log] is not safe for
// concurrent use.
package history

import "slices"

// Log is a cursor-based list of snapshots.
type Log struct {
	entries [][]byte
	cursor  int
}

// New returns an empty log.
func New() *Log {
	return &Log{cursor: -1}
}

// AddHead discards all history and starts a single-entry log at snapshot.
func (l *Log) AddHead(snapshot []byte) {
	l.entries = [][]byte{slices.Clone(snapshot)}
	l.cursor = 0
}

// Append drops every entry after the cursor, pushes snapshot and moves the
// cursor onto it. On an empty log it behaves like [Log.AddHead].
func (l *Log) Append(snapshot []byte) {
	if l.cursor < 0 {
		l.AddHead(snapshot)
		return
	}
	clear(l.entries[l.cursor+1:])
	l.entries = append(l.entries[:l.cursor+1], slices.Clone(snapshot))
	l.cursor++
}

// Back moves the cursor one entry back and returns that snapshot. At the
// first entry it returns false and leaves the cursor alone.
func (l *Log) Back() ([]byte, bool) {
	if !l.CanBack() {
		return nil, false
	}
	l.cursor--
	return slices.Clone(l.entries[l.cursor]), true
}

// Forward moves the cursor one entry forward and returns that snapshot. At
// the last entry it returns false and leaves the cursor alone.
func (l *Log) Forward() ([]byte, bool) {
	if !l.CanForward() {
		return nil, false
	}
	l.cursor++
	return slices.Clone(l.entries[l.cursor]), true
}

// EditCurrent rewrites the snapshot under the cursor in place. The cursor
// does not move and no entry is added. If edit fails the entry is unchanged.
func (l *Log) EditCurrent(edit func([]byte) ([]byte, error)) error {
	if l.cursor < 0 {
		return nil
	}
	next, err := edit(slices.Clone(l.entries[l.cursor]))
	if err != nil {
		return err
	}
	l.entries[l.cursor] = slices.Clone(next)
	return nil
}

// Current returns the snapshot under the cursor.
func (l *Log) Current() ([]byte, bool) {
	if l.cursor < 0 {
		return nil, false
	}
	return slices.Clone(l.entries[l.cursor]), true
}

// Cursor returns the index of the current entry, or -1 for an empty log.
func (l *Log) Cursor() int { return l.cursor }

// Len returns the number of entries.
func (l *Log) Len() int { return len(l.entries) }

// CanBack reports whether [Log.Back] would move.
func (l *Log) CanBack() bool { return l.cursor > 0 }

// CanForward reports whether [Log.Forward] would move.
func (l *Log) CanForward() bool { return l.cursor >= 0 && l.cursor < len(l.entries)-1 }

// Reset empties the log.
func (l *Log) Reset() {
	l.entries = nil
	l.cursor = -1
}

package tools

import (
	"errors"
	"os"
	"sync"
	"time"
)

// ErrNoEntries is returned by UndoLast when no batch remains.
var ErrNoEntries = errors.New("nothing to undo")

// UndoEntry snapshots one file-mutating tool effect.
type UndoEntry struct {
	Tool    string
	Path    string
	Prior   []byte // content before the mutation; nil when Existed is false
	Existed bool   // false means the file was created by the tool
	Seq     int
	Batch   int
	At      time.Time
}

// UndoLog records mutating tool effects grouped into per-turn batches, so an
// undo reverts everything a single turn produced.
type UndoLog struct {
	mu      sync.Mutex
	entries []UndoEntry
	batch   int
	seq     int
}

// NewUndoLog creates an empty log.
func NewUndoLog() *UndoLog {
	return &UndoLog{}
}

// Begin opens a new batch. The agent loop calls this once per user turn.
func (l *UndoLog) Begin() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batch++
}

// Record appends an entry to the current batch.
func (l *UndoLog) Record(e UndoEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	e.Seq = l.seq
	e.Batch = l.batch
	if e.At.IsZero() {
		e.At = time.Now()
	}
	l.entries = append(l.entries, e)
}

// Len returns the number of recorded entries across all batches.
func (l *UndoLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Report lists the outcome of an undo: paths restored to their prior state
// and paths that could not be restored.
type Report struct {
	Restored []string
	Failed   map[string]error
}

// UndoLast reverts the most recent batch in reverse insertion order,
// restoring prior content or deleting files that did not exist. Entries are
// consumed whether or not their restoration succeeds; failures are reported
// per path.
func (l *UndoLog) UndoLast() (Report, error) {
	l.mu.Lock()
	if len(l.entries) == 0 {
		l.mu.Unlock()
		return Report{}, ErrNoEntries
	}
	last := l.entries[len(l.entries)-1].Batch
	cut := len(l.entries)
	for cut > 0 && l.entries[cut-1].Batch == last {
		cut--
	}
	batch := l.entries[cut:]
	l.entries = l.entries[:cut]
	l.mu.Unlock()

	report := Report{Failed: make(map[string]error)}
	for i := len(batch) - 1; i >= 0; i-- {
		e := batch[i]
		var err error
		if e.Existed {
			err = os.WriteFile(e.Path, e.Prior, 0o644)
		} else {
			err = os.Remove(e.Path)
			if os.IsNotExist(err) {
				err = nil
			}
		}
		if err != nil {
			report.Failed[e.Path] = err
			continue
		}
		report.Restored = append(report.Restored, e.Path)
	}
	return report, nil
}

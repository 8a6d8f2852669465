// Package history implements the bounded undo ledger: full deep-copy
// snapshots of the region list, captured before each mutating operation.
package history

import (
	"errors"
	"log/slog"
	"time"

	"card-annotator/internal/annotation"
)

// ErrEmptyHistory is reported when undo is requested with nothing to revert.
// It is a no-op, not a failure.
var ErrEmptyHistory = errors.New("nothing to undo")

// DefaultDepth is the snapshot capacity used when none is configured.
const DefaultDepth = 20

// Snapshot captures the full store state before a mutation commits.
type Snapshot struct {
	Label       string
	TakenAt     time.Time
	Regions     []*annotation.Region
	SelectedKey string
}

// Ledger is a bounded LIFO of snapshots. When full, the oldest entry is
// silently dropped. Restoring never pushes, so undo itself is not undo-able.
type Ledger struct {
	depth  int
	stack  []Snapshot
	logger *slog.Logger
}

// NewLedger creates a ledger holding at most depth snapshots.
func NewLedger(depth int, logger *slog.Logger) *Ledger {
	if depth <= 0 {
		depth = DefaultDepth
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ledger{depth: depth, logger: logger}
}

// Record deep-copies the store's current regions and selection and pushes
// them with a human-readable action label. Call it before the mutation, not
// after.
func (l *Ledger) Record(store *annotation.Store, selectedKey, label string) {
	l.Push(store.SnapshotRegions(), selectedKey, label)
}

// Push stores an already-captured deep copy. Drag handlers use this to push
// the pre-drag state once, on release, instead of once per pointer move.
func (l *Ledger) Push(regions []*annotation.Region, selectedKey, label string) {
	if len(l.stack) == l.depth {
		copy(l.stack, l.stack[1:])
		l.stack = l.stack[:l.depth-1]
	}
	l.stack = append(l.stack, Snapshot{
		Label:       label,
		TakenAt:     time.Now(),
		Regions:     regions,
		SelectedKey: selectedKey,
	})
	l.logger.Debug("undo snapshot recorded", "label", label, "depth", len(l.stack))
}

// Undo pops the most recent snapshot and restores the store from it,
// returning the selection to re-apply and the snapshot's label.
func (l *Ledger) Undo(store *annotation.Store) (selectedKey, label string, err error) {
	if len(l.stack) == 0 {
		return "", "", ErrEmptyHistory
	}
	snap := l.stack[len(l.stack)-1]
	l.stack = l.stack[:len(l.stack)-1]
	store.RestoreRegions(snap.Regions)
	l.logger.Debug("undo applied", "label", snap.Label, "depth", len(l.stack))
	return snap.SelectedKey, snap.Label, nil
}

// CanUndo reports whether at least one snapshot is available.
func (l *Ledger) CanUndo() bool {
	return len(l.stack) > 0
}

// Depth returns the number of stored snapshots.
func (l *Ledger) Depth() int {
	return len(l.stack)
}

// LastLabel returns the label of the snapshot Undo would restore, or "".
func (l *Ledger) LastLabel() string {
	if len(l.stack) == 0 {
		return ""
	}
	return l.stack[len(l.stack)-1].Label
}

// Clear drops all snapshots, e.g. when a different template is loaded.
func (l *Ledger) Clear() {
	l.stack = nil
}

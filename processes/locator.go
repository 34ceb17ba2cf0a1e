// Package processes resolves process names to identifiers and lists what is
// running, for callers that address an injection target by name instead of
// pid.
package processes

// Entry is one process in a snapshot.
type Entry struct {
	PID  uint32
	Name string
}

// Snapshot is a lazily walked, point-in-time sequence of process entries.
// Close must be called whether or not the walk finishes.
type Snapshot interface {
	// Next returns the next entry, or ok=false once exhausted.
	Next() (Entry, bool, error)
	// Close releases the snapshot resource.
	Close() error
}

// FindInSnapshot walks snap until the first entry whose name matches
// exactly, releasing the snapshot in every case. found is false when the
// snapshot is exhausted without a match.
func FindInSnapshot(snap Snapshot, name string) (pid uint32, found bool, err error) {
	defer snap.Close()
	for {
		entry, ok, err := snap.Next()
		if err != nil {
			return 0, false, err
		}
		if !ok {
			return 0, false, nil
		}
		if entry.Name == name {
			return entry.PID, true, nil
		}
	}
}

// FindPID resolves a process name against a fresh system snapshot.
func FindPID(name string) (uint32, bool, error) {
	snap, err := newSystemSnapshot()
	if err != nil {
		return 0, false, err
	}
	return FindInSnapshot(snap, name)
}

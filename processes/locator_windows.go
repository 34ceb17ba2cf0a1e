//go:build windows

package processes

import "github.com/steele123/meminject/winapi"

// toolhelpSnapshot adapts the winapi process snapshot to the Snapshot
// interface.
type toolhelpSnapshot struct {
	snap *winapi.ProcessSnapshot
}

func newSystemSnapshot() (Snapshot, error) {
	s, err := winapi.NewProcessSnapshot()
	if err != nil {
		return nil, err
	}
	return &toolhelpSnapshot{snap: s}, nil
}

func (t *toolhelpSnapshot) Next() (Entry, bool, error) {
	e, ok, err := t.snap.Next()
	if err != nil || !ok {
		return Entry{}, ok, err
	}
	return Entry{PID: e.PID, Name: e.Name}, true, nil
}

func (t *toolhelpSnapshot) Close() error { return t.snap.Close() }

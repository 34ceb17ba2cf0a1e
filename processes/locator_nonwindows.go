//go:build !windows

package processes

import "github.com/shirou/gopsutil/v3/process"

// psutilSnapshot serves non-Windows hosts from the gopsutil process list so
// name resolution keeps working in development and tests off-target.
type psutilSnapshot struct {
	procs []*process.Process
	pos   int
}

func newSystemSnapshot() (Snapshot, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	return &psutilSnapshot{procs: procs}, nil
}

func (s *psutilSnapshot) Next() (Entry, bool, error) {
	for s.pos < len(s.procs) {
		p := s.procs[s.pos]
		s.pos++
		name, err := p.Name()
		if err != nil {
			// process vanished mid-walk
			continue
		}
		return Entry{PID: uint32(p.Pid), Name: name}, true, nil
	}
	return Entry{}, false, nil
}

func (s *psutilSnapshot) Close() error { return nil }

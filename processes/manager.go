package processes

import (
	"fmt"
	"sort"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessInfo describes one running process for display.
type ProcessInfo struct {
	PID  uint32
	Name string
	Path string
}

// Manager lists processes and per-process modules.
type Manager struct {
	logger interface {
		Info(string, ...interface{})
		Debug(string, ...interface{})
		Error(string, ...interface{})
	}
}

// NewManager creates a process manager.
func NewManager(logger interface {
	Info(string, ...interface{})
	Debug(string, ...interface{})
	Error(string, ...interface{})
}) *Manager {
	return &Manager{logger: logger}
}

// List returns the running processes sorted by name.
func (m *Manager) List() ([]ProcessInfo, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	infos := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			// gone between snapshot and query
			continue
		}
		path, err := p.Exe()
		if err != nil {
			path = ""
		}
		infos = append(infos, ProcessInfo{PID: uint32(p.Pid), Name: name, Path: path})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	m.logger.Debug("listed %d processes", len(infos))
	return infos, nil
}

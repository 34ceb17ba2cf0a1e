//go:build windows

package winapi

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// ProcessEntry is one row of a system process snapshot.
type ProcessEntry struct {
	PID       uint32
	ParentPID uint32
	Name      string
}

// ModuleEntry is one row of a per-process module snapshot.
type ModuleEntry struct {
	Name string
	Base uintptr
	Size uint32
}

// ProcessSnapshot iterates a point-in-time list of system processes. The
// snapshot handle must be released with Close whether or not iteration
// finishes.
type ProcessSnapshot struct {
	handle  windows.Handle
	started bool
}

// NewProcessSnapshot takes a system-wide process snapshot.
func NewProcessSnapshot() (*ProcessSnapshot, error) {
	h, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot: %w", err)
	}
	return &ProcessSnapshot{handle: h}, nil
}

// Next returns the next entry, or ok=false once the snapshot is exhausted.
func (s *ProcessSnapshot) Next() (ProcessEntry, bool, error) {
	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var err error
	if !s.started {
		s.started = true
		err = windows.Process32First(s.handle, &entry)
	} else {
		err = windows.Process32Next(s.handle, &entry)
	}
	if err != nil {
		if err == windows.ERROR_NO_MORE_FILES {
			return ProcessEntry{}, false, nil
		}
		return ProcessEntry{}, false, fmt.Errorf("process snapshot walk: %w", err)
	}
	return ProcessEntry{
		PID:       entry.ProcessID,
		ParentPID: entry.ParentProcessID,
		Name:      windows.UTF16ToString(entry.ExeFile[:]),
	}, true, nil
}

// Close releases the snapshot handle.
func (s *ProcessSnapshot) Close() error {
	return CloseHandle(s.handle)
}

// ModuleSnapshot iterates the modules loaded in one process.
type ModuleSnapshot struct {
	handle  windows.Handle
	started bool
}

// NewModuleSnapshot takes a module snapshot of pid.
func NewModuleSnapshot(pid uint32) (*ModuleSnapshot, error) {
	h, err := windows.CreateToolhelp32Snapshot(
		windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, pid)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot(modules, %d): %w", pid, err)
	}
	return &ModuleSnapshot{handle: h}, nil
}

// Next returns the next module entry, or ok=false when exhausted.
func (s *ModuleSnapshot) Next() (ModuleEntry, bool, error) {
	var entry windows.ModuleEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var err error
	if !s.started {
		s.started = true
		err = windows.Module32First(s.handle, &entry)
	} else {
		err = windows.Module32Next(s.handle, &entry)
	}
	if err != nil {
		if err == windows.ERROR_NO_MORE_FILES {
			return ModuleEntry{}, false, nil
		}
		return ModuleEntry{}, false, fmt.Errorf("module snapshot walk: %w", err)
	}
	return ModuleEntry{
		Name: windows.UTF16ToString(entry.Module[:]),
		Base: entry.ModBaseAddr,
		Size: entry.ModBaseSize,
	}, true, nil
}

// Close releases the snapshot handle.
func (s *ModuleSnapshot) Close() error {
	return CloseHandle(s.handle)
}

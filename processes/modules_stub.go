//go:build !windows

package processes

import "fmt"

// ModuleInfo describes one module loaded in a target process.
type ModuleInfo struct {
	Name string
	Base uintptr
	Size uint32
}

// ListModules is Windows-only; module snapshots have no portable analogue.
func (m *Manager) ListModules(pid uint32) ([]ModuleInfo, error) {
	return nil, fmt.Errorf("module listing requires windows")
}

// FindModuleBase is Windows-only.
func (m *Manager) FindModuleBase(pid uint32, name string) (uintptr, bool, error) {
	return 0, false, fmt.Errorf("module listing requires windows")
}

//go:build windows

package processes

import "github.com/steele123/meminject/winapi"

// ModuleInfo describes one module loaded in a target process.
type ModuleInfo struct {
	Name string
	Base uintptr
	Size uint32
}

// ListModules walks a module snapshot of pid. Useful for confirming an
// injected module actually landed, and at which base.
func (m *Manager) ListModules(pid uint32) ([]ModuleInfo, error) {
	snap, err := winapi.NewModuleSnapshot(pid)
	if err != nil {
		return nil, err
	}
	defer snap.Close()

	var mods []ModuleInfo
	for {
		entry, ok, err := snap.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		mods = append(mods, ModuleInfo{Name: entry.Name, Base: entry.Base, Size: entry.Size})
	}
	m.logger.Debug("pid %d has %d modules", pid, len(mods))
	return mods, nil
}

// FindModuleBase resolves a loaded module's base address inside pid.
func (m *Manager) FindModuleBase(pid uint32, name string) (uintptr, bool, error) {
	mods, err := m.ListModules(pid)
	if err != nil {
		return 0, false, err
	}
	for _, mod := range mods {
		if mod.Name == name {
			return mod.Base, true, nil
		}
	}
	return 0, false, nil
}

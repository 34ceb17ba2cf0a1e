package injection

import "errors"

// loaderModule and loaderExport name the target-side loader entry used by
// loader invocation. kernel32 is mapped at the same base in every process of
// a session, so an address resolved here is valid inside the target.
const (
	loaderModule = "kernel32.dll"
	loaderExport = "LoadLibraryA"
)

// loadLibraryMethod writes the module path into the target and starts a
// remote thread at the target's own loader entry point with the path buffer
// as its argument. The loader does the mapping work, so the staged path
// buffer is the only transient allocation.
type loadLibraryMethod struct {
	pathAddr uintptr
	entry    uintptr
}

// LoadLibrary returns the loader-invocation method. It is the deterministic
// conservative default.
func LoadLibrary() Method { return &loadLibraryMethod{} }

func (m *loadLibraryMethod) Name() string { return "loadlibrary" }

func (m *loadLibraryMethod) Access() uint32 {
	return AccessCreateThread | AccessVMOperation | AccessVMWrite |
		AccessVMRead | AccessQueryInformation
}

func (m *loadLibraryMethod) stage(a *attempt) error {
	// NUL-terminated ANSI path, as LoadLibraryA expects.
	pathBytes := append([]byte(a.modulePath), 0)

	region, err := a.alloc(uintptr(len(pathBytes)), PageReadWrite)
	if err != nil {
		return err
	}
	if err := a.write(region.Base(), pathBytes); err != nil {
		return err
	}
	m.pathAddr = region.Base()
	a.log.Debug("module path staged at 0x%x (%d bytes)", region.Base(), len(pathBytes))
	return nil
}

func (m *loadLibraryMethod) entryPoint(a *attempt) (uintptr, error) {
	addr, err := a.os.ResolveExport(loaderModule, loaderExport)
	if err != nil {
		return 0, errKind(KindSymbolResolutionFailed, "resolve_export", err)
	}
	m.entry = addr
	a.log.Debug("%s!%s at 0x%x", loaderModule, loaderExport, addr)
	return addr, nil
}

func (m *loadLibraryMethod) threadParam(*attempt) uintptr { return m.pathAddr }

// The target's loader owns the module image; nothing of ours persists.
func (m *loadLibraryMethod) executionStarted(*attempt) {}

// moduleBase recovers the loaded module's base from the remote thread's exit
// code. LoadLibraryA returns the HMODULE, which the OS truncates to 32 bits
// in the exit code; on 64-bit targets the low bits still identify the module
// uniquely for diagnostics. A zero exit code is the loader's NULL: the
// target refused the module.
func (m *loadLibraryMethod) moduleBase(_ *attempt, exitCode uint32) (uintptr, error) {
	if exitCode == 0 {
		return 0, errKind(KindRemoteExecutionFailed, "load_module",
			errors.New("remote loader returned a null module handle"))
	}
	return uintptr(exitCode), nil
}

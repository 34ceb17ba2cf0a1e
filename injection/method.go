package injection

import (
	"fmt"
	"strings"
)

// Method is one injection strategy. Implementations are stateless beyond
// configuration; the engine drives the shared four-phase protocol and a
// method only decides what to stage, where execution starts, and what the
// remote thread's single argument is.
//
// The set of methods is closed: each works against the unexported attempt
// state, so adding one means adding a variant here, not touching the engine.
type Method interface {
	// Name identifies the method in results and logs.
	Name() string
	// Access returns the process access rights the method requires.
	Access() uint32
	// stage places whatever remote execution will need into the target,
	// recording every allocation on the attempt. Staging memory is
	// read-write, never executable.
	stage(a *attempt) error
	// entryPoint computes the address remote execution begins at. This is
	// the only phase allowed to escalate a staged region to executable.
	entryPoint(a *attempt) (uintptr, error)
	// threadParam is the single argument passed to the remote thread.
	threadParam(a *attempt) uintptr
	// executionStarted runs once the remote thread exists. The point of no
	// return: a method that leaves memory behind as the loaded module's
	// backing image pins it here.
	executionStarted(a *attempt)
	// moduleBase derives the success payload from the attempt and the
	// remote thread's exit code, or rejects the exit code as a failed
	// load.
	moduleBase(a *attempt, exitCode uint32) (uintptr, error)
}

// MethodByName maps a config string to a Method. Recognized names are
// "loadlibrary" and "manualmap".
func MethodByName(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "loadlibrary", "load-library", "standard":
		return LoadLibrary(), nil
	case "manualmap", "manual-map":
		return ManualMap(), nil
	default:
		return nil, fmt.Errorf("unknown injection method %q", name)
	}
}

// attempt is the per-call state shared between the engine and the running
// method. It exists for exactly one Inject call and never outlives it.
type attempt struct {
	os         OS
	log        Logger
	proc       *ProcessHandle
	modulePath string

	allocs []*RemoteAllocation
}

// alloc commits size bytes in the target and records the region for cleanup.
func (a *attempt) alloc(size uintptr, protect uint32) (*RemoteAllocation, error) {
	raw, err := a.proc.Raw()
	if err != nil {
		return nil, errKind(KindAllocationFailed, "virtual_alloc", err)
	}
	base, err := a.os.VirtualAlloc(raw, size, protect)
	if err != nil {
		return nil, errKind(KindAllocationFailed, "virtual_alloc", err)
	}
	region := &RemoteAllocation{os: a.os, proc: raw, base: base, size: size}
	a.allocs = append(a.allocs, region)
	return region, nil
}

// write copies buf into the target. A partial write is a hard failure, never
// a silent truncation.
func (a *attempt) write(addr uintptr, buf []byte) error {
	raw, err := a.proc.Raw()
	if err != nil {
		return errKind(KindWriteFailed, "write_memory", err)
	}
	n, err := a.os.WriteMemory(raw, addr, buf)
	if err != nil {
		return errKind(KindWriteFailed, "write_memory", err)
	}
	if n != uintptr(len(buf)) {
		return errKind(KindWriteFailed, "write_memory",
			fmt.Errorf("partial write: %d of %d bytes", n, len(buf)))
	}
	return nil
}

// protect changes a staged region's protection inside the target.
func (a *attempt) protect(addr, size uintptr, prot uint32) error {
	raw, err := a.proc.Raw()
	if err != nil {
		return err
	}
	_, err = a.os.VirtualProtect(raw, addr, size, prot)
	return err
}

// releaseTransient frees every non-persistent allocation once, collecting
// failures as warnings. It is safe to call on any exit path, repeatedly.
func (a *attempt) releaseTransient() []string {
	var warnings []string
	for _, region := range a.allocs {
		if err := region.free(); err != nil {
			warnings = append(warnings,
				fmt.Sprintf("cleanup: free of 0x%x failed: %v", region.base, err))
		}
	}
	return warnings
}

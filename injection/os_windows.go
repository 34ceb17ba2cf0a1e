//go:build windows

package injection

import (
	"time"

	"golang.org/x/sys/windows"

	"github.com/steele123/meminject/winapi"
)

// nativeLayer adapts the winapi wrappers to the OS interface the engine
// consumes.
type nativeLayer struct{}

func nativeOS() OS { return nativeLayer{} }

func (nativeLayer) OpenProcess(pid uint32, access uint32) (Handle, error) {
	h, err := winapi.OpenProcess(access, false, pid)
	if err != nil {
		return 0, err
	}
	return Handle(h), nil
}

func (nativeLayer) CloseHandle(h Handle) error {
	return winapi.CloseHandle(windows.Handle(h))
}

func (nativeLayer) VirtualAlloc(proc Handle, size uintptr, protect uint32) (uintptr, error) {
	return winapi.VirtualAllocEx(windows.Handle(proc), 0, size,
		winapi.MemCommit|winapi.MemReserve, protect)
}

func (nativeLayer) VirtualFree(proc Handle, addr uintptr) error {
	return winapi.VirtualFreeEx(windows.Handle(proc), addr, 0, winapi.MemRelease)
}

func (nativeLayer) VirtualProtect(proc Handle, addr, size uintptr, protect uint32) (uint32, error) {
	return winapi.VirtualProtectEx(windows.Handle(proc), addr, size, protect)
}

func (nativeLayer) WriteMemory(proc Handle, addr uintptr, buf []byte) (uintptr, error) {
	return winapi.WriteProcessMemory(windows.Handle(proc), addr, buf)
}

func (nativeLayer) ReadMemory(proc Handle, addr uintptr, n uintptr) ([]byte, error) {
	return winapi.ReadProcessMemory(windows.Handle(proc), addr, n)
}

// ResolveExport resolves module!symbol in the current process. System
// modules load at the same base in every process of a session, so the
// address is equally valid inside the target.
func (nativeLayer) ResolveExport(module, symbol string) (uintptr, error) {
	h, err := winapi.GetModuleHandle(module)
	if err != nil {
		return 0, err
	}
	return winapi.GetProcAddress(h, symbol)
}

func (nativeLayer) CreateRemoteThread(proc Handle, entry, param uintptr) (Handle, error) {
	h, _, err := winapi.CreateRemoteThread(windows.Handle(proc), entry, param)
	if err != nil {
		return 0, err
	}
	return Handle(h), nil
}

func (nativeLayer) WaitForThread(thread Handle, timeout time.Duration) (WaitOutcome, uint32, error) {
	event, err := winapi.WaitForSingleObject(windows.Handle(thread), timeout)
	if err != nil {
		return WaitTimedOut, 0, err
	}
	if event == uint32(windows.WAIT_TIMEOUT) {
		return WaitTimedOut, 0, nil
	}
	code, err := winapi.GetExitCodeThread(windows.Handle(thread))
	if err != nil {
		// A zero code would be indistinguishable from a failed load, so
		// the read failure surfaces as a wait failure.
		return WaitSignaled, 0, err
	}
	return WaitSignaled, code, nil
}

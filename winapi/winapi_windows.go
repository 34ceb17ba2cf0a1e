//go:build windows

// Package winapi is a thin typed wrapper around the Win32 calls the rest of
// the repo consumes: one call in, one (value, error) pair out. Every
// function returns its failure inline; nothing here asks the caller to read
// GetLastError afterwards, which would be racy next to other Win32 traffic
// in the same process.
package winapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modkernel32 = windows.NewLazySystemDLL("kernel32.dll")
	moduser32   = windows.NewLazySystemDLL("user32.dll")

	procVirtualAllocEx     = modkernel32.NewProc("VirtualAllocEx")
	procVirtualFreeEx      = modkernel32.NewProc("VirtualFreeEx")
	procVirtualProtectEx   = modkernel32.NewProc("VirtualProtectEx")
	procCreateRemoteThread = modkernel32.NewProc("CreateRemoteThread")
	procGetProcAddress     = modkernel32.NewProc("GetProcAddress")
	procGetExitCodeThread  = modkernel32.NewProc("GetExitCodeThread")
	procAllocConsole       = modkernel32.NewProc("AllocConsole")
	procFreeConsole        = modkernel32.NewProc("FreeConsole")
	procGetAsyncKeyState   = moduser32.NewProc("GetAsyncKeyState")
)

// Allocation and free types for VirtualAllocEx / VirtualFreeEx.
const (
	MemCommit  = 0x1000
	MemReserve = 0x2000
	MemRelease = 0x8000
)

// OpenProcess opens an existing process with the given access rights.
func OpenProcess(access uint32, inherit bool, pid uint32) (windows.Handle, error) {
	h, err := windows.OpenProcess(access, inherit, pid)
	if err != nil {
		return 0, fmt.Errorf("OpenProcess(%d): %w", pid, err)
	}
	return h, nil
}

// CloseHandle closes any open object handle.
func CloseHandle(h windows.Handle) error {
	if err := windows.CloseHandle(h); err != nil {
		return fmt.Errorf("CloseHandle: %w", err)
	}
	return nil
}

// VirtualAllocEx reserves and commits memory in another process. Pass
// addr 0 to let the OS pick the base.
func VirtualAllocEx(process windows.Handle, addr, size uintptr, allocType, protect uint32) (uintptr, error) {
	base, _, err := procVirtualAllocEx.Call(
		uintptr(process), addr, size, uintptr(allocType), uintptr(protect))
	if base == 0 {
		return 0, fmt.Errorf("VirtualAllocEx(%d bytes): %w", size, err)
	}
	return base, nil
}

// VirtualFreeEx releases a region previously allocated in another process.
// Size must be 0 when releasing, per the MEM_RELEASE contract.
func VirtualFreeEx(process windows.Handle, addr, size uintptr, freeType uint32) error {
	ok, _, err := procVirtualFreeEx.Call(
		uintptr(process), addr, size, uintptr(freeType))
	if ok == 0 {
		return fmt.Errorf("VirtualFreeEx(0x%x): %w", addr, err)
	}
	return nil
}

// VirtualProtectEx changes the protection of a committed region in another
// process and returns the previous protection.
func VirtualProtectEx(process windows.Handle, addr, size uintptr, protect uint32) (uint32, error) {
	var old uint32
	ok, _, err := procVirtualProtectEx.Call(
		uintptr(process), addr, size, uintptr(protect),
		uintptr(unsafe.Pointer(&old)))
	if ok == 0 {
		return 0, fmt.Errorf("VirtualProtectEx(0x%x): %w", addr, err)
	}
	return old, nil
}

// WriteProcessMemory writes buf into the target at addr and returns the
// number of bytes the OS reports written.
func WriteProcessMemory(process windows.Handle, addr uintptr, buf []byte) (uintptr, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	var written uintptr
	err := windows.WriteProcessMemory(process, addr, &buf[0], uintptr(len(buf)), &written)
	if err != nil {
		return written, fmt.Errorf("WriteProcessMemory(0x%x, %d bytes): %w", addr, len(buf), err)
	}
	return written, nil
}

// ReadProcessMemory reads n bytes from the target at addr.
func ReadProcessMemory(process windows.Handle, addr uintptr, n uintptr) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	var read uintptr
	err := windows.ReadProcessMemory(process, addr, &buf[0], n, &read)
	if err != nil {
		return nil, fmt.Errorf("ReadProcessMemory(0x%x, %d bytes): %w", addr, n, err)
	}
	return buf[:read], nil
}

// GetModuleHandle resolves a module loaded in the current process. A nil
// return from the OS signals failure; negative handle values are valid
// kernel addresses on 64-bit and must not be treated as errors.
func GetModuleHandle(name string) (windows.Handle, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0, err
	}
	var h windows.Handle
	if err := windows.GetModuleHandleEx(0, p, &h); err != nil {
		return 0, fmt.Errorf("GetModuleHandle(%s): %w", name, err)
	}
	return h, nil
}

// GetProcAddress resolves an export by name, or by ordinal when name has
// the form "#123".
func GetProcAddress(module windows.Handle, name string) (uintptr, error) {
	if ord, ok := strings.CutPrefix(name, "#"); ok {
		n, err := strconv.ParseUint(ord, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("GetProcAddress: bad ordinal %q", name)
		}
		addr, _, callErr := procGetProcAddress.Call(uintptr(module), uintptr(n))
		if addr == 0 {
			return 0, fmt.Errorf("GetProcAddress(#%d): %w", n, callErr)
		}
		return addr, nil
	}
	addr, err := windows.GetProcAddress(module, name)
	if err != nil {
		return 0, fmt.Errorf("GetProcAddress(%s): %w", name, err)
	}
	return addr, nil
}

// CreateRemoteThread starts a thread in another process at entry with the
// single argument param.
func CreateRemoteThread(process windows.Handle, entry, param uintptr) (windows.Handle, uint32, error) {
	var threadID uint32
	h, _, err := procCreateRemoteThread.Call(
		uintptr(process),
		0, // default security attributes
		0, // default stack size
		entry,
		param,
		0, // run immediately
		uintptr(unsafe.Pointer(&threadID)))
	if h == 0 {
		return 0, 0, fmt.Errorf("CreateRemoteThread: %w", err)
	}
	return windows.Handle(h), threadID, nil
}

// WaitForSingleObject waits for the object to signal, bounded by timeout.
// The wait event code (WAIT_OBJECT_0, WAIT_TIMEOUT, ...) is returned.
func WaitForSingleObject(h windows.Handle, timeout time.Duration) (uint32, error) {
	ms := uint32(timeout / time.Millisecond)
	event, err := windows.WaitForSingleObject(h, ms)
	if event == windows.WAIT_FAILED {
		return event, fmt.Errorf("WaitForSingleObject: %w", err)
	}
	return event, nil
}

// GetExitCodeThread returns a thread's exit code, or STILL_ACTIVE while it
// runs.
func GetExitCodeThread(h windows.Handle) (uint32, error) {
	var code uint32
	ok, _, err := procGetExitCodeThread.Call(
		uintptr(h), uintptr(unsafe.Pointer(&code)))
	if ok == 0 {
		return 0, fmt.Errorf("GetExitCodeThread: %w", err)
	}
	return code, nil
}

// GetAsyncKeyState reports whether the key is down at call time (most
// significant bit of the return value).
func GetAsyncKeyState(vkey int) int16 {
	state, _, _ := procGetAsyncKeyState.Call(uintptr(vkey))
	return int16(state)
}

// KeyDown is a convenience over GetAsyncKeyState.
func KeyDown(vkey int) bool {
	return uint16(GetAsyncKeyState(vkey))&0x8000 != 0
}

// AllocConsole attaches a new console to the calling process. Fails if a
// console already exists.
func AllocConsole() error {
	ok, _, err := procAllocConsole.Call()
	if ok == 0 {
		return fmt.Errorf("AllocConsole: %w", err)
	}
	return nil
}

// FreeConsole detaches the calling process from its console.
func FreeConsole() error {
	ok, _, err := procFreeConsole.Call()
	if ok == 0 {
		return fmt.Errorf("FreeConsole: %w", err)
	}
	return nil
}

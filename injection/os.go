package injection

import "time"

// Handle is an opaque OS object handle value. It carries no ownership by
// itself; ownership lives in ProcessHandle and RemoteAllocation.
type Handle uintptr

// WaitOutcome is the result of waiting on a remote thread.
type WaitOutcome int

const (
	// WaitSignaled means the object completed within the timeout.
	WaitSignaled WaitOutcome = iota
	// WaitTimedOut means the timeout elapsed first.
	WaitTimedOut
)

// Process access rights, mirroring the Win32 PROCESS_* constants. Kept here
// so the engine and methods stay buildable off-Windows.
const (
	AccessCreateThread     = 0x0002
	AccessVMOperation      = 0x0008
	AccessVMRead           = 0x0010
	AccessVMWrite          = 0x0020
	AccessQueryInformation = 0x0400
)

// Page protection constants used by the methods.
const (
	PageReadWrite   = 0x04
	PageExecuteRead = 0x20
)

// OS is the capability surface the engine drives. Each call maps to a single
// blocking system call and returns its failure inline; implementations must
// never require the caller to consult global error state afterwards.
//
// The production implementation wraps the winapi package and only exists on
// Windows; tests substitute a recording fake.
type OS interface {
	// OpenProcess opens pid with the given access right union.
	OpenProcess(pid uint32, access uint32) (Handle, error)
	// CloseHandle closes any handle obtained from this interface.
	CloseHandle(h Handle) error
	// VirtualAlloc reserves and commits size bytes in the target.
	VirtualAlloc(proc Handle, size uintptr, protect uint32) (uintptr, error)
	// VirtualFree releases an allocation made by VirtualAlloc.
	VirtualFree(proc Handle, addr uintptr) error
	// VirtualProtect changes the protection of a committed region and
	// returns the previous protection.
	VirtualProtect(proc Handle, addr, size uintptr, protect uint32) (uint32, error)
	// WriteMemory writes buf into the target and returns the byte count
	// actually written. A short count without an error is possible and is
	// the caller's problem to treat as a failure.
	WriteMemory(proc Handle, addr uintptr, buf []byte) (uintptr, error)
	// ReadMemory reads n bytes from the target.
	ReadMemory(proc Handle, addr uintptr, n uintptr) ([]byte, error)
	// ResolveExport returns the address of symbol exported by module, valid
	// inside the target. Relies on system modules sharing a base address
	// across processes.
	ResolveExport(module, symbol string) (uintptr, error)
	// CreateRemoteThread starts a thread in the target at entry with the
	// single argument param and returns its handle.
	CreateRemoteThread(proc Handle, entry, param uintptr) (Handle, error)
	// WaitForThread waits for the thread to finish, bounded by timeout.
	// On WaitSignaled the thread's exit code is returned as far as the OS
	// exposes it.
	WaitForThread(thread Handle, timeout time.Duration) (WaitOutcome, uint32, error)
}

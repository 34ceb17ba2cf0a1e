package injection

import "errors"

var errClosed = errors.New("process handle already closed")

// ProcessHandle owns an open handle to the target process. It must be closed
// exactly once; Close is idempotent so a deferred close on every exit path
// is safe. The zero value is unusable.
type ProcessHandle struct {
	os     OS
	raw    Handle
	pid    uint32
	closed bool
}

func openProcess(osl OS, pid uint32, access uint32) (*ProcessHandle, error) {
	h, err := osl.OpenProcess(pid, access)
	if err != nil {
		return nil, errKind(KindTargetUnreachable, "open_process", err)
	}
	return &ProcessHandle{os: osl, raw: h, pid: pid}, nil
}

// PID returns the target process identifier.
func (p *ProcessHandle) PID() uint32 { return p.pid }

// Raw returns the underlying OS handle. It errors after Close so a stale
// copy cannot be used accidentally.
func (p *ProcessHandle) Raw() (Handle, error) {
	if p.closed {
		return 0, errClosed
	}
	return p.raw, nil
}

// Close releases the handle. The second and later calls are no-ops.
func (p *ProcessHandle) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.os.CloseHandle(p.raw)
}

// RemoteAllocation is a region of memory committed inside the target's
// address space. Transient allocations are freed when the attempt ends;
// a persistent allocation (the mapped module image) is owned by the target
// thereafter and never freed by the engine.
type RemoteAllocation struct {
	os         OS
	proc       Handle
	base       uintptr
	size       uintptr
	freed      bool
	persistent bool
}

// Base returns the region's base address inside the target.
func (a *RemoteAllocation) Base() uintptr { return a.base }

// Size returns the committed size in bytes.
func (a *RemoteAllocation) Size() uintptr { return a.size }

// markPersistent excludes the region from transient cleanup. Used for the
// module's own backing image, which must outlive the attempt.
func (a *RemoteAllocation) markPersistent() { a.persistent = true }

// free releases the region once. Freeing an already-freed or persistent
// region is a no-op, which keeps cleanup idempotent across error paths.
func (a *RemoteAllocation) free() error {
	if a.freed || a.persistent {
		return nil
	}
	a.freed = true
	return a.os.VirtualFree(a.proc, a.base)
}

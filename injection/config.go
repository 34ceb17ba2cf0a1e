package injection

import (
	"time"

	"github.com/google/uuid"
)

// Config selects the injection method and its tunables. It is a plain value;
// the engine copies it at construction and never mutates it.
type Config struct {
	// Method is the injection strategy to dispatch to.
	Method Method
	// WaitTimeout bounds the wait for the remote thread. Zero means the
	// default. A timeout never blocks the caller past this window.
	WaitTimeout time.Duration
	// FreeTransientAllocations controls whether staging allocations are
	// released after the remote thread signals. Disable when a payload is
	// known to hold onto its staging buffer past thread exit.
	FreeTransientAllocations bool
}

// DefaultWaitTimeout is applied when Config.WaitTimeout is zero.
const DefaultWaitTimeout = 10 * time.Second

// DefaultConfig returns the conservative default: loader invocation with a
// finite wait and transient cleanup enabled.
func DefaultConfig() Config {
	return Config{
		Method:                   LoadLibrary(),
		WaitTimeout:              DefaultWaitTimeout,
		FreeTransientAllocations: true,
	}
}

func (c Config) withDefaults() Config {
	if c.Method == nil {
		c.Method = LoadLibrary()
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = DefaultWaitTimeout
	}
	return c
}

// Result describes a completed injection.
type Result struct {
	// AttemptID uniquely identifies this attempt in logs.
	AttemptID uuid.UUID
	// PID is the target process identifier.
	PID uint32
	// Method is the name of the method that ran.
	Method string
	// ModuleBase is the module's base address inside the target. For
	// loader invocation it is recovered from the remote thread's exit
	// code, which the OS truncates to 32 bits.
	ModuleBase uintptr
	// ExitCode is the remote thread's exit code as the OS exposes it.
	ExitCode uint32
	// Duration covers open through cleanup.
	Duration time.Duration
	// Warnings records best-effort cleanup failures. They never mask an
	// otherwise successful injection.
	Warnings []string
}

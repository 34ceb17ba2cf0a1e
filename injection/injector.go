// Package injection drives Windows-style cross-process module loading:
// open the target, stage a payload in its address space, start a remote
// thread, wait, clean up. The orchestration is method-agnostic; the
// strategies in this package decide how the target ends up executing the
// module.
package injection

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Injector orchestrates one injection at a time against the configured OS
// capability surface. One Inject call owns exactly one process handle;
// concurrent calls against the same target from different injectors are not
// coordinated and may race on that process's address space.
type Injector struct {
	cfg Config
	os  OS
	log Logger
}

// New creates an injector bound to the native OS layer. On non-Windows
// builds the native layer rejects every call.
func New(cfg Config) *Injector {
	return &Injector{
		cfg: cfg.withDefaults(),
		os:  nativeOS(),
		log: nopLogger{},
	}
}

// SetLogger replaces the discard logger.
func (inj *Injector) SetLogger(log Logger) {
	if log != nil {
		inj.log = log
	}
}

// SetOS replaces the OS capability layer. This is how tests substitute a
// fake; production code never needs it.
func (inj *Injector) SetOS(osl OS) {
	inj.os = osl
}

// Inject loads the module at modulePath into the process identified by pid
// using the configured method. It blocks until the attempt reaches a
// definite terminal outcome; nothing is ever left in flight. Once the
// remote thread starts running module initialization the effect on the
// target is irreversible, so nothing here is retried automatically.
func (inj *Injector) Inject(pid uint32, modulePath string) (*Result, error) {
	start := time.Now()
	attemptID := uuid.New()
	method := inj.cfg.Method

	if err := checkModulePath(modulePath); err != nil {
		return nil, err
	}
	if inj.os == nil {
		return nil, fmt.Errorf("native injection is only supported on windows")
	}

	inj.log.Info("injecting %s into pid %d via %s (attempt %s)",
		modulePath, pid, method.Name(), attemptID)

	proc, err := openProcess(inj.os, pid, method.Access())
	if err != nil {
		inj.log.Error("open failed for pid %d: %v", pid, err)
		return nil, err
	}

	var warnings []string
	defer func() {
		if cerr := proc.Close(); cerr != nil {
			inj.log.Warn("closing process handle: %v", cerr)
		}
	}()

	a := &attempt{
		os:         inj.os,
		log:        inj.log,
		proc:       proc,
		modulePath: modulePath,
	}

	// Best-effort rollback for failures before the remote thread exists.
	fail := func(err error) (*Result, error) {
		for _, w := range a.releaseTransient() {
			inj.log.Warn("%s", w)
		}
		inj.log.Error("injection into pid %d failed: %v", pid, err)
		return nil, err
	}

	// Phase a: stage.
	if err := method.stage(a); err != nil {
		return fail(err)
	}

	// Phase b: locate the entry point. On failure no thread is ever
	// created and staging is rolled back.
	entry, err := method.entryPoint(a)
	if err != nil {
		return fail(err)
	}

	// Phase c: execute.
	raw, err := proc.Raw()
	if err != nil {
		return fail(errKind(KindRemoteExecutionFailed, "create_remote_thread", err))
	}
	thread, err := inj.os.CreateRemoteThread(raw, entry, method.threadParam(a))
	if err != nil {
		return fail(errKind(KindRemoteExecutionFailed, "create_remote_thread", err))
	}
	method.executionStarted(a)
	defer func() {
		if cerr := inj.os.CloseHandle(thread); cerr != nil {
			inj.log.Warn("closing thread handle: %v", cerr)
		}
	}()

	// Phase d: synchronize, then clean up.
	outcome, exitCode, err := inj.os.WaitForThread(thread, inj.cfg.WaitTimeout)
	if err != nil || outcome == WaitTimedOut {
		// The remote thread keeps running in the target; only the wait is
		// cancelled. Freeing its staging memory now would yank a buffer
		// the thread may still read, so cleanup follows the config flag
		// the caller chose.
		if inj.cfg.FreeTransientAllocations {
			for _, w := range a.releaseTransient() {
				inj.log.Warn("%s", w)
			}
		}
		if err != nil {
			err = errKind(KindRemoteExecutionFailed, "wait", err)
		} else {
			err = errKind(KindTimeout, "wait",
				fmt.Errorf("remote thread did not signal within %s", inj.cfg.WaitTimeout))
		}
		inj.log.Error("injection into pid %d failed: %v", pid, err)
		return nil, err
	}

	base, err := method.moduleBase(a, exitCode)
	if err != nil {
		// The thread finished but the load did not take (loader returned
		// NULL). Staging memory is no longer read by anyone.
		for _, w := range a.releaseTransient() {
			inj.log.Warn("%s", w)
		}
		inj.log.Error("injection into pid %d failed: %v", pid, err)
		return nil, err
	}

	if inj.cfg.FreeTransientAllocations {
		warnings = append(warnings, a.releaseTransient()...)
		for _, w := range warnings {
			inj.log.Warn("%s", w)
		}
	}

	result := &Result{
		AttemptID:  attemptID,
		PID:        pid,
		Method:     method.Name(),
		ModuleBase: base,
		ExitCode:   exitCode,
		Duration:   time.Since(start),
		Warnings:   warnings,
	}
	inj.log.Info("injected into pid %d: module base 0x%x, exit code %d, took %s",
		pid, result.ModuleBase, result.ExitCode, result.Duration.Round(time.Millisecond))
	return result, nil
}

// checkModulePath rejects bad input before any OS call is attempted.
func checkModulePath(path string) error {
	if path == "" {
		return errKind(KindInvalidInput, "check_module", fmt.Errorf("empty module path"))
	}
	info, err := os.Stat(path)
	if err != nil {
		return errKind(KindInvalidInput, "check_module", err)
	}
	if !info.Mode().IsRegular() {
		return errKind(KindInvalidInput, "check_module",
			fmt.Errorf("%s is not a regular file", path))
	}
	f, err := os.Open(path)
	if err != nil {
		return errKind(KindInvalidInput, "check_module", err)
	}
	f.Close()
	return nil
}

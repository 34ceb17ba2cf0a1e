package injection

import "fmt"

// Kind classifies an injection failure. Every error returned by
// Injector.Inject carries exactly one Kind.
type Kind int

const (
	// KindInvalidInput means the module path was missing or unreadable
	// before any OS call was attempted.
	KindInvalidInput Kind = iota
	// KindTargetUnreachable means the target process could not be opened,
	// either because it is gone or because access was denied.
	KindTargetUnreachable
	// KindAllocationFailed means remote memory could not be allocated.
	KindAllocationFailed
	// KindWriteFailed means a cross-process write failed or was partial.
	KindWriteFailed
	// KindSymbolResolutionFailed means a required export or module was not
	// found in the target.
	KindSymbolResolutionFailed
	// KindRemoteExecutionFailed means remote thread creation was refused.
	KindRemoteExecutionFailed
	// KindTimeout means the remote thread did not signal completion within
	// the configured window. The thread keeps running in the target.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindTargetUnreachable:
		return "target unreachable"
	case KindAllocationFailed:
		return "allocation failed"
	case KindWriteFailed:
		return "write failed"
	case KindSymbolResolutionFailed:
		return "symbol resolution failed"
	case KindRemoteExecutionFailed:
		return "remote execution failed"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the error type returned by Injector.Inject. Op names the OS
// operation that failed; Err is the underlying OS error, if any.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("injection: %s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("injection: %s: %s", e.Kind, e.Op)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, which makes
// errors.Is(err, &Error{Kind: KindTimeout}) work without comparing Op/Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func errKind(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the failure Kind from err. ok is false if err was not
// produced by this package.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0, false
		}
		err = u.Unwrap()
	}
	return 0, false
}

//go:build !windows

package injection

// nativeOS has no implementation off Windows; New wires a nil layer and
// Inject reports the platform gap. Tests substitute a fake through SetOS.
func nativeOS() OS { return nil }

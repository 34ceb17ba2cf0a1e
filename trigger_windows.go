//go:build windows

package main

import (
	"time"

	"github.com/steele123/meminject/winapi"
)

const (
	vkEnd = 0x23
	vkF5  = 0x74
)

// waitForTrigger polls the keyboard until F5 (re-inject, returns true) or
// End (quit, returns false) is pressed.
func waitForTrigger(interval time.Duration) (bool, error) {
	for {
		if winapi.KeyDown(vkF5) {
			// swallow the held key so one press fires once
			for winapi.KeyDown(vkF5) {
				time.Sleep(interval)
			}
			return true, nil
		}
		if winapi.KeyDown(vkEnd) {
			return false, nil
		}
		time.Sleep(interval)
	}
}

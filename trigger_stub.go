//go:build !windows

package main

import (
	"errors"
	"time"
)

func waitForTrigger(time.Duration) (bool, error) {
	return false, errors.New("hotkey watch mode requires windows")
}

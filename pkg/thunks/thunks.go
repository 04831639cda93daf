// Package thunks contains pointers to functions that might be replaced in
// tests.
package thunks

import (
	"os"
	"os/exec"
	"time"
)

// UserHomeDir is an alias for os.UserHomeDir
var UserHomeDir func() (string, error) = os.UserHomeDir

// TimeNow is an alias for time.Now
var TimeNow func() time.Time = time.Now

// LookPath is an alias for exec.LookPath.
var LookPath func(string) (string, error) = exec.LookPath

// SetUpTest replaces thunks with stable test versions.
func SetUpTest() {
	TimeNow = func() time.Time {
		return time.Date(1992, 12, 31, 1, 2, 3, 4, time.UTC)
	}
	UserHomeDir = func() (string, error) {
		return "/home/spikes", nil
	}
	LookPath = func(file string) (string, error) {
		return file, nil
	}
}

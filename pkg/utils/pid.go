package utils

import (
	"os"
	"syscall"
)

// CheckPid reports whether a process with the given pid is alive. Signal 0
// performs the existence check without delivering anything.
func CheckPid(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}

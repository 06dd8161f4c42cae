//go:build windows

package process

import (
	"fmt"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"
)

const (
	PROCESS_TERMINATE                 = 0x0001
	PROCESS_QUERY_LIMITED_INFORMATION = 0x1000
	stillActive                       = 259
)

// pidAlive opens the process and checks that it has not exited yet.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := syscall.OpenProcess(PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer func() { _ = syscall.CloseHandle(h) }()
	var code uint32
	if err := syscall.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == stillActive
}

// sendTerm asks the process to close. The child leads its own process
// group, so CTRL_BREAK reaches it when we share its console. Otherwise
// taskkill without /F posts WM_CLOSE, which windowless console programs
// refuse; that case reports ErrTermNotDelivered so the caller escalates.
func sendTerm(pid int) error {
	if err := windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(pid)); err == nil {
		return nil
	}
	// #nosec G204 -- argv is built from an integer pid
	cmd := exec.Command("taskkill", "/T", "/PID", strconv.Itoa(pid))
	if err := cmd.Run(); err != nil {
		if !pidAlive(pid) {
			return ErrProcessGone
		}
		return &SignalError{PID: pid, Signal: "close", Err: fmt.Errorf("%w: %v", ErrTermNotDelivered, err)}
	}
	return nil
}

// sendKill terminates the process unconditionally.
func sendKill(pid int) error {
	h, err := syscall.OpenProcess(PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		if !pidAlive(pid) {
			return ErrProcessGone
		}
		return &SignalError{PID: pid, Signal: "terminate", Err: err}
	}
	defer func() { _ = syscall.CloseHandle(h) }()
	if err := syscall.TerminateProcess(h, 1); err != nil {
		return &SignalError{PID: pid, Signal: "terminate", Err: err}
	}
	return nil
}

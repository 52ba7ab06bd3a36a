//go:build unix

package supervisor

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// terminateSignal is what Kill sends.
const terminateSignal = syscall.SIGTERM

// setSysProcAttr puts the child in its own process group so terminal
// signals aimed at the host do not reach it behind the supervisor's back.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// termination splits a finished process state into exit code or signal name.
func termination(state *os.ProcessState) (*int, string) {
	if state == nil {
		return nil, ""
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		name := unix.SignalName(ws.Signal())
		if name == "" {
			name = ws.Signal().String()
		}
		return nil, name
	}
	code := state.ExitCode()
	return &code, ""
}

package main

import "os/exec"

// shellRunner implements interp.CommandRunner over os/exec, the same
// subprocess-invocation idiom the retrieval pack uses for xdotool/xprop
// calls (writerslogic-witnessd's FocusTracker).
type shellRunner struct{}

func (shellRunner) Run(cmd string, args []string) (string, bool) {
	out, err := exec.Command(cmd, args...).Output()
	if err != nil {
		return "", false
	}
	return string(out), true
}

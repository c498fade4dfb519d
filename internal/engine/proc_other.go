//go:build !unix

package engine

import "os/exec"

// configureProcessGroup is a no-op; cancellation kills the shell only.
func configureProcessGroup(*exec.Cmd) {}

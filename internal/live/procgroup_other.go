//go:build !unix

package live

import "os/exec"

// setProcessGroup leaves cmd unchanged; cancellation kills only the direct
// child and the stop grace closes the pipes.
func setProcessGroup(cmd *exec.Cmd) {}

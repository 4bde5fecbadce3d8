//go:build !unix

package ffmpeg

import "os/exec"

func isolateProcessGroup(*exec.Cmd) {}

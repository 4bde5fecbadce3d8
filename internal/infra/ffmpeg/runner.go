package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
)

// CommandRunner abstracts subprocess execution so probes can be tested
// against canned tool output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)
}

// ExecRunner runs commands with stdout and stderr each capped at MaxBuffer bytes.
type ExecRunner struct {
	MaxBuffer int64
}

func NewExecRunner(maxBuffer int64) *ExecRunner {
	return &ExecRunner{MaxBuffer: maxBuffer}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	stdout := &cappedBuffer{limit: r.MaxBuffer}
	stderr := &cappedBuffer{limit: r.MaxBuffer}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	isolateProcessGroup(cmd)

	err := cmd.Run()
	if stdout.overflow || stderr.overflow {
		return stdout.Bytes(), stderr.Bytes(), fmt.Errorf("%w: %s exceeded %d bytes", entity.ErrOutputLimit, name, r.MaxBuffer)
	}
	if err != nil {
		return stdout.Bytes(), stderr.Bytes(), fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}

// cappedBuffer keeps at most limit bytes and fails writes past it.
type cappedBuffer struct {
	bytes.Buffer
	limit    int64
	overflow bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.limit > 0 && int64(b.Len()+len(p)) > b.limit {
		b.overflow = true
		room := int(b.limit) - b.Len()
		if room > 0 {
			b.Buffer.Write(p[:room])
		}
		return room, entity.ErrOutputLimit
	}
	return b.Buffer.Write(p)
}

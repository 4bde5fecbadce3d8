package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

// fakeRunner answers by executable base name and records every call.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []call
	outputs map[string]fakeOutput
	onRun   func(name string, args []string)
}

type fakeOutput struct {
	stdout string
	stderr string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: args})
	f.mu.Unlock()

	if f.onRun != nil {
		f.onRun(name, args)
	}
	out := f.outputs[filepath.Base(name)]
	return []byte(out.stdout), []byte(out.stderr), out.err
}

func (f *fakeRunner) callsTo(base string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if filepath.Base(c.name) == base {
			out = append(out, c)
		}
	}
	return out
}

// fakeTools drops executable stubs for ffmpeg and ffprobe into a temp dir.
func fakeTools(t *testing.T) Tools {
	t.Helper()
	dir := t.TempDir()
	tools := Tools{FFmpeg: filepath.Join(dir, "ffmpeg"), FFprobe: filepath.Join(dir, "ffprobe")}
	for _, p := range []string{tools.FFmpeg, tools.FFprobe} {
		require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	}
	return tools
}

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

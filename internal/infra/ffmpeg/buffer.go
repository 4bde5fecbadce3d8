package ffmpeg

// MaxExecBuffer is the ceiling applied to derived exec buffer sizes.
const MaxExecBuffer int64 = 30 * 1024 * 1024

// ExecBufferSize derives the per-stream output cap from free memory:
// min(free/3, 30 MiB). Unknown free memory (0) yields MaxExecBuffer.
func ExecBufferSize(freeBytes uint64) int64 {
	if freeBytes == 0 {
		return MaxExecBuffer
	}
	return min(int64(freeBytes/3), MaxExecBuffer)
}

// ResolveExecBuffer returns configured when positive, otherwise the size
// derived from the current free memory.
func ResolveExecBuffer(configured int64) int64 {
	if configured > 0 {
		return configured
	}
	return ExecBufferSize(freeMemory())
}

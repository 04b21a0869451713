package supervisor

import (
	"io"
	"sync"
)

// truncationMarker is appended once a capture buffer hits its bound;
// bytes after it still reach the job's LogFile if one is configured.
const truncationMarker = "\n...[truncated]...\n"

// captureBuffer is a bounded, truncating stdout/stderr accumulator.
// 1MiB matches the teacher's sandbox.Config.MaxOutputBytes default.
const defaultCaptureBound = 1 << 20

type captureBuffer struct {
	mu        sync.Mutex
	buf       []byte
	bound     int
	truncated bool
}

func newCaptureBuffer(bound int) *captureBuffer {
	if bound <= 0 {
		bound = defaultCaptureBound
	}
	return &captureBuffer{bound: bound}
}

// Write implements io.Writer. Once the bound is reached, further
// writes are dropped from the in-memory capture (but the caller is
// still expected to forward raw bytes to the log file separately).
func (c *captureBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.truncated {
		return len(p), nil
	}
	remaining := c.bound - len(c.buf)
	if remaining <= 0 {
		c.truncated = true
		c.buf = append(c.buf, []byte(truncationMarker)...)
		return len(p), nil
	}
	if len(p) > remaining {
		c.buf = append(c.buf, p[:remaining]...)
		c.truncated = true
		c.buf = append(c.buf, []byte(truncationMarker)...)
		return len(p), nil
	}
	c.buf = append(c.buf, p...)
	return len(p), nil
}

func (c *captureBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.buf)
}

// teeWriter returns an io.Writer that writes to both the capture
// buffer and, if logFile is non-nil, appends raw bytes to it too.
func teeWriter(capture *captureBuffer, logFile io.Writer) io.Writer {
	if logFile == nil {
		return capture
	}
	return io.MultiWriter(capture, logFile)
}

// Package util holds small buffer helpers that don't belong to the
// wire-format or algorithm code; its one user is the applier.
package util

// MemSink is an in-memory io.WriterAt sink used by bspatch.Bytes to
// reconstruct NEW without touching the filesystem. It grows on demand,
// the same trick the original bsdiff Go port used for its patch-file
// buffer, repurposed here as the applier's in-memory output target.
type MemSink struct {
	buf []byte
}

// NewMemSink returns a MemSink preallocated to size bytes; WriteAt grows
// it past that on demand.
func NewMemSink(size int64) *MemSink {
	return &MemSink{buf: make([]byte, size)}
}

// WriteAt implements io.WriterAt, growing the backing slice if needed.
func (m *MemSink) WriteAt(p []byte, off int64) (int, error) {
	end := off + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[off:end], p)
	return len(p), nil
}

// Bytes returns the accumulated buffer.
func (m *MemSink) Bytes() []byte {
	return m.buf
}

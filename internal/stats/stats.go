// Package stats provides the process-wide diagnostic counters described
// in §9 of the spec: files encoded, bytes in/out, and per-codec block
// counts. They are not part of the delta contract — two encodes of the
// same inputs must still produce byte-identical deltas regardless of
// what a Recorder has already accumulated.
package stats

import (
	"sync/atomic"

	"github.com/clearlinux/bsdiff/pkg/codec"
)

// Recorder accumulates counters across one or more encodes. The zero
// value is ready to use. A nil *Recorder is also valid everywhere it's
// accepted as an argument: every method no-ops on a nil receiver, so
// callers that don't care about diagnostics can pass nil.
type Recorder struct {
	files        int64
	newBytes     int64
	outputBytes  int64
	none         int64
	gzip         int64
	bzip2        int64
	xz           int64
	zeros        int64
	fullDownload int64
}

// Snapshot is a non-atomic copy of a Recorder's counters: each field is
// read atomically, the set as a whole is not.
type Snapshot struct {
	Files        int64
	NewBytes     int64
	OutputBytes  int64
	None         int64
	Gzip         int64
	Bzip2        int64
	XZ           int64
	Zeros        int64
	FullDownload int64
}

// NewRecorder returns a ready-to-use Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// RecordDelta increments the file/byte counters for one completed,
// non-full-download encode and tallies the encoding chosen for each of
// the three blocks.
func (r *Recorder) RecordDelta(newSize, outputSize int64, ctrlEnc, diffEnc, extraEnc codec.Encoding) {
	if r == nil {
		return
	}
	atomic.AddInt64(&r.files, 1)
	atomic.AddInt64(&r.newBytes, newSize)
	atomic.AddInt64(&r.outputBytes, outputSize)
	for _, enc := range [3]codec.Encoding{ctrlEnc, diffEnc, extraEnc} {
		r.bump(enc)
	}
}

// RecordFullDownload increments the full-download counter.
func (r *Recorder) RecordFullDownload() {
	if r == nil {
		return
	}
	atomic.AddInt64(&r.fullDownload, 1)
}

func (r *Recorder) bump(enc codec.Encoding) {
	switch enc {
	case codec.NONE:
		atomic.AddInt64(&r.none, 1)
	case codec.GZIP:
		atomic.AddInt64(&r.gzip, 1)
	case codec.BZIP2:
		atomic.AddInt64(&r.bzip2, 1)
	case codec.XZ:
		atomic.AddInt64(&r.xz, 1)
	case codec.ZEROS:
		atomic.AddInt64(&r.zeros, 1)
	}
}

// Snapshot reads every counter. Individual fields are read atomically
// but the Snapshot as a whole is not a consistent point-in-time view
// under concurrent RecordDelta calls, matching §5's "unordered with
// respect to the encodes that produced them" requirement.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		Files:        atomic.LoadInt64(&r.files),
		NewBytes:     atomic.LoadInt64(&r.newBytes),
		OutputBytes:  atomic.LoadInt64(&r.outputBytes),
		None:         atomic.LoadInt64(&r.none),
		Gzip:         atomic.LoadInt64(&r.gzip),
		Bzip2:        atomic.LoadInt64(&r.bzip2),
		XZ:           atomic.LoadInt64(&r.xz),
		Zeros:        atomic.LoadInt64(&r.zeros),
		FullDownload: atomic.LoadInt64(&r.fullDownload),
	}
}

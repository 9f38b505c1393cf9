package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clearlinux/bsdiff/pkg/codec"
)

func TestRecorderAccumulates(t *testing.T) {
	r := NewRecorder()
	r.RecordDelta(1000, 200, codec.GZIP, codec.XZ, codec.ZEROS)
	r.RecordDelta(500, 100, codec.NONE, codec.BZIP2, codec.NONE)
	r.RecordFullDownload()

	snap := r.Snapshot()
	require.EqualValues(t, 2, snap.Files)
	require.EqualValues(t, 1500, snap.NewBytes)
	require.EqualValues(t, 300, snap.OutputBytes)
	require.EqualValues(t, 1, snap.Gzip)
	require.EqualValues(t, 1, snap.XZ)
	require.EqualValues(t, 1, snap.Zeros)
	require.EqualValues(t, 2, snap.None)
	require.EqualValues(t, 1, snap.Bzip2)
	require.EqualValues(t, 1, snap.FullDownload)
}

func TestRecorderNilIsNoop(t *testing.T) {
	var r *Recorder
	require.NotPanics(t, func() {
		r.RecordDelta(10, 10, codec.NONE, codec.NONE, codec.NONE)
		r.RecordFullDownload()
	})
	require.Equal(t, Snapshot{}, r.Snapshot())
}

func TestRecorderConcurrentUpdates(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.RecordDelta(1, 1, codec.NONE, codec.NONE, codec.NONE)
		}()
	}
	wg.Wait()
	require.EqualValues(t, 100, r.Snapshot().Files)
}

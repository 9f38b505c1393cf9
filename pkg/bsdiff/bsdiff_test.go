package bsdiff

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clearlinux/bsdiff/internal/stats"
	"github.com/clearlinux/bsdiff/pkg/bsheader"
	"github.com/clearlinux/bsdiff/pkg/bspatch"
	"github.com/clearlinux/bsdiff/pkg/codec"
)

func randomBytes(n int, seed int64) []byte {
	rng := rand.New(rand.NewSource(seed))
	buf := make([]byte, n)
	rng.Read(buf)
	return buf
}

func TestEncodeIdentity(t *testing.T) {
	data := randomBytes(4096, 1)
	ctrl, diff, extra, err := Encode(data, data)
	require.NoError(t, err)
	require.NotEmpty(t, ctrl)

	patched, err := bspatch.Bytes(data, packForTest(t, len(data), len(data), ctrl, diff, extra))
	require.NoError(t, err)
	require.Equal(t, data, patched)
}

func TestEncodeRoundTripSimilarBuffers(t *testing.T) {
	old := randomBytes(8192, 2)
	newBuf := append([]byte{}, old...)
	// Perturb a slice in the middle and append a tail, the classic
	// bsdiff "mostly similar binary" shape.
	for i := 100; i < 300; i++ {
		newBuf[i] ^= 0xFF
	}
	newBuf = append(newBuf, randomBytes(512, 3)...)

	ctrl, diff, extra, err := Encode(old, newBuf)
	require.NoError(t, err)

	patched, err := bspatch.Bytes(old, packForTest(t, len(old), len(newBuf), ctrl, diff, extra))
	require.NoError(t, err)
	require.Equal(t, newBuf, patched)
}

func TestEncodeEmptyOld(t *testing.T) {
	newBuf := randomBytes(256, 4)
	ctrl, diff, extra, err := Encode(nil, newBuf)
	require.NoError(t, err)

	patched, err := bspatch.Bytes(nil, packForTest(t, 0, len(newBuf), ctrl, diff, extra))
	require.NoError(t, err)
	require.Equal(t, newBuf, patched)
}

func TestEncodeIsDeterministic(t *testing.T) {
	old := randomBytes(2048, 5)
	newBuf := randomBytes(2048, 6)

	ctrl1, diff1, extra1, err := Encode(old, newBuf)
	require.NoError(t, err)
	ctrl2, diff2, extra2, err := Encode(old, newBuf)
	require.NoError(t, err)

	require.Equal(t, ctrl1, ctrl2)
	require.Equal(t, diff1, diff2)
	require.Equal(t, extra1, extra2)
}

func TestEncodeFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old")
	newPath := filepath.Join(dir, "new")
	deltaPath := filepath.Join(dir, "delta")
	outPath := filepath.Join(dir, "out")

	old := randomBytes(4096, 11)
	newBuf := append([]byte{}, old...)
	for i := 1000; i < 1200; i++ {
		newBuf[i] = byte(i)
	}
	newBuf = append(newBuf, []byte("trailing new content for good measure")...)

	require.NoError(t, os.WriteFile(oldPath, old, 0o644))
	require.NoError(t, os.WriteFile(newPath, newBuf, 0o644))

	rec := stats.NewRecorder()
	full, err := EncodeFile(oldPath, newPath, deltaPath, codec.ANY, rec)
	require.NoError(t, err)
	require.False(t, full)
	require.EqualValues(t, 1, rec.Snapshot().Files)

	require.NoError(t, bspatch.ApplyFile(oldPath, outPath, deltaPath))
	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, newBuf, got)
}

func TestEncodeFileEmptyOldProducesFullDownload(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old")
	newPath := filepath.Join(dir, "new")
	deltaPath := filepath.Join(dir, "delta")

	require.NoError(t, os.WriteFile(oldPath, nil, 0o644))
	require.NoError(t, os.WriteFile(newPath, randomBytes(300, 12), 0o644))

	full, err := EncodeFile(oldPath, newPath, deltaPath, codec.ANY, nil)
	require.NoError(t, err)
	require.True(t, full)
}

func TestEncodeFileSmallNewProducesFullDownload(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old")
	newPath := filepath.Join(dir, "new")
	deltaPath := filepath.Join(dir, "delta")

	require.NoError(t, os.WriteFile(oldPath, randomBytes(100, 13), 0o644))
	require.NoError(t, os.WriteFile(newPath, randomBytes(50, 14), 0o644))

	full, err := EncodeFile(oldPath, newPath, deltaPath, codec.ANY, nil)
	require.NoError(t, err)
	require.True(t, full)
}

// packForTest writes ctrl/diff/extra through the real container writer
// with codec.NONE (forcing every block to stay raw, uncompressed) so
// bspatch can be exercised against a real, on-disk delta file.
func packForTest(t *testing.T, oldSize, newSize int, ctrl, diff, extra []byte) []byte {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "delta")

	meta := bsheader.DeltaMeta{OldSize: int64(oldSize), NewSize: int64(newSize)}
	full, err := bsheader.WriteDelta(path, meta, ctrl, diff, extra, codec.NONE, codec.NONE, codec.NONE, codec.NONE)
	require.NoError(t, err)
	require.False(t, full)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

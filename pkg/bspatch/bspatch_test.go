package bspatch

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clearlinux/bsdiff/pkg/bsdiff"
	"github.com/clearlinux/bsdiff/pkg/bsheader"
	"github.com/clearlinux/bsdiff/pkg/codec"
)

func randomBytes(n int, seed int64) []byte {
	rng := rand.New(rand.NewSource(seed))
	buf := make([]byte, n)
	rng.Read(buf)
	return buf
}

func TestApplyFileRoundTripEveryEncoding(t *testing.T) {
	old := randomBytes(4096, 20)
	newBuf := append([]byte{}, old...)
	for i := 500; i < 900; i++ {
		newBuf[i] ^= 0x5A
	}
	newBuf = append(newBuf, randomBytes(300, 21)...)

	for _, enc := range []codec.Encoding{codec.ANY, codec.NONE, codec.GZIP, codec.BZIP2, codec.XZ} {
		enc := enc
		t.Run(enc.String(), func(t *testing.T) {
			dir := t.TempDir()
			oldPath := filepath.Join(dir, "old")
			newPath := filepath.Join(dir, "new")
			deltaPath := filepath.Join(dir, "delta")
			outPath := filepath.Join(dir, "out")

			require.NoError(t, os.WriteFile(oldPath, old, 0o644))
			require.NoError(t, os.WriteFile(newPath, newBuf, 0o644))

			full, err := bsdiff.EncodeFile(oldPath, newPath, deltaPath, enc, nil)
			require.NoError(t, err)
			require.False(t, full)

			require.NoError(t, ApplyFile(oldPath, outPath, deltaPath))
			got, err := os.ReadFile(outPath)
			require.NoError(t, err)
			require.Equal(t, newBuf, got)
		})
	}
}

func TestApplyFileRefusesExistingTarget(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old")
	newPath := filepath.Join(dir, "new")
	deltaPath := filepath.Join(dir, "delta")

	old := randomBytes(256, 22)
	newBuf := append(append([]byte{}, old...), []byte("tail")...)
	require.NoError(t, os.WriteFile(oldPath, old, 0o644))
	require.NoError(t, os.WriteFile(newPath, []byte("already exists"), 0o644))

	newSrcPath := filepath.Join(dir, "newsrc")
	require.NoError(t, os.WriteFile(newSrcPath, newBuf, 0o644))
	_, err := bsdiff.EncodeFile(oldPath, newSrcPath, deltaPath, codec.ANY, nil)
	require.NoError(t, err)

	require.Error(t, ApplyFile(oldPath, newPath, deltaPath))
}

func TestApplyFileNeedsFullDownload(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old")
	newPath := filepath.Join(dir, "new")
	deltaPath := filepath.Join(dir, "delta")

	require.NoError(t, os.WriteFile(oldPath, randomBytes(100, 23), 0o644))
	require.NoError(t, bsheader.WriteFullDownload(deltaPath))

	err := ApplyFile(oldPath, newPath, deltaPath)
	require.ErrorIs(t, err, bsheader.ErrNeedFullDownload)
}

func TestApplyFileRejectsDeltaTooShort(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old")
	newPath := filepath.Join(dir, "new")
	deltaPath := filepath.Join(dir, "delta")

	require.NoError(t, os.WriteFile(oldPath, randomBytes(100, 24), 0o644))
	require.NoError(t, os.WriteFile(deltaPath, []byte("bad"), 0o644))

	err := ApplyFile(oldPath, newPath, deltaPath)
	require.ErrorIs(t, err, bsheader.ErrDeltaTooShort)
}

func TestApplyFileRejectsUnknownMagic(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old")
	newPath := filepath.Join(dir, "new")
	deltaPath := filepath.Join(dir, "delta")

	require.NoError(t, os.WriteFile(oldPath, randomBytes(100, 25), 0o644))
	require.NoError(t, os.WriteFile(deltaPath, []byte("NOTAREAL"), 0o644))

	require.Error(t, ApplyFile(oldPath, newPath, deltaPath))
}

func TestApplyFileRejectsDirectoryMagic(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old")
	newPath := filepath.Join(dir, "new")
	deltaPath := filepath.Join(dir, "delta")

	require.NoError(t, os.WriteFile(oldPath, randomBytes(100, 26), 0o644))
	require.NoError(t, os.WriteFile(deltaPath, []byte(bsheader.MagicDirectory), 0o644))

	err := ApplyFile(oldPath, newPath, deltaPath)
	require.ErrorIs(t, err, bsheader.ErrDirectoryDelta)
}

package codec

import (
	"bytes"
	"io"

	"github.com/dsnet/compress/bzip2"
)

// bzip2Compress mirrors the bsdiff teacher's own bzip2 usage
// (bzip2.NewWriter with a *WriterConfig), pinned to block size 9 (the
// largest, matching "bzip2 (block size 9)" in §4.4).
func bzip2Compress(buf []byte) ([]byte, error) {
	var out bytes.Buffer
	w, err := bzip2.NewWriter(&out, &bzip2.WriterConfig{Level: bzip2.BestCompression})
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(buf); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func bzip2Decoder(r io.Reader) (io.Reader, error) {
	return bzip2.NewReader(r, nil)
}

package codec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
)

// gzipCompress produces a true gzip-framed stream (header, deflate
// body, CRC32 + size trailer) at the best compression level, matching
// the original implementation's deflateInit2 windowBits=31 trick for
// getting a gzip wrapper instead of a raw zlib/deflate stream.
func gzipCompress(buf []byte) ([]byte, error) {
	var out bytes.Buffer
	w, err := gzip.NewWriterLevel(&out, gzip.BestCompression)
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

func gzipDecoder(r io.Reader) (io.Reader, error) {
	return gzip.NewReader(r)
}

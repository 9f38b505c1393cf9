package codec

import (
	"bytes"
	"io"

	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// xzCompress is the closest idiomatic equivalent of the C
// implementation's `lzma_easy_buffer_encode(9 | LZMA_PRESET_EXTREME,
// LZMA_CHECK_CRC32, ...)`: ulikunitz/xz has no distinct "extreme"
// preset, so maximum effort is approximated with its largest supported
// dictionary and a CRC32 integrity check (documented in DESIGN.md).
func xzCompress(buf []byte) ([]byte, error) {
	var out bytes.Buffer
	cfg := xz.WriterConfig{
		DictCap:  lzma.MaxDictCap,
		CheckSum: xz.CRC32,
	}
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	w, err := cfg.NewWriter(&out)
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

func xzDecoder(r io.Reader) (io.Reader, error) {
	return xz.NewReader(r)
}

package codec

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrZerosOverrun is returned when a caller asks a ZerosReader for more
// bytes than remain in the encoded run.
var ErrZerosOverrun = errors.New("codec: zeros block read past end of run")

// ZerosReader decodes the ZEROS pseudo-codec (§4.4/§4.6): the first read
// consumes an 8-byte little-endian run length from the wrapped reader;
// every byte after that is a zero, decremented from the remaining run
// length. It is only ever constructed for the diff and extra blocks.
type ZerosReader struct {
	r         io.Reader
	remaining int64
	primed    bool
}

// NewZerosReader wraps r, which must yield exactly the 8-byte run-length
// payload described in §4.4 before any zero bytes are requested.
func NewZerosReader(r io.Reader) *ZerosReader {
	return &ZerosReader{r: r}
}

func (z *ZerosReader) Read(p []byte) (int, error) {
	if !z.primed {
		var buf [8]byte
		if _, err := io.ReadFull(z.r, buf[:]); err != nil {
			return 0, err
		}
		z.remaining = int64(binary.LittleEndian.Uint64(buf[:]))
		z.primed = true
	}
	if len(p) == 0 {
		return 0, nil
	}
	if int64(len(p)) > z.remaining {
		return 0, ErrZerosOverrun
	}
	for i := range p {
		p[i] = 0
	}
	z.remaining -= int64(len(p))
	return len(p), nil
}

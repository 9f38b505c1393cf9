// Package codec implements the per-block compressor-selection policy
// used when writing a delta: every control/diff/extra block is tried
// against several real codecs plus the uncompressed form, and the
// smallest (after asymmetric penalties) wins.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// Encoding identifies a block's wire encoding, or (as ANY) the set of
// encodings a caller permits the recompressor to choose from.
type Encoding uint8

const (
	// ANY means "caller permits any codec"; it never appears in a
	// finished delta's encoding flags.
	ANY Encoding = iota
	NONE
	BZIP2
	GZIP
	XZ
	ZEROS
)

func (e Encoding) String() string {
	switch e {
	case ANY:
		return "any"
	case NONE:
		return "raw"
	case BZIP2:
		return "bzip2"
	case GZIP:
		return "gzip"
	case XZ:
		return "xz"
	case ZEROS:
		return "zeros"
	default:
		return "unknown"
	}
}

// ParseEncoding maps the CLI encoding names from §6 to an Encoding.
func ParseEncoding(name string) (Encoding, bool) {
	switch name {
	case "raw":
		return NONE, true
	case "bzip2":
		return BZIP2, true
	case "gzip":
		return GZIP, true
	case "xz":
		return XZ, true
	case "zeros":
		return ZEROS, true
	case "any":
		return ANY, true
	default:
		return ANY, false
	}
}

// admits reports whether permitted allows a recompressor to pick enc for
// a block (ANY allows anything; any concrete tag only allows itself).
func admits(permitted, enc Encoding) bool {
	return permitted == ANY || permitted == enc
}

// Block identifies which of the three delta streams a buffer belongs
// to; ZEROS is only a legal outcome for Diff and Extra.
type Block int

const (
	Control Block = iota
	Diff
	Extra
)

// xzEncodeMu serializes xz encodes. The underlying LZMA2 encoder (tuned
// for preset 9 + extreme-equivalent settings) is not safe to invoke
// concurrently; decoding and every other codec remain unsynchronized.
var xzEncodeMu sync.Mutex

const bzip2Penalty = 512

// bzip2MarginNum/Den and xzMarginNum/Den implement the 1.05x/1.01x
// asymmetric margins from §4.4 using integer arithmetic so the
// comparison is exact regardless of buffer size.
const (
	bzip2MarginNum = 105
	bzip2MarginDen = 100
	xzMarginNum    = 101
	xzMarginDen    = 100
	xzFixedBonus   = 64
)

// Recompress applies the block-recompressor policy to buf, returning the
// (possibly replaced) bytes and the encoding that was chosen. block
// controls whether the ZEROS shortcut is eligible; it never applies to
// Control.
func Recompress(buf []byte, permitted Encoding, block Block) ([]byte, Encoding, error) {
	if permitted == NONE || len(buf) == 0 {
		return buf, NONE, nil
	}

	allZero := true
	for _, b := range buf {
		if b != 0 {
			allZero = false
			break
		}
	}

	if allZero && admits(permitted, ZEROS) && (block == Diff || block == Extra) {
		out := make([]byte, 8)
		binary.LittleEndian.PutUint64(out, uint64(len(buf)))
		return out, ZEROS, nil
	}

	best := buf
	bestEnc := NONE
	bestLen := len(buf)

	if admits(permitted, GZIP) {
		gz, err := gzipCompress(buf)
		if err != nil {
			return nil, ANY, err
		}
		if len(gz) < bestLen {
			best, bestEnc, bestLen = gz, GZIP, len(gz)
		}
	}

	if admits(permitted, XZ) {
		xzEncodeMu.Lock()
		xzBytes, err := xzCompress(buf)
		xzEncodeMu.Unlock()
		if err != nil {
			return nil, ANY, err
		}
		if xzMarginNum*len(xzBytes)+xzFixedBonus*xzMarginDen < xzMarginDen*bestLen {
			best, bestEnc, bestLen = xzBytes, XZ, len(xzBytes)
		}
	}

	if admits(permitted, BZIP2) {
		penalty := bzip2Penalty
		if allZero {
			penalty = 0
		}
		bz, err := bzip2Compress(buf)
		if err != nil {
			return nil, ANY, err
		}
		if bzip2MarginNum*len(bz)+penalty*bzip2MarginDen < bzip2MarginDen*bestLen {
			best, bestEnc, bestLen = bz, BZIP2, len(bz)
		}
	}

	return best, bestEnc, nil
}

// NewDecoder returns a reader that decodes r according to enc. ZEROS is
// handled separately by NewZerosReader because it is not a byte-stream
// codec: it carries only an 8-byte run length.
func NewDecoder(r io.Reader, enc Encoding) (io.Reader, error) {
	switch enc {
	case NONE:
		return r, nil
	case GZIP:
		return gzipDecoder(r)
	case BZIP2:
		return bzip2Decoder(r)
	case XZ:
		return xzDecoder(r)
	default:
		return nil, fmt.Errorf("codec: unsupported decoder encoding %v", enc)
	}
}

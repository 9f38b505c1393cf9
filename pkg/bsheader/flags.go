package bsheader

import "github.com/clearlinux/bsdiff/pkg/codec"

// EncodingFlags is the 16-bit per-stream encoding bitfield from §3/§6.
// Bit 0 is the field's LSB. Exactly one bit is set per stream in a
// valid, finished delta.
type EncodingFlags uint16

const (
	bitControlNone = 1 << iota
	bitControlBzip2
	bitControlGzip
	bitControlXZ
	_ // bit 4: reserved
	bitDiffNone
	bitDiffBzip2
	bitDiffGzip
	bitDiffXZ
	bitDiffZeros
	bitExtraNone
	bitExtraBzip2
	bitExtraGzip
	bitExtraXZ
	bitExtraZeros
	_ // bit 15: reserved
)

// SetControl records enc (NONE/BZIP2/GZIP/XZ) for the control stream.
func (f *EncodingFlags) SetControl(enc codec.Encoding) {
	*f |= EncodingFlags(controlBit(enc))
}

// SetDiff records enc (NONE/BZIP2/GZIP/XZ/ZEROS) for the diff stream.
func (f *EncodingFlags) SetDiff(enc codec.Encoding) {
	*f |= EncodingFlags(diffBit(enc))
}

// SetExtra records enc (NONE/BZIP2/GZIP/XZ/ZEROS) for the extra stream.
func (f *EncodingFlags) SetExtra(enc codec.Encoding) {
	*f |= EncodingFlags(extraBit(enc))
}

// Control returns the encoding recorded for the control stream, or ANY
// if no recognized bit is set.
func (f EncodingFlags) Control() codec.Encoding {
	switch {
	case f&bitControlNone != 0:
		return codec.NONE
	case f&bitControlBzip2 != 0:
		return codec.BZIP2
	case f&bitControlGzip != 0:
		return codec.GZIP
	case f&bitControlXZ != 0:
		return codec.XZ
	default:
		return codec.ANY
	}
}

// Diff returns the encoding recorded for the diff stream, or ANY if no
// recognized bit is set.
func (f EncodingFlags) Diff() codec.Encoding {
	switch {
	case f&bitDiffNone != 0:
		return codec.NONE
	case f&bitDiffBzip2 != 0:
		return codec.BZIP2
	case f&bitDiffGzip != 0:
		return codec.GZIP
	case f&bitDiffXZ != 0:
		return codec.XZ
	case f&bitDiffZeros != 0:
		return codec.ZEROS
	default:
		return codec.ANY
	}
}

// Extra returns the encoding recorded for the extra stream, or ANY if no
// recognized bit is set.
func (f EncodingFlags) Extra() codec.Encoding {
	switch {
	case f&bitExtraNone != 0:
		return codec.NONE
	case f&bitExtraBzip2 != 0:
		return codec.BZIP2
	case f&bitExtraGzip != 0:
		return codec.GZIP
	case f&bitExtraXZ != 0:
		return codec.XZ
	case f&bitExtraZeros != 0:
		return codec.ZEROS
	default:
		return codec.ANY
	}
}

func controlBit(enc codec.Encoding) uint16 {
	switch enc {
	case codec.NONE:
		return bitControlNone
	case codec.BZIP2:
		return bitControlBzip2
	case codec.GZIP:
		return bitControlGzip
	case codec.XZ:
		return bitControlXZ
	default:
		return 0
	}
}

func diffBit(enc codec.Encoding) uint16 {
	switch enc {
	case codec.NONE:
		return bitDiffNone
	case codec.BZIP2:
		return bitDiffBzip2
	case codec.GZIP:
		return bitDiffGzip
	case codec.XZ:
		return bitDiffXZ
	case codec.ZEROS:
		return bitDiffZeros
	default:
		return 0
	}
}

func extraBit(enc codec.Encoding) uint16 {
	switch enc {
	case codec.NONE:
		return bitExtraNone
	case codec.BZIP2:
		return bitExtraBzip2
	case codec.GZIP:
		return bitExtraGzip
	case codec.XZ:
		return bitExtraXZ
	case codec.ZEROS:
		return bitExtraZeros
	default:
		return 0
	}
}

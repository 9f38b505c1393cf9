// Package bsheader implements the DELTA file wire format: the two
// header layouts (small-file and large-file), the magic strings that
// select between them (plus the directory-marker and full-download
// sentinels), and the container writer that picks a layout, checks the
// full-download conditions, and lays out the three compressed blocks.
package bsheader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/clearlinux/bsdiff/pkg/codec"
)

// Magic strings, 8 bytes each, no terminator (§6).
const (
	MagicLarge     = "BSDIFF4U"
	MagicSmall     = "BSDIFF4V"
	MagicDirectory = "DIR_V20U"
	MagicFullDL    = "FULLV20U"
)

const magicLen = 8

// SmallHeaderSize and LargeHeaderSize are the fixed, packed wire sizes
// of the two header layouts (§3).
const (
	SmallHeaderSize = 32
	LargeHeaderSize = 67
)

// smallFileMax is the byte-size threshold below which both old and new
// must fall for small-file mode to even be considered (§4.5).
const smallFileMax = 65536

// ErrMalformedDelta wraps any structural problem found while reading a
// delta file: bad magic, truncated data, a length mismatch against the
// file's actual size, or ZEROS recorded against the control block.
var ErrMalformedDelta = errors.New("bsheader: malformed delta")

// ErrDirectoryDelta is returned when a directory-marker magic is read;
// no producer writes one (§9), so appliers only ever reject it.
var ErrDirectoryDelta = errors.New("bsheader: directory delta markers are not supported")

// ErrNeedFullDownload is returned by readers when a delta is the
// full-download sentinel: the caller must fetch NEW directly.
var ErrNeedFullDownload = errors.New("bsheader: delta requests a full download")

// ErrDeltaTooShort is returned when a delta file is too small to even
// contain an 8-byte magic, let alone a header. The applier CLI maps this
// to the same exit code as ErrNeedFullDownload (§6): there is nothing
// usable to apply either way.
var ErrDeltaTooShort = errors.New("bsheader: delta too short to contain a header")

// DeltaMeta carries the file-level metadata that accompanies the three
// compressed streams into the header.
type DeltaMeta struct {
	OldSize int64
	NewSize int64
	Mode    uint32
	Owner   uint32
	Group   uint32
}

// SmallHeader is the compact header used when old, new, the control
// block, and the diff/extra blocks all fit in narrow fields (§3).
type SmallHeader struct {
	HeaderLen  uint8
	ControlLen uint8
	DiffLen    uint16
	ExtraLen   uint16
	OldLen     uint16
	NewLen     uint16
	Mode       uint32
	Owner      uint32
	Group      uint32
	Encoding   EncodingFlags
}

// Marshal packs h into its 32-byte wire form, preceded by the magic.
func (h SmallHeader) Marshal(magic string) []byte {
	buf := make([]byte, SmallHeaderSize)
	copy(buf[0:8], magic)
	buf[8] = h.HeaderLen
	buf[9] = h.ControlLen
	binary.LittleEndian.PutUint16(buf[10:12], h.DiffLen)
	binary.LittleEndian.PutUint16(buf[12:14], h.ExtraLen)
	binary.LittleEndian.PutUint16(buf[14:16], h.OldLen)
	binary.LittleEndian.PutUint16(buf[16:18], h.NewLen)
	binary.LittleEndian.PutUint32(buf[18:22], h.Mode)
	binary.LittleEndian.PutUint32(buf[22:26], h.Owner)
	binary.LittleEndian.PutUint32(buf[26:30], h.Group)
	binary.LittleEndian.PutUint16(buf[30:32], uint16(h.Encoding))
	return buf
}

// UnmarshalSmallHeader reads a SmallHeader from buf, which starts just
// past the 8-byte magic and must hold at least SmallHeaderSize-8 bytes.
func UnmarshalSmallHeader(buf []byte) (SmallHeader, error) {
	if len(buf) < SmallHeaderSize-magicLen {
		return SmallHeader{}, fmt.Errorf("%w: truncated small header", ErrMalformedDelta)
	}
	var h SmallHeader
	h.HeaderLen = buf[0]
	h.ControlLen = buf[1]
	h.DiffLen = binary.LittleEndian.Uint16(buf[2:4])
	h.ExtraLen = binary.LittleEndian.Uint16(buf[4:6])
	h.OldLen = binary.LittleEndian.Uint16(buf[6:8])
	h.NewLen = binary.LittleEndian.Uint16(buf[8:10])
	h.Mode = binary.LittleEndian.Uint32(buf[10:14])
	h.Owner = binary.LittleEndian.Uint32(buf[14:18])
	h.Group = binary.LittleEndian.Uint32(buf[18:22])
	h.Encoding = EncodingFlags(binary.LittleEndian.Uint16(buf[22:24]))
	return h, nil
}

// LargeHeader is the full-width header used whenever old, new, or any
// compressed block doesn't fit the small header's narrow fields (§3).
type LargeHeader struct {
	HeaderLen  uint8
	ControlLen uint32
	DiffLen    uint64
	ExtraLen   uint64
	OldLen     uint64
	NewLen     uint64
	MTime      uint64 // unused, always zero on write
	Mode       uint32
	Owner      uint32
	Group      uint32
	Encoding   EncodingFlags
}

// Marshal packs h into its 67-byte wire form, preceded by the magic.
func (h LargeHeader) Marshal(magic string) []byte {
	buf := make([]byte, LargeHeaderSize)
	copy(buf[0:8], magic)
	buf[8] = h.HeaderLen
	binary.LittleEndian.PutUint32(buf[9:13], h.ControlLen)
	binary.LittleEndian.PutUint64(buf[13:21], h.DiffLen)
	binary.LittleEndian.PutUint64(buf[21:29], h.ExtraLen)
	binary.LittleEndian.PutUint64(buf[29:37], h.OldLen)
	binary.LittleEndian.PutUint64(buf[37:45], h.NewLen)
	binary.LittleEndian.PutUint64(buf[45:53], h.MTime)
	binary.LittleEndian.PutUint32(buf[53:57], h.Mode)
	binary.LittleEndian.PutUint32(buf[57:61], h.Owner)
	binary.LittleEndian.PutUint32(buf[61:65], h.Group)
	binary.LittleEndian.PutUint16(buf[65:67], uint16(h.Encoding))
	return buf
}

// UnmarshalLargeHeader reads a LargeHeader from buf, which starts just
// past the 8-byte magic and must hold at least LargeHeaderSize-8 bytes.
func UnmarshalLargeHeader(buf []byte) (LargeHeader, error) {
	if len(buf) < LargeHeaderSize-magicLen {
		return LargeHeader{}, fmt.Errorf("%w: truncated large header", ErrMalformedDelta)
	}
	var h LargeHeader
	h.HeaderLen = buf[0]
	h.ControlLen = binary.LittleEndian.Uint32(buf[1:5])
	h.DiffLen = binary.LittleEndian.Uint64(buf[5:13])
	h.ExtraLen = binary.LittleEndian.Uint64(buf[13:21])
	h.OldLen = binary.LittleEndian.Uint64(buf[21:29])
	h.NewLen = binary.LittleEndian.Uint64(buf[29:37])
	h.MTime = binary.LittleEndian.Uint64(buf[37:45])
	h.Mode = binary.LittleEndian.Uint32(buf[45:49])
	h.Owner = binary.LittleEndian.Uint32(buf[49:53])
	h.Group = binary.LittleEndian.Uint32(buf[53:57])
	h.Encoding = EncodingFlags(binary.LittleEndian.Uint16(buf[57:59]))
	return h, nil
}

// WriteDelta chooses small-file or large-file mode (or the
// full-download sentinel), writes the header plus the three blocks to a
// newly created file at path, and reports whether a full download was
// written instead of a usable delta (§4.5).
//
// path must not already exist; WriteDelta opens it with O_EXCL.
func WriteDelta(path string, meta DeltaMeta, ctrl, diff, extra []byte, ctrlEnc, diffEnc, extraEnc codec.Encoding, permitted codec.Encoding) (fullDownload bool, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	var flags EncodingFlags
	flags.SetControl(ctrlEnc)
	flags.SetDiff(diffEnc)
	flags.SetExtra(extraEnc)

	smallCandidate := meta.OldSize < smallFileMax && meta.NewSize < smallFileMax &&
		len(ctrl) < 256 && len(diff) < smallFileMax && len(extra) < smallFileMax

	var headerBytes []byte
	var headerLen int64
	if smallCandidate {
		headerLen = SmallHeaderSize
		headerBytes = SmallHeader{
			HeaderLen:  SmallHeaderSize,
			ControlLen: uint8(len(ctrl)),
			DiffLen:    uint16(len(diff)),
			ExtraLen:   uint16(len(extra)),
			OldLen:     uint16(meta.OldSize),
			NewLen:     uint16(meta.NewSize),
			Mode:       meta.Mode,
			Owner:      meta.Owner,
			Group:      meta.Group,
			Encoding:   flags,
		}.Marshal(MagicSmall)
	} else {
		headerLen = LargeHeaderSize
		headerBytes = LargeHeader{
			HeaderLen:  LargeHeaderSize,
			ControlLen: uint32(len(ctrl)),
			DiffLen:    uint64(len(diff)),
			ExtraLen:   uint64(len(extra)),
			OldLen:     uint64(meta.OldSize),
			NewLen:     uint64(meta.NewSize),
			Mode:       meta.Mode,
			Owner:      meta.Owner,
			Group:      meta.Group,
			Encoding:   flags,
		}.Marshal(MagicLarge)
	}

	total := headerLen + int64(len(ctrl)) + int64(len(diff)) + int64(len(extra))
	if total > int64(0.90*float64(meta.NewSize)) && permitted != codec.NONE {
		if _, err := f.Write([]byte(MagicFullDL)); err != nil {
			return true, err
		}
		return true, nil
	}

	if _, err := f.Write(headerBytes); err != nil {
		return false, err
	}
	if _, err := f.Write(ctrl); err != nil {
		return false, err
	}
	if len(diff) > 0 {
		if _, err := f.Write(diff); err != nil {
			return false, err
		}
	}
	if len(extra) > 0 {
		if _, err := f.Write(extra); err != nil {
			return false, err
		}
	}
	return false, nil
}

// WriteFullDownload writes only the 8-byte full-download sentinel to a
// newly created file at path (§4.5's unconditional full-download cases:
// empty old file, new file under 200 bytes).
func WriteFullDownload(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte(MagicFullDL))
	return err
}

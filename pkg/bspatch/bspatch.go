// Package bspatch implements the patch applier: it reads a DELTA file's
// header, decodes its three streams, and replays the control triples
// against OLD to reconstruct NEW.
package bspatch

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/clearlinux/bsdiff/pkg/bsheader"
	"github.com/clearlinux/bsdiff/pkg/codec"
	"github.com/clearlinux/bsdiff/pkg/util"
)

const chunkSize = 64 * 1024

// meta is everything apply needs out of a parsed header beyond the block
// layout itself; ApplyFile uses it to restore file attributes.
type meta struct {
	headerLen                  int64
	ctrlLen, diffLen, extraLen int64
	oldLen, newLen             int64
	mode, owner, group         uint32
	ctrlEnc, diffEnc, extraEnc codec.Encoding
}

// Bytes applies patch to oldfile and returns the reconstructed newfile.
func Bytes(oldfile, patch []byte) (newfile []byte, err error) {
	sink := util.NewMemSink(0)
	if _, err := apply(bytes.NewReader(oldfile), bytes.NewReader(patch), int64(len(patch)), sink); err != nil {
		return nil, err
	}
	return sink.Bytes(), nil
}

// ApplyFile applies patchPath to oldPath, creating newPath. newPath must
// not already exist. On success the new file's mode, owner, and group
// are restored from the delta header; on failure the partially written
// file is removed.
func ApplyFile(oldPath, newPath, patchPath string) error {
	oldF, err := os.Open(oldPath)
	if err != nil {
		return fmt.Errorf("bspatch: could not open old file %q: %w", oldPath, err)
	}
	defer oldF.Close()

	patchF, err := os.Open(patchPath)
	if err != nil {
		return fmt.Errorf("bspatch: could not open patch %q: %w", patchPath, err)
	}
	defer patchF.Close()

	patchInfo, err := patchF.Stat()
	if err != nil {
		return err
	}

	newF, err := os.OpenFile(newPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("bspatch: could not create new file %q: %w", newPath, err)
	}

	m, err := apply(oldF, patchF, patchInfo.Size(), newF)
	closeErr := newF.Close()
	if err != nil {
		os.Remove(newPath)
		return fmt.Errorf("bspatch: %w", err)
	}
	if closeErr != nil {
		os.Remove(newPath)
		return closeErr
	}

	if m.mode != 0 {
		if err := os.Chmod(newPath, os.FileMode(m.mode)); err != nil {
			return err
		}
	}
	if m.owner != 0 || m.group != 0 {
		_ = os.Chown(newPath, int(m.owner), int(m.group))
	}
	return nil
}

// readMeta parses a delta's magic and header, validating that the
// recorded block lengths add up to the file's actual size.
func readMeta(patch io.ReaderAt, patchSize int64) (meta, error) {
	if patchSize < 8 {
		return meta{}, bsheader.ErrDeltaTooShort
	}
	magic := make([]byte, 8)
	if _, err := patch.ReadAt(magic, 0); err != nil {
		return meta{}, err
	}

	switch string(magic) {
	case bsheader.MagicFullDL:
		return meta{}, bsheader.ErrNeedFullDownload
	case bsheader.MagicDirectory:
		return meta{}, bsheader.ErrDirectoryDelta
	case bsheader.MagicSmall:
		buf := make([]byte, bsheader.SmallHeaderSize-8)
		if _, err := patch.ReadAt(buf, 8); err != nil {
			return meta{}, fmt.Errorf("%w: %v", bsheader.ErrMalformedDelta, err)
		}
		h, err := bsheader.UnmarshalSmallHeader(buf)
		if err != nil {
			return meta{}, err
		}
		m := meta{
			headerLen: int64(h.HeaderLen),
			ctrlLen:   int64(h.ControlLen),
			diffLen:   int64(h.DiffLen),
			extraLen:  int64(h.ExtraLen),
			oldLen:    int64(h.OldLen),
			newLen:    int64(h.NewLen),
			mode:      h.Mode,
			owner:     h.Owner,
			group:     h.Group,
			ctrlEnc:   h.Encoding.Control(),
			diffEnc:   h.Encoding.Diff(),
			extraEnc:  h.Encoding.Extra(),
		}
		return m, validateMeta(m, patchSize)
	case bsheader.MagicLarge:
		buf := make([]byte, bsheader.LargeHeaderSize-8)
		if _, err := patch.ReadAt(buf, 8); err != nil {
			return meta{}, fmt.Errorf("%w: %v", bsheader.ErrMalformedDelta, err)
		}
		h, err := bsheader.UnmarshalLargeHeader(buf)
		if err != nil {
			return meta{}, err
		}
		m := meta{
			headerLen: int64(h.HeaderLen),
			ctrlLen:   int64(h.ControlLen),
			diffLen:   int64(h.DiffLen),
			extraLen:  int64(h.ExtraLen),
			oldLen:    int64(h.OldLen),
			newLen:    int64(h.NewLen),
			mode:      h.Mode,
			owner:     h.Owner,
			group:     h.Group,
			ctrlEnc:   h.Encoding.Control(),
			diffEnc:   h.Encoding.Diff(),
			extraEnc:  h.Encoding.Extra(),
		}
		return m, validateMeta(m, patchSize)
	default:
		return meta{}, fmt.Errorf("%w: unrecognized magic", bsheader.ErrMalformedDelta)
	}
}

func validateMeta(m meta, patchSize int64) error {
	total := m.headerLen + m.ctrlLen + m.diffLen + m.extraLen
	if total != patchSize {
		return fmt.Errorf("%w: header claims %d bytes, file is %d", bsheader.ErrMalformedDelta, total, patchSize)
	}
	if m.ctrlEnc == codec.ZEROS {
		return fmt.Errorf("%w: control stream cannot use the zeros codec", bsheader.ErrMalformedDelta)
	}
	return nil
}

func blockReader(section *io.SectionReader, enc codec.Encoding) (io.Reader, error) {
	if enc == codec.ZEROS {
		return codec.NewZerosReader(section), nil
	}
	return codec.NewDecoder(section, enc)
}

// apply replays old against patch's control/diff/extra streams into res,
// returning the parsed header metadata so callers can restore file
// attributes.
func apply(old io.ReaderAt, patch io.ReaderAt, patchSize int64, res io.WriterAt) (meta, error) {
	m, err := readMeta(patch, patchSize)
	if err != nil {
		return meta{}, err
	}

	ctrlSection := io.NewSectionReader(patch, m.headerLen, m.ctrlLen)
	diffSection := io.NewSectionReader(patch, m.headerLen+m.ctrlLen, m.diffLen)
	extraSection := io.NewSectionReader(patch, m.headerLen+m.ctrlLen+m.diffLen, m.extraLen)

	ctrlR, err := codec.NewDecoder(ctrlSection, m.ctrlEnc)
	if err != nil {
		return m, err
	}
	diffR, err := blockReader(diffSection, m.diffEnc)
	if err != nil {
		return m, err
	}
	extraR, err := blockReader(extraSection, m.extraEnc)
	if err != nil {
		return m, err
	}

	if m.newLen > 0 {
		if _, err := res.WriteAt([]byte{0}, m.newLen-1); err != nil {
			return m, err
		}
	}

	var triple [controlTripleSizeLocal]byte
	var oldBuf, patchBuf [chunkSize]byte
	var newpos, oldpos int64

	for newpos < m.newLen {
		if _, err := io.ReadFull(ctrlR, triple[:]); err != nil {
			return m, fmt.Errorf("%w: truncated control stream: %v", bsheader.ErrMalformedDelta, err)
		}
		add := int64(binary.LittleEndian.Uint64(triple[0:8]))
		extraN := int64(binary.LittleEndian.Uint64(triple[8:16]))
		seek := int64(binary.LittleEndian.Uint64(triple[16:24]))

		if add < 0 || extraN < 0 || newpos+add > m.newLen {
			return m, fmt.Errorf("%w: control triple out of range", bsheader.ErrMalformedDelta)
		}

		for i := int64(0); i < add; i += chunkSize {
			n := minInt64Local(chunkSize, add-i)
			if _, err := io.ReadFull(diffR, patchBuf[:n]); err != nil {
				return m, fmt.Errorf("%w: truncated diff stream: %v", bsheader.ErrMalformedDelta, err)
			}
			rn, _ := old.ReadAt(oldBuf[:n], oldpos)
			for j := int64(0); j < int64(rn); j++ {
				patchBuf[j] += oldBuf[j]
			}
			if _, err := res.WriteAt(patchBuf[:n], newpos); err != nil {
				return m, err
			}
			newpos += n
			oldpos += n
		}

		if newpos+extraN > m.newLen {
			return m, fmt.Errorf("%w: control triple out of range", bsheader.ErrMalformedDelta)
		}
		for i := int64(0); i < extraN; i += chunkSize {
			n := minInt64Local(chunkSize, extraN-i)
			if _, err := io.ReadFull(extraR, oldBuf[:n]); err != nil {
				return m, fmt.Errorf("%w: truncated extra stream: %v", bsheader.ErrMalformedDelta, err)
			}
			if _, err := res.WriteAt(oldBuf[:n], newpos); err != nil {
				return m, err
			}
			newpos += n
		}

		oldpos += seek
	}

	return m, nil
}

const controlTripleSizeLocal = 24

func minInt64Local(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Package bsdiff implements the bsdiff matcher and diff engine: given a
// suffix array over OLD (built by sufsort), it walks NEW left to right,
// extends each match fuzzily in both directions, and emits the
// control/diff/extra triple that bspatch replays to reconstruct NEW.
//
// https://github.com/cnSchwarzer/bsdiff-win/blob/master/bsdiff-win/bsdiff.c
package bsdiff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"syscall"

	"github.com/clearlinux/bsdiff/internal/stats"
	"github.com/clearlinux/bsdiff/pkg/bsheader"
	"github.com/clearlinux/bsdiff/pkg/codec"
	"github.com/clearlinux/bsdiff/pkg/sufsort"
)

// controlTripleSize is the wire width of one (diff length, extra length,
// old-offset delta) triple: three little-endian, two's-complement int64s.
const controlTripleSize = 24

// ErrControlOverflow is returned when a single emitted segment would
// write past the diff or extra buffer's capacity. The buffers are sized
// len(new) each, which a correct match/extend pass never exceeds — this
// only fires if that invariant is broken.
var ErrControlOverflow = errors.New("bsdiff: control segment exceeds output capacity")

// Encode runs the bsdiff matcher over old/new and returns the raw
// (uncompressed) control, diff, and extra streams. I is the suffix array
// built by sufsort.Build(old); callers that already have one (e.g. to
// reuse it across several NEW candidates against the same OLD) can build
// it once and skip the sufsort cost per call by calling encode directly
// — Encode itself always builds a fresh one.
func Encode(old, new []byte) (ctrl, diff, extra []byte, err error) {
	I, err := sufsort.Build(old)
	if err != nil {
		return nil, nil, nil, err
	}
	return encode(I, old, new)
}

func encode(I []int64, old, new []byte) (ctrl, diff, extra []byte, err error) {
	oldSize := int64(len(old))
	newSize := int64(len(new))

	db := make([]byte, newSize)
	eb := make([]byte, newSize)
	var dblen, eblen int64

	ctrlBuf := make([]byte, 0, controlTripleSize*64)

	var scan, length, lastscan, lastpos, lastoffset int64
	var pos int64

	for scan < newSize {
		oldscore := int64(0)
		scan += length
		scsc := scan
		for scan < newSize {
			length, pos = search(I, old, new[scan:])

			for ; scsc < scan+length; scsc++ {
				if scsc+lastoffset < oldSize && old[scsc+lastoffset] == new[scsc] {
					oldscore++
				}
			}
			if length == oldscore && length != 0 {
				break
			}
			if length > oldscore+8 {
				break
			}
			if scan+lastoffset < oldSize && old[scan+lastoffset] == new[scan] {
				oldscore--
			}
			scan++
		}

		if length == oldscore && scan != newSize {
			continue
		}

		var s, sf, lenf int64
		i := int64(0)
		for lastscan+i < scan && lastpos+i < oldSize {
			if old[lastpos+i] == new[lastscan+i] {
				s++
			}
			i++
			if s*2-i > sf*2-lenf {
				sf = s
				lenf = i
			}
		}

		var lenb int64
		if scan < newSize {
			var s, sb int64
			for i := int64(1); scan >= lastscan+i && pos >= i; i++ {
				if old[pos-i] == new[scan-i] {
					s++
				}
				if s*2-i > sb*2-lenb {
					sb = s
					lenb = i
				}
			}
		}

		if lastscan+lenf > scan-lenb {
			overlap := (lastscan + lenf) - (scan - lenb)
			var s, ss, lens int64
			for i := int64(0); i < overlap; i++ {
				if new[lastscan+lenf-overlap+i] == old[lastpos+lenf-overlap+i] {
					s++
				}
				if new[scan-lenb+i] == old[pos-lenb+i] {
					s--
				}
				if s > ss {
					ss = s
					lens = i + 1
				}
			}
			lenf += lens - overlap
			lenb -= lens
		}

		extraLen := (scan - lenb) - (lastscan + lenf)
		if dblen+lenf > newSize || eblen+extraLen > newSize {
			return nil, nil, nil, ErrControlOverflow
		}

		for i := int64(0); i < lenf; i++ {
			db[dblen+i] = new[lastscan+i] - old[lastpos+i]
		}
		for i := int64(0); i < extraLen; i++ {
			eb[eblen+i] = new[lastscan+lenf+i]
		}
		dblen += lenf
		eblen += extraLen

		var triple [controlTripleSize]byte
		binary.LittleEndian.PutUint64(triple[0:8], uint64(lenf))
		binary.LittleEndian.PutUint64(triple[8:16], uint64(extraLen))
		binary.LittleEndian.PutUint64(triple[16:24], uint64((pos-lenb)-(lastpos+lenf)))
		ctrlBuf = append(ctrlBuf, triple[:]...)

		lastscan = scan - lenb
		lastpos = pos - lenb
		lastoffset = pos - scan
	}

	return ctrlBuf, db[:dblen], eb[:eblen], nil
}

// search returns the length and OLD offset of the longest match between
// new and some suffix of old, using I (old's suffix array) to binary
// search rather than scan every suffix. It is iterative, not recursive:
// the original bsdiff recurses once per halving of the search range,
// which is fine in C's stack but needless pressure in Go for a
// leaf-bound loop this tight.
func search(I []int64, old, new []byte) (length, pos int64) {
	st, en := int64(0), int64(len(I))-1
	for en-st >= 2 {
		x := st + (en-st)/2
		cmpLen := minInt64(int64(len(old))-I[x], int64(len(new)))
		if bytes.Compare(old[I[x]:I[x]+cmpLen], new[:cmpLen]) < 0 {
			st = x
		} else {
			en = x
		}
	}

	xLen := matchlen(old[I[st]:], new)
	yLen := matchlen(old[I[en]:], new)
	if xLen > yLen {
		return xLen, I[st]
	}
	return yLen, I[en]
}

func matchlen(old, new []byte) int64 {
	n := int64(minInt(len(old), len(new)))
	var i int64
	for i < n && old[i] == new[i] {
		i++
	}
	return i
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// EncodeFile reads oldPath and newPath, computes their delta, and writes
// it to deltaPath under the policy permitted restricts the recompressor
// to. It reports whether a full-download sentinel was written instead of
// a usable delta (empty OLD, NEW under 200 bytes, or an oversized
// encode), matching the container writer's contract (§4.5). rec may be
// nil.
func EncodeFile(oldPath, newPath, deltaPath string, permitted codec.Encoding, rec *stats.Recorder) (fullDownload bool, err error) {
	old, err := os.ReadFile(oldPath)
	if err != nil {
		return false, err
	}
	newBytes, err := os.ReadFile(newPath)
	if err != nil {
		return false, err
	}

	if len(old) == 0 || len(newBytes) < 200 {
		if err := bsheader.WriteFullDownload(deltaPath); err != nil {
			return false, err
		}
		rec.RecordFullDownload()
		return true, nil
	}

	ctrl, diff, extra, err := Encode(old, newBytes)
	if err != nil {
		return false, err
	}

	ctrlOut, ctrlEnc, err := codec.Recompress(ctrl, permitted, codec.Control)
	if err != nil {
		return false, err
	}
	diffOut, diffEnc, err := codec.Recompress(diff, permitted, codec.Diff)
	if err != nil {
		return false, err
	}
	extraOut, extraEnc, err := codec.Recompress(extra, permitted, codec.Extra)
	if err != nil {
		return false, err
	}

	mode, owner, group := fileMeta(newPath)
	meta := bsheader.DeltaMeta{
		OldSize: int64(len(old)),
		NewSize: int64(len(newBytes)),
		Mode:    mode,
		Owner:   owner,
		Group:   group,
	}

	full, err := bsheader.WriteDelta(deltaPath, meta, ctrlOut, diffOut, extraOut, ctrlEnc, diffEnc, extraEnc, permitted)
	if err != nil {
		return false, err
	}
	if full {
		rec.RecordFullDownload()
		return true, nil
	}

	out := int64(len(ctrlOut) + len(diffOut) + len(extraOut))
	rec.RecordDelta(meta.NewSize, out, ctrlEnc, diffEnc, extraEnc)
	return false, nil
}

// fileMeta stats path for the mode/owner/group fields the header
// records. Owner and group are POSIX-only; on platforms where Sys()
// doesn't assert to *syscall.Stat_t they're left zero.
func fileMeta(path string) (mode, owner, group uint32) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, 0
	}
	mode = uint32(info.Mode().Perm())
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		owner = st.Uid
		group = st.Gid
	}
	return mode, owner, group
}

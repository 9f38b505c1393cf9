// Package sufsort builds a suffix array over a byte buffer using the
// ternary-split qsufsort algorithm (Larsson & Sadakane), the same
// construction bsdiff has used since Colin Percival's original
// implementation.
//
// https://github.com/cnSchwarzer/bsdiff-win/blob/master/bsdiff-win/bsdiff.c
package sufsort

import "errors"

// ErrBucketOverflow is returned when a radix bucket offset would exceed
// the bounds of the suffix array during initialization. In practice this
// indicates the input buffer or the allocated arrays are inconsistent
// with each other; it should never trigger for a buffer built from
// len(old).
var ErrBucketOverflow = errors.New("sufsort: bucket overflow")

const bucketCount = 256

// Build constructs the suffix array I over old: I has length len(old)+1,
// and I[k] is the starting offset in old of the k-th suffix in
// lexicographic order, where a virtual empty suffix (the sentinel) sorts
// before every non-empty suffix.
//
// old may be empty; Build then returns []int64{0}, nil.
func Build(old []byte) ([]int64, error) {
	n := int64(len(old))
	I := make([]int64, n+1)
	V := make([]int64, n+1)

	if err := qsufsort(I, V, old); err != nil {
		return nil, err
	}
	return I, nil
}

// qsufsort fills I with the suffix order of old and uses V as scratch
// rank storage. Both must have length len(old)+1.
func qsufsort(I, V []int64, old []byte) error {
	n := int64(len(old))

	var buckets [bucketCount]int64
	for i := int64(0); i < n; i++ {
		buckets[old[i]]++
	}
	for i := 1; i < bucketCount; i++ {
		buckets[i] += buckets[i-1]
	}
	for i := bucketCount - 1; i > 0; i-- {
		buckets[i] = buckets[i-1]
	}
	buckets[0] = 0

	for i := int64(0); i < n; i++ {
		if buckets[old[i]] > n+1 {
			return ErrBucketOverflow
		}
		buckets[old[i]]++
		I[buckets[old[i]]] = i
	}

	for i := int64(0); i < n; i++ {
		V[i] = buckets[old[i]]
	}
	V[n] = 0
	for i := 1; i < bucketCount; i++ {
		if buckets[i] == buckets[i-1]+1 {
			I[buckets[i]] = -1
		}
	}
	I[0] = -1

	for h := int64(1); I[0] != -(n + 1); h += h {
		var runLen int64
		i := int64(0)
		for i < n+1 {
			if I[i] < 0 {
				runLen -= I[i]
				i -= I[i]
			} else {
				if runLen != 0 {
					I[i-runLen] = -runLen
				}
				runLen = V[I[i]] + 1 - i
				split(I, V, i, runLen, h)
				i += runLen
				runLen = 0
			}
		}
		if runLen != 0 {
			I[i-runLen] = -runLen
		}
	}

	for i := int64(0); i < n+1; i++ {
		I[V[i]] = i
	}
	return nil
}

// split three-way partitions the run I[start:start+runLen] around the
// rank of its median element at offset h, recursing into the less-than
// and greater-than partitions. Runs shorter than 16 are partitioned
// in-place by repeated selection, matching the original's small-run
// special case.
func split(I, V []int64, start, runLen, h int64) {
	if runLen < 16 {
		for k := start; k < start+runLen; {
			j := int64(1)
			x := V[I[k]+h]
			for i := int64(1); k+i < start+runLen; i++ {
				if V[I[k+i]+h] < x {
					x = V[I[k+i]+h]
					j = 0
				}
				if V[I[k+i]+h] == x {
					I[k+j], I[k+i] = I[k+i], I[k+j]
					j++
				}
			}
			for i := int64(0); i < j; i++ {
				V[I[k+i]] = k + j - 1
			}
			if j == 1 {
				I[k] = -1
			}
			k += j
		}
		return
	}

	x := V[I[start+runLen/2]+h]
	var jj, kk int64
	for i := start; i < start+runLen; i++ {
		switch {
		case V[I[i]+h] < x:
			jj++
		case V[I[i]+h] == x:
			kk++
		}
	}
	jj += start
	kk += jj

	i, j, k := start, int64(0), int64(0)
	for i < jj {
		switch {
		case V[I[i]+h] < x:
			i++
		case V[I[i]+h] == x:
			I[i], I[jj+j] = I[jj+j], I[i]
			j++
		default:
			I[i], I[kk+k] = I[kk+k], I[i]
			k++
		}
	}

	for jj+j < kk {
		if V[I[jj+j]+h] == x {
			j++
		} else {
			I[jj+j], I[kk+k] = I[kk+k], I[jj+j]
			k++
		}
	}

	if jj > start {
		split(I, V, start, jj-start, h)
	}

	for i := int64(0); i < kk-jj; i++ {
		V[I[jj+i]] = kk - 1
	}
	if jj == kk-1 {
		I[jj] = -1
	}

	if start+runLen > kk {
		split(I, V, kk, start+runLen-kk, h)
	}
}

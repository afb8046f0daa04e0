// Package xstate implements the optional static-site bitmap (spec §4.7):
// a byte-per-page map, built from a sidecar file of [start, end) PC
// ranges relative to the main executable's text segment, that the
// switching handler queries to decide whether an extended-state
// (floating/vector) save is needed at a given interrupted PC.
//
// Bit construction mirrors the bit-manipulation style of the teacher's
// buddy allocator (kernel/threads/arena/buddy.go: bitIndex/64 word,
// bitIndex%64 mask) adapted from "which 4KB physical block is
// allocated" to "which virtual-address page contains a live site."
package xstate

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/bits-and-blooms/bloom/v3"
)

// Range is one [Start, End) byte range, relative to the text segment,
// read from the sidecar file (spec §6: "headerless sequence of
// little-endian (start: u64, end: u64) pairs").
type Range struct {
	Start uint64
	End   uint64
}

// DecodeSidecar parses the sidecar file format (spec §6): file size must
// be a multiple of 16 bytes, each 16-byte record a (start, end) pair.
func DecodeSidecar(data []byte) ([]Range, error) {
	if len(data)%16 != 0 {
		return nil, fmt.Errorf("xstate: sidecar size %d not a multiple of 16", len(data))
	}
	ranges := make([]Range, 0, len(data)/16)
	for off := 0; off < len(data); off += 16 {
		ranges = append(ranges, Range{
			Start: binary.LittleEndian.Uint64(data[off:]),
			End:   binary.LittleEndian.Uint64(data[off+8:]),
		})
	}
	return ranges, nil
}

// LoadFile reads and decodes the sidecar file at path (spec §6). A
// missing file is reported to the caller as-is (os.IsNotExist); callers
// that want the §4.7 "absent bitmap means always save" default should
// treat that as "pass a nil *Bitmap to sched.NewHandler," not as a
// construction error.
func LoadFile(path string) ([]Range, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("xstate: read sidecar %s: %w", path, err)
	}
	return DecodeSidecar(data)
}

// Bitmap is a byte-per-page[1] map over [textStart, textEnd), plus an
// optional Bloom pre-filter for executables with large, sparse text
// segments: the filter is checked first (a miss proves the page is not
// live, skipping the exact lookup entirely), and the exact bitmap is
// authoritative on a hit, since a Bloom filter's false positives would
// otherwise force a conservative (but correctness-preserving) extra
// save.
//
// [1] "byte-per-page" in the sense of one bit per page, addressed
// through a packed byte slice; the name follows spec §4.7's wording.
type Bitmap struct {
	textStart uint64
	pageShift uint

	bits []byte // one bit per page
	pre  *bloom.BloomFilter
}

// New builds a Bitmap for [textStart, textEnd) at the given page size
// exponent (2^pageSizeExponent bytes per page) from ranges, applying the
// conservative construction rule spec §9 recommends over the buggy
// source behaviour: every page a range touches is marked, even a range
// wholly inside one page, rather than only pages a range fully spans.
func New(textStart, textEnd uint64, pageSizeExponent uint, ranges []Range) *Bitmap {
	numPages := pageCount(textStart, textEnd, pageSizeExponent)
	bm := &Bitmap{
		textStart: textStart,
		pageShift: pageSizeExponent,
		bits:      make([]byte, (numPages+7)/8),
	}

	if numPages > sparseFilterThreshold {
		bm.pre = bloom.NewWithEstimates(uint(numPages), 0.01)
	}

	for _, r := range ranges {
		start, end := clamp(r.Start, r.End, textStart, textEnd)
		if start >= end {
			continue
		}
		firstPage := (start - textStart) >> pageSizeExponent
		// End is exclusive; the page containing end-1 is the last one
		// touched, per spec §4.7's construction rule.
		lastPage := (end - 1 - textStart) >> pageSizeExponent
		for p := firstPage; p <= lastPage; p++ {
			bm.setPage(p)
		}
	}
	return bm
}

// sparseFilterThreshold is the page-count above which a Bloom pre-filter
// is worth the extra memory indirection; below it the exact bitmap is
// already small enough to check directly every time.
const sparseFilterThreshold = 1 << 16

func (bm *Bitmap) setPage(page uint64) {
	idx := page / 8
	if int(idx) >= len(bm.bits) {
		return
	}
	bm.bits[idx] |= 1 << (page % 8)
	if bm.pre != nil {
		bm.pre.Add(pageKey(page))
	}
}

func pageKey(page uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], page)
	return b[:]
}

// NeedsXsave reports whether extended state may be live at pc (spec
// §4.3 step 6, §4.7). A nil Bitmap conservatively reports true (spec
// §4.7: "If the bitmap is absent the handler conservatively assumes
// required").
func (bm *Bitmap) NeedsXsave(pc uint64) bool {
	if bm == nil {
		return true
	}
	if pc < bm.textStart {
		return true
	}
	page := (pc - bm.textStart) >> bm.pageShift
	idx := page / 8
	if int(idx) >= len(bm.bits) {
		return true
	}
	if bm.pre != nil && !bm.pre.Test(pageKey(page)) {
		return false
	}
	return bm.bits[idx]&(1<<(page%8)) != 0
}

func pageCount(start, end uint64, shift uint) uint64 {
	if end <= start {
		return 0
	}
	span := end - start
	return (span + (1 << shift) - 1) >> shift
}

func clamp(start, end, lo, hi uint64) (uint64, uint64) {
	if start < lo {
		start = lo
	}
	if end > hi {
		end = hi
	}
	return start, end
}

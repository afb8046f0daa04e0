package xstate

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSidecar_RejectsBadSize(t *testing.T) {
	_, err := DecodeSidecar(make([]byte, 15))
	assert.Error(t, err)
}

func TestDecodeSidecar_RoundTrips(t *testing.T) {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint64(buf[0:], 0x1000)
	binary.LittleEndian.PutUint64(buf[8:], 0x1010)
	binary.LittleEndian.PutUint64(buf[16:], 0x2000)
	binary.LittleEndian.PutUint64(buf[24:], 0x2100)

	ranges, err := DecodeSidecar(buf)
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	assert.Equal(t, Range{Start: 0x1000, End: 0x1010}, ranges[0])
	assert.Equal(t, Range{Start: 0x2000, End: 0x2100}, ranges[1])
}

func TestNilBitmap_AlwaysNeedsXsave(t *testing.T) {
	var bm *Bitmap
	assert.True(t, bm.NeedsXsave(0x1234))
}

func TestNew_MarksOnlyTouchedPages(t *testing.T) {
	const pageShift = 12 // 4KB pages
	textStart := uint64(0x400000)
	textEnd := textStart + 16*(1<<pageShift)

	ranges := []Range{{Start: textStart + 5, End: textStart + 10}} // inside page 0 only
	bm := New(textStart, textEnd, pageShift, ranges)

	assert.True(t, bm.NeedsXsave(textStart+5))
	assert.False(t, bm.NeedsXsave(textStart+1<<pageShift)) // page 1, untouched
}

func TestNew_SubPageRange_MarksWholePageConservatively(t *testing.T) {
	// spec: a range entirely inside one page still marks that page, even
	// though it doesn't span the page boundary.
	const pageShift = 12
	textStart := uint64(0x400000)
	textEnd := textStart + 4*(1<<pageShift)
	ranges := []Range{{Start: textStart + 100, End: textStart + 104}}

	bm := New(textStart, textEnd, pageShift, ranges)
	assert.True(t, bm.NeedsXsave(textStart)) // anywhere in page 0
	assert.True(t, bm.NeedsXsave(textStart+4095))
}

func TestNew_RangeSpanningPageBoundary_MarksBothPages(t *testing.T) {
	const pageShift = 12
	textStart := uint64(0x400000)
	textEnd := textStart + 4*(1<<pageShift)
	ranges := []Range{{Start: textStart + 4090, End: textStart + 4100}}

	bm := New(textStart, textEnd, pageShift, ranges)
	assert.True(t, bm.NeedsXsave(textStart))                 // page 0
	assert.True(t, bm.NeedsXsave(textStart+(1<<pageShift)))  // page 1
	assert.False(t, bm.NeedsXsave(textStart+2*(1<<pageShift))) // page 2, untouched
}

func TestNew_RangeOutsideTextBounds_Clamped(t *testing.T) {
	const pageShift = 12
	textStart := uint64(0x400000)
	textEnd := textStart + 4*(1<<pageShift)
	// Range entirely before textStart: clamp(start,end) collapses to
	// empty and must not panic or mark anything.
	ranges := []Range{{Start: 0, End: textStart - 1}}

	bm := New(textStart, textEnd, pageShift, ranges)
	for pc := textStart; pc < textEnd; pc += 1 << pageShift {
		assert.False(t, bm.NeedsXsave(pc))
	}
}

func TestNew_LargeSparseText_UsesBloomPreFilter(t *testing.T) {
	const pageShift = 12
	textStart := uint64(0x400000)
	// More pages than sparseFilterThreshold, to exercise the Bloom
	// pre-filter path in NeedsXsave.
	textEnd := textStart + (sparseFilterThreshold+10)*(1<<pageShift)
	ranges := []Range{{Start: textStart, End: textStart + 1}}

	bm := New(textStart, textEnd, pageShift, ranges)
	require.NotNil(t, bm.pre)
	assert.True(t, bm.NeedsXsave(textStart))
	assert.False(t, bm.NeedsXsave(textStart+5*(1<<pageShift)))
}

func TestNeedsXsave_PCBeforeTextStart_ConservativelyTrue(t *testing.T) {
	const pageShift = 12
	textStart := uint64(0x400000)
	textEnd := textStart + 4*(1<<pageShift)
	bm := New(textStart, textEnd, pageShift, nil)
	assert.True(t, bm.NeedsXsave(textStart-1))
}

func TestLoadFile_RoundTripsThroughDecodeSidecar(t *testing.T) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:], 0x1000)
	binary.LittleEndian.PutUint64(buf[8:], 0x1010)

	path := filepath.Join(t.TempDir(), "bitmap.sidecar")
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	ranges, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Range{{Start: 0x1000, End: 0x1010}}, ranges)
}

func TestLoadFile_MissingFile_ReturnsError(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.sidecar"))
	assert.Error(t, err)
}

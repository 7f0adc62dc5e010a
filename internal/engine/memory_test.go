package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mike-jgo/csopesy-mp/internal/logging"
)

func newTestManager(numFrames, frameSize int) *MemoryManager {
	return newMemoryManager(numFrames, frameSize, newBackingStore(), logging.BuildLogger("error"))
}

func TestAccessWord_SegmentationFaultOutOfRange(t *testing.T) {
	ass := assert.New(t)

	mem := newTestManager(4, 16)
	proc := newProcess(1, "p1", 32, nil)
	procs := map[int]*Process{1: proc}

	_, err := mem.AccessWord(procs, proc, 32, false, 0, 1)
	ass.ErrorIs(err, ErrSegmentationFault)

	_, err = mem.AccessWord(procs, proc, 31, true, 9, 1)
	ass.NoError(err)
}

func TestAccessWord_RoundTrip(t *testing.T) {
	ass := assert.New(t)

	mem := newTestManager(4, 16)
	proc := newProcess(1, "p1", 64, nil)
	procs := map[int]*Process{1: proc}

	_, err := mem.AccessWord(procs, proc, 4, true, 42, 1)
	ass.NoError(err)

	val, err := mem.AccessWord(procs, proc, 4, false, 0, 2)
	ass.NoError(err)
	ass.Equal(uint16(42), val)
}

func TestAccessWord_UnwrittenPageReadsZero(t *testing.T) {
	ass := assert.New(t)

	mem := newTestManager(4, 16)
	proc := newProcess(1, "p1", 64, nil)
	procs := map[int]*Process{1: proc}

	val, err := mem.AccessWord(procs, proc, 8, false, 0, 1)
	ass.NoError(err)
	ass.Equal(uint16(0), val)
}

// TestGlobalLRUEviction reproduces the single-frame eviction scenario:
// one process with two pages sharing a single physical frame. Writing
// page 1 must evict the dirty page 0 to the backing store, and reading
// page 0 back must fault it in again from there.
func TestGlobalLRUEviction(t *testing.T) {
	ass := assert.New(t)

	mem := newTestManager(1, 16)
	proc := newProcess(1, "p1", 64, nil)
	procs := map[int]*Process{1: proc}

	_, err := mem.AccessWord(procs, proc, 0, true, 7, 1)
	ass.NoError(err)
	ass.Equal(uint64(1), mem.PagesIn())

	_, err = mem.AccessWord(procs, proc, 16, true, 9, 2)
	ass.NoError(err)
	ass.Equal(uint64(2), mem.PagesIn())
	ass.Equal(uint64(1), mem.PagesOut(), "page 0 was dirty and must be written back on eviction")

	val, err := mem.AccessWord(procs, proc, 0, false, 0, 3)
	ass.NoError(err)
	ass.Equal(uint16(7), val)
	ass.Equal(uint64(3), mem.PagesIn())
}

func TestEviction_SelfHealsDanglingOwner(t *testing.T) {
	ass := assert.New(t)

	mem := newTestManager(1, 16)
	proc := newProcess(1, "p1", 64, nil)
	procs := map[int]*Process{1: proc}

	_, err := mem.AccessWord(procs, proc, 0, true, 1, 1)
	ass.NoError(err)

	other := newProcess(2, "p2", 32, nil)
	procs2 := map[int]*Process{2: other}

	val, err := mem.AccessWord(procs2, other, 0, true, 55, 2)
	ass.NoError(err)
	ass.Equal(uint16(55), val)
}

func TestClampU16(t *testing.T) {
	ass := assert.New(t)

	ass.Equal(uint16(0), clampU16(-1))
	ass.Equal(uint16(65535), clampU16(65536))
	ass.Equal(uint16(100), clampU16(100))
}

func TestFreeFramesAndUsedBytes(t *testing.T) {
	ass := assert.New(t)

	mem := newTestManager(4, 16)
	ass.Equal(4, mem.TotalFrames())
	ass.Equal(4, mem.FreeFrames())
	ass.Equal(0, mem.UsedBytes())

	proc := newProcess(1, "p1", 64, nil)
	procs := map[int]*Process{1: proc}
	_, err := mem.AccessWord(procs, proc, 0, true, 1, 1)
	ass.NoError(err)

	ass.Equal(3, mem.FreeFrames())
	ass.Equal(16, mem.UsedBytes())
}

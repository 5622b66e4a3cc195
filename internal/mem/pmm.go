// Package mem implements the physical memory manager: a bitmap-backed
// 4 KiB page allocator over one contiguous region (spec §4.1), plus the
// physical-address vocabulary (Pa_t, PTE bit layout) that the vm package
// builds page tables out of.
//
// The teacher (biscuit) backs its allocator with a per-page refcount and
// free lists (mem/mem.go's Physmem_t) because biscuit supports page
// sharing and COW. This core has neither (Non-goals), so the allocator
// here is the simpler bitmap design the specification and the C
// original (original_source/kernel/pmm.c) both describe; the receiver
// type name (*Physmem_t) and the lock-around-every-op discipline are
// kept from the teacher, the backing data structure and the method names
// (AllocPage(s)/FreePage(s) here) are not.
package mem

import (
	"sync"
	"unsafe"

	"nyx/internal/util"
)

// Pa_t represents a physical address.
type Pa_t uint64

const (
	PGSHIFT uint  = 12
	PGSIZE  int   = 1 << PGSHIFT
	PGOFFSET Pa_t = 0xfff
	PGMASK   Pa_t = ^PGOFFSET
)

// PTE bit layout, identical in spirit to mem/mem.go's constants.
const (
	PTE_P    Pa_t = 1 << 0 // present
	PTE_W    Pa_t = 1 << 1 // writable
	PTE_U    Pa_t = 1 << 2 // user-accessible
	PTE_PCD  Pa_t = 1 << 4 // cache disable
	PTE_PS   Pa_t = 1 << 7 // large page
	PTE_USERALLOC Pa_t = 1 << 9 // OS-available bit: teardown must free this leaf
	PTE_ADDR Pa_t = 0x000ffffffffff000
)

// Physmem_t is the bitmap-backed allocator over one contiguous physical
// region, simulated here as a byte arena so that page-table walks and
// ELF loads have real backing storage to read and write without real
// hardware. Every allocation, free and bitmap query disables
// "interrupts" for its duration by taking mu (the Bytes/Table views and
// the Base/Pages/End bounds do not) — sufficient on the single-core execution
// model (§4.1) and cheaper than a finer-grained lock would be.
type Physmem_t struct {
	mu     sync.Mutex
	base   Pa_t
	npages int
	bitmap []uint64
	arena  []byte
}

// NewPhysmem reserves a simulated contiguous physical region of
// npages 4 KiB frames starting at base and returns its allocator.
func NewPhysmem(base Pa_t, npages int) *Physmem_t {
	if npages <= 0 {
		panic("bad npages")
	}
	return &Physmem_t{
		base:   base,
		npages: npages,
		bitmap: make([]uint64, (npages+63)/64),
		arena:  make([]byte, npages*PGSIZE),
	}
}

func (p *Physmem_t) pageIndex(pa Pa_t) (int, bool) {
	if pa < p.base {
		return 0, false
	}
	off := pa - p.base
	if off%Pa_t(PGSIZE) != 0 {
		return 0, false
	}
	idx := int(off / Pa_t(PGSIZE))
	if idx >= p.npages {
		return 0, false
	}
	return idx, true
}

func (p *Physmem_t) testBit(i int) bool {
	return p.bitmap[i/64]&(1<<(uint(i)%64)) != 0
}

func (p *Physmem_t) setBit(i int) {
	p.bitmap[i/64] |= 1 << (uint(i) % 64)
}

func (p *Physmem_t) clearBit(i int) {
	p.bitmap[i/64] &^= 1 << (uint(i) % 64)
}

// AllocPage returns one free frame, or (0, false) on exhaustion.
func (p *Physmem_t) AllocPage() (Pa_t, bool) {
	return p.AllocPages(1)
}

// AllocPages returns n contiguous frames found by a first-fit scan of
// the bitmap, or (0, false); it never returns a partial run.
func (p *Physmem_t) AllocPages(n int) (Pa_t, bool) {
	if n <= 0 {
		panic("bad n")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	run := 0
	for i := 0; i < p.npages; i++ {
		if p.testBit(i) {
			run = 0
			continue
		}
		run++
		if run == n {
			start := i - n + 1
			for j := start; j <= i; j++ {
				p.setBit(j)
			}
			pa := p.base + Pa_t(start*PGSIZE)
			zero(p.arena[start*PGSIZE : (start+n)*PGSIZE])
			return pa, true
		}
	}
	return 0, false
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// FreePage frees one previously-returned frame. Out-of-range frees are
// a silent no-op (the caller may have passed an identity-mapped
// address that was never allocated).
func (p *Physmem_t) FreePage(pa Pa_t) {
	p.FreePages(pa, 1)
}

// FreePages frees n frames starting at pa. Idempotent only on
// previously-returned bases; out-of-range is a silent no-op.
func (p *Physmem_t) FreePages(pa Pa_t, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageIndex(pa)
	if !ok {
		return
	}
	for i := 0; i < n; i++ {
		if idx+i >= p.npages {
			return
		}
		p.clearBit(idx + i)
	}
}

// Bytes returns a PGSIZE-length slice backing the frame at pa — the
// direct-map analog of the teacher's Physmem_t.Dmap. Panics if pa is
// not a page-aligned address within the managed region; callers only
// ever pass addresses obtained from AllocPage(s) or page-table walks.
func (p *Physmem_t) Bytes(pa Pa_t) []byte {
	idx, ok := p.pageIndex(pa)
	if !ok {
		panic("mem: address outside managed region")
	}
	return p.arena[idx*PGSIZE : (idx+1)*PGSIZE]
}

// Base and Pages report the region's bounds, used by callers that want
// to identity-map "all usable physical memory".
func (p *Physmem_t) Base() Pa_t { return p.base }
func (p *Physmem_t) Pages() int { return p.npages }
func (p *Physmem_t) End() Pa_t  { return p.base + Pa_t(p.npages*PGSIZE) }

// Pmap_t is a single 512-entry page-table page (PML4/PDPT/PD/PT are
// all this same shape, as on real x86_64).
type Pmap_t [512]Pa_t

// Table reinterprets the frame at pa as a page-table page, the
// direct-map analog of the teacher's pg2pmap helper.
func (p *Physmem_t) Table(pa Pa_t) *Pmap_t {
	b := p.Bytes(pa)
	return (*Pmap_t)(unsafe.Pointer(&b[0]))
}

// Free reports the number of currently unallocated frames, used by
// property tests to assert round-trip invariants.
func (p *Physmem_t) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for i := 0; i < p.npages; i++ {
		if !p.testBit(i) {
			n++
		}
	}
	return n
}

// Snapshot returns a copy of the allocation bitmap for round-trip
// property assertions.
func (p *Physmem_t) Snapshot() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := make([]uint64, len(p.bitmap))
	copy(s, p.bitmap)
	return s
}

// PagesFor rounds a byte count up to whole pages, used by allocators
// that size requests in bytes rather than pages.
func PagesFor(nbytes int) int {
	return util.Roundup(nbytes, PGSIZE) / PGSIZE
}

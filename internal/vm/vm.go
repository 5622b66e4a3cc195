// Package vm implements the four-level virtual memory manager (spec
// §4.2): an identity-mapped kernel range shared in shape (not storage)
// by every address space, on-demand user leaf mapping, deep clone for
// fork, and teardown that only frees what the process itself owns.
//
// Grounded on the teacher's vm/as.go (Vm_t: an address-space struct
// guarding a pmap with its own mutex, Lock_pmap/Unlock_pmap naming,
// Userdmap8-style "walk, fault, map" flow) and mem/mem.go's PTE bit
// vocabulary. biscuit supports demand paging and copy-on-write, both
// explicit Non-goals here (§1); AddressSpace_t below implements the
// simpler always-populated, always-deep-copy model the specification
// describes instead of biscuit's Vmregion_t + page-fault machinery.
package vm

import (
	"sync"

	"nyx/internal/defs"
	"nyx/internal/mem"
)

const (
	nEntries = 512
	pageMask = uint64(mem.PGSIZE - 1)
)

func indices(va uintptr) (l4, l3, l2, l1 int) {
	v := uint64(va)
	l4 = int((v >> 39) & 0x1ff)
	l3 = int((v >> 30) & 0x1ff)
	l2 = int((v >> 21) & 0x1ff)
	l1 = int((v >> 12) & 0x1ff)
	return
}

// AddressSpace_t is one process's (or the kernel's) page-table tree.
// The mutex serializes structural changes to the tree the same way
// Vm_t.Lock_pmap does in the teacher, since the whole execution model
// is single-core and a tick can preempt the owning task mid-edit.
type AddressSpace_t struct {
	sync.Mutex
	Root mem.Pa_t
	pmm  *mem.Physmem_t
}

func newTable(pmm *mem.Physmem_t) (mem.Pa_t, error) {
	pa, ok := pmm.AllocPage()
	if !ok {
		return 0, errOOM
	}
	return pa, nil
}

var errOOM = vmErr{defs.ENOMEM}

type vmErr struct{ e defs.Err_t }

func (v vmErr) Error() string { return "vm: out of pages" }
func (v vmErr) Err() defs.Err_t { return v.e }

// walk descends the 4-level tree rooted at root for virtual address
// va. If alloc is true, missing intermediate tables are created on
// demand (marked present|write|user so ring-3 can recurse through
// them even though the leaf itself stays supervisor-only until the
// caller says otherwise). Returns a pointer to the leaf PTE slot.
func (as *AddressSpace_t) walk(va uintptr, alloc bool) (*mem.Pa_t, bool) {
	l4, l3, l2, l1 := indices(va)
	cur := as.Root
	idxs := [3]int{l4, l3, l2}
	for _, idx := range idxs {
		t := as.pmm.Table(cur)
		e := t[idx]
		if e&mem.PTE_P == 0 {
			if !alloc {
				return nil, false
			}
			npa, err := newTable(as.pmm)
			if err != nil {
				return nil, false
			}
			e = npa | mem.PTE_P | mem.PTE_W | mem.PTE_U
			t[idx] = e
		}
		cur = e & mem.PTE_ADDR
	}
	pt := as.pmm.Table(cur)
	return &pt[l1], true
}

// NewKernelSpace builds the canonical identity map used by every
// kernel task: virtual == physical for [physStart, physEnd), leaves
// supervisor-only (no PTE_U), intermediate entries reachable from
// ring 3 so that a user address space's own clone of this structure
// can still be walked by the CPU even though its leaves deny access.
func NewKernelSpace(pmm *mem.Physmem_t, physStart, physEnd mem.Pa_t) (*AddressSpace_t, error) {
	root, err := newTable(pmm)
	if err != nil {
		return nil, err
	}
	as := &AddressSpace_t{Root: root, pmm: pmm}
	for pa := physStart; pa < physEnd; pa += mem.Pa_t(mem.PGSIZE) {
		pte, ok := as.walk(uintptr(pa), true)
		if !ok {
			return nil, errOOM
		}
		*pte = pa | mem.PTE_P | mem.PTE_W
	}
	return as, nil
}

// NewUserSpace allocates a fresh PML4/PDPT/PD and every leaf needed to
// reproduce the kernel's identity map (§4.2: "allocate ... all the
// leaves for the identity-mapped kernel range"), then returns the new
// (still user-page-free) address space. Each process gets its own
// table frames — nothing here is shared with the kernel's canonical
// root, so free_user_space can unconditionally free every intermediate
// table it encounters.
func NewUserSpace(pmm *mem.Physmem_t, physStart, physEnd mem.Pa_t) (*AddressSpace_t, error) {
	return NewKernelSpace(pmm, physStart, physEnd)
}

// MapUserPage creates any missing intermediate tables and installs a
// leaf mapping paddr at vaddr with flags|Present|UserAllocated. The
// UserAllocated bit is the only way FreeUserSpace can later tell this
// frame apart from an identity-mapped kernel frame that must not be
// freed (§4.2 design decision).
func (as *AddressSpace_t) MapUserPage(vaddr uintptr, paddr mem.Pa_t, flags mem.Pa_t) defs.Err_t {
	as.Lock()
	defer as.Unlock()
	pte, ok := as.walk(vaddr, true)
	if !ok {
		return -defs.ENOMEM
	}
	*pte = (paddr & mem.PTE_ADDR) | flags | mem.PTE_P | mem.PTE_USERALLOC
	as.invalidate(vaddr)
	return 0
}

// MapKernelPage is MapUserPage without the UserAllocated bit: the leaf
// is owned by the kernel (or is an identity-mapped passthrough) and
// must survive address-space teardown.
func (as *AddressSpace_t) MapKernelPage(vaddr uintptr, paddr mem.Pa_t, flags mem.Pa_t) defs.Err_t {
	as.Lock()
	defer as.Unlock()
	pte, ok := as.walk(vaddr, true)
	if !ok {
		return -defs.ENOMEM
	}
	*pte = (paddr & mem.PTE_ADDR) | flags | mem.PTE_P
	as.invalidate(vaddr)
	return 0
}

// invalidate is the hosted stand-in for INVLPG: there is no real TLB
// to shoot down in this simulation, but every leaf mutation funnels
// through here so a future real backend has exactly one place to hook
// the instruction in (§4.2: "every leaf change flushes that page's TLB
// entry").
func (as *AddressSpace_t) invalidate(vaddr uintptr) {}

// VirtToPhys walks the tree and returns the page-aligned physical
// address of the frame backing vaddr (vaddr's offset within the page
// is not added), or (0, false) on any non-present entry along the way.
func (as *AddressSpace_t) VirtToPhys(vaddr uintptr) (mem.Pa_t, bool) {
	as.Lock()
	defer as.Unlock()
	pte, ok := as.walk(vaddr, false)
	if !ok || *pte&mem.PTE_P == 0 {
		return 0, false
	}
	return *pte & mem.PTE_ADDR, true
}

// UserAccessible reports whether a ring-3 access at vaddr would
// succeed: the leaf must be present and carry the user bit. This is
// the core's model of the MMU's protection check (§8's user-isolation
// property).
func (as *AddressSpace_t) UserAccessible(vaddr uintptr) bool {
	as.Lock()
	defer as.Unlock()
	pte, ok := as.walk(vaddr, false)
	if !ok {
		return false
	}
	return *pte&mem.PTE_P != 0 && *pte&mem.PTE_U != 0
}

// MarkUserRegion flips the user bit on every identity-mapped leaf in
// [base, base+size) — the only way a ring-3 task reaches a kernel
// passthrough region (e.g. a mapped framebuffer) without a separate
// user-allocated leaf.
func (as *AddressSpace_t) MarkUserRegion(base mem.Pa_t, size int) defs.Err_t {
	return as.setLeafUser(base, size, true)
}

// MarkSupervisorRegion is the inverse of MarkUserRegion.
func (as *AddressSpace_t) MarkSupervisorRegion(base mem.Pa_t, size int) defs.Err_t {
	return as.setLeafUser(base, size, false)
}

func (as *AddressSpace_t) setLeafUser(base mem.Pa_t, size int, user bool) defs.Err_t {
	as.Lock()
	defer as.Unlock()
	start := base &^ mem.Pa_t(pageMask)
	end := base + mem.Pa_t(size)
	for pa := start; pa < end; pa += mem.Pa_t(mem.PGSIZE) {
		pte, ok := as.walk(uintptr(pa), false)
		if !ok {
			return -defs.EFAULT
		}
		if user {
			*pte |= mem.PTE_U
		} else {
			*pte &^= mem.PTE_U
		}
		as.invalidate(uintptr(pa))
	}
	return 0
}

// FreeUserSpace walks the whole tree, freeing every leaf frame whose
// UserAllocated bit is set and every intermediate table frame (they
// were allocated per-process by NewUserSpace/MapUserPage), then frees
// the root itself.
func FreeUserSpace(pmm *mem.Physmem_t, root mem.Pa_t) {
	freeLevel(pmm, root, 3)
	pmm.FreePage(root)
}

func freeLevel(pmm *mem.Physmem_t, tablePa mem.Pa_t, level int) {
	t := pmm.Table(tablePa)
	for i := 0; i < nEntries; i++ {
		e := t[i]
		if e&mem.PTE_P == 0 {
			continue
		}
		child := e & mem.PTE_ADDR
		if level == 0 {
			if e&mem.PTE_USERALLOC != 0 {
				pmm.FreePage(child)
			}
			continue
		}
		freeLevel(pmm, child, level-1)
		pmm.FreePage(child)
	}
}

// CloneUserPages deep-copies every UserAllocated leaf reachable from
// src into freshly allocated frames mapped at the same virtual address
// (and with the same flags) in dst. There is no sharing: fork in this
// core always deep-copies (Non-goals exclude copy-on-write).
func CloneUserPages(pmm *mem.Physmem_t, dst, src *AddressSpace_t) defs.Err_t {
	return cloneLevel(pmm, dst, src, src.Root, 3, 0)
}

func cloneLevel(pmm *mem.Physmem_t, dst, src *AddressSpace_t, tablePa mem.Pa_t, level int, vaPrefix uint64) defs.Err_t {
	t := pmm.Table(tablePa)
	shift := uint(12 + 9*level)
	for i := 0; i < nEntries; i++ {
		e := t[i]
		if e&mem.PTE_P == 0 {
			continue
		}
		va := vaPrefix | (uint64(i) << shift)
		child := e & mem.PTE_ADDR
		if level == 0 {
			if e&mem.PTE_USERALLOC == 0 {
				continue
			}
			npa, ok := pmm.AllocPage()
			if !ok {
				return -defs.ENOMEM
			}
			copy(pmm.Bytes(npa), pmm.Bytes(child))
			flags := e &^ (mem.PTE_ADDR)
			if err := dst.MapUserPage(uintptr(signExtend(va)), npa, flags&^mem.PTE_P&^mem.PTE_USERALLOC); err != 0 {
				return err
			}
			continue
		}
		if err := cloneLevel(pmm, dst, src, child, level-1, va); err != 0 {
			return err
		}
	}
	return 0
}

// signExtend mirrors the canonical-address sign extension x86_64
// requires above bit 47; the fixed user region (§3) never needs the
// high half, but keeping this explicit avoids a silent truncation bug
// if USER_BASE is ever raised.
func signExtend(va uint64) uint64 {
	const signBit = uint64(1) << 47
	if va&signBit != 0 {
		return va | 0xffff000000000000
	}
	return va
}

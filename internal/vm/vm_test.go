package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nyx/internal/defs"
	"nyx/internal/kconfig"
	"nyx/internal/mem"
)

func freshKernel(t *testing.T) (*mem.Physmem_t, *AddressSpace_t) {
	t.Helper()
	pmm := mem.NewPhysmem(0, 4096)
	ks, err := NewKernelSpace(pmm, 0, mem.Pa_t(256*mem.PGSIZE))
	require.NoError(t, err)
	return pmm, ks
}

func TestIdentityMapVirtEqualsPhys(t *testing.T) {
	_, ks := freshKernel(t)
	for _, pa := range []mem.Pa_t{0, mem.Pa_t(mem.PGSIZE), mem.Pa_t(100 * mem.PGSIZE)} {
		got, ok := ks.VirtToPhys(uintptr(pa))
		require.True(t, ok)
		require.Equal(t, pa, got)
	}
}

func TestUserIsolationBelowUserBase(t *testing.T) {
	pmm, ks := freshKernel(t)
	userAs, err := NewUserSpace(pmm, 0, mem.Pa_t(256*mem.PGSIZE))
	require.NoError(t, err)
	_ = ks

	// Nothing below USER_BASE has been marked user-accessible, so a
	// ring-3 access there must fault (§8 user-isolation property).
	require.False(t, userAs.UserAccessible(0))
	require.False(t, userAs.UserAccessible(uintptr(kconfig.UserBase-mem.PGSIZE)))
}

func TestMarkUserRegionFlipsLeafBit(t *testing.T) {
	pmm, _ := freshKernel(t)
	as, err := NewUserSpace(pmm, 0, mem.Pa_t(256*mem.PGSIZE))
	require.NoError(t, err)

	require.False(t, as.UserAccessible(0))
	require.Equal(t, defs.Err_t(0), as.MarkUserRegion(0, mem.PGSIZE))
	require.True(t, as.UserAccessible(0))
	require.Equal(t, defs.Err_t(0), as.MarkSupervisorRegion(0, mem.PGSIZE))
	require.False(t, as.UserAccessible(0))
}


func TestMapUserPageThenVirtToPhys(t *testing.T) {
	pmm, _ := freshKernel(t)
	as, err := NewUserSpace(pmm, 0, mem.Pa_t(64*mem.PGSIZE))
	require.NoError(t, err)

	upa, ok := pmm.AllocPage()
	require.True(t, ok)
	uva := uintptr(kconfig.UserBase)
	require.Equal(t, defs.Err_t(0), as.MapUserPage(uva, upa, mem.PTE_W|mem.PTE_U))

	got, ok := as.VirtToPhys(uva)
	require.True(t, ok)
	require.Equal(t, upa, got)
	require.True(t, as.UserAccessible(uva))
}

// Fork equivalence at t=0 (§8): cloned pages have distinct physical
// backing but identical contents.
func TestCloneUserPagesDeepCopies(t *testing.T) {
	pmm, _ := freshKernel(t)
	parent, err := NewUserSpace(pmm, 0, mem.Pa_t(64*mem.PGSIZE))
	require.NoError(t, err)
	child, err := NewUserSpace(pmm, 0, mem.Pa_t(64*mem.PGSIZE))
	require.NoError(t, err)

	upa, ok := pmm.AllocPage()
	require.True(t, ok)
	uva := uintptr(kconfig.UserBase)
	content := pmm.Bytes(upa)
	content[0] = 0xAB
	content[4095] = 0xCD
	require.Equal(t, defs.Err_t(0), parent.MapUserPage(uva, upa, mem.PTE_W|mem.PTE_U))

	require.Equal(t, defs.Err_t(0), CloneUserPages(pmm, child, parent))

	cpa, ok := child.VirtToPhys(uva)
	require.True(t, ok)
	require.NotEqual(t, upa, cpa, "fork must deep-copy, not share")
	require.Equal(t, pmm.Bytes(upa), pmm.Bytes(cpa))
}

func TestFreeUserSpaceReclaimsOnlyUserAllocatedLeaves(t *testing.T) {
	pmm := mem.NewPhysmem(0, 4096)
	freeBefore := pmm.Free()

	as, err := NewUserSpace(pmm, 0, mem.Pa_t(32*mem.PGSIZE))
	require.NoError(t, err)
	upa, ok := pmm.AllocPage()
	require.True(t, ok)
	require.Equal(t, defs.Err_t(0), as.MapUserPage(uintptr(kconfig.UserBase), upa, mem.PTE_W|mem.PTE_U))

	FreeUserSpace(pmm, as.Root)
	require.Equal(t, freeBefore, pmm.Free(), "teardown must free every table and user leaf, and nothing else")
}

// Leaf uniqueness (§8): no frame can be an active PTE leaf in two
// address spaces' user mappings simultaneously, because clone always
// allocates a fresh frame.
func TestLeafUniquenessAcrossClones(t *testing.T) {
	pmm, _ := freshKernel(t)
	a, _ := NewUserSpace(pmm, 0, mem.Pa_t(32*mem.PGSIZE))
	b, _ := NewUserSpace(pmm, 0, mem.Pa_t(32*mem.PGSIZE))

	upa, _ := pmm.AllocPage()
	uva := uintptr(kconfig.UserBase)
	require.Zero(t, a.MapUserPage(uva, upa, mem.PTE_W|mem.PTE_U))
	require.Equal(t, defs.Err_t(0), CloneUserPages(pmm, b, a))

	pa1, _ := a.VirtToPhys(uva)
	pa2, _ := b.VirtToPhys(uva)
	require.NotEqual(t, pa1, pa2)
}

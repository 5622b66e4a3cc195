// Package kconfig is the kernel's "configuration layer": compile-time
// constants fixing memory layout and table sizes. A kernel's tunables
// are boot-time geometry, not runtime flags — the teacher expresses
// this the same way (sched.c's MAX_TASKS/KSTACK_SIZE, mem.go's respgs)
// and this package keeps that convention rather than introducing a
// config-file/flag-parsing layer for values that must be fixed before
// the first page table exists.
package kconfig

const (
	// PageSize is the physical frame / page-table leaf granularity.
	PageSize = 4096
	PageShift = 12

	// MaxTasks bounds the task descriptor pool (§3's N≈16).
	MaxTasks = 16

	// MaxPipes bounds the concurrently open pipe pool.
	MaxPipes = 16

	// MaxFDs bounds a task's per-process FD table.
	MaxFDs = 32

	// KstackPages is the number of physical pages backing a task's
	// kernel stack.
	KstackPages = 4
	KstackSize  = KstackPages * PageSize

	// UstackPages is the number of physical pages backing a user
	// task's stack.
	UstackPages = 4
	UstackSize  = UstackPages * PageSize

	// UserBase and UserTop bound the fixed user region ([16MiB,18MiB)
	// per §3's example window).
	UserBase = 16 << 20
	UserTop  = 18 << 20

	// UserStackTop is the top-of-stack constant user stacks grow down
	// from.
	UserStackTop = UserTop - PageSize

	// FramebufferVA is the fixed user-virtual address fb_map lands the
	// framebuffer surface at, just past the user region (§3's
	// [16MiB,18MiB) window) so it never collides with a task's text,
	// heap, or stack mappings.
	FramebufferVA = UserTop

	// PipeCapacity is the ring-buffer size backing a pipe (§3).
	PipeCapacity = 512

	// MaxPathComponent and MaxPathAbs are the FAT32-shim path limits
	// named in §6.
	MaxPathComponent = 128
	MaxPathAbs       = 256

	// ElfStagingCap bounds the ELF image internal/elf accepts; larger
	// images are rejected before validation (§4.4).
	ElfStagingCap = 512 << 10

	// PITFrequencyHz is the programmed timer-tick rate (§6).
	PITFrequencyHz = 100
	PITDivisor     = 1193182 / PITFrequencyHz

	// Segment selectors (§6's GDT layout).
	SelKernelCode = 0x08
	SelKernelData = 0x10
	SelUserData   = 0x18
	SelUserCode   = 0x20
	SelTSS        = 0x28

	// RflagsIF is the interrupt-enable flag bit used when synthesizing
	// trap frames (§4.3/§4.5: rflags = 0x202).
	RflagsIF = 0x202

	// IRQ vector base offsets after PIC remap (§6).
	IRQVectorBaseMaster = 0x20
	IRQVectorBaseSlave  = 0x28
)

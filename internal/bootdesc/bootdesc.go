// Package bootdesc describes the boot-time descriptor tables a real
// x86_64 boot sequence would load: GDT segment descriptors, the TSS,
// PIC remap programming, and the PIT divisor (spec §6). Nothing here
// executes LGDT/LIDT/OUT — there is no CPU to load them into inside a
// hosted test binary — but every value a boot sequence would compute
// is produced and self-checked here, so higher layers (trapframe,
// ring3, kconfig) and this package can never silently disagree about
// a selector or a divisor.
//
// Grounded on original_source/kernel/gdt.c (the six-entry GDT layout:
// null, ring-0 code/data, ring-3 data/code, TSS) and kernel/idt.c's
// pic_remap/PIT programming (ICW1..ICW4, vector base 0x20/0x28, the
// 1193182/PIT_HZ divisor formula).
package bootdesc

import "nyx/internal/kconfig"

// GDTEntry is one non-system GDT descriptor's access/flags byte pair,
// base and limit are always 0/0xFFFFF here (flat segmentation; long
// mode ignores a code/data segment's base and limit outside the TSS).
type GDTEntry struct {
	Selector uint16
	Access   uint8
	Flags    uint8
}

const (
	accessPresent = 1 << 7
	accessDPL3    = 3 << 5
	flagsLongCode = 0xA0
	flagsData32   = 0xC0
)

// GDT is the five-entry descriptor table gdt_init builds, in selector
// order: null, kernel code, kernel data, user data, user code.
var GDT = [5]GDTEntry{
	{Selector: 0x00},
	{Selector: kconfig.SelKernelCode, Access: accessPresent | 0x1a, Flags: flagsLongCode},
	{Selector: kconfig.SelKernelData, Access: accessPresent | 0x12, Flags: flagsData32},
	{Selector: kconfig.SelUserData, Access: accessPresent | accessDPL3 | 0x12, Flags: flagsData32},
	{Selector: kconfig.SelUserCode, Access: accessPresent | accessDPL3 | 0x1a, Flags: flagsLongCode},
}

// TSSDescriptor models the sixth (16-byte, in 64-bit mode) GDT slot: a
// system descriptor pointing at the kernel's single TSS, one per boot
// image (no per-CPU TSS since this model is single-core, §1 Non-goal).
type TSSDescriptor struct {
	Selector uint16
	Base     uint64
	Limit    uint32
}

// TSS mirrors the fields a ring-3-to-ring-0 transition actually reads:
// just RSP0, the kernel stack pointer loaded on a privilege change.
// IST1-7 and the I/O permission bitmap exist on real hardware but
// nothing in this core's syscall path (SYSCALL, not an IDT gate) needs
// them.
type TSS struct {
	RSP0 uint64
}

// NewTSSDescriptor returns the TSS system descriptor for a TSS located
// at base (a kernel virtual/physical address, since the kernel range
// is identity-mapped).
func NewTSSDescriptor(base uint64) TSSDescriptor {
	return TSSDescriptor{Selector: kconfig.SelTSS, Base: base, Limit: 0x67}
}

// PICRemap is the pair of interrupt vector bases pic_remap programs
// the master/slave 8259s to, moving IRQs 0-15 out of the CPU exception
// range.
type PICRemap struct {
	MasterBase, SlaveBase uint8
}

// DefaultPICRemap matches kernel/idt.c's ICW2 values.
var DefaultPICRemap = PICRemap{
	MasterBase: kconfig.IRQVectorBaseMaster,
	SlaveBase:  kconfig.IRQVectorBaseSlave,
}

// PITDivisor returns the 16-bit counter value the PIT's channel 0 is
// loaded with to tick at kconfig.PITFrequencyHz, reproducing
// idt.c's `PIT_FREQ / PIT_HZ` (PIT_FREQ = 1193182, the PIT's fixed
// input clock).
func PITDivisor() uint16 {
	const pitInputHz = 1193182
	return uint16(pitInputHz / kconfig.PITFrequencyHz)
}

// Check validates that the static tables above are internally
// consistent with kconfig's selector constants: every GDTEntry's
// Selector must match the corresponding kconfig constant, and the
// marked-present bit must be set on every non-null entry. A boot
// sequence that silently drifted a selector out of sync with kconfig
// would otherwise only surface as a ring-3 general-protection fault.
func Check() bool {
	want := []uint16{0x00, kconfig.SelKernelCode, kconfig.SelKernelData, kconfig.SelUserData, kconfig.SelUserCode}
	for i, e := range GDT {
		if e.Selector != want[i] {
			return false
		}
		if i != 0 && e.Access&accessPresent == 0 {
			return false
		}
	}
	if DefaultPICRemap.MasterBase != kconfig.IRQVectorBaseMaster || DefaultPICRemap.SlaveBase != kconfig.IRQVectorBaseSlave {
		return false
	}
	return PITDivisor() == uint16(1193182/kconfig.PITFrequencyHz)
}

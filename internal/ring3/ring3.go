// Package ring3 builds the first-entry user stack and trap frame a
// freshly spawned task needs to land in ring 3 (spec §4.5). It is the
// pure-Go equivalent of the loader's final step: everything it writes
// is addressed through vm.AddressSpace_t.VirtToPhys and
// mem.Physmem_t.Bytes, exactly as the spec requires ("on the user
// stack in physical space (via virt_to_phys)").
package ring3

import (
	"encoding/binary"

	"nyx/internal/defs"
	"nyx/internal/kconfig"
	"nyx/internal/mem"
	"nyx/internal/trapframe"
	"nyx/internal/vm"
)

// exitStub is the nine-byte sequence §4.5 describes: load SYS_EXIT
// into a scratch register, zero the first argument, SYSCALL. The bytes
// are the x86_64 encodings of `mov eax, SYS_EXIT; xor edi, edi;
// syscall`; BuildArgvSetup writes hltOpcode into the byte right after
// them, so execution that falls through the stub reaches a HLT. The
// nine-byte length and the stub's role as the entry function's return
// address are part of the ABI this core promises callers.
var exitStub = [9]byte{
	0xb8, byte(defs.SYS_EXIT), 0, 0, 0, // mov eax, SYS_EXIT
	0x31, 0xff, // xor edi, edi
	0x0f, 0x05, // syscall
}

const hltOpcode = 0xf4

const exitStubOffsetFromTop = 32

// writeUser copies data into the user address space at vaddr, walking
// through VirtToPhys one page at a time since the destination may
// cross a page boundary.
func writeUser(pmm *mem.Physmem_t, as *vm.AddressSpace_t, vaddr uint64, data []byte) defs.Err_t {
	for len(data) > 0 {
		pa, ok := as.VirtToPhys(uintptr(vaddr))
		if !ok {
			return -defs.EFAULT
		}
		off := int(vaddr) % mem.PGSIZE
		page := pmm.Bytes(pa)
		n := copy(page[off:], data)
		data = data[n:]
		vaddr += uint64(n)
	}
	return 0
}

// BuildArgvSetup constructs, on the already-mapped user stack
// [base, base+size), the exit stub, the argv strings, the argv
// pointer array (NULL-terminated, reverse order per §4.5), and a
// 16-byte alignment pad, then returns the resulting stack pointer and
// the user-virtual address of argv[0] for use as RSI.
//
// stackTop is the fixed top-of-stack constant (kconfig.UserStackTop);
// the caller must have already mapped every page in
// [stackTop-kconfig.UstackSize, stackTop) via MapUserPage.
func BuildArgvSetup(pmm *mem.Physmem_t, as *vm.AddressSpace_t, stackTop uint64, argv []string) (rsp, argvPtr uint64, err defs.Err_t) {
	exitStubVA := stackTop - exitStubOffsetFromTop
	if e := writeUser(pmm, as, exitStubVA, append(exitStub[:], hltOpcode)); e != 0 {
		return 0, 0, e
	}

	// Copy argv strings (NUL-terminated) downward from just below the
	// exit stub, recording each string's user-virtual address.
	cursor := exitStubVA
	ptrs := make([]uint64, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		s := argv[i]
		n := uint64(len(s) + 1)
		cursor -= n
		buf := append([]byte(s), 0)
		if e := writeUser(pmm, as, cursor, buf); e != 0 {
			return 0, 0, e
		}
		ptrs[i] = cursor
	}

	// argv array: NULL terminator, then each pointer in reverse order
	// (so argv[0] ends up lowest... no: §4.5 says "null terminator
	// plus each string's pointer in reverse order" — the array is
	// built downward with the terminator first, then pointers from
	// argv[n-1] down to argv[0], leaving argv[0]'s pointer nearest the
	// bottom of the array, i.e. at the array's base address).
	arrWords := len(argv) + 1
	arrBytes := uint64(arrWords * 8)
	cursor -= arrBytes
	arrBase := cursor
	word := make([]byte, 8)
	binary.LittleEndian.PutUint64(word, 0)
	if e := writeUser(pmm, as, arrBase+uint64(len(argv))*8, word); e != 0 {
		return 0, 0, e
	}
	for i := len(argv) - 1; i >= 0; i-- {
		binary.LittleEndian.PutUint64(word, ptrs[i])
		if e := writeUser(pmm, as, arrBase+uint64(i)*8, word); e != 0 {
			return 0, 0, e
		}
	}
	argvPtr = arrBase

	// Alignment pad + pushed return address (the exit stub's vaddr),
	// so that at function entry (rsp+8) mod 16 == 0, matching the
	// System V AMD64 ABI's call-instruction contract.
	cursor = arrBase
	cursor &^= 0xf
	cursor -= 8 // room for the pushed "return address"
	for (cursor+8)%16 != 0 {
		cursor -= 8
	}
	binary.LittleEndian.PutUint64(word, exitStubVA)
	if e := writeUser(pmm, as, cursor, word); e != 0 {
		return 0, 0, e
	}

	return cursor, argvPtr, 0
}

// BuildFirstEntry is the full §4.5 "first entry to ring 3" sequence:
// lay out the stack, then produce the trap frame the scheduler will
// iretq into.
func BuildFirstEntry(pmm *mem.Physmem_t, as *vm.AddressSpace_t, entry uint64, argv []string) (*trapframe.Frame_t, defs.Err_t) {
	rsp, argvPtr, err := BuildArgvSetup(pmm, as, kconfig.UserStackTop, argv)
	if err != 0 {
		return nil, err
	}
	return trapframe.UserFrame(entry, uint64(len(argv)), argvPtr, rsp), 0
}

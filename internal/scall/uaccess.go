package scall

import (
	"nyx/internal/defs"
	"nyx/internal/kconfig"
	"nyx/internal/mem"
	"nyx/internal/vm"
)

// readUser copies n bytes starting at a user-virtual address into a
// fresh buffer, walking the address space one page at a time since
// the range may cross a page boundary (mirrors internal/ring3's
// writeUser, the same page-at-a-time discipline for the opposite
// direction).
func readUser(pmm *mem.Physmem_t, as *vm.AddressSpace_t, vaddr uint64, n int) ([]byte, defs.Err_t) {
	out := make([]byte, 0, n)
	for len(out) < n {
		pa, ok := as.VirtToPhys(uintptr(vaddr))
		if !ok {
			return nil, -defs.EFAULT
		}
		off := int(vaddr) % mem.PGSIZE
		page := pmm.Bytes(pa)
		want := n - len(out)
		avail := len(page) - off
		if want > avail {
			want = avail
		}
		out = append(out, page[off:off+want]...)
		vaddr += uint64(want)
	}
	return out, 0
}

// writeUser copies data to a user-virtual address, page at a time.
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

// readCString reads a NUL-terminated path/string argument, refusing
// any string with no NUL within its first kconfig.MaxPathAbs bytes
// (§6's path-length limit), so at most MaxPathAbs-1 characters are
// accepted; nothing this small a kernel handles needs more.
func readCString(pmm *mem.Physmem_t, as *vm.AddressSpace_t, vaddr uint64) (string, defs.Err_t) {
	var out []byte
	for len(out) < kconfig.MaxPathAbs {
		b, err := readUser(pmm, as, vaddr+uint64(len(out)), 1)
		if err != 0 {
			return "", err
		}
		if b[0] == 0 {
			return string(out), 0
		}
		out = append(out, b[0])
	}
	return "", -defs.ENAMETOOLONG
}

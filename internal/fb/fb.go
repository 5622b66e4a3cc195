// Package fb models the bootloader-provided linear framebuffer surface
// spec §6 hands off at fixed physical addresses (width u16 @0x5012,
// height u16 @0x5014, bpp u8 @0x5019, base u32 @0x5028) and §4.8/§6
// keep in scope as thin syscall contracts (fb_info, fb_putpixel,
// fb_map, fb_present) even though real display hardware is a
// Non-goal.
//
// Grounded on original_source/kernel/drivers/framebuffer.c: fb_init's
// fixed-address geometry, fb_putpixel's per-bpp pixel packing (16, 24,
// and 32 bpp), and fb_present_buffer's whole-surface blit. The pack's
// biscuit has nothing comparable (it targets a pure text console), so
// this package's shape follows the original directly rather than
// adapting a teacher file.
package fb

import (
	"sync"

	"nyx/internal/defs"
	"nyx/internal/mem"
)

// Device_t is the in-core framebuffer: a fixed width/height/bpp
// geometry backed by physical pages the PMM owns, so fb_map has real
// memory to map and fb_putpixel/fb_present have real memory to write.
type Device_t struct {
	mu            sync.Mutex
	width, height uint16
	bpp           uint8
	base          mem.Pa_t
	npages        int
}

// New allocates the physical pages backing a width x height surface
// at bpp bits per pixel and returns the device. Mirrors fb_init
// computing the surface size from the hand-off geometry instead of
// probing hardware.
func New(pmm *mem.Physmem_t, width, height uint16, bpp uint8) (*Device_t, bool) {
	nbytes := int(width) * int(height) * (int(bpp) / 8)
	npages := mem.PagesFor(nbytes)
	if npages == 0 {
		npages = 1
	}
	base, ok := pmm.AllocPages(npages)
	if !ok {
		return nil, false
	}
	return &Device_t{width: width, height: height, bpp: bpp, base: base, npages: npages}, true
}

// Info reports the surface geometry fb_info copies to user memory.
func (d *Device_t) Info() (width, height uint16, bpp uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height, d.bpp
}

// Base and Pages expose the backing physical range so fb_map can map
// it into a task's address space.
func (d *Device_t) Base() mem.Pa_t { return d.base }
func (d *Device_t) Pages() int     { return d.npages }

// PutPixel writes one pixel the way fb_putpixel does: silently
// ignored if x or y falls outside the surface, packed little-endian
// at the bpp this device was created with.
func (d *Device_t) PutPixel(pmm *mem.Physmem_t, x, y int, rgb uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if x < 0 || y < 0 || x >= int(d.width) || y >= int(d.height) {
		return
	}
	bypp := int(d.bpp) / 8
	off := (y*int(d.width) + x) * bypp
	d.writeAt(pmm, off, packPixel(d.bpp, rgb))
}

// packPixel reproduces fb_putpixel's bpp branch: 16bpp packs down to
// RGB565, 24bpp stores three bytes, 32bpp stores the value directly.
func packPixel(bpp uint8, rgb uint32) []byte {
	r := byte(rgb >> 16)
	g := byte(rgb >> 8)
	b := byte(rgb)
	switch bpp {
	case 16:
		v := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
		return []byte{byte(v), byte(v >> 8)}
	case 24:
		return []byte{b, g, r}
	default: // 32
		return []byte{b, g, r, byte(rgb >> 24)}
	}
}

// writeAt copies data into the surface at byte offset off, walking
// pages one PMM frame at a time like internal/scall's uaccess helpers
// do for user memory.
func (d *Device_t) writeAt(pmm *mem.Physmem_t, off int, data []byte) {
	for len(data) > 0 {
		page := off / mem.PGSIZE
		if page >= d.npages {
			return
		}
		pageOff := off % mem.PGSIZE
		buf := pmm.Bytes(d.base + mem.Pa_t(page*mem.PGSIZE))
		n := copy(buf[pageOff:], data)
		data = data[n:]
		off += n
	}
}

// Present overwrites the surface from src, fb_present_buffer's whole-
// buffer blit (fb_present's contract); a short src only refreshes its
// prefix of the surface.
func (d *Device_t) Present(pmm *mem.Physmem_t, src []byte) defs.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeAt(pmm, 0, src)
	return 0
}

// Size is the surface's total backing byte count, used by fb_present
// to size the user buffer it reads.
func (d *Device_t) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.width) * int(d.height) * (int(d.bpp) / 8)
}

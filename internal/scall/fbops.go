package scall

import (
	"encoding/binary"

	"nyx/internal/defs"
	"nyx/internal/input"
	"nyx/internal/kconfig"
	"nyx/internal/mem"
	"nyx/internal/proc"
)

// sysFBInfo copies the framebuffer's geometry to userVA as a packed
// little-endian struct (u16 width, u16 height, u8 bpp), the ABI row 29
// "fb_info | &user_fb_info | 0 or −1" contract.
func (d *Dispatcher) sysFBInfo(t *proc.Task_t, userVA uint64) int64 {
	if d.FB == nil {
		return -int64(defs.ENOSYS)
	}
	width, height, bpp := d.FB.Info()
	buf := make([]byte, 5)
	binary.LittleEndian.PutUint16(buf[0:2], width)
	binary.LittleEndian.PutUint16(buf[2:4], height)
	buf[4] = bpp
	if err := writeUser(d.Pmm, t.AS, userVA, buf); err != 0 {
		return int64(err)
	}
	return 0
}

// sysFBPutpixel wraps fb.Device_t.PutPixel directly; out-of-bounds
// coordinates are silently ignored the same way the device itself
// ignores them, matching ABI row 30's unconditional "0" return.
func (d *Dispatcher) sysFBPutpixel(x, y int, rgb uint32) int64 {
	if d.FB == nil {
		return -int64(defs.ENOSYS)
	}
	d.FB.PutPixel(d.Pmm, x, y, rgb)
	return 0
}

// sysFBMap maps the framebuffer's backing physical pages into the
// calling task's address space at the fixed kconfig.FramebufferVA and
// returns that address (ABI row 33: "fb_map | — | user vaddr").
// Writes through fb_putpixel/fb_present land on the same physical
// pages, so they are visible at the mapped address too. The leaves are
// kernel-owned (no UserAllocated bit), so tearing the task's address
// space down never frees the device's frames.
func (d *Dispatcher) sysFBMap(t *proc.Task_t) int64 {
	if d.FB == nil {
		return -int64(defs.ENOSYS)
	}
	for i := 0; i < d.FB.Pages(); i++ {
		va := uintptr(kconfig.FramebufferVA + uint64(i*mem.PGSIZE))
		pa := d.FB.Base() + mem.Pa_t(i*mem.PGSIZE)
		if err := t.AS.MapKernelPage(va, pa, mem.PTE_W|mem.PTE_U); err != 0 {
			return int64(err)
		}
	}
	return int64(kconfig.FramebufferVA)
}

// sysFBPresent reads the whole surface's worth of bytes from bufVA and
// blits them onto the framebuffer (ABI row 34: "fb_present | buf |
// 0"), grounded on fb_present_buffer's whole-buffer copy.
func (d *Dispatcher) sysFBPresent(t *proc.Task_t, bufVA uint64) int64 {
	if d.FB == nil {
		return -int64(defs.ENOSYS)
	}
	data, err := readUser(d.Pmm, t.AS, bufVA, d.FB.Size())
	if err != 0 {
		return int64(err)
	}
	return int64(d.FB.Present(d.Pmm, data))
}

// sysInputPoll drains one event off Input and copies it to eventVA,
// ABI row 31's "0 no-event, 1 event, −1 err".
func (d *Dispatcher) sysInputPoll(t *proc.Task_t, eventVA uint64) int64 {
	if d.Input == nil {
		return -int64(defs.ENOSYS)
	}
	ev, ok := d.Input.Poll()
	if !ok {
		return 0
	}
	if err := writeUser(d.Pmm, t.AS, eventVA, encodeEvent(ev)); err != 0 {
		return int64(err)
	}
	return 1
}

func encodeEvent(e input.Event_t) []byte {
	buf := make([]byte, 11)
	buf[0] = e.Kind
	buf[1] = e.Key
	buf[2] = e.Modifiers
	buf[3] = e.Pressed
	buf[4] = e.Scancode
	buf[5] = e.Buttons
	buf[6] = e.Button
	binary.LittleEndian.PutUint16(buf[7:9], uint16(e.X))
	binary.LittleEndian.PutUint16(buf[9:11], uint16(e.Y))
	return buf
}

package fb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nyx/internal/mem"
)

func TestPutPixelPacksEachBpp(t *testing.T) {
	pmm := mem.NewPhysmem(0, 8)

	dev32, ok := New(pmm, 2, 2, 32)
	require.True(t, ok)
	dev32.PutPixel(pmm, 0, 0, 0x00112233)
	require.Equal(t, []byte{0x33, 0x22, 0x11, 0x00}, pmm.Bytes(dev32.Base())[0:4])

	dev24, ok := New(pmm, 2, 2, 24)
	require.True(t, ok)
	dev24.PutPixel(pmm, 0, 0, 0x00112233)
	require.Equal(t, []byte{0x33, 0x22, 0x11}, pmm.Bytes(dev24.Base())[0:3])

	dev16, ok := New(pmm, 2, 2, 16)
	require.True(t, ok)
	dev16.PutPixel(pmm, 0, 0, 0x00ff0000)
	got := pmm.Bytes(dev16.Base())[0:2]
	require.Equal(t, byte(0x00), got[0]&0x1f, "blue channel empty")
	require.NotZero(t, got[1]&0xf8, "red channel set in the high byte")
}

func TestPutPixelOutOfBoundsIsIgnored(t *testing.T) {
	pmm := mem.NewPhysmem(0, 8)
	dev, ok := New(pmm, 2, 2, 32)
	require.True(t, ok)

	dev.PutPixel(pmm, 5, 5, 0xffffffff)
	require.Equal(t, []byte{0, 0, 0, 0}, pmm.Bytes(dev.Base())[0:4])
}

func TestPresentOverwritesSurface(t *testing.T) {
	pmm := mem.NewPhysmem(0, 8)
	dev, ok := New(pmm, 2, 2, 32)
	require.True(t, ok)

	src := make([]byte, dev.Size())
	for i := range src {
		src[i] = byte(i + 1)
	}
	require.Zero(t, dev.Present(pmm, src))
	require.Equal(t, src, pmm.Bytes(dev.Base())[:len(src)])
}

func TestInfoReportsGeometry(t *testing.T) {
	pmm := mem.NewPhysmem(0, 8)
	dev, ok := New(pmm, 64, 48, 32)
	require.True(t, ok)
	w, h, bpp := dev.Info()
	require.Equal(t, uint16(64), w)
	require.Equal(t, uint16(48), h)
	require.Equal(t, uint8(32), bpp)
}

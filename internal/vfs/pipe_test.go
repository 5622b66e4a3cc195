package vfs

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"nyx/internal/kconfig"
)

func TestPipeRoundTrip(t *testing.T) {
	p := NewPipe()
	n, err := p.Write([]byte("hello\n"))
	require.Zero(t, err)
	require.Equal(t, 6, n)
	p.CloseEnd(true)

	buf := make([]byte, 64)
	n, err = p.Read(buf)
	require.Zero(t, err)
	require.Equal(t, "hello\n", string(buf[:n]))

	n, err = p.Read(buf)
	require.Zero(t, err)
	require.Zero(t, n, "EOF once empty and writer closed")
}

func TestPipeFullWriteIsShort(t *testing.T) {
	p := NewPipe()
	big := make([]byte, kconfig.PipeCapacity+100)
	n, err := p.Write(big)
	require.Zero(t, err)
	require.Equal(t, kconfig.PipeCapacity, n)

	n, err = p.Write([]byte("x"))
	require.Zero(t, err)
	require.Zero(t, n, "buffer full: short write, possibly zero")
}

// Pipe total bytes property (§8): for any interleaving of write/read,
// bytes read never exceed bytes accepted, and count stays <= capacity.
func TestPipeTotalBytesProperty(t *testing.T) {
	p := NewPipe()
	rng := rand.New(rand.NewSource(7))
	var accepted, returned int

	for i := 0; i < 2000; i++ {
		if rng.Intn(2) == 0 {
			data := make([]byte, rng.Intn(50))
			n, err := p.Write(data)
			require.Zero(t, err)
			accepted += n
		} else {
			buf := make([]byte, rng.Intn(50))
			n, err := p.Read(buf)
			if err == 0 {
				returned += n
			}
		}
		require.LessOrEqual(t, p.Count(), kconfig.PipeCapacity)
		require.LessOrEqual(t, returned, accepted)
	}
}

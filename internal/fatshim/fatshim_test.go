package fatshim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nyx/internal/defs"
	"nyx/internal/vfs"
)

func TestCreateWriteReadRoundTrip(t *testing.T) {
	b := New()
	n, err := b.Root().Create("hello.txt")
	require.Zero(t, err)

	w := n.(vfs.Writer)
	wn, err := w.Write(0, []byte("hi"))
	require.Zero(t, err)
	require.Equal(t, 2, wn)

	r := n.(vfs.Reader)
	buf := make([]byte, 16)
	rn, err := r.Read(0, buf)
	require.Zero(t, err)
	require.Equal(t, "hi", string(buf[:rn]))
}

func TestMkdirThenFinddir(t *testing.T) {
	b := New()
	_, err := b.Root().Mkdir("sub")
	require.Zero(t, err)

	n, err := b.Root().Finddir("sub")
	require.Zero(t, err)
	st, _ := n.Stat()
	require.Equal(t, uint32(defs.S_IFDIR), st.Mode)

	_, err = b.Root().Mkdir("sub")
	require.Equal(t, -defs.EEXIST, err)
}

func TestUnlinkRemovesImmediately(t *testing.T) {
	b := New()
	b.Root().Create("f")
	require.Zero(t, b.Root().Unlink("f"))

	_, err := b.Root().Finddir("f")
	require.Equal(t, -defs.ENOENT, err)

	require.Equal(t, -defs.ENOENT, b.Root().Unlink("f"), "unlinking twice finds nothing left to remove")
}

func TestUnlinkRejectsDirectory(t *testing.T) {
	b := New()
	b.Root().Mkdir("d")
	require.Equal(t, -defs.EISDIR, b.Root().Unlink("d"))
}

func TestUnlinkRejectsSpecialNames(t *testing.T) {
	b := New()
	require.Equal(t, -defs.EINVAL, b.Root().Unlink("."))
	require.Equal(t, -defs.EINVAL, b.Root().Unlink(".."))
}

func TestRenameOverwritesExisting(t *testing.T) {
	b := New()
	b.Root().Create("a")
	b.Root().Create("b")
	require.Zero(t, b.Root().Rename("a", "b"))

	_, err := b.Root().Finddir("a")
	require.Equal(t, -defs.ENOENT, err)
	_, err = b.Root().Finddir("b")
	require.Zero(t, err)
}

func TestReaddirEnumeratesAll(t *testing.T) {
	b := New()
	b.Root().Create("a")
	b.Root().Create("b")

	names := map[string]bool{}
	for i := 0; ; i++ {
		de, ok, err := b.Root().Readdir(i)
		require.Zero(t, err)
		if !ok {
			break
		}
		names[de.Name] = true
	}
	require.Equal(t, map[string]bool{"a": true, "b": true}, names)
}

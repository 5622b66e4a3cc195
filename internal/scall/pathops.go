package scall

import (
	"nyx/internal/defs"
	"nyx/internal/proc"
	"nyx/internal/vfs"
)

// sysMutatePath covers the shape shared by mkdir/unlink: resolve path
// to (parent dir, leaf name), then apply op.
func (d *Dispatcher) sysMutatePath(t *proc.Task_t, pathVA uint64, op func(vfs.Dir, string) defs.Err_t) int64 {
	path, err := readCString(d.Pmm, t.AS, pathVA)
	if err != 0 {
		return int64(err)
	}
	dir, leaf, derr := vfs.Resolve(d.FS, t.Cwd.Path, path)
	if derr != 0 {
		return int64(derr)
	}
	return int64(op(dir, leaf))
}

func (d *Dispatcher) sysRmdir(t *proc.Task_t, pathVA uint64) int64 {
	path, err := readCString(d.Pmm, t.AS, pathVA)
	if err != 0 {
		return int64(err)
	}
	dir, leaf, derr := vfs.Resolve(d.FS, t.Cwd.Path, path)
	if derr != 0 {
		return int64(derr)
	}
	node, ferr := dir.Finddir(leaf)
	if ferr != 0 {
		return int64(ferr)
	}
	sub, ok := node.(vfs.Enumerable)
	if !ok {
		return -int64(defs.ENOTDIR)
	}
	if _, has, _ := sub.Readdir(0); has {
		return -int64(defs.ENOTEMPTY)
	}
	return int64(dir.Unlink(leaf))
}

func (d *Dispatcher) sysReaddir(t *proc.Task_t, fd int, bufVA uint64, index int) int64 {
	e, err := t.Fds.Get(fd)
	if err != 0 {
		return int64(err)
	}
	dir, ok := e.Node.(vfs.Enumerable)
	if !ok {
		return -int64(defs.ENOTDIR)
	}
	de, has, rerr := dir.Readdir(index)
	if rerr != 0 {
		return int64(rerr)
	}
	if !has {
		return -int64(defs.ENOENT)
	}
	buf := make([]byte, 260)
	copy(buf, de.Name)
	typ := uint32(0)
	if de.Mode == defs.S_IFDIR {
		typ = 1
	}
	putU32(buf[256:], typ)
	if werr := writeUser(d.Pmm, t.AS, bufVA, buf); werr != 0 {
		return int64(werr)
	}
	return 0
}

func (d *Dispatcher) sysChdir(t *proc.Task_t, pathVA uint64) int64 {
	path, err := readCString(d.Pmm, t.AS, pathVA)
	if err != 0 {
		return int64(err)
	}
	return int64(t.Cwd.Chdir(d.FS, path))
}

func (d *Dispatcher) sysGetcwd(t *proc.Task_t, bufVA uint64, size int) int64 {
	p := t.Cwd.Path
	if len(p)+1 > size {
		return -int64(defs.ERANGE)
	}
	buf := append([]byte(p), 0)
	if werr := writeUser(d.Pmm, t.AS, bufVA, buf); werr != 0 {
		return int64(werr)
	}
	return int64(len(p))
}

func (d *Dispatcher) sysRename(t *proc.Task_t, oldVA, newVA uint64) int64 {
	oldPath, err := readCString(d.Pmm, t.AS, oldVA)
	if err != 0 {
		return int64(err)
	}
	newPath, err := readCString(d.Pmm, t.AS, newVA)
	if err != 0 {
		return int64(err)
	}
	oldDir, oldLeaf, derr := vfs.Resolve(d.FS, t.Cwd.Path, oldPath)
	if derr != 0 {
		return int64(derr)
	}
	newDir, newLeaf, derr := vfs.Resolve(d.FS, t.Cwd.Path, newPath)
	if derr != 0 {
		return int64(derr)
	}
	if oldDir != newDir {
		return -int64(defs.EINVAL) // cross-directory rename not modeled
	}
	return int64(oldDir.Rename(oldLeaf, newLeaf))
}

func (d *Dispatcher) sysTruncate(t *proc.Task_t, pathVA uint64, size int64) int64 {
	path, err := readCString(d.Pmm, t.AS, pathVA)
	if err != 0 {
		return int64(err)
	}
	node, rerr := vfs.ResolveNode(d.FS, t.Cwd.Path, path)
	if rerr != 0 {
		return int64(rerr)
	}
	w, ok := node.(vfs.Writer)
	if !ok {
		return -int64(defs.EISDIR)
	}
	return int64(w.Truncate(size))
}

package scall

import (
	"nyx/internal/defs"
	"nyx/internal/proc"
	"nyx/internal/vfs"
)

func (d *Dispatcher) sysRead(t *proc.Task_t, fd int, bufVA, count uint64) int64 {
	e, err := t.Fds.Get(fd)
	if err != 0 {
		return int64(err)
	}
	buf := make([]byte, count)
	var n int
	switch e.Kind {
	case vfs.FDConsole:
		con := t.Fds.Console()
		if con == nil || con.In == nil {
			return -int64(defs.EBADF)
		}
		var rerr error
		n, rerr = con.In.Read(buf)
		if rerr != nil && n == 0 {
			n = 0
		}
	case vfs.FDPipe:
		rn, perr := e.Pipe.Read(buf)
		if perr != 0 {
			return int64(perr)
		}
		n = rn
	case vfs.FDFile:
		r, ok := e.Node.(vfs.Reader)
		if !ok {
			return -int64(defs.EISDIR)
		}
		rn, rerr := r.Read(e.Offset, buf)
		if rerr != 0 {
			return int64(rerr)
		}
		n = rn
		e.Offset += int64(n)
	default:
		return -int64(defs.EBADF)
	}
	if werr := writeUser(d.Pmm, t.AS, bufVA, buf[:n]); werr != 0 {
		return int64(werr)
	}
	return int64(n)
}

func (d *Dispatcher) sysWrite(t *proc.Task_t, fd int, bufVA, count uint64) int64 {
	e, err := t.Fds.Get(fd)
	if err != 0 {
		return int64(err)
	}
	data, rerr := readUser(d.Pmm, t.AS, bufVA, int(count))
	if rerr != 0 {
		return int64(rerr)
	}
	var n int
	switch e.Kind {
	case vfs.FDConsole:
		con := t.Fds.Console()
		if con == nil || con.Out == nil {
			return -int64(defs.EBADF)
		}
		wn, werr := con.Out.Write(data)
		if werr != nil && wn == 0 {
			return -int64(defs.EIO)
		}
		n = wn
	case vfs.FDPipe:
		wn, perr := e.Pipe.Write(data)
		if perr != 0 {
			return int64(perr)
		}
		n = wn
	case vfs.FDFile:
		w, ok := e.Node.(vfs.Writer)
		if !ok {
			return -int64(defs.EISDIR)
		}
		wn, werr := w.Write(e.Offset, data)
		if werr != 0 {
			return int64(werr)
		}
		n = wn
		e.Offset += int64(n)
	default:
		return -int64(defs.EBADF)
	}
	return int64(n)
}

func (d *Dispatcher) sysOpen(t *proc.Task_t, pathVA uint64, flags int) int64 {
	path, err := readCString(d.Pmm, t.AS, pathVA)
	if err != 0 {
		return int64(err)
	}
	node, rerr := vfs.ResolveNode(d.FS, t.Cwd.Path, path)
	if rerr != 0 {
		if rerr == -defs.ENOENT && flags&defs.O_CREAT != 0 {
			dir, name, derr := vfs.Resolve(d.FS, t.Cwd.Path, path)
			if derr != 0 {
				return int64(derr)
			}
			node, rerr = dir.Create(name)
			if rerr != 0 {
				return int64(rerr)
			}
		} else {
			return int64(rerr)
		}
	}
	kind := vfs.FDFile
	if _, ok := node.(vfs.Dir); ok {
		kind = vfs.FDDirectory
	}
	if flags&defs.O_TRUNC != 0 {
		if w, ok := node.(vfs.Writer); ok {
			w.Truncate(0)
		}
	}
	fd, aerr := t.Fds.Alloc(vfs.Fd_t{Kind: kind, Node: node, Flags: flags})
	if aerr != 0 {
		return int64(aerr)
	}
	return int64(fd)
}

func (d *Dispatcher) sysCreate(t *proc.Task_t, pathVA uint64) int64 {
	path, err := readCString(d.Pmm, t.AS, pathVA)
	if err != 0 {
		return int64(err)
	}
	dir, name, derr := vfs.Resolve(d.FS, t.Cwd.Path, path)
	if derr != 0 {
		return int64(derr)
	}
	node, cerr := dir.Create(name)
	if cerr != 0 {
		return int64(cerr)
	}
	fd, aerr := t.Fds.Alloc(vfs.Fd_t{Kind: vfs.FDFile, Node: node})
	if aerr != 0 {
		return int64(aerr)
	}
	return int64(fd)
}

func (d *Dispatcher) sysSeek(t *proc.Task_t, fd int, offset int64, whence int) int64 {
	e, err := t.Fds.Get(fd)
	if err != 0 {
		return int64(err)
	}
	if e.Kind != vfs.FDFile {
		return -int64(defs.ESPIPE)
	}
	var base int64
	switch whence {
	case defs.SEEK_SET:
		base = 0
	case defs.SEEK_CUR:
		base = e.Offset
	case defs.SEEK_END:
		st, serr := e.Node.Stat()
		if serr != 0 {
			return int64(serr)
		}
		base = st.Size
	default:
		return -int64(defs.EINVAL)
	}
	newOff := base + offset
	if newOff < 0 {
		return -int64(defs.EINVAL)
	}
	e.Offset = newOff
	return newOff
}

func (d *Dispatcher) sysStat(t *proc.Task_t, pathVA, statVA uint64) int64 {
	path, err := readCString(d.Pmm, t.AS, pathVA)
	if err != 0 {
		return int64(err)
	}
	node, rerr := vfs.ResolveNode(d.FS, t.Cwd.Path, path)
	if rerr != 0 {
		return int64(rerr)
	}
	return d.writeStat(t, node, statVA)
}

func (d *Dispatcher) sysFstat(t *proc.Task_t, fd int, statVA uint64) int64 {
	e, err := t.Fds.Get(fd)
	if err != 0 {
		return int64(err)
	}
	if e.Kind == vfs.FDConsole {
		return -int64(defs.EBADF)
	}
	return d.writeStat(t, e.Node, statVA)
}

func (d *Dispatcher) writeStat(t *proc.Task_t, node vfs.Node, statVA uint64) int64 {
	st, serr := node.Stat()
	if serr != 0 {
		return int64(serr)
	}
	buf := make([]byte, 16)
	putU32(buf[0:], uint32(st.Size))
	putU32(buf[4:], st.Mode)
	if werr := writeUser(d.Pmm, t.AS, statVA, buf); werr != 0 {
		return int64(werr)
	}
	return 0
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func (d *Dispatcher) sysPipe(t *proc.Task_t, fdsVA uint64) int64 {
	p := vfs.NewPipe()
	rfd, err := t.Fds.Alloc(vfs.Fd_t{Kind: vfs.FDPipe, Pipe: p, PipeWrite: false})
	if err != 0 {
		return int64(err)
	}
	wfd, err := t.Fds.Alloc(vfs.Fd_t{Kind: vfs.FDPipe, Pipe: p, PipeWrite: true})
	if err != 0 {
		t.Fds.Close(rfd)
		return int64(err)
	}
	buf := make([]byte, 8)
	putU32(buf[0:], uint32(rfd))
	putU32(buf[4:], uint32(wfd))
	if werr := writeUser(d.Pmm, t.AS, fdsVA, buf); werr != 0 {
		return int64(werr)
	}
	return 0
}

package vfs

import (
	"io"

	"nyx/internal/defs"
	"nyx/internal/kconfig"
)

// FDKind tags what an Fd_t slot refers to (spec §3 "FD entry").
type FDKind int

const (
	FDUnused FDKind = iota
	FDConsole
	FDFile
	FDDirectory
	FDPipe
)

// Fd_t is one entry of a task's descriptor table.
type Fd_t struct {
	Kind   FDKind
	Node   Node
	Offset int64
	Flags  int

	Pipe      *Pipe_t
	PipeWrite bool // true: this end writes; false: this end reads

	CloseOnExec bool
}

// Console is the package-level sink/source FDs 0/1/2 default to
// (spec §3: "FDs 0/1/2 default to Console"). A real kernel wires this
// to the text console driver; tests and cmd/simkernel wire it to an
// io.Writer/io.Reader pair.
type Console struct {
	In  io.Reader
	Out io.Writer
}

// Table_t is a task's bounded FD table (spec §3).
type Table_t struct {
	fds     [kconfig.MaxFDs]Fd_t
	console *Console
}

// NewTable returns a table with FDs 0/1/2 set to Console.
func NewTable(console *Console) *Table_t {
	t := &Table_t{console: console}
	for i := 0; i < 3; i++ {
		t.fds[i] = Fd_t{Kind: FDConsole}
	}
	return t
}

// Get returns the entry at fd, or an error if it is unused or out of
// range.
func (t *Table_t) Get(fd int) (*Fd_t, defs.Err_t) {
	if fd < 0 || fd >= kconfig.MaxFDs {
		return nil, -defs.EBADF
	}
	if t.fds[fd].Kind == FDUnused {
		return nil, -defs.EBADF
	}
	return &t.fds[fd], 0
}

// Alloc finds the lowest free slot and installs e into it, returning
// the fd number, or ENFILE if the table is full.
func (t *Table_t) Alloc(e Fd_t) (int, defs.Err_t) {
	for i := 0; i < kconfig.MaxFDs; i++ {
		if t.fds[i].Kind == FDUnused {
			t.fds[i] = e
			return i, 0
		}
	}
	return -1, -defs.ENFILE
}

// Close releases fd, decrementing the backing pipe end if applicable.
func (t *Table_t) Close(fd int) defs.Err_t {
	e, err := t.Get(fd)
	if err != 0 {
		return err
	}
	if e.Kind == FDPipe {
		e.Pipe.CloseEnd(e.PipeWrite)
	}
	*e = Fd_t{}
	return 0
}

// Dup2 makes newfd refer to the same open file description as oldfd,
// closing whatever newfd previously held (spec §4.8 dup2).
func (t *Table_t) Dup2(oldfd, newfd int) defs.Err_t {
	o, err := t.Get(oldfd)
	if err != 0 {
		return err
	}
	if newfd < 0 || newfd >= kconfig.MaxFDs {
		return -defs.EBADF
	}
	if oldfd == newfd {
		return 0
	}
	if t.fds[newfd].Kind != FDUnused {
		t.Close(newfd)
	}
	t.fds[newfd] = *o
	if o.Kind == FDPipe {
		o.Pipe.DupEnd(o.PipeWrite)
	}
	return 0
}

// Clone deep-copies the table's entries for fork: every slot's tag and
// offset are duplicated, but File/Directory nodes and Pipe endpoints
// are shared references, matching the §8 FD-table-inheritance
// property ("deep copy of entries, shared underlying pipe/node").
func (t *Table_t) Clone() *Table_t {
	n := &Table_t{console: t.console}
	n.fds = t.fds
	for i := range n.fds {
		if n.fds[i].Kind == FDPipe {
			n.fds[i].Pipe.DupEnd(n.fds[i].PipeWrite)
		}
	}
	return n
}

// Console returns the table's console sink, used by the dispatcher
// when servicing a Console-kind FD.
func (t *Table_t) Console() *Console { return t.console }

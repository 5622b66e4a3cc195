// Package vfs defines the filesystem contract the syscall dispatcher
// consumes: opaque nodes exposing read/write/readdir/finddir/mkdir/
// unlink/truncate (spec §1, §4.8). The on-disk format (FAT32) is
// explicitly out of scope — only this interface and the FD/pipe/cwd
// bookkeeping built on top of it belong to the core.
//
// Grounded on the teacher's fdops.Fdops_i / fd.Fd_t split (fd/fd.go):
// an interface for device-specific operations plus a small tagged
// struct recording permissions, and the §9 design note to model VFS
// nodes as capability interfaces (Readable/Writable/Enumerable) rather
// than one fat interface every node type must fully implement.
package vfs

import "nyx/internal/defs"

// Stat_t mirrors the subset of file metadata the syscall ABI exposes
// (stat/fstat, §6's S_IFREG/S_IFDIR).
type Stat_t struct {
	Mode uint32
	Size int64
}

// DirEnt_t is one entry returned by Readdir.
type DirEnt_t struct {
	Name string
	Mode uint32
}

// Node is the capability every VFS object satisfies at minimum.
type Node interface {
	Stat() (Stat_t, defs.Err_t)
}

// Reader is satisfied by regular files and devices that support read.
type Reader interface {
	Read(off int64, buf []byte) (int, defs.Err_t)
}

// Writer is satisfied by regular files and devices that support write
// and truncation.
type Writer interface {
	Write(off int64, buf []byte) (int, defs.Err_t)
	Truncate(size int64) defs.Err_t
}

// Enumerable is satisfied by directories.
type Enumerable interface {
	Readdir(index int) (DirEnt_t, bool, defs.Err_t)
	Finddir(name string) (Node, defs.Err_t)
}

// Dir composes the operations the dispatcher needs against a
// directory node: lookup/enumerate plus the mutating operations
// mkdir/unlink/create/rename need.
type Dir interface {
	Node
	Enumerable
	Mkdir(name string) (Node, defs.Err_t)
	Create(name string) (Node, defs.Err_t)
	Unlink(name string) defs.Err_t
	Rename(oldName, newName string) defs.Err_t
}

// Backend is the root of a mounted filesystem: the single entry point
// the dispatcher needs to resolve any path (spec §4.8: "Relative paths
// are resolved against the task's cwd before hitting the VFS").
type Backend interface {
	Root() Dir
}

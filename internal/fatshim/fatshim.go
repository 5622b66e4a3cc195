// Package fatshim is the default vfs.Backend: an in-memory directory
// tree standing in for an on-disk filesystem driver (spec §1's
// explicit Non-goal: "FAT32 itself is out of scope"). It exists so the
// syscall dispatcher and its tests have a concrete Backend to run
// against without depending on any real storage medium.
//
// Grounded on the vfs package's own capability-interface design (§9)
// and on original_source/kernel/fs/fat32.c for two specific behaviors
// this shim reproduces or deliberately diverges from:
//   - directory entries are matched case-sensitively and "." / ".."
//     are rejected as create/unlink/mkdir targets, mirroring
//     is_special_name's guard in every mutating fat32_* entry point.
//   - unlink here reclaims a deleted file's storage immediately. The
//     on-disk routine this is modeled on defers that reclamation
//     (leaving the comment "to avoid filesystem corruption seen during
//     testing") because freeing a cluster chain without re-reading the
//     directory entry risked corrupting the entry it had just written.
//     A map-backed node has no cluster chain and no such hazard, so
//     there is nothing to defer: the node is dropped and its bytes
//     become unreachable the moment Unlink returns.
package fatshim

import (
	"sync"

	"nyx/internal/defs"
	"nyx/internal/dirindex"
	"nyx/internal/vfs"
)

func isSpecialName(name string) bool {
	return name == "" || name == "." || name == ".."
}

// Backend_t is a vfs.Backend rooted at a single in-memory directory.
type Backend_t struct {
	root *dirNode
}

// New returns an empty backend with just a root directory.
func New() *Backend_t {
	b := &Backend_t{}
	b.root = newDir()
	return b
}

func (b *Backend_t) Root() vfs.Dir { return b.root }

type fileNode struct {
	mu   sync.Mutex
	data []byte
}

func newFile() *fileNode { return &fileNode{} }

func (f *fileNode) Stat() (vfs.Stat_t, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return vfs.Stat_t{Mode: defs.S_IFREG, Size: int64(len(f.data))}, 0
}

func (f *fileNode) Read(off int64, buf []byte) (int, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if off < 0 || off >= int64(len(f.data)) {
		return 0, 0
	}
	n := copy(buf, f.data[off:])
	return n, 0
}

func (f *fileNode) Write(off int64, buf []byte) (int, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	end := off + int64(len(buf))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[off:end], buf)
	return len(buf), 0
}

func (f *fileNode) Truncate(size int64) defs.Err_t {
	f.mu.Lock()
	defer f.mu.Unlock()
	if size < 0 {
		return -defs.EINVAL
	}
	if int64(len(f.data)) == size {
		return 0
	}
	grown := make([]byte, size)
	copy(grown, f.data)
	f.data = grown
	return 0
}

type entry struct {
	name string
	node vfs.Node
}

type dirNode struct {
	mu      sync.Mutex
	entries []entry
	// idx mirrors entries for name lookups: Finddir (and the
	// existence checks Mkdir/Create/Rename need) go through it instead
	// of scanning entries, the same directory-lookup role
	// biscuit/src/hashtable's Hashtable_t plays for biscuit's own
	// in-memory tables.
	idx *dirindex.Index_t
}

func newDir() *dirNode {
	return &dirNode{idx: dirindex.New(8)}
}

func (d *dirNode) Stat() (vfs.Stat_t, defs.Err_t) {
	return vfs.Stat_t{Mode: defs.S_IFDIR}, 0
}

func (d *dirNode) Readdir(index int) (vfs.DirEnt_t, bool, defs.Err_t) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index >= len(d.entries) {
		return vfs.DirEnt_t{}, false, 0
	}
	e := d.entries[index]
	mode := uint32(defs.S_IFREG)
	if _, ok := e.node.(*dirNode); ok {
		mode = defs.S_IFDIR
	}
	return vfs.DirEnt_t{Name: e.name, Mode: mode}, true, 0
}

// Finddir is the directory-lookup path SYS_OPEN/SYS_STAT/path
// resolution all funnel through (vfs.Resolve); it goes through idx
// rather than scanning entries.
func (d *dirNode) Finddir(name string) (vfs.Node, defs.Err_t) {
	if isSpecialName(name) {
		return nil, -defs.EINVAL
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.idx.Get(name)
	if !ok {
		return nil, -defs.ENOENT
	}
	return v.(vfs.Node), 0
}

func (d *dirNode) Mkdir(name string) (vfs.Node, defs.Err_t) {
	if isSpecialName(name) {
		return nil, -defs.EINVAL
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.idx.Get(name); ok {
		return nil, -defs.EEXIST
	}
	nd := newDir()
	d.entries = append(d.entries, entry{name: name, node: nd})
	d.idx.Set(name, vfs.Node(nd))
	return nd, 0
}

func (d *dirNode) Create(name string) (vfs.Node, defs.Err_t) {
	if isSpecialName(name) {
		return nil, -defs.EINVAL
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.idx.Get(name); ok {
		return nil, -defs.EEXIST
	}
	nf := newFile()
	d.entries = append(d.entries, entry{name: name, node: nf})
	d.idx.Set(name, vfs.Node(nf))
	return nf, 0
}

// Unlink removes name immediately; see the package doc comment for why
// this shim never needs a "mark deleted, reclaim later" two-step.
func (d *dirNode) Unlink(name string) defs.Err_t {
	if isSpecialName(name) {
		return -defs.EINVAL
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.findLocked(name)
	if i < 0 {
		return -defs.ENOENT
	}
	if _, ok := d.entries[i].node.(*dirNode); ok {
		return -defs.EISDIR
	}
	d.entries = append(d.entries[:i], d.entries[i+1:]...)
	d.idx.Del(name)
	return 0
}

func (d *dirNode) Rename(oldName, newName string) defs.Err_t {
	if isSpecialName(oldName) || isSpecialName(newName) {
		return -defs.EINVAL
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.findLocked(oldName)
	if i < 0 {
		return -defs.ENOENT
	}
	if j := d.findLocked(newName); j >= 0 {
		d.entries = append(d.entries[:j], d.entries[j+1:]...)
		d.idx.Del(newName)
		if j < i {
			i--
		}
	}
	d.idx.Del(oldName)
	d.entries[i].name = newName
	d.idx.Set(newName, d.entries[i].node)
	return 0
}

// findLocked locates oldName/newName's position within entries, the
// ordered slice Readdir walks; idx alone cannot answer "which slot",
// only "does this name exist and what node does it map to".
func (d *dirNode) findLocked(name string) int {
	for i, e := range d.entries {
		if e.name == name {
			return i
		}
	}
	return -1
}

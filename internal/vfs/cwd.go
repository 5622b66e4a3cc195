package vfs

import "nyx/internal/defs"

// Cwd_t tracks a task's current working directory, grounded on the
// teacher's fd.Cwd_t (fd/fd.go): a canonical path string a syscall
// resolves relative paths against.
type Cwd_t struct {
	Path string
}

// NewRootCwd returns a Cwd_t rooted at "/".
func NewRootCwd() *Cwd_t {
	return &Cwd_t{Path: "/"}
}

// Chdir updates the cwd after validating that path resolves to a
// directory in backend.
func (c *Cwd_t) Chdir(backend Backend, path string) defs.Err_t {
	n, err := ResolveNode(backend, c.Path, path)
	if err != 0 {
		return err
	}
	if _, ok := n.(Dir); !ok {
		return -defs.ENOTDIR
	}
	full := path
	if !hasPrefixSlash(path) {
		full = Join(c.Path, path)
	}
	c.Path = Canonicalize(full)
	return 0
}

func hasPrefixSlash(p string) bool {
	return len(p) > 0 && p[0] == '/'
}

package vfs

import (
	"strings"

	"nyx/internal/defs"
	"nyx/internal/kconfig"
)

// Resolve walks backend from its root down path's components,
// returning the final directory node and the leaf name (which may not
// yet exist, for create/mkdir callers) or an error. Absolute paths
// ignore cwd; relative paths are joined onto it first (§4.8).
func Resolve(backend Backend, cwd, path string) (dir Dir, leaf string, err defs.Err_t) {
	full := path
	if !strings.HasPrefix(path, "/") {
		full = Join(cwd, path)
	}
	full = Canonicalize(full)
	if len(full) > kconfig.MaxPathAbs {
		return nil, "", -defs.ENAMETOOLONG
	}

	parts := splitClean(full)
	cur := backend.Root()
	if len(parts) == 0 {
		return cur, "", 0
	}
	for _, p := range parts[:len(parts)-1] {
		if len(p) > kconfig.MaxPathComponent {
			return nil, "", -defs.ENAMETOOLONG
		}
		next, e := cur.Finddir(p)
		if e != 0 {
			return nil, "", e
		}
		nd, ok := next.(Dir)
		if !ok {
			return nil, "", -defs.ENOTDIR
		}
		cur = nd
	}
	leaf = parts[len(parts)-1]
	if len(leaf) > kconfig.MaxPathComponent {
		return nil, "", -defs.ENAMETOOLONG
	}
	return cur, leaf, 0
}

// ResolveNode is Resolve followed by a Finddir of the leaf; it returns
// ENOENT if the leaf itself does not exist.
func ResolveNode(backend Backend, cwd, path string) (Node, defs.Err_t) {
	dir, leaf, err := Resolve(backend, cwd, path)
	if err != 0 {
		return nil, err
	}
	if leaf == "" {
		return dir, 0
	}
	return dir.Finddir(leaf)
}

// Join concatenates a relative path onto cwd.
func Join(cwd, p string) string {
	if cwd == "" || cwd == "/" {
		return "/" + p
	}
	return cwd + "/" + p
}

// Canonicalize resolves "." and ".." components and collapses
// duplicate slashes, without touching the filesystem.
func Canonicalize(p string) string {
	parts := splitClean(p)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, part)
		}
	}
	return "/" + strings.Join(out, "/")
}

func splitClean(p string) []string {
	raw := strings.Split(p, "/")
	out := raw[:0]
	for _, s := range raw {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

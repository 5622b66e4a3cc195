package fatshim

import (
	"bytes"
	"encoding/gob"
)

// snapshotEntry is the gob-serializable shape of one directory entry,
// recursively holding either file bytes or a subdirectory's entries.
// There is no ecosystem FAT32 encoder in the pack to ground this on —
// the original on-disk format is explicitly out of scope (package doc
// comment) — so this stays a small stdlib gob blob purpose-built for
// ferrying a populated tree from cmd/mkfsimg to cmd/simkernel.
type snapshotEntry struct {
	Name     string
	IsDir    bool
	Data     []byte
	Children []snapshotEntry
}

// Dump serializes the backend's entire tree to a gob-encoded image.
func (b *Backend_t) Dump() ([]byte, error) {
	root := snapshotDir(b.root)
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func snapshotDir(d *dirNode) snapshotEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := snapshotEntry{IsDir: true}
	for _, e := range d.entries {
		switch n := e.node.(type) {
		case *dirNode:
			child := snapshotDir(n)
			child.Name = e.name
			out.Children = append(out.Children, child)
		case *fileNode:
			n.mu.Lock()
			data := append([]byte(nil), n.data...)
			n.mu.Unlock()
			out.Children = append(out.Children, snapshotEntry{Name: e.name, Data: data})
		}
	}
	return out
}

// Load decodes a gob-encoded image produced by Dump into a fresh
// in-memory backend.
func Load(image []byte) (*Backend_t, error) {
	var root snapshotEntry
	if err := gob.NewDecoder(bytes.NewReader(image)).Decode(&root); err != nil {
		return nil, err
	}
	b := New()
	restoreDir(b.root, root)
	return b, nil
}

func restoreDir(d *dirNode, snap snapshotEntry) {
	for _, child := range snap.Children {
		if child.IsDir {
			nd, _ := d.Mkdir(child.Name)
			restoreDir(nd.(*dirNode), child)
			continue
		}
		nf, _ := d.Create(child.Name)
		nf.(*fileNode).data = append([]byte(nil), child.Data...)
	}
}

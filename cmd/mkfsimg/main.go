// Command mkfsimg builds a filesystem image cmd/simkernel can boot
// from: it walks a host skeleton directory and serializes the result
// into the gob blob internal/fatshim.Load expects.
//
// Grounded on the teacher's mkfs tool (mkfs/mkfs.go), which performs the
// same job against a real on-disk FAT-like filesystem (ufs.MkDisk,
// addfiles walking a skeldir with filepath.WalkDir). The on-disk format
// itself is out of scope here (internal/fatshim's backend is in-memory
// only), so this tool's output is a portable snapshot of that in-memory
// tree rather than a disk image with boot sectors.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"nyx/internal/fatshim"
	"nyx/internal/vfs"
)

func addfiles(b *fatshim.Backend_t, skeldir string) error {
	return filepath.WalkDir(skeldir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("access %q: %w", path, err)
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(path, skeldir), string(filepath.Separator))
		if rel == "" {
			return nil
		}
		rel = filepath.ToSlash(rel)

		dir, name, rerr := vfs.Resolve(b, "/", "/"+rel)
		if rerr != 0 {
			return fmt.Errorf("resolve %q: errno %d", rel, rerr)
		}

		if d.IsDir() {
			if _, merr := dir.Mkdir(name); merr != 0 {
				return fmt.Errorf("mkdir %q: errno %d", rel, merr)
			}
			return nil
		}

		node, cerr := dir.Create(name)
		if cerr != 0 {
			return fmt.Errorf("create %q: errno %d", rel, cerr)
		}
		w := node.(vfs.Writer)
		data, rerr2 := os.ReadFile(path)
		if rerr2 != nil {
			return rerr2
		}
		if _, werr := w.Write(0, data); werr != 0 {
			return fmt.Errorf("write %q: errno %d", rel, werr)
		}
		return nil
	})
}

func run(outputImage, skelDir string) error {
	b := fatshim.New()
	if err := addfiles(b, skelDir); err != nil {
		return err
	}
	image, err := b.Dump()
	if err != nil {
		return err
	}
	return os.WriteFile(outputImage, image, 0o644)
}

func main() {
	cmd := &cobra.Command{
		Use:   "mkfsimg <output-image> <skel-dir>",
		Short: "Build a fatshim filesystem image from a host directory tree",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], args[1])
		},
	}
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

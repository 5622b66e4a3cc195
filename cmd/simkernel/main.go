// Command simkernel is a hosted boot harness: it brings up the core's
// subsystems, loads and execs an init program from a fatshim image, and
// drives the scheduler until init exits. It cannot execute real ring-3
// machine code (there is no ring 3 inside a Go test binary) — its job
// is to exercise the wiring between pmm/vm/proc/vfs/tty/scall exactly
// the way a real bootloader handoff would, and report what happened.
//
// Grounded on the teacher's kernel/chentry.go-adjacent main package
// convention (a small cmd/ binary driving the core directly) and on the
// rest of the pack's use of golang.org/x/sync/errgroup for concurrent
// subsystem bring-up.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"nyx/internal/bootdesc"
	"nyx/internal/defs"
	"nyx/internal/elf"
	"nyx/internal/fatshim"
	"nyx/internal/fb"
	"nyx/internal/input"
	"nyx/internal/klog"
	"nyx/internal/mem"
	"nyx/internal/proc"
	"nyx/internal/scall"
	"nyx/internal/tty"
	"nyx/internal/vfs"
)

// kernel bundles every subsystem bringUp wires together.
type kernel struct {
	pmm   *mem.Physmem_t
	tasks *proc.Table_t
	fs    *fatshim.Backend_t
	tty   *tty.Tty_t
	disp  *scall.Dispatcher
}

// fbWidth/fbHeight/fbBpp stand in for the bootloader hand-off geometry
// (§6: width u16 @0x5012, height u16 @0x5014, bpp u8 @0x5019) that a
// hosted binary has no real bootloader to supply; a modest fixed
// surface is enough to exercise fb_info/fb_putpixel/fb_map/fb_present
// end to end.
const (
	fbWidth  = 320
	fbHeight = 200
	fbBpp    = 32
)

// bringUp brings up pmm, the boot descriptor self-check, and the VFS
// image in parallel (none depend on each other), then wires the
// subsystems that do depend on pmm.
func bringUp(ctx context.Context, npages int, imagePath string) (*kernel, error) {
	var k kernel
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		if !bootdesc.Check() {
			return fmt.Errorf("boot descriptor self-check failed")
		}
		klog.Printf("boot descriptors ok (pit divisor %d)", bootdesc.PITDivisor())
		return nil
	})
	g.Go(func() error {
		k.pmm = mem.NewPhysmem(0, npages)
		klog.Printf("pmm: %d pages (%d free)", k.pmm.Pages(), k.pmm.Free())
		return nil
	})
	g.Go(func() error {
		if imagePath == "" {
			k.fs = fatshim.New()
			return nil
		}
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		k.fs, err = fatshim.Load(data)
		if err != nil {
			return fmt.Errorf("load image: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	k.tasks = proc.NewTable(k.pmm)
	k.tty = tty.New()
	fbdev, ok := fb.New(k.pmm, fbWidth, fbHeight, fbBpp)
	if !ok {
		return nil, fmt.Errorf("allocate framebuffer: out of memory")
	}
	k.disp = &scall.Dispatcher{
		Tasks:     k.tasks,
		Pmm:       k.pmm,
		FS:        k.fs,
		TTY:       k.tty,
		FB:        fbdev,
		Input:     input.New(),
		PhysStart: k.pmm.Base(),
		PhysEnd:   k.pmm.Base() + mem.Pa_t(npages*mem.PGSIZE),
	}
	return &k, nil
}

// boot resolves initPath against the VFS, reads its ELF entry point,
// spawns a fresh task at that entry (proc.Table_t.Spawn builds the
// address space and stack but does not map any segment), then maps
// init's PT_LOAD segments into the now-existing address space.
//
// SYS_EXEC is reserved (§9): a real exec — replacing a running task's
// own image mid-flight — is future work, so init is never loaded
// through the syscall surface, the same way the original's first user
// spawn runs before syscall_handler exists at all.
func (k *kernel) boot(initPath string) (defs.Pid_t, error) {
	node, rerr := vfs.ResolveNode(k.fs, "/", initPath)
	if rerr != 0 {
		return 0, fmt.Errorf("resolve %q: errno %d", initPath, rerr)
	}
	r, ok := node.(vfs.Reader)
	if !ok {
		return 0, fmt.Errorf("%q is not a regular file", initPath)
	}
	st, serr := node.Stat()
	if serr != 0 {
		return 0, fmt.Errorf("stat %q: errno %d", initPath, serr)
	}
	raw := make([]byte, st.Size)
	if _, rderr := r.Read(0, raw); rderr != 0 {
		return 0, fmt.Errorf("read %q: errno %d", initPath, rderr)
	}

	entry, everr := elf.Entry(raw)
	if everr != 0 {
		return 0, fmt.Errorf("parse %q: errno %d", initPath, everr)
	}

	pid, err := k.tasks.Spawn(k.pmm, proc.SpawnParams{
		Entry:     entry,
		PhysStart: k.disp.PhysStart,
		PhysEnd:   k.disp.PhysEnd,
		Argv:      []string{initPath},
		Console:   &vfs.Console{In: os.Stdin, Out: os.Stdout},
	})
	if err != 0 {
		return 0, fmt.Errorf("spawn: errno %d", err)
	}

	task, gerr := k.tasks.Get(pid)
	if gerr != 0 {
		return 0, fmt.Errorf("get: errno %d", gerr)
	}
	if _, lerr := elf.Load(k.pmm, task.AS, raw); lerr != 0 {
		return 0, fmt.Errorf("load %q: errno %d", initPath, lerr)
	}
	return pid, nil
}

// drive ticks the scheduler until pid becomes a zombie or maxTicks is
// exceeded, returning pid's exit code.
func (k *kernel) drive(pid defs.Pid_t, maxTicks int) (int, error) {
	for i := 0; i < maxTicks; i++ {
		k.tasks.Tick()
		k.disp.Tick()
		t, err := k.tasks.Get(pid)
		if err != 0 {
			return 0, fmt.Errorf("task vanished: errno %d", err)
		}
		if t.State == proc.Zombie {
			return t.ExitCode, nil
		}
	}
	return 0, fmt.Errorf("init did not exit within %d ticks", maxTicks)
}

func main() {
	var image, initPath string
	var pages, maxTicks int

	root := &cobra.Command{
		Use:   "simkernel",
		Short: "Hosted boot simulation harness",
	}

	bootCmd := &cobra.Command{
		Use:   "boot",
		Short: "Bring up subsystems and exec init, driving the scheduler until it exits",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := bringUp(cmd.Context(), pages, image)
			if err != nil {
				return err
			}
			pid, err := k.boot(initPath)
			if err != nil {
				return err
			}
			klog.Printf("init running as pid %d", pid)
			code, err := k.drive(pid, maxTicks)
			if err != nil {
				return err
			}
			klog.Printf("init exited with code %d", code)
			return nil
		},
	}
	bootCmd.Flags().StringVar(&image, "image", "", "fatshim filesystem image built by mkfsimg (empty: boot with an empty fs)")
	bootCmd.Flags().StringVar(&initPath, "init", "/init", "path to the init program within the image")
	bootCmd.Flags().IntVar(&pages, "pages", 8192, "physical pages to simulate")
	bootCmd.Flags().IntVar(&maxTicks, "max-ticks", 1000, "scheduler ticks to run before giving up on init")

	fsckCmd := &cobra.Command{
		Use:   "fsck <image>",
		Short: "Load a fatshim image and report whether it decodes cleanly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			b, err := fatshim.Load(data)
			if err != nil {
				return fmt.Errorf("corrupt image: %w", err)
			}
			n := 0
			rootDir := b.Root()
			for i := 0; ; i++ {
				if _, has, _ := rootDir.Readdir(i); !has {
					break
				}
				n++
			}
			klog.Printf("image ok: %d root entries", n)
			return nil
		},
	}

	root.AddCommand(bootCmd, fsckCmd)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

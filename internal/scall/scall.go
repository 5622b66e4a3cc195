// Package scall is the syscall dispatcher (spec §4.8, §6): one switch
// over the ~35-call table, wiring together internal/proc (tasks,
// scheduler, signals), internal/vfs (FD table, pipes, path
// resolution), internal/tty (foreground pgid), and internal/fb and
// internal/input (framebuffer and input-event devices).
//
// Grounded on original_source/kernel/syscall.h's
// `syscall_handler(num, arg1..arg5)` signature: five generic uint64
// arguments and a single uint64 return value, negative-as-unsigned
// encoding an errno exactly like defs.Err_t's own convention. Args
// below is that argument tuple; Handle returns the same single int64
// the original syscall_handler returns.
package scall

import (
	"sync/atomic"

	"nyx/internal/defs"
	"nyx/internal/fb"
	"nyx/internal/input"
	"nyx/internal/mem"
	"nyx/internal/proc"
	"nyx/internal/tty"
	"nyx/internal/vfs"
)

// Args is the five-register argument tuple every syscall receives.
type Args struct {
	A1, A2, A3, A4, A5 uint64
}

// Dispatcher holds every subsystem a syscall might touch.
type Dispatcher struct {
	Tasks *proc.Table_t
	Pmm   *mem.Physmem_t
	FS    vfs.Backend
	TTY   *tty.Tty_t

	// FB and Input back the fb_info/fb_putpixel/fb_map/fb_present and
	// input_poll syscalls (§4.8, §6). Both are nil-safe: a dispatcher
	// built without them answers those calls with -ENOSYS/no-event
	// rather than crash, the same way a hosted harness with no display
	// attached would.
	FB    *fb.Device_t
	Input *input.Queue_t

	// PhysStart/PhysEnd are the identity-mapped kernel physical range
	// every address space reproduces (§4.2); fork needs it to build a
	// fresh AddressSpace_t.
	PhysStart, PhysEnd mem.Pa_t

	ticks uint64
}

// Tick advances the shared timer-tick counter SYS_TICKS reads,
// independent of the scheduler's own round-robin Tick.
func (d *Dispatcher) Tick() { atomic.AddUint64(&d.ticks, 1) }

// Handle dispatches syscall num on behalf of pid, returning a single
// signed result: negative is -errno, zero or positive is success.
func (d *Dispatcher) Handle(pid defs.Pid_t, num int, a Args) int64 {
	t, gerr := d.Tasks.Get(pid)
	if gerr != 0 {
		return int64(gerr)
	}

	switch num {
	case defs.SYS_EXIT:
		d.Tasks.Exit(d.Pmm, pid, int(int32(a.A1)))
		return 0
	case defs.SYS_READ:
		return d.sysRead(&t, int(a.A1), a.A2, a.A3)
	case defs.SYS_WRITE:
		return d.sysWrite(&t, int(a.A1), a.A2, a.A3)
	case defs.SYS_OPEN:
		return d.sysOpen(&t, a.A1, int(a.A2))
	case defs.SYS_CLOSE:
		return int64(t.Fds.Close(int(a.A1)))
	case defs.SYS_STAT:
		return d.sysStat(&t, a.A1, a.A2)
	case defs.SYS_FSTAT:
		return d.sysFstat(&t, int(a.A1), a.A2)
	case defs.SYS_MKDIR:
		return d.sysMutatePath(&t, a.A1, func(dir vfs.Dir, name string) defs.Err_t {
			_, err := dir.Mkdir(name)
			return err
		})
	case defs.SYS_RMDIR:
		return d.sysRmdir(&t, a.A1)
	case defs.SYS_UNLINK:
		return d.sysMutatePath(&t, a.A1, func(dir vfs.Dir, name string) defs.Err_t {
			return dir.Unlink(name)
		})
	case defs.SYS_READDIR:
		return d.sysReaddir(&t, int(a.A1), a.A2, int(a.A3))
	case defs.SYS_CHDIR:
		return d.sysChdir(&t, a.A1)
	case defs.SYS_GETCWD:
		return d.sysGetcwd(&t, a.A1, int(a.A2))
	case defs.SYS_RENAME:
		return d.sysRename(&t, a.A1, a.A2)
	case defs.SYS_TRUNCATE:
		return d.sysTruncate(&t, a.A1, int64(a.A2))
	case defs.SYS_CREATE:
		return d.sysCreate(&t, a.A1)
	case defs.SYS_SEEK:
		return d.sysSeek(&t, int(a.A1), int64(int32(a.A2)), int(a.A3))
	case defs.SYS_YIELD:
		d.Tasks.Yield()
		return 0
	case defs.SYS_PIPE:
		return d.sysPipe(&t, a.A1)
	case defs.SYS_DUP2:
		if err := t.Fds.Dup2(int(a.A1), int(a.A2)); err != 0 {
			return int64(err)
		}
		return int64(a.A2)
	case defs.SYS_FORK:
		return d.sysFork(&t)
	case defs.SYS_EXEC:
		return d.sysExec(&t, a.A1, a.A2)
	case defs.SYS_WAITPID:
		return d.sysWaitpid(pid, defs.Pid_t(int32(a.A1)))
	case defs.SYS_GETPID:
		return int64(pid)
	case defs.SYS_KILL:
		return int64(d.Tasks.Kill(defs.Pid_t(int32(a.A1)), int(a.A2)))
	case defs.SYS_SIGNAL:
		return -int64(defs.ENOSYS) // custom handlers are a Non-goal
	case defs.SYS_SETPGID:
		return d.sysSetpgid(&t, defs.Pid_t(int32(a.A1)), defs.Pid_t(int32(a.A2)))
	case defs.SYS_TCSETPGRP:
		d.TTY.SetForegroundPgid(defs.Pid_t(int32(a.A1)))
		return 0
	case defs.SYS_TCGETPGRP:
		return int64(d.TTY.ForegroundPgid())
	case defs.SYS_TICKS:
		return int64(atomic.LoadUint64(&d.ticks))
	case defs.SYS_FB_INFO:
		return d.sysFBInfo(&t, a.A1)
	case defs.SYS_FB_PUTPIXEL:
		return d.sysFBPutpixel(int(int32(a.A1)), int(int32(a.A2)), uint32(a.A3))
	case defs.SYS_FB_MAP:
		return d.sysFBMap(&t)
	case defs.SYS_FB_PRESENT:
		return d.sysFBPresent(&t, a.A1)
	case defs.SYS_INPUT_POLL:
		return d.sysInputPoll(&t, a.A1)
	default:
		return -int64(defs.ENOSYS)
	}
}

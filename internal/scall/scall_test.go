package scall

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"nyx/internal/defs"
	"nyx/internal/fatshim"
	"nyx/internal/fb"
	"nyx/internal/input"
	"nyx/internal/kconfig"
	"nyx/internal/mem"
	"nyx/internal/proc"
	"nyx/internal/tty"
	"nyx/internal/vfs"
)

// scratchVA is a fixed user-virtual address inside the mapped stack
// region every test task gets, used to stage path/argv strings for
// syscalls that take a user pointer. Tests run sequentially against a
// single task so reusing one address between calls is safe.
const scratchVA = kconfig.UserStackTop - kconfig.UstackSize + 0x100

func newDispatcher(t *testing.T) (*Dispatcher, *proc.Task_t) {
	t.Helper()
	pmm := mem.NewPhysmem(0, 8192)
	tasks := proc.NewTable(pmm)
	fs := fatshim.New()
	d := &Dispatcher{
		Tasks:     tasks,
		Pmm:       pmm,
		FS:        fs,
		TTY:       tty.New(),
		PhysStart: pmm.Base(),
		PhysEnd:   pmm.Base() + mem.Pa_t(64*kconfig.PageSize),
	}
	pid, err := tasks.Spawn(pmm, proc.SpawnParams{
		Entry:     0x1000,
		PhysStart: d.PhysStart,
		PhysEnd:   d.PhysEnd,
		Console:   &vfs.Console{In: &bytes.Buffer{}, Out: &bytes.Buffer{}},
	})
	require.Zero(t, err)
	task, gerr := tasks.Get(pid)
	require.Zero(t, gerr)
	return d, &task
}

// newDispatcherWithFB is newDispatcher plus a small wired framebuffer
// and input queue, for the fb_*/input_poll tests.
func newDispatcherWithFB(t *testing.T) (*Dispatcher, *proc.Task_t) {
	t.Helper()
	d, task := newDispatcher(t)
	fbdev, ok := fb.New(d.Pmm, 4, 4, 32)
	require.True(t, ok)
	d.FB = fbdev
	d.Input = input.New()
	return d, task
}

func putPath(t *testing.T, d *Dispatcher, task *proc.Task_t, va uint64, s string) {
	t.Helper()
	require.Zero(t, writeUser(d.Pmm, task.AS, va, append([]byte(s), 0)))
}

func TestCreateWriteSeekRead(t *testing.T) {
	d, task := newDispatcher(t)
	putPath(t, d, task, scratchVA, "/hello.txt")

	fd := d.Handle(task.Id, defs.SYS_CREATE, Args{A1: scratchVA})
	require.GreaterOrEqual(t, fd, int64(3))

	dataVA := scratchVA + 0x40
	payload := []byte("hi there")
	require.Zero(t, writeUser(d.Pmm, task.AS, dataVA, payload))

	n := d.Handle(task.Id, defs.SYS_WRITE, Args{A1: uint64(fd), A2: dataVA, A3: uint64(len(payload))})
	require.Equal(t, int64(len(payload)), n)

	seek := d.Handle(task.Id, defs.SYS_SEEK, Args{A1: uint64(fd), A2: 0, A3: defs.SEEK_SET})
	require.Equal(t, int64(0), seek)

	readVA := dataVA + 0x40
	n = d.Handle(task.Id, defs.SYS_READ, Args{A1: uint64(fd), A2: readVA, A3: uint64(len(payload))})
	require.Equal(t, int64(len(payload)), n)

	got, err := readUser(d.Pmm, task.AS, readVA, len(payload))
	require.Zero(t, err)
	require.Equal(t, payload, got)
}

func TestOpenWithCreatFlag(t *testing.T) {
	d, task := newDispatcher(t)
	putPath(t, d, task, scratchVA, "/new.txt")

	fd := d.Handle(task.Id, defs.SYS_OPEN, Args{A1: scratchVA, A2: uint64(defs.O_CREAT | defs.O_RDWR)})
	require.GreaterOrEqual(t, fd, int64(3))

	// a second open without O_CREAT must find the same file.
	fd2 := d.Handle(task.Id, defs.SYS_OPEN, Args{A1: scratchVA, A2: uint64(defs.O_RDONLY)})
	require.GreaterOrEqual(t, fd2, int64(3))
	require.NotEqual(t, fd, fd2)
}

func TestMkdirReaddirUnlink(t *testing.T) {
	d, task := newDispatcher(t)
	putPath(t, d, task, scratchVA, "/sub")
	require.Zero(t, d.Handle(task.Id, defs.SYS_MKDIR, Args{A1: scratchVA}))

	putPath(t, d, task, scratchVA, "/sub/a.txt")
	fd := d.Handle(task.Id, defs.SYS_CREATE, Args{A1: scratchVA})
	require.GreaterOrEqual(t, fd, int64(3))
	require.Zero(t, d.Handle(task.Id, defs.SYS_CLOSE, Args{A1: uint64(fd)}))

	putPath(t, d, task, scratchVA, "/sub")
	dfd := d.Handle(task.Id, defs.SYS_OPEN, Args{A1: scratchVA, A2: defs.O_RDONLY})
	require.GreaterOrEqual(t, dfd, int64(3))

	entBufVA := scratchVA + 0x40
	n := d.Handle(task.Id, defs.SYS_READDIR, Args{A1: uint64(dfd), A2: entBufVA, A3: 0})
	require.Zero(t, n)
	buf, err := readUser(d.Pmm, task.AS, entBufVA, 260)
	require.Zero(t, err)
	name := string(bytes.TrimRight(buf, "\x00"))
	require.Equal(t, "a.txt", name)

	n = d.Handle(task.Id, defs.SYS_READDIR, Args{A1: uint64(dfd), A2: entBufVA, A3: 1})
	require.Equal(t, int64(-defs.ENOENT), n)

	putPath(t, d, task, scratchVA, "/sub/a.txt")
	require.Zero(t, d.Handle(task.Id, defs.SYS_UNLINK, Args{A1: scratchVA}))

	putPath(t, d, task, scratchVA, "/sub/a.txt")
	rerr := d.Handle(task.Id, defs.SYS_STAT, Args{A1: scratchVA, A2: entBufVA})
	require.Equal(t, int64(-defs.ENOENT), rerr)
}

func TestChdirAndGetcwd(t *testing.T) {
	d, task := newDispatcher(t)
	putPath(t, d, task, scratchVA, "/sub")
	require.Zero(t, d.Handle(task.Id, defs.SYS_MKDIR, Args{A1: scratchVA}))
	require.Zero(t, d.Handle(task.Id, defs.SYS_CHDIR, Args{A1: scratchVA}))

	cwdVA := scratchVA + 0x40
	n := d.Handle(task.Id, defs.SYS_GETCWD, Args{A1: cwdVA, A2: 64})
	require.Equal(t, int64(len("/sub")), n)
	buf, err := readUser(d.Pmm, task.AS, cwdVA, int(n))
	require.Zero(t, err)
	require.Equal(t, "/sub", string(buf))
}

func TestPipeWriteRead(t *testing.T) {
	d, task := newDispatcher(t)
	fdsVA := scratchVA
	require.Zero(t, d.Handle(task.Id, defs.SYS_PIPE, Args{A1: fdsVA}))
	buf, err := readUser(d.Pmm, task.AS, fdsVA, 8)
	require.Zero(t, err)
	rfd := binary.LittleEndian.Uint32(buf[0:4])
	wfd := binary.LittleEndian.Uint32(buf[4:8])

	msgVA := scratchVA + 0x40
	msg := []byte("ping")
	require.Zero(t, writeUser(d.Pmm, task.AS, msgVA, msg))

	n := d.Handle(task.Id, defs.SYS_WRITE, Args{A1: uint64(wfd), A2: msgVA, A3: uint64(len(msg))})
	require.Equal(t, int64(len(msg)), n)

	readVA := msgVA + 0x40
	n = d.Handle(task.Id, defs.SYS_READ, Args{A1: uint64(rfd), A2: readVA, A3: uint64(len(msg))})
	require.Equal(t, int64(len(msg)), n)
	got, err := readUser(d.Pmm, task.AS, readVA, len(msg))
	require.Zero(t, err)
	require.Equal(t, msg, got)
}

func TestForkWaitpidAndExit(t *testing.T) {
	d, task := newDispatcher(t)

	childPid := d.Handle(task.Id, defs.SYS_FORK, Args{})
	require.Greater(t, childPid, int64(0))

	require.Zero(t, d.Handle(defs.Pid_t(childPid), defs.SYS_EXIT, Args{A1: uint64(7)}))

	code := d.Handle(task.Id, defs.SYS_WAITPID, Args{A1: uint64(uint32(int32(-1)))})
	require.Equal(t, int64(7), code)
}

func TestSetpgidAndTcsetpgrp(t *testing.T) {
	d, task := newDispatcher(t)

	require.Zero(t, d.Handle(task.Id, defs.SYS_SETPGID, Args{A1: 0, A2: uint64(task.Id) + 100}))

	d.Handle(task.Id, defs.SYS_TCSETPGRP, Args{A1: uint64(task.Id) + 100})
	got := d.Handle(task.Id, defs.SYS_TCGETPGRP, Args{})
	require.Equal(t, int64(task.Id)+100, got)
}

func TestKillDeliversSigtermAsExit(t *testing.T) {
	d, task := newDispatcher(t)
	require.Zero(t, d.Handle(task.Id, defs.SYS_KILL, Args{A1: uint64(task.Id), A2: uint64(defs.SIGTERM)}))
	died := d.Tasks.DeliverSignals(d.Pmm, task.Id)
	require.True(t, died)
}

func TestKillSigkillIsSynchronous(t *testing.T) {
	d, task := newDispatcher(t)
	require.Zero(t, d.Handle(task.Id, defs.SYS_KILL, Args{A1: uint64(task.Id), A2: uint64(defs.SIGKILL)}))

	got, err := d.Tasks.Get(task.Id)
	require.Zero(t, err)
	require.Equal(t, proc.Zombie, got.State)
	require.Equal(t, -1, got.ExitCode)

	// no pending-signal pass is needed: the task is already dead.
	died := d.Tasks.DeliverSignals(d.Pmm, task.Id)
	require.False(t, died)
}

func TestExecIsReserved(t *testing.T) {
	d, task := newDispatcher(t)
	putPath(t, d, task, scratchVA, "/whatever")
	got := d.Handle(task.Id, defs.SYS_EXEC, Args{A1: scratchVA})
	require.Equal(t, int64(-defs.ENOSYS), got)
}

func TestUnknownSyscallIsENOSYS(t *testing.T) {
	d, task := newDispatcher(t)
	got := d.Handle(task.Id, 9999, Args{})
	require.Equal(t, int64(-defs.ENOSYS), got)
}

func TestFBInfoReportsGeometry(t *testing.T) {
	d, task := newDispatcherWithFB(t)
	require.Zero(t, d.Handle(task.Id, defs.SYS_FB_INFO, Args{A1: scratchVA}))

	buf, err := readUser(d.Pmm, task.AS, scratchVA, 5)
	require.Zero(t, err)
	require.Equal(t, uint16(4), binary.LittleEndian.Uint16(buf[0:2]))
	require.Equal(t, uint16(4), binary.LittleEndian.Uint16(buf[2:4]))
	require.Equal(t, uint8(32), buf[4])
}

func TestFBPutpixelAndPresentVisibleThroughMap(t *testing.T) {
	d, task := newDispatcherWithFB(t)

	require.Zero(t, d.Handle(task.Id, defs.SYS_FB_PUTPIXEL, Args{A1: 1, A2: 1, A3: 0x00ff0000}))

	va := d.Handle(task.Id, defs.SYS_FB_MAP, Args{})
	require.Equal(t, int64(kconfig.FramebufferVA), va)

	const off = (1*4 + 1) * 4 // row 1, col 1, 4 bytes/px
	pa, ok := task.AS.VirtToPhys(uintptr(va) + off)
	require.True(t, ok)
	px := d.Pmm.Bytes(pa)[off:] // VirtToPhys returns the frame base
	require.Equal(t, byte(0), px[0])   // blue
	require.Equal(t, byte(0), px[1])   // green
	require.Equal(t, byte(0xff), px[2]) // red

	payload := make([]byte, d.FB.Size())
	payload[0] = 0xAB
	require.Zero(t, writeUser(d.Pmm, task.AS, scratchVA, payload))
	require.Zero(t, d.Handle(task.Id, defs.SYS_FB_PRESENT, Args{A1: scratchVA}))

	pa0, ok := task.AS.VirtToPhys(uintptr(va))
	require.True(t, ok)
	require.Equal(t, byte(0xAB), d.Pmm.Bytes(pa0)[0])
}

func TestInputPollDrainsQueue(t *testing.T) {
	d, task := newDispatcherWithFB(t)

	require.Equal(t, int64(0), d.Handle(task.Id, defs.SYS_INPUT_POLL, Args{A1: scratchVA}))

	d.Input.Push(input.Event_t{Kind: input.KindKey, Key: 'a', Pressed: 1})
	require.Equal(t, int64(1), d.Handle(task.Id, defs.SYS_INPUT_POLL, Args{A1: scratchVA}))

	buf, err := readUser(d.Pmm, task.AS, scratchVA, 11)
	require.Zero(t, err)
	require.Equal(t, input.KindKey, buf[0])
	require.Equal(t, uint8('a'), buf[1])
	require.Equal(t, uint8(1), buf[3])

	require.Equal(t, int64(0), d.Handle(task.Id, defs.SYS_INPUT_POLL, Args{A1: scratchVA}))
}

func TestFBSyscallsWithoutDeviceAreENOSYS(t *testing.T) {
	d, task := newDispatcher(t)
	require.Equal(t, int64(-defs.ENOSYS), d.Handle(task.Id, defs.SYS_FB_INFO, Args{A1: scratchVA}))
	require.Equal(t, int64(-defs.ENOSYS), d.Handle(task.Id, defs.SYS_INPUT_POLL, Args{A1: scratchVA}))
}

func TestTicksAdvance(t *testing.T) {
	d, task := newDispatcher(t)
	before := d.Handle(task.Id, defs.SYS_TICKS, Args{})
	d.Tick()
	d.Tick()
	after := d.Handle(task.Id, defs.SYS_TICKS, Args{})
	require.Equal(t, before+2, after)
}

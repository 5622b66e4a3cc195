package proc

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nyx/internal/defs"
	"nyx/internal/kconfig"
	"nyx/internal/mem"
)

func newPmm(t *testing.T) *mem.Physmem_t {
	t.Helper()
	return mem.NewPhysmem(0, 4096)
}

func TestCreateKernelAndBootstrap(t *testing.T) {
	tb := NewTable(newPmm(t))
	boot := tb.BootstrapCurrent(0x1000)
	require.Equal(t, defs.Pid_t(1), boot)
	require.Equal(t, boot, tb.Current())

	other, err := tb.CreateKernel(0x2000)
	require.Zero(t, err)
	require.NotEqual(t, boot, other)
}

func TestTickRoundRobin(t *testing.T) {
	tb := NewTable(newPmm(t))
	boot := tb.BootstrapCurrent(0) // not in ring until its first preemption
	a, _ := tb.CreateKernel(1)
	b, _ := tb.CreateKernel(2)

	all := []defs.Pid_t{boot, a, b}
	first := tb.Tick()
	second := tb.Tick()
	third := tb.Tick()
	require.NotEqual(t, first, second)
	require.NotEqual(t, second, third)
	require.NotEqual(t, first, third)
	require.ElementsMatch(t, all, []defs.Pid_t{first, second, third}, "every runnable task gets exactly one slice per lap")

	// round-robin cycles back after a full lap of the 3-task ring.
	fourth := tb.Tick()
	require.Equal(t, first, fourth)
}

func TestTickFallsBackToIdle(t *testing.T) {
	pmm := newPmm(t)
	tb := NewTable(pmm)
	idle := tb.CreateIdle(0xdead)

	got := tb.Tick()
	require.Equal(t, idle, got)
	got = tb.Tick()
	require.Equal(t, idle, got, "idle keeps being selected while nothing else is runnable")

	real, err := tb.Spawn(pmm, SpawnParams{
		Entry: kconfig.UserBase, PhysStart: pmm.Base(), PhysEnd: pmm.Base() + mem.Pa_t(64*kconfig.PageSize),
		Argv: []string{"r"},
	})
	require.Zero(t, err)
	got = tb.Tick()
	require.Equal(t, real, got, "a newly runnable task preempts idle")
}

func TestSpawnBuildsRunnableUserTask(t *testing.T) {
	pmm := newPmm(t)
	tb := NewTable(pmm)

	pid, err := tb.Spawn(pmm, SpawnParams{
		Entry:     kconfig.UserBase,
		PhysStart: pmm.Base(),
		PhysEnd:   pmm.Base() + mem.Pa_t(64*kconfig.PageSize),
		Argv:      []string{"init", "-x"},
	})
	require.Zero(t, err)
	require.NotZero(t, pid)

	task, err := tb.Get(pid)
	require.Zero(t, err)
	require.Equal(t, Runnable, task.State)
	require.True(t, task.IsUser)
	require.NotNil(t, task.AS)
	require.NotNil(t, task.Frame)
	require.True(t, task.Frame.HasUserPart)
	require.Equal(t, uint64(2), task.Frame.RDI, "argc == len(argv)")
}

func TestForkClonesAddressSpaceAndFds(t *testing.T) {
	pmm := newPmm(t)
	tb := NewTable(pmm)

	physStart := pmm.Base()
	physEnd := pmm.Base() + mem.Pa_t(128*kconfig.PageSize)

	parent, err := tb.Spawn(pmm, SpawnParams{
		Entry: kconfig.UserBase, PhysStart: physStart, PhysEnd: physEnd,
		Argv: []string{"a"},
	})
	require.Zero(t, err)

	ptask, _ := tb.Get(parent)
	pa := ptask.UserStackTop - kconfig.PageSize
	paddr, ok := ptask.AS.VirtToPhys(uintptr(pa))
	require.True(t, ok)
	copy(pmm.Bytes(paddr), []byte("marker"))

	child, err := tb.ForkWithKernelRange(pmm, parent, ptask.Frame.UserContext(), physStart, physEnd)
	require.Zero(t, err)
	require.NotEqual(t, parent, child)

	ctask, err := tb.Get(child)
	require.Zero(t, err)
	require.Equal(t, parent, ctask.ParentId)
	require.Equal(t, ptask.Pgid, ctask.Pgid)

	cpaddr, ok := ctask.AS.VirtToPhys(uintptr(pa))
	require.True(t, ok)
	require.NotEqual(t, paddr, cpaddr, "fork deep-copies, never shares, a user frame")
	require.Equal(t, "marker", string(pmm.Bytes(cpaddr)[:6]))

	require.NotSame(t, ptask.Fds, ctask.Fds, "fork gives the child its own FD table")
	pfd, perr := ptask.Fds.Get(1)
	require.Zero(t, perr)
	cfd, cerr := ctask.Fds.Get(1)
	require.Zero(t, cerr)
	require.NotSame(t, pfd, cfd)
	require.Equal(t, pfd.Kind, cfd.Kind, "the child's fd 1 refers to what the parent's does")
}

func TestExitThenWaitpidReaps(t *testing.T) {
	pmm := newPmm(t)
	tb := NewTable(pmm)
	parent := tb.BootstrapCurrent(0)

	child, err := tb.Spawn(pmm, SpawnParams{
		Entry: kconfig.UserBase, PhysStart: pmm.Base(), PhysEnd: pmm.Base() + mem.Pa_t(64*kconfig.PageSize),
		Argv: []string{"c"}, ParentId: parent,
	})
	require.Zero(t, err)

	require.Zero(t, tb.Exit(pmm, child, 7))

	gotPid, code, werr := tb.Waitpid(parent, -1)
	require.Zero(t, werr)
	require.Equal(t, child, gotPid)
	require.Equal(t, 7, code)

	_, err = tb.Get(child)
	require.Equal(t, -defs.ESRCH, err, "reaped task's slot returns to Unused")
}

func TestWaitpidBlocksUntilExit(t *testing.T) {
	pmm := newPmm(t)
	tb := NewTable(pmm)
	parent := tb.BootstrapCurrent(0)
	child, err := tb.Spawn(pmm, SpawnParams{
		Entry: kconfig.UserBase, PhysStart: pmm.Base(), PhysEnd: pmm.Base() + mem.Pa_t(64*kconfig.PageSize),
		Argv: []string{"c"}, ParentId: parent,
	})
	require.Zero(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	var gotPid defs.Pid_t
	go func() {
		defer wg.Done()
		gotPid, _, _ = tb.Waitpid(parent, child)
	}()

	time.Sleep(10 * time.Millisecond) // let the waiter actually block
	require.Zero(t, tb.Exit(pmm, child, 0))
	wg.Wait()
	require.Equal(t, child, gotPid)
}

func TestWaitpidNoSuchChildIsECHILD(t *testing.T) {
	tb := NewTable(newPmm(t))
	parent := tb.BootstrapCurrent(0)
	_, _, err := tb.Waitpid(parent, -1)
	require.Equal(t, -defs.ECHILD, err)
}

func TestDeliverSignalsSIGTERMKillsTask(t *testing.T) {
	pmm := newPmm(t)
	tb := NewTable(pmm)
	pid := tb.BootstrapCurrent(0)
	other, _ := tb.CreateKernel(1)

	require.Zero(t, tb.Kill(other, defs.SIGTERM))
	died := tb.DeliverSignals(pmm, other)
	require.True(t, died)

	task, err := tb.Get(other)
	require.Zero(t, err)
	require.Equal(t, Zombie, task.State)
	require.Equal(t, -1, task.ExitCode)
	_ = pid
}

func TestDeliverSignalsBlockedIsSkipped(t *testing.T) {
	pmm := newPmm(t)
	tb := NewTable(pmm)
	pid, _ := tb.CreateKernel(0)

	var mask [defs.NSIG/64 + 1]uint64
	w, b := defs.SIGTERM/64, defs.SIGTERM%64
	mask[w] |= 1 << uint(b)
	require.Zero(t, tb.SetBlocked(pid, mask))
	require.Zero(t, tb.Kill(pid, defs.SIGTERM))

	died := tb.DeliverSignals(pmm, pid)
	require.False(t, died)
	task, _ := tb.Get(pid)
	require.Equal(t, Runnable, task.State)
}

func TestTickCreditsUsageAndWaitpidMergesIt(t *testing.T) {
	pmm := newPmm(t)
	tb := NewTable(pmm)
	parent := tb.BootstrapCurrent(0)
	child, err := tb.Spawn(pmm, SpawnParams{
		Entry: kconfig.UserBase, PhysStart: pmm.Base(), PhysEnd: pmm.Base() + mem.Pa_t(64*kconfig.PageSize),
		Argv: []string{"c"}, ParentId: parent,
	})
	require.Zero(t, err)

	tb.Tick() // credits whichever task was current before this tick
	tb.Tick()

	cu, uerr := tb.Usage(child)
	require.Zero(t, uerr)
	require.Positive(t, cu.Userns, "a user task accrues Userns, not Sysns")
	require.Zero(t, cu.Sysns)

	require.Zero(t, tb.Exit(pmm, child, 3))
	_, _, werr := tb.Waitpid(parent, child)
	require.Zero(t, werr)

	pu, perr := tb.Usage(parent)
	require.Zero(t, perr)
	require.GreaterOrEqual(t, pu.Userns, cu.Userns, "the reaped child's usage is folded into its parent")
}

func TestKillSigkillIsImmediatelySynchronous(t *testing.T) {
	pmm := newPmm(t)
	tb := NewTable(pmm)
	tb.BootstrapCurrent(0)
	other, _ := tb.CreateKernel(1)

	require.Zero(t, tb.Kill(other, defs.SIGKILL))

	task, err := tb.Get(other)
	require.Zero(t, err)
	require.Equal(t, Zombie, task.State)
	require.Equal(t, -1, task.ExitCode)

	// Kill already zombified it: no pending bit was ever set, so a
	// delivery pass finds nothing to do.
	require.False(t, tb.DeliverSignals(pmm, other))
}

func TestKillPgidSigkillIsImmediatelySynchronous(t *testing.T) {
	pmm := newPmm(t)
	tb := NewTable(pmm)
	physStart := pmm.Base()
	physEnd := pmm.Base() + mem.Pa_t(128*kconfig.PageSize)

	parent, _ := tb.Spawn(pmm, SpawnParams{Entry: kconfig.UserBase, PhysStart: physStart, PhysEnd: physEnd, Argv: []string{"p"}})
	ptask, _ := tb.Get(parent)
	child, _ := tb.ForkWithKernelRange(pmm, parent, ptask.Frame.UserContext(), physStart, physEnd)

	require.Zero(t, tb.KillPgid(ptask.Pgid, defs.SIGKILL))

	pt, _ := tb.Get(parent)
	ct, _ := tb.Get(child)
	require.Equal(t, Zombie, pt.State)
	require.Equal(t, Zombie, ct.State)
}

func TestKillPgidBroadcasts(t *testing.T) {
	pmm := newPmm(t)
	tb := NewTable(pmm)
	physStart := pmm.Base()
	physEnd := pmm.Base() + mem.Pa_t(128*kconfig.PageSize)

	parent, _ := tb.Spawn(pmm, SpawnParams{Entry: kconfig.UserBase, PhysStart: physStart, PhysEnd: physEnd, Argv: []string{"p"}})
	ptask, _ := tb.Get(parent)
	child, _ := tb.ForkWithKernelRange(pmm, parent, ptask.Frame.UserContext(), physStart, physEnd)

	require.Zero(t, tb.KillPgid(ptask.Pgid, defs.SIGTERM))
	require.True(t, tb.DeliverSignals(pmm, parent))
	require.True(t, tb.DeliverSignals(pmm, child))
}

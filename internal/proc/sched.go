package proc

import (
	"time"

	"nyx/internal/acct"
	"nyx/internal/defs"
	"nyx/internal/kconfig"
	"nyx/internal/mem"
	"nyx/internal/ring3"
	"nyx/internal/trapframe"
	"nyx/internal/vfs"
	"nyx/internal/vm"
)

// quantum is the wall-clock time one scheduler tick represents,
// derived from the programmed timer-tick rate (§6, kconfig.PITFrequencyHz)
// the same way the original's PIT divisor fixes the slice length.
const quantum = time.Second / kconfig.PITFrequencyHz

// CreateKernel installs a kernel task (sched.c's
// sched_create_kernel): no user address space, a kernel-selector trap
// frame pointed at entry, state Runnable, queued on the ready ring.
func (tb *Table_t) CreateKernel(entry uint64) (defs.Pid_t, defs.Err_t) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	t, i := tb.allocSlot()
	if t == nil {
		return 0, -defs.EAGAIN
	}
	t.Frame = trapframe.KernelFrame(entry)
	t.Entry = entry
	t.Pgid = t.Id
	tb.enqueue(i)
	return t.Id, 0
}

// BootstrapCurrent installs the distinguished "current" task sched.c's
// sched_bootstrap_current creates for the very first CPU context
// before any timer tick has fired: Runnable, current, but not queued
// onto the ready ring (it is already running).
func (tb *Table_t) BootstrapCurrent(entry uint64) defs.Pid_t {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	t, i := tb.allocSlot()
	t.Frame = trapframe.KernelFrame(entry)
	t.Entry = entry
	t.Pgid = t.Id
	tb.current = i
	return t.Id
}

// CreateIdle installs the idle task Tick falls back to when the ready
// ring is empty (§4.3: "a scheduler never has nothing to run").
func (tb *Table_t) CreateIdle(entry uint64) defs.Pid_t {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	t, i := tb.allocSlot()
	t.Frame = trapframe.KernelFrame(entry)
	t.Entry = entry
	t.IsIdle = true
	t.Pgid = t.Id
	tb.dequeue(i) // idle never sits in the ready ring proper
	return t.Id
}

// SpawnParams bundles the inputs a first user spawn needs: the ELF
// entry point already resolved by the internal/elf loader, the
// identity-mapped kernel physical range every address space reproduces
// (§4.2), argv, and the parent's pid (0 for the first userland task).
type SpawnParams struct {
	Entry               uint64
	PhysStart, PhysEnd  mem.Pa_t
	Argv                []string
	ParentId            defs.Pid_t
	Console             *vfs.Console
}

// Spawn builds a brand-new user task: fresh address space reproducing
// the kernel identity map, a mapped user stack, the first-entry trap
// frame (§4.5), and a fresh FD table/cwd. It does not load any ELF
// segments itself — that is internal/elf's job. The task is linked into
// the ready ring before Spawn returns, so callers map PT_LOAD segments
// into its address space after it is already runnable.
func (tb *Table_t) Spawn(pmm *mem.Physmem_t, p SpawnParams) (defs.Pid_t, defs.Err_t) {
	as, err := vm.NewUserSpace(pmm, p.PhysStart, p.PhysEnd)
	if err != nil {
		return 0, -defs.ENOMEM
	}

	for va := uint64(kconfig.UserStackTop - kconfig.UstackSize); va < kconfig.UserStackTop; va += kconfig.PageSize {
		pa, ok := pmm.AllocPage()
		if !ok {
			vm.FreeUserSpace(pmm, as.Root)
			return 0, -defs.ENOMEM
		}
		if e := as.MapUserPage(uintptr(va), pa, mem.PTE_W|mem.PTE_U); e != 0 {
			vm.FreeUserSpace(pmm, as.Root)
			return 0, e
		}
	}

	frame, e := ring3.BuildFirstEntry(pmm, as, p.Entry, p.Argv)
	if e != 0 {
		vm.FreeUserSpace(pmm, as.Root)
		return 0, e
	}

	kpages := make([]mem.Pa_t, 0, kconfig.KstackPages)
	kstack, ok := pmm.AllocPages(kconfig.KstackPages)
	if !ok {
		vm.FreeUserSpace(pmm, as.Root)
		return 0, -defs.ENOMEM
	}
	for i := 0; i < kconfig.KstackPages; i++ {
		kpages = append(kpages, kstack+mem.Pa_t(i*kconfig.PageSize))
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()
	t, i := tb.allocSlot()
	if t == nil {
		pmm.FreePages(kstack, kconfig.KstackPages)
		vm.FreeUserSpace(pmm, as.Root)
		return 0, -defs.EAGAIN
	}
	t.AS = as
	t.IsUser = true
	t.Entry = p.Entry
	t.UserStackTop = kconfig.UserStackTop
	t.Frame = frame
	t.KstackPages = kpages
	t.KstackTop = uint64(kstack) + kconfig.KstackSize
	t.ParentId = p.ParentId
	t.Pgid = t.Id
	if p.ParentId != 0 {
		if pi := tb.slotOf(p.ParentId); pi >= 0 {
			t.Pgid = tb.tasks[pi].Pgid
		}
	}
	t.Fds = vfs.NewTable(p.Console)
	t.Cwd = vfs.NewRootCwd()
	tb.enqueue(i)
	return t.Id, 0
}

// ForkWithKernelRange is fork()'s entry point a syscall dispatcher
// uses: it knows the identity-mapped kernel physical range up front
// (it is a boot-time constant, kconfig-derived) and can build a
// correct child address space before cloning user pages into it.
func (tb *Table_t) ForkWithKernelRange(pmm *mem.Physmem_t, parent defs.Pid_t, ctx trapframe.UserContext_t, physStart, physEnd mem.Pa_t) (defs.Pid_t, defs.Err_t) {
	tb.mu.Lock()
	pi := tb.slotOf(parent)
	if pi < 0 {
		tb.mu.Unlock()
		return 0, -defs.ESRCH
	}
	p := &tb.tasks[pi]
	parentAS := p.AS
	parentFds := p.Fds
	parentCwd := p.Cwd
	pgid := p.Pgid
	tb.mu.Unlock()

	childAS, err := vm.NewUserSpace(pmm, physStart, physEnd)
	if err != nil {
		return 0, -defs.ENOMEM
	}
	if e := vm.CloneUserPages(pmm, childAS, parentAS); e != 0 {
		vm.FreeUserSpace(pmm, childAS.Root)
		return 0, e
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()
	t, i := tb.allocSlot()
	if t == nil {
		vm.FreeUserSpace(pmm, childAS.Root)
		return 0, -defs.EAGAIN
	}
	t.AS = childAS
	t.IsUser = true
	t.ParentId = parent
	t.Pgid = pgid
	t.Frame = trapframe.ChildFrame(ctx)
	t.Fds = parentFds.Clone()
	cwdCopy := *parentCwd
	t.Cwd = &cwdCopy
	kstack, ok := pmm.AllocPages(kconfig.KstackPages)
	if !ok {
		vm.FreeUserSpace(pmm, childAS.Root)
		t.State = Unused
		return 0, -defs.ENOMEM
	}
	for k := 0; k < kconfig.KstackPages; k++ {
		t.KstackPages = append(t.KstackPages, kstack+mem.Pa_t(k*kconfig.PageSize))
	}
	t.KstackTop = uint64(kstack) + kconfig.KstackSize
	tb.enqueue(i)
	return t.Id, 0
}

// Tick implements round-robin selection (§4.3): if the current task is
// still Runnable it is re-enqueued at the tail of the ready ring; the
// head of the ring becomes current. Falls back to the idle task if the
// ring is empty.
func (tb *Table_t) Tick() defs.Pid_t {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.reschedule()
}

// Yield is Tick's voluntary-preemption twin: identical selection
// logic, invoked by a syscall that chooses to give up its slice early.
func (tb *Table_t) Yield() defs.Pid_t {
	return tb.Tick()
}

func (tb *Table_t) reschedule() defs.Pid_t {
	// Credit the outgoing task for the slice that just elapsed (accnt's
	// Utadd/Systadd, here a single quantum rather than precise
	// wall-clock deltas since this core has no real mode-switch
	// timestamps to measure against).
	if tb.current >= 0 && !tb.tasks[tb.current].IsIdle {
		cur := &tb.tasks[tb.current]
		cur.Usage.Add(quantum, cur.IsUser)
	}
	if tb.current >= 0 && tb.tasks[tb.current].State == Runnable && !tb.tasks[tb.current].IsIdle {
		tb.enqueue(tb.current)
	}
	if tb.runHead == -1 {
		tb.current = tb.idleSlot()
		if tb.current == -1 {
			return 0
		}
		return tb.tasks[tb.current].Id
	}
	next := tb.runHead
	tb.dequeue(next)
	tb.current = next
	return tb.tasks[next].Id
}

func (tb *Table_t) idleSlot() int {
	for i := range tb.tasks {
		if tb.tasks[i].IsIdle {
			return i
		}
	}
	return -1
}

// Usage returns id's accumulated CPU-time accounting (accnt's Fetch):
// a zombie child's usage is already folded into its parent as of
// Waitpid, so a parent's own Usage reflects its descendants too.
func (tb *Table_t) Usage(id defs.Pid_t) (acct.Usage_t, defs.Err_t) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	i := tb.slotOf(id)
	if i < 0 {
		return acct.Usage_t{}, -defs.ESRCH
	}
	return tb.tasks[i].Usage, 0
}

// Current returns the pid of the task currently selected to run.
func (tb *Table_t) Current() defs.Pid_t {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.current < 0 {
		return 0
	}
	return tb.tasks[tb.current].Id
}

// Get returns a copy of task id's public fields plus its state, or
// ESRCH if no such task exists. Callers needing to mutate a task go
// through a dedicated method instead, keeping every write under tb.mu.
func (tb *Table_t) Get(id defs.Pid_t) (Task_t, defs.Err_t) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	i := tb.slotOf(id)
	if i < 0 {
		return Task_t{}, -defs.ESRCH
	}
	return tb.tasks[i], 0
}

// Exit transitions id to Zombie, records its exit code, frees its
// address space and kernel stack, removes it from the ready ring, and
// wakes any waiter blocked in Waitpid (sched.c's sched_wake_waiters).
// The task's slot is not reclaimed until a parent reaps it (Waitpid),
// since its ExitCode must remain readable.
func (tb *Table_t) Exit(pmm *mem.Physmem_t, id defs.Pid_t, code int) defs.Err_t {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	i := tb.slotOf(id)
	if i < 0 {
		return -defs.ESRCH
	}
	t := &tb.tasks[i]
	if t.State == Zombie {
		return 0
	}
	tb.dequeue(i)
	if t.AS != nil {
		vm.FreeUserSpace(pmm, t.AS.Root)
		t.AS = nil
	}
	if len(t.KstackPages) > 0 {
		pmm.FreePages(t.KstackPages[0], len(t.KstackPages))
		t.KstackPages = nil
	}
	t.State = Zombie
	t.ExitCode = code
	if tb.current == i {
		tb.current = -1
	}
	tb.cond.Broadcast()
	return 0
}

// Waitpid blocks the calling goroutine (modelling the calling task)
// until a child matching want (an exact pid, or -1 for "any child of
// parent") becomes Zombie, then reaps it: the slot returns to Unused
// and its exit code is returned. Using a real sync.Cond here — rather
// than threading the wait through Tick — is a deliberate simplification
// documented in the design notes: this core never executes real ring-3
// instructions, so the "task" blocked in Waitpid is just the goroutine
// that called it, and genuine blocking/waking through sync.Cond
// exercises the same happens-before relationship waitpid's callers
// depend on.
func (tb *Table_t) Waitpid(parent, want defs.Pid_t) (defs.Pid_t, int, defs.Err_t) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	for {
		zi, found := tb.findZombieChild(parent, want)
		if found {
			dead := tb.tasks[zi]
			if pi := tb.slotOf(parent); pi >= 0 {
				tb.tasks[pi].Usage.Merge(dead.Usage)
			}
			tb.tasks[zi] = Task_t{next: -1}
			return dead.Id, dead.ExitCode, 0
		}
		if !tb.hasChild(parent, want) {
			return 0, 0, -defs.ECHILD
		}
		tb.cond.Wait()
	}
}

func (tb *Table_t) findZombieChild(parent, want defs.Pid_t) (int, bool) {
	for i := range tb.tasks {
		t := &tb.tasks[i]
		if t.State != Zombie || t.ParentId != parent {
			continue
		}
		if want != -1 && t.Id != want {
			continue
		}
		return i, true
	}
	return -1, false
}

func (tb *Table_t) hasChild(parent, want defs.Pid_t) bool {
	for i := range tb.tasks {
		t := &tb.tasks[i]
		if t.State == Unused || t.ParentId != parent {
			continue
		}
		if want != -1 && t.Id != want {
			continue
		}
		return true
	}
	return false
}

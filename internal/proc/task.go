// Package proc implements the task table, ready queue, and scheduler
// (spec §4.3): a fixed-size pool of task descriptors linked into a
// circular ready ring, round-robin selection on each timer tick, and
// the fork/exit/waitpid lifecycle.
//
// Grounded on the teacher's task/process bookkeeping conventions
// (Accnt_t-style small structs, fd.Cwd_t, defs.Err_t return pairs) and
// on original_source/kernel/sched.c for the exact lifecycle this core
// must reproduce: alloc_task resets every field on reuse, the ready
// ring is a singly linked circular list (here index-based per the
// specification's design note 9, not pointer-based as in the C
// original, since Go ownership makes an intrusive pointer cycle
// awkward to express safely).
package proc

import (
	"sync"

	"nyx/internal/acct"
	"nyx/internal/defs"
	"nyx/internal/kconfig"
	"nyx/internal/mem"
	"nyx/internal/trapframe"
	"nyx/internal/vfs"
	"nyx/internal/vm"
)

// State_t is a task's lifecycle state (spec §3).
type State_t int

const (
	Unused State_t = iota
	Runnable
	Waiting
	Zombie
)

// Task_t is one task-table slot (spec §3).
type Task_t struct {
	Id       defs.Pid_t
	ParentId defs.Pid_t
	Pgid     defs.Pid_t
	State    State_t

	AS *vm.AddressSpace_t

	KstackPages []mem.Pa_t
	KstackTop   uint64

	UserStackTop uint64
	Entry        uint64

	// Frame is the saved kernel-visible "stack pointer" while the
	// task is off-CPU: in real hardware this is a raw address into
	// the kernel stack holding a trap frame; hosted here as a direct
	// pointer to the frame itself.
	Frame *trapframe.Frame_t

	IsUser bool
	IsIdle bool

	WaitingFor defs.Pid_t
	ExitCode   int

	Pending [defs.NSIG / 64 + 1]uint64
	Blocked [defs.NSIG / 64 + 1]uint64
	Handlers [defs.NSIG]uint64

	Fds *vfs.Table_t
	Cwd *vfs.Cwd_t

	// Usage is this task's accumulated CPU time, credited one quantum
	// at a time by the scheduler (reschedule) and folded into a
	// parent's own totals when the task is reaped (Waitpid).
	Usage acct.Usage_t

	next int // index in the ready ring, -1 if not linked
}

func sigbit(sig int) (word, bit int) { return sig / 64, sig % 64 }

func (t *Task_t) setPending(sig int) {
	w, b := sigbit(sig)
	t.Pending[w] |= 1 << uint(b)
}
func (t *Task_t) clearPending(sig int) {
	w, b := sigbit(sig)
	t.Pending[w] &^= 1 << uint(b)
}
func (t *Task_t) isPending(sig int) bool {
	w, b := sigbit(sig)
	return t.Pending[w]&(1<<uint(b)) != 0
}
func (t *Task_t) isBlocked(sig int) bool {
	w, b := sigbit(sig)
	return t.Blocked[w]&(1<<uint(b)) != 0
}

// Table_t is the fixed-size task pool plus the circular ready ring and
// the scheduler state (current task, runnable idle fallback).
type Table_t struct {
	mu   sync.Mutex
	cond *sync.Cond

	tasks  [kconfig.MaxTasks]Task_t
	nextID defs.Pid_t

	runHead int // index of some Runnable task in the ring, -1 if empty
	current int // index of the running task, -1 if none

	pmm *mem.Physmem_t
}

// NewTable returns an empty task table backed by pmm for kernel-stack
// and address-space allocation.
func NewTable(pmm *mem.Physmem_t) *Table_t {
	tb := &Table_t{runHead: -1, current: -1, nextID: 1, pmm: pmm}
	tb.cond = sync.NewCond(&tb.mu)
	for i := range tb.tasks {
		tb.tasks[i].next = -1
	}
	return tb
}

// allocSlot finds an Unused slot and resets every field on it (sched.c's
// alloc_task resets the whole struct on reuse, including signal
// handlers and pgid — stale state from a prior occupant must never
// leak into a new task).
func (tb *Table_t) allocSlot() (*Task_t, int) {
	for i := range tb.tasks {
		if tb.tasks[i].State == Unused {
			id := tb.nextID
			tb.nextID++
			tb.tasks[i] = Task_t{
				Id:         id,
				State:      Runnable,
				WaitingFor: -1,
				next:       -1,
			}
			return &tb.tasks[i], i
		}
	}
	return nil, -1
}

func (tb *Table_t) slotOf(id defs.Pid_t) int {
	for i := range tb.tasks {
		if tb.tasks[i].State != Unused && tb.tasks[i].Id == id {
			return i
		}
	}
	return -1
}

// enqueue links slot i into the ready ring at its tail, just before
// runHead, so it is selected after every task already queued.
func (tb *Table_t) enqueue(i int) {
	if tb.runHead == -1 {
		tb.tasks[i].next = i
		tb.runHead = i
		return
	}
	tail := tb.runHead
	for tb.tasks[tail].next != tb.runHead {
		tail = tb.tasks[tail].next
	}
	tb.tasks[i].next = tb.runHead
	tb.tasks[tail].next = i
}

// dequeue unlinks slot i from the ready ring.
func (tb *Table_t) dequeue(i int) {
	if tb.runHead == -1 {
		return
	}
	if tb.tasks[tb.runHead].next == tb.runHead && tb.runHead == i {
		tb.runHead = -1
		tb.tasks[i].next = -1
		return
	}
	j := tb.runHead
	for {
		if tb.tasks[j].next == i {
			tb.tasks[j].next = tb.tasks[i].next
			if tb.runHead == i {
				tb.runHead = tb.tasks[i].next
			}
			tb.tasks[i].next = -1
			return
		}
		j = tb.tasks[j].next
		if j == tb.runHead {
			return
		}
	}
}

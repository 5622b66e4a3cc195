package proc

import (
	"nyx/internal/defs"
	"nyx/internal/mem"
	"nyx/internal/vm"
)

// Kill sets sig pending on id (spec §4.6), the single-task counterpart
// of KillPgid. SIGKILL is short-circuited: per §4.6/§5 ("SIGKILL is
// synchronous") it never goes through the pending-bitmap/delivery
// pass — it zombifies id and wakes waiters immediately, in this same
// call.
func (tb *Table_t) Kill(id defs.Pid_t, sig int) defs.Err_t {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	i := tb.slotOf(id)
	if i < 0 {
		return -defs.ESRCH
	}
	if sig == defs.SIGKILL {
		tb.killLocked(tb.pmm, i, -1)
		return 0
	}
	tb.tasks[i].setPending(sig)
	return 0
}

// KillPgid sets sig pending on every task sharing pgid, grounded on
// sched_signal_pgid: every non-Unused slot whose pgid matches gets the
// bit set, regardless of its own state. SIGKILL is synchronous here
// too, for the same reason as Kill.
func (tb *Table_t) KillPgid(pgid defs.Pid_t, sig int) defs.Err_t {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	for i := range tb.tasks {
		if tb.tasks[i].State == Unused || tb.tasks[i].Pgid != pgid {
			continue
		}
		if sig == defs.SIGKILL {
			tb.killLocked(tb.pmm, i, -1)
			continue
		}
		tb.tasks[i].setPending(sig)
	}
	return 0
}

// SetBlocked replaces id's blocked-signal mask (sigprocmask).
func (tb *Table_t) SetBlocked(id defs.Pid_t, mask [defs.NSIG/64 + 1]uint64) defs.Err_t {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	i := tb.slotOf(id)
	if i < 0 {
		return -defs.ESRCH
	}
	tb.tasks[i].Blocked = mask
	return 0
}

// DeliverSignals runs id's pending-signal check (sched_deliver_signals):
// only the lowest-numbered pending, unblocked signal is examined per
// call, mirroring the original's "only deliver one signal at a time".
// SIGTERM and SIGINT force the task to Zombie immediately (exit code
// -1) and wake any parent blocked in Waitpid for it; every other
// signal is consumed with no default action, since user-installed
// handlers are an explicit Non-goal here. Returns true if the task
// died as a result.
//
// SIGKILL is unblockable, matching Kill's own synchronous
// short-circuit: Kill never leaves it pending, but this check also
// ignores Blocked for it, so a stale pending bit (e.g. set before a
// blocked-mask change) can never be silently swallowed here.
func (tb *Table_t) DeliverSignals(pmm *mem.Physmem_t, id defs.Pid_t) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	i := tb.slotOf(id)
	if i < 0 {
		return false
	}
	t := &tb.tasks[i]

	for sig := 1; sig < defs.NSIG; sig++ {
		if !t.isPending(sig) {
			continue
		}
		t.clearPending(sig)
		if sig != defs.SIGKILL && t.isBlocked(sig) {
			continue
		}
		if sig == defs.SIGTERM || sig == defs.SIGINT || sig == defs.SIGKILL {
			tb.killLocked(pmm, i, -1)
			return true
		}
		// Custom handlers are a Non-goal (§1): every other signal is
		// simply consumed.
		break
	}
	return false
}

func (tb *Table_t) killLocked(pmm *mem.Physmem_t, slot int, code int) {
	t := &tb.tasks[slot]
	if t.State == Zombie {
		return
	}
	tb.dequeue(slot)
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
	if tb.current == slot {
		tb.current = -1
	}
	tb.cond.Broadcast()
}

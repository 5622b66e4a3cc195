// Package acct tracks per-task CPU-time usage: wall-clock nanoseconds
// spent running a task's own code (user) versus time spent on its
// behalf in the scheduler/syscall path (kernel).
//
// Grounded on biscuit/src/accnt/accnt.go's Accnt_t: the Userns/Sysns
// counters and the Add method that folds a dying child's totals into
// its parent's (wait4's rusage accumulation), and To_rusage's
// (seconds, microseconds) timeval-pair encoding. The original protects
// Accnt_t with its own embedded sync.Mutex since biscuit's task
// bookkeeping is otherwise lock-free per-task; this core already
// serializes every task-table mutation under proc.Table_t's own lock
// (internal/proc/task.go), so Usage_t carries no lock of its own —
// every method here is only ever called with that lock already held.
package acct

import "time"

// Usage_t accumulates one task's CPU time.
type Usage_t struct {
	Userns int64
	Sysns  int64
}

// Add credits d to the user or kernel counter depending on isUser.
func (u *Usage_t) Add(d time.Duration, isUser bool) {
	if isUser {
		u.Userns += int64(d)
	} else {
		u.Sysns += int64(d)
	}
}

// Merge folds other's totals into u, Accnt_t.Add's role: called when a
// parent reaps a child so the child's usage isn't lost at reap.
func (u *Usage_t) Merge(other Usage_t) {
	u.Userns += other.Userns
	u.Sysns += other.Sysns
}

// Rusage encodes u as two (seconds, microseconds) timeval pairs, user
// time then system time, the layout To_rusage serializes for copying
// to user memory.
func (u Usage_t) Rusage() [4]int64 {
	totv := func(ns int64) (int64, int64) {
		return ns / 1e9, (ns % 1e9) / 1000
	}
	us, uu := totv(u.Userns)
	ss, su := totv(u.Sysns)
	return [4]int64{us, uu, ss, su}
}

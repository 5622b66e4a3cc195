package proc

import (
	"nyx/internal/defs"
)

// SetPgid moves id into pgid, the setpgid() syscall's sole effect
// (spec §4.6); pgid 0 is rejected since pgid 0 is reserved (no task
// may join "no group").
func (tb *Table_t) SetPgid(id, pgid defs.Pid_t) defs.Err_t {
	if pgid == 0 {
		return -defs.EINVAL
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	i := tb.slotOf(id)
	if i < 0 {
		return -defs.ESRCH
	}
	tb.tasks[i].Pgid = pgid
	return 0
}

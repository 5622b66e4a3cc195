package scall

import (
	"nyx/internal/defs"
	"nyx/internal/proc"
)

// sysFork wires fork() to proc.ForkWithKernelRange: the child inherits
// the parent's saved user context, a cloned address space, and a
// cloned FD table; the parent gets the child's pid back, the child
// gets 0 via its own rax=0 trap frame (trapframe.ChildFrame's
// convention, not anything decided here).
func (d *Dispatcher) sysFork(t *proc.Task_t) int64 {
	if t.Frame == nil {
		return -int64(defs.EINVAL)
	}
	ctx := t.Frame.UserContext()
	child, err := d.Tasks.ForkWithKernelRange(d.Pmm, t.Id, ctx, d.PhysStart, d.PhysEnd)
	if err != 0 {
		return int64(err)
	}
	return int64(child)
}

// sysExec is reserved (§9, ABI row 21: "exec | path, argv | −1
// (reserved)"). This core's real exec path runs outside the syscall
// surface entirely: the boot harness resolves and loads an init
// program's ELF directly through internal/elf and proc.Table_t.Spawn
// before any task is scheduled (see cmd/simkernel's boot sequence), the
// same way the original's first user spawn never goes through
// syscall_handler either. A real exec() — replacing a running task's
// own image mid-flight — is future work the way SYS_SIGNAL's custom
// handlers are, so this just reports "not implemented".
func (d *Dispatcher) sysExec(t *proc.Task_t, pathVA, argvVA uint64) int64 {
	return -int64(defs.ENOSYS)
}

// sysWaitpid wraps proc.Table_t.Waitpid; want == -1 means "any child
// of parent", matching waitpid(2)'s pid==-1 convention. Per the ABI
// table (row 22: "waitpid | pid | exit code or −1"), the return value
// is the exit code alone — the caller already named which pid it's
// waiting for via want, or -1 for "any", so there is no separate
// channel the pid itself needs to come back on.
func (d *Dispatcher) sysWaitpid(parent defs.Pid_t, want defs.Pid_t) int64 {
	_, code, err := d.Tasks.Waitpid(parent, want)
	if err != 0 {
		return int64(err)
	}
	return int64(int32(code))
}

func (d *Dispatcher) sysSetpgid(t *proc.Task_t, pid, pgid defs.Pid_t) int64 {
	target := pid
	if target == 0 {
		target = t.Id
	}
	return int64(d.Tasks.SetPgid(target, pgid))
}

// Package trapframe defines the canonical saved-register layout every
// control transfer builds on (spec §3 "Trap frame", §4.5 ring-transition
// core) and the helpers that synthesize a first-entry frame for a new
// task.
//
// A real implementation pushes these registers from assembly in a
// fixed order and the scheduler's epilogue pops them in reverse before
// iretq (§9's design note on inline assembly: "any implementation that
// reorders must update the layout uniformly"). This module can't run
// that assembly inside a hosted Go test binary, so Frame_t is the
// explicit data the assembly would read and write, and UserFrame /
// KernelFrame are the pure-data equivalent of what the teacher's
// sched_create_kernel and the ring-3 loader construct on a stack.
package trapframe

import "nyx/internal/kconfig"

// Frame_t is the flat record pushed by the trap/IRQ entry stub: all
// general-purpose integer registers in a fixed order, followed by
// (IntNo, ErrCode, RIP, CS, RFlags) and, for a user frame, (RSP, SS).
type Frame_t struct {
	R15, R14, R13, R12, R11, R10, R9, R8 uint64
	RBP, RDI, RSI, RDX, RCX, RBX, RAX    uint64

	IntNo, ErrCode uint64
	RIP, CS, RFlags uint64

	// Present only for a frame captured while running in ring 3.
	RSP, SS uint64
	HasUserPart bool
}

// KernelFrame builds the frame sched_create_kernel writes at the top
// of a fresh kernel stack: rip=entry, kernel code selector, IF set,
// int_no=err=0 (§4.3).
func KernelFrame(entry uint64) *Frame_t {
	return &Frame_t{
		RIP:    entry,
		CS:     kconfig.SelKernelCode,
		RFlags: kconfig.RflagsIF,
	}
}

// UserFrame builds the first-entry frame for a user task dispatched
// for the very first time after spawn (§4.5): rip is the ELF entry
// point, cs/ss are the ring-3 selectors, rdi/rsi carry argc/argv per
// the calling convention main() expects, and rsp is the constructed
// user stack pointer.
func UserFrame(entry uint64, argc, argv, userSP uint64) *Frame_t {
	return &Frame_t{
		RIP:         entry,
		CS:          kconfig.SelUserCode | 3,
		RFlags:      kconfig.RflagsIF,
		RDI:         argc,
		RSI:         argv,
		RSP:         userSP,
		SS:          kconfig.SelUserData | 3,
		HasUserPart: true,
	}
}

// UserContext_t is the snapshot the SYSCALL entry stub takes of the
// interrupted user register state so that fork() can reconstruct the
// child's first-entry frame from it (§4.5 step 2, §4.5 "Fork").
type UserContext_t struct {
	RSP, RIP, RFlags          uint64
	RBX, RBP, R12, R13, R14, R15 uint64
}

// UserContext extracts the fields a SYSCALL entry stub would have
// captured from this frame, for tests and callers that already hold a
// full Frame_t instead of a live register snapshot.
func (f *Frame_t) UserContext() UserContext_t {
	return UserContext_t{
		RSP: f.RSP, RIP: f.RIP, RFlags: f.RFlags,
		RBX: f.RBX, RBP: f.RBP, R12: f.R12, R13: f.R13, R14: f.R14, R15: f.R15,
	}
}

// ChildFrame builds the trap frame fork() writes for the new task:
// rip/rflags/rsp and the callee-saved registers come from the parent's
// captured user context, and rax=0 is the child's fork() return value
// (§4.5 "Fork").
func ChildFrame(ctx UserContext_t) *Frame_t {
	return &Frame_t{
		RIP:         ctx.RIP,
		RFlags:      ctx.RFlags,
		RSP:         ctx.RSP,
		RBX:         ctx.RBX,
		RBP:         ctx.RBP,
		R12:         ctx.R12,
		R13:         ctx.R13,
		R14:         ctx.R14,
		R15:         ctx.R15,
		RAX:         0,
		CS:          kconfig.SelUserCode | 3,
		SS:          kconfig.SelUserData | 3,
		HasUserPart: true,
	}
}

// Package defs holds the numeric vocabulary shared across kernel
// subsystems: the error channel, syscall numbers, open/seek/stat bits,
// and signal numbers. Nothing here allocates or blocks.
package defs

// Err_t is the kernel's pervasive error channel: negative on failure,
// 0 or positive on success. There is no errno side-channel and no Go
// error wrapping — every syscall reports its failure as this single
// signed value. The dispatcher returns the negated errno itself at the
// syscall boundary; it does not collapse failures to -1.
type Err_t int

// Pid_t identifies a task slot. 0 is never a valid pid.
type Pid_t int

// Errno values. Magnitudes don't need to match Linux; a syscall returns
// the negated value, and only its sign marks failure.
const (
	EINVAL    Err_t = 1
	ENOMEM    Err_t = 2
	ENOENT    Err_t = 3
	ENOTDIR   Err_t = 4
	EISDIR    Err_t = 5
	EEXIST    Err_t = 6
	ENOTEMPTY Err_t = 7
	ENOSPC    Err_t = 8
	EBADF     Err_t = 9
	EFAULT    Err_t = 10
	ENAMETOOLONG Err_t = 11
	ESRCH     Err_t = 12
	ECHILD    Err_t = 13
	EMFILE    Err_t = 14
	ENFILE    Err_t = 15
	EAGAIN    Err_t = 16
	EPERM     Err_t = 17
	ENOSYS    Err_t = 18
	ENOEXEC   Err_t = 19
	EIO       Err_t = 20
	ESPIPE    Err_t = 21
	ERANGE    Err_t = 22
)

// Syscall numbers (§6 of the specification). The dispatcher switches
// on exactly this table.
const (
	SYS_EXIT = iota
	SYS_READ
	SYS_WRITE
	SYS_OPEN
	SYS_CLOSE
	SYS_STAT
	SYS_FSTAT
	SYS_MKDIR
	SYS_RMDIR
	SYS_UNLINK
	SYS_READDIR
	SYS_CHDIR
	SYS_GETCWD
	SYS_RENAME
	SYS_TRUNCATE
	SYS_CREATE
	SYS_SEEK
	SYS_YIELD
	SYS_PIPE
	SYS_DUP2
	SYS_FORK
	SYS_EXEC
	SYS_WAITPID
	SYS_GETPID
	SYS_KILL
	SYS_SIGNAL
	SYS_SETPGID
	SYS_TCSETPGRP
	SYS_TCGETPGRP
	SYS_FB_INFO
	SYS_FB_PUTPIXEL
	SYS_INPUT_POLL
	SYS_TICKS
	SYS_FB_MAP
	SYS_FB_PRESENT
)

// Open flags.
const (
	O_RDONLY = 0
	O_WRONLY = 0x1
	O_RDWR   = 0x2
	O_CREAT  = 0x100
	O_TRUNC  = 0x200
	O_APPEND = 0x400
)

// Seek whence values.
const (
	SEEK_SET = 0
	SEEK_CUR = 1
	SEEK_END = 2
)

// Stat mode bits.
const (
	S_IFREG = 0x8000
	S_IFDIR = 0x4000
)

// Signal numbers the core recognizes by default action (§4.6).
const (
	SIGINT  = 2
	SIGKILL = 9
	SIGTERM = 15
	SIGCHLD = 17
	SIGCONT = 18
	SIGTSTP = 20
)

// NSIG bounds the pending/blocked signal bitmaps; signal numbers are
// taken to run 1..NSIG-1, matching the original's `for sig := 1; sig < 32`.
const NSIG = 32

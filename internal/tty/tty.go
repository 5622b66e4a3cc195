// Package tty tracks terminal-wide state that does not belong to any
// one task: the foreground process group and cooked/raw input mode
// (spec §4.7), plus the Ctrl+C-to-SIGINT synthesis a keyboard driver
// performs in cooked mode.
//
// Grounded on original_source/kernel/tty.c (foreground_pgid/tty_mode
// as the only two pieces of global terminal state) and
// kernel/drivers/keyboard.c's Ctrl+C handling: "in cooked mode, deliver
// SIGINT to every task in the foreground process group; do not queue
// the keystroke itself as input."
package tty

import (
	"sync"

	"nyx/internal/defs"
)

// Mode_t is the terminal's line-discipline mode.
type Mode_t int

const (
	Cooked Mode_t = iota // line editing; Ctrl+C sends SIGINT
	Raw                  // every byte passed through as-is
)

// Signaler is the minimal scheduler surface KeyEvent needs: broadcast
// a signal to every task sharing a pgid (proc.Table_t.KillPgid
// satisfies this without tty importing proc, avoiding a dependency
// cycle between the two packages).
type Signaler interface {
	KillPgid(pgid defs.Pid_t, sig int) defs.Err_t
}

// Tty_t is the single-terminal state a kernel in this model exposes.
type Tty_t struct {
	mu             sync.Mutex
	foregroundPgid defs.Pid_t
	mode           Mode_t
}

// New returns a terminal in cooked mode with no foreground group.
func New() *Tty_t {
	return &Tty_t{}
}

func (t *Tty_t) ForegroundPgid() defs.Pid_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.foregroundPgid
}

func (t *Tty_t) SetForegroundPgid(pgid defs.Pid_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.foregroundPgid = pgid
}

func (t *Tty_t) Mode() Mode_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

func (t *Tty_t) SetMode(m Mode_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mode = m
}

// KeyEvent delivers one input byte. In cooked mode, Ctrl+C (0x03) never
// reaches the reader: it sends SIGINT to the foreground process group
// instead and KeyEvent returns false. For every other byte (and every
// byte in raw mode) it returns true, telling the caller to queue the
// byte as normal input.
func (t *Tty_t) KeyEvent(sched Signaler, b byte) (deliver bool) {
	t.mu.Lock()
	mode := t.mode
	fg := t.foregroundPgid
	t.mu.Unlock()

	if mode == Cooked && b == 0x03 {
		if fg != 0 {
			sched.KillPgid(fg, defs.SIGINT)
		}
		return false
	}
	return true
}

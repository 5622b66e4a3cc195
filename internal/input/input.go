// Package input models the keyboard/mouse event queue behind the
// SYS_INPUT_POLL syscall (spec §6, ABI row 31: "input_poll | &event |
// 0 no-event, 1 event, −1 err") — another thin contract §1 keeps in
// scope even though real PS/2 controller access is a Non-goal.
//
// Grounded on original_source/kernel/drivers/keyboard.h's key_event
// and mouse.h's mouse_event: this core exposes one input_poll
// syscall rather than the original's separate
// keyboard_poll_event/mouse_poll_event calls, so Event_t merges both
// shapes into one wire struct discriminated by Kind, and Queue_t is
// the single FIFO both event sources push onto.
package input

import "sync"

// Event kinds, discriminating which struct fields in Event_t apply.
const (
	KindKey   uint8 = 0
	KindMouse uint8 = 1
)

// Special key codes above the ASCII range, matching keyboard.h's
// KEY_UP and friends living past 0x7F.
const (
	KeyUp    uint8 = 0x80
	KeyDown  uint8 = 0x81
	KeyLeft  uint8 = 0x82
	KeyRight uint8 = 0x83
)

// Modifier bits, matching keyboard.h's MOD_SHIFT/MOD_CTRL/MOD_ALT/MOD_SUPER.
const (
	ModShift uint8 = 0x01
	ModCtrl  uint8 = 0x02
	ModAlt   uint8 = 0x04
	ModSuper uint8 = 0x08
)

// Mouse event subtypes, matching mouse.h's MOUSE_EVENT_MOVE/MOUSE_EVENT_BUTTON.
const (
	MouseMove   uint8 = 1
	MouseButton uint8 = 2
)

// Event_t is the wire shape SYS_INPUT_POLL copies to user memory.
// Key/Modifiers/Pressed/Scancode come from key_event; X/Y/Buttons/
// Button/Pressed come from mouse_event; Kind says which set is live.
type Event_t struct {
	Kind      uint8
	Key       uint8
	Modifiers uint8
	Pressed   uint8
	Scancode  uint8
	Buttons   uint8
	Button    uint8
	X, Y      int16
}

// Queue_t is a FIFO of pending input events. The keyboard/mouse
// drivers this core simulates push onto it; SYS_INPUT_POLL drains one
// event at a time.
type Queue_t struct {
	mu     sync.Mutex
	events []Event_t
}

// New returns an empty queue.
func New() *Queue_t { return &Queue_t{} }

// Push enqueues an event, called by whatever feeds this core input
// (a test, or a hosted harness reading host keyboard/mouse state).
func (q *Queue_t) Push(e Event_t) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, e)
}

// Poll returns the oldest queued event, or ok=false if none is
// pending — keyboard_poll_event/mouse_poll_event's "0 means nothing
// available" convention collapsed into one queue.
func (q *Queue_t) Poll() (Event_t, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return Event_t{}, false
	}
	e := q.events[0]
	q.events = q.events[1:]
	return e, true
}

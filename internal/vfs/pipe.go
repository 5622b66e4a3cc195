package vfs

import (
	"sync"

	"nyx/internal/defs"
	"nyx/internal/kconfig"
)

// Pipe_t is the ring-buffer backing a pipe (spec §3). The head/tail
// counters run unbounded and are only reduced modulo the buffer size
// when indexing, the same discipline as the teacher's circbuf.Circbuf_t
// (circbuf/circbuf.go), which this is a fixed-capacity specialisation
// of: a pipe never needs circbuf's lazy page allocation since its
// capacity is small and constant.
type Pipe_t struct {
	mu sync.Mutex

	buf  [kconfig.PipeCapacity]byte
	head int // write position, monotonically increasing
	tail int // read position, monotonically increasing

	readers, writers int
}

// NewPipe returns a pipe with one open reader and one open writer, the
// state immediately after a successful pipe() syscall.
func NewPipe() *Pipe_t {
	return &Pipe_t{readers: 1, writers: 1}
}

func (p *Pipe_t) used() int { return p.head - p.tail }
func (p *Pipe_t) left() int { return kconfig.PipeCapacity - p.used() }

// DupEnd increments an end's open-reference count, used by dup2/fork.
func (p *Pipe_t) DupEnd(write bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if write {
		p.writers++
	} else {
		p.readers++
	}
}

// CloseEnd decrements an end's open-reference count.
func (p *Pipe_t) CloseEnd(write bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if write {
		p.writers--
	} else {
		p.readers--
	}
}

// Write appends up to len(data) bytes, returning a short write
// (possibly zero) if the ring buffer does not have room for all of it
// (spec §5: "a full writer returns a short write").
func (p *Pipe_t) Write(data []byte) (int, defs.Err_t) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readers == 0 {
		return 0, -defs.EPERM // no reader left: broken pipe
	}
	n := len(data)
	if room := p.left(); n > room {
		n = room
	}
	for i := 0; i < n; i++ {
		p.buf[(p.head+i)%kconfig.PipeCapacity] = data[i]
	}
	p.head += n
	return n, 0
}

// Read consumes up to len(buf) bytes. It returns (0, 0) at EOF: the
// buffer is empty and every writer has closed.
func (p *Pipe_t) Read(buf []byte) (int, defs.Err_t) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.used() == 0 {
		if p.writers == 0 {
			return 0, 0
		}
		return 0, -defs.EAGAIN
	}
	n := len(buf)
	if n > p.used() {
		n = p.used()
	}
	for i := 0; i < n; i++ {
		buf[i] = p.buf[(p.tail+i)%kconfig.PipeCapacity]
	}
	p.tail += n
	return n, 0
}

// Count reports the number of buffered, unread bytes, used by the
// pipe-total-bytes property test.
func (p *Pipe_t) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.used()
}

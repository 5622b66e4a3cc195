// Package klog is the kernel's console logger. A real boot environment
// has no syslog daemon to hand logs to — the teacher writes straight to
// the console with fmt.Printf/log.Fatal (mem.Phys_init, kernel/chentry.go).
// klog keeps that directness but lets the sink be swapped so tests don't
// need a real framebuffer.
package klog

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

var (
	mu  sync.Mutex
	out *log.Logger = log.New(os.Stderr, "", 0)
)

// SetOutput redirects kernel log output, e.g. to a bytes.Buffer in tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = log.New(w, "", 0)
}

// Printf logs an informational line.
func Printf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	out.Printf(format, args...)
}

// HaltRequest is returned by Fatalf in place of calling os.Exit/panic so
// that a caller running inside a test harness can observe "the kernel
// would have halted here" instead of crashing the test binary. Fatalf
// itself never halts, and cmd/simkernel does not call it.
type HaltRequest struct {
	Reason string
}

func (h *HaltRequest) Error() string { return h.Reason }

// Fatalf logs a fatal kernel fault (§7: "display exception name and
// faulting address ... and halt") and returns the halt sentinel instead
// of terminating the process outright.
func Fatalf(format string, args ...any) *HaltRequest {
	msg := fmt.Sprintf(format, args...)
	mu.Lock()
	out.Printf("FATAL: %s", msg)
	mu.Unlock()
	return &HaltRequest{Reason: msg}
}

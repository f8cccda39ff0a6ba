package invoker

import (
	"sync"
	"unicode/utf8"
)

// TailBuffer is an io.Writer that keeps only the last n bytes written. It
// bounds diagnostics that are returned to remote callers. A trim never
// leaves a partial UTF-8 sequence at the front.
type TailBuffer struct {
	mu      sync.Mutex
	buf     []byte
	limit   int
	dropped bool
}

// NewTailBuffer returns a TailBuffer holding at most n bytes; n <= 0 means
// 8 KiB.
func NewTailBuffer(n int) *TailBuffer {
	if n <= 0 {
		n = 8 << 10
	}
	return &TailBuffer{buf: make([]byte, 0, n), limit: n}
}

func (t *TailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		cut := over
		for cut < len(t.buf) && cut-over < utf8.UTFMax && !utf8.RuneStart(t.buf[cut]) {
			cut++
		}
		t.buf = append(t.buf[:0], t.buf[cut:]...)
		t.dropped = true
	}
	return len(p), nil
}

// Truncated reports whether earlier output was discarded.
func (t *TailBuffer) Truncated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

func (t *TailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

package view

import (
	"fmt"
	"io"
	"sync"
)

// Toaster prints notifications. It implements popup.Notifier.
type Toaster struct {
	mu  sync.Mutex
	out io.Writer
}

func NewToaster(out io.Writer) *Toaster {
	return &Toaster{out: out}
}

func (t *Toaster) Notify(description string) {
	t.printf("! %s\n", description)
}

func (t *Toaster) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

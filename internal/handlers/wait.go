package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// wait sleeps for ms milliseconds and reports whether ctx was cancelled first.
// A zero wait still reports an already cancelled ctx.
func wait(ctx context.Context, ms int) bool {
	if ms <= 0 {
		return ctx.Err() != nil
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-t.C:
		return false
	}
}

// progress is the last reported step of a handler. Concurrent executions of
// the same handler share it, so it reflects whichever wrote last.
type progress struct {
	mu    sync.RWMutex
	state any
}

func (p *progress) set(state string) {
	p.setValue(map[string]any{"state": state})
}

func (p *progress) setf(format string, args ...any) {
	p.set(fmt.Sprintf(format, args...))
}

func (p *progress) setValue(v any) {
	p.mu.Lock()
	p.state = v
	p.mu.Unlock()
}

func (p *progress) get() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state == nil {
		return map[string]any{"state": "init"}
	}
	return p.state
}

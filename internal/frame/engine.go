package frame

import (
	"fmt"

	"github.com/apache/arrow/go/v18/arrow/memory"
)

const mib = 1 << 20

// Engine owns the memory every frame column is allocated from. Start one per run
// and defer Shutdown immediately; frames must be released before Shutdown.
type Engine struct {
	mem      *memory.CheckedAllocator
	budgetMB int
	closed   bool
}

// Start creates an engine. maxMemoryMB <= 0 disables the memory budget.
func Start(maxMemoryMB int) (*Engine, error) {
	if maxMemoryMB < 0 {
		return nil, fmt.Errorf("start engine: negative memory budget %d MiB", maxMemoryMB)
	}
	return &Engine{
		mem:      memory.NewCheckedAllocator(memory.NewGoAllocator()),
		budgetMB: maxMemoryMB,
	}, nil
}

// Allocator exposes the engine allocator for builders outside this package.
func (e *Engine) Allocator() memory.Allocator { return e.mem }

// InUse returns the number of bytes currently allocated through the engine.
func (e *Engine) InUse() int { return e.mem.CurrentAlloc() }

// CheckBudget fails once allocations exceed the configured budget.
func (e *Engine) CheckBudget() error {
	if e.budgetMB <= 0 {
		return nil
	}
	if used := e.mem.CurrentAlloc(); used > e.budgetMB*mib {
		return fmt.Errorf("%w: %d MiB in use, limit %d MiB", ErrMemoryBudget, used/mib, e.budgetMB)
	}
	return nil
}

// Shutdown stops the engine. It is safe to call more than once and reports
// buffers that were never released.
func (e *Engine) Shutdown() error {
	if e == nil || e.closed {
		return nil
	}
	e.closed = true
	if n := e.mem.CurrentAlloc(); n != 0 {
		return fmt.Errorf("engine shutdown: %d bytes still held by unreleased columns", n)
	}
	return nil
}

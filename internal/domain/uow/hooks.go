package uow

import "sync"

// Hooks is the transaction-completion callback list. A unit of work creates
// one per transaction and calls exactly one of RunCommit or RunRollback.
type Hooks struct {
	mu         sync.Mutex
	onCommit   []func()
	onRollback []func()
	done       bool
}

func NewHooks() *Hooks { return &Hooks{} }

// AfterCommit registers fn to run only if the transaction commits.
func (h *Hooks) AfterCommit(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onCommit = append(h.onCommit, fn)
}

// AfterRollback registers fn to run only if the transaction rolls back.
func (h *Hooks) AfterRollback(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRollback = append(h.onRollback, fn)
}

func (h *Hooks) RunCommit()   { h.run(true) }
func (h *Hooks) RunRollback() { h.run(false) }

// Finish runs the commit callbacks when err is nil and the rollback callbacks otherwise.
func (h *Hooks) Finish(err error) {
	if err != nil {
		h.RunRollback()
		return
	}
	h.RunCommit()
}

func (h *Hooks) run(committed bool) {
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		return
	}
	h.done = true
	fns := h.onRollback
	if committed {
		fns = h.onCommit
	}
	h.onCommit, h.onRollback = nil, nil
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

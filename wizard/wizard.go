// Package wizard runs an ordered list of steps that share a values object.
// A step unlocks only once its predecessor succeeded; each step's result
// is stored so later steps can build on it.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrBusy is returned when a submission is already in flight.
	ErrBusy = errors.New("a step is already running")
	// ErrLocked is returned when the previous step has not succeeded.
	ErrLocked = errors.New("step is locked")
	// ErrNoStep is returned when the wizard has no steps.
	ErrNoStep = errors.New("no step to submit")
	// ErrReset is returned when Reset ran while the step was running; the
	// step's result is dropped.
	ErrReset = errors.New("wizard was reset")
)

// Status is the lifecycle state of a step.
type Status int

const (
	Idle Status = iota
	Running
	Success
	Failed
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Success:
		return "success"
	case Failed:
		return "error"
	default:
		return "idle"
	}
}

// StepState is the stored outcome of a step.
type StepState struct {
	Status Status
	Data   any
	Err    string
}

// Context is passed to a step handler.
type Context struct {
	Index    int
	Previous StepState
}

// Handler executes a step. The returned data is stored on success.
type Handler[V any] func(ctx context.Context, values V, sc Context) (any, error)

// Step is one named stage.
type Step[V any] struct {
	Name   string
	Handle Handler[V]
}

// Wizard sequences steps. All methods are safe for concurrent use.
type Wizard[V any] struct {
	mu      sync.Mutex
	steps   []Step[V]
	states  []StepState
	initial V
	values  V
	active  int
	focused int
	busy    atomic.Bool
	// gen counts resets; a handler result from an older gen is dropped.
	gen uint64
	// shared is set while values may alias the slices or maps of initial.
	shared bool

	// OnChange is called after each state transition, outside the lock.
	OnChange func(index int, state StepState)
	// Clone deep-copies values. Without it, Reset restores a shallow copy
	// of the initial values.
	Clone func(V) V
}

// New returns a wizard with every step idle and focus on the first step.
func New[V any](steps []Step[V], initial V) *Wizard[V] {
	return &Wizard[V]{
		steps:   steps,
		states:  make([]StepState, len(steps)),
		initial: initial,
		values:  initial,
		shared:  true,
	}
}

// Submit runs the focused step. It returns the handler's error, which is
// also stored on the step.
func (w *Wizard[V]) Submit(ctx context.Context) error {
	if !w.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer w.busy.Store(false)

	w.mu.Lock()
	if len(w.steps) == 0 {
		w.mu.Unlock()
		return ErrNoStep
	}
	idx := w.focused
	if w.lockedLocked(idx) {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrLocked, w.steps[idx].Name)
	}

	// Resubmitting an earlier step invalidates everything after it.
	for i := idx + 1; i < len(w.states); i++ {
		w.states[i] = StepState{}
	}
	w.active = idx
	w.states[idx] = StepState{Status: Running}
	sc := Context{Index: idx}
	if idx > 0 {
		sc.Previous = w.states[idx-1]
	}
	values := w.copyValues(w.values)
	step := w.steps[idx]
	running := w.states[idx]
	gen := w.gen
	w.mu.Unlock()
	w.notify(idx, running)

	data, err := step.Handle(ctx, values, sc)

	w.mu.Lock()
	if w.gen != gen {
		w.mu.Unlock()
		return fmt.Errorf("%s: %w", step.Name, ErrReset)
	}
	var st StepState
	if err != nil {
		st = StepState{Status: Failed, Err: err.Error()}
	} else {
		st = StepState{Status: Success, Data: data}
		if idx+1 < len(w.steps) {
			w.active = idx + 1
			w.focused = idx + 1
		}
	}
	w.states[idx] = st
	w.mu.Unlock()
	w.notify(idx, st)

	if err != nil {
		return fmt.Errorf("%s: %w", step.Name, err)
	}
	return nil
}

func (w *Wizard[V]) notify(idx int, st StepState) {
	if w.OnChange != nil {
		w.OnChange(idx, st)
	}
}

// lockedLocked reports whether step i is locked. w.mu must be held.
func (w *Wizard[V]) lockedLocked(i int) bool {
	if i <= 0 {
		return false
	}
	return w.states[i-1].Status != Success
}

// IsLocked reports whether step i cannot be submitted yet.
func (w *Wizard[V]) IsLocked(i int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i < 0 || i >= len(w.states) {
		return true
	}
	return w.lockedLocked(i)
}

// Next moves focus forward, never past the active step.
func (w *Wizard[V]) Next() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focusLocked(w.focused + 1)
}

// Prev moves focus back.
func (w *Wizard[V]) Prev() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focusLocked(w.focused - 1)
}

// Focus moves focus to step i if it is reachable.
func (w *Wizard[V]) Focus(i int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focusLocked(i)
}

func (w *Wizard[V]) focusLocked(i int) bool {
	if i < 0 || i >= len(w.steps) || i > w.active || w.lockedLocked(i) {
		return false
	}
	w.focused = i
	return true
}

// SetValue mutates the shared values.
func (w *Wizard[V]) SetValue(fn func(*V)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.shared {
		w.values = w.copyValues(w.values)
		w.shared = false
	}
	fn(&w.values)
}

func (w *Wizard[V]) copyValues(v V) V {
	if w.Clone != nil {
		return w.Clone(v)
	}
	return v
}

// Values returns the shared values.
func (w *Wizard[V]) Values() V {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.copyValues(w.values)
}

// State returns the state of step i.
func (w *Wizard[V]) State(i int) StepState {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i < 0 || i >= len(w.states) {
		return StepState{}
	}
	return w.states[i]
}

// States returns a copy of every step state.
func (w *Wizard[V]) States() []StepState {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]StepState, len(w.states))
	copy(out, w.states)
	return out
}

// Active returns the index of the furthest unlocked step.
func (w *Wizard[V]) Active() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Focused returns the index of the step Submit will run.
func (w *Wizard[V]) Focused() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focused
}

// Len returns the number of steps.
func (w *Wizard[V]) Len() int {
	return len(w.steps)
}

// Name returns the name of step i.
func (w *Wizard[V]) Name(i int) string {
	if i < 0 || i >= len(w.steps) {
		return ""
	}
	return w.steps[i].Name
}

// Reset returns every step to idle and restores the initial values.
func (w *Wizard[V]) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.states {
		w.states[i] = StepState{}
	}
	w.values = w.initial
	w.shared = true
	w.gen++
	w.active = 0
	w.focused = 0
}

package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"tcm/internal/executor"
)

// State is the lifecycle state of one selected test case.
type State string

const (
	StatePending  State = "pending"
	StateRunning  State = "running"
	StateRetrying State = "retrying"
	StatePassed   State = "passed"
	StateFailed   State = "failed"
)

// Terminal reports whether no further transitions can follow.
func (s State) Terminal() bool {
	return s == StatePassed || s == StateFailed
}

var allowedTransitions = map[State][]State{
	"":            {StatePending},
	StatePending:  {StateRunning},
	StateRunning:  {StatePassed, StateFailed, StateRetrying},
	StateRetrying: {StateRunning},
}

func canTransition(from, to State) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition is a state change of one test case, delivered to the
// ProgressReporter as it happens.
type Transition struct {
	TestCaseID  string
	From        State
	To          State
	Attempt     int
	MaxAttempts int
	Time        time.Time

	// Result and Err are set when an attempt finished
	Result *executor.Result
	Err    error
}

// ProgressReporter receives transitions. Calls may come from several workers
// concurrently; transitions of one test case are delivered in order.
type ProgressReporter interface {
	Transition(t Transition)
}

// ProgressFunc adapts a function to ProgressReporter.
type ProgressFunc func(Transition)

// Transition calls f(t).
func (f ProgressFunc) Transition(t Transition) { f(t) }

type nopProgress struct{}

func (nopProgress) Transition(Transition) {}

// caseState is the tracked state of one test case.
type caseState struct {
	State    State
	Attempts int
	Result   *executor.Result
	Err      error
	Started  time.Time
	Finished time.Time
}

// stateTracker owns the per test case state map. It is the only shared
// result store of a run.
type stateTracker struct {
	mu     sync.RWMutex
	states map[string]*caseState

	// remaining counts test cases not yet in a terminal state
	remaining int
}

func newStateTracker(ids []string) *stateTracker {
	t := &stateTracker{
		states:    make(map[string]*caseState, len(ids)),
		remaining: len(ids),
	}
	for _, id := range ids {
		t.states[id] = &caseState{}
	}
	return t
}

// transition moves id to state and returns the previous state and how many
// test cases are still not terminal.
func (t *stateTracker) transition(id string, to State, update func(*caseState)) (State, int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cs, ok := t.states[id]
	if !ok {
		return "", t.remaining, fmt.Errorf("unknown test case %s", id)
	}

	from := cs.State
	if !canTransition(from, to) {
		return from, t.remaining, fmt.Errorf("invalid transition for %s: %q -> %q", id, from, to)
	}

	cs.State = to
	if update != nil {
		update(cs)
	}
	if to.Terminal() {
		t.remaining--
	}
	return from, t.remaining, nil
}

// snapshot returns a copy of the state of id.
func (t *stateTracker) snapshot(id string) caseState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if cs, ok := t.states[id]; ok {
		return *cs
	}
	return caseState{}
}

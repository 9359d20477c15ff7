package continuation

import (
	"errors"
	"fmt"
)

// State is a ContObj's position in the Fresh -> Running -> Suspended ->
// Finished lifecycle.
type State int

const (
	StateFresh State = iota
	StateRunning
	StateSuspended
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrContinuationAlreadyTaken is the trap a second ContRefGetContObj call on
// the same reference produces: a ContRef hands out its ContObj at most once.
var ErrContinuationAlreadyTaken = errors.New("continuation: reference already taken")

// ErrContinuationInvariantViolated traps a fiber result that the
// resume/suspend protocol did not expect.
var ErrContinuationInvariantViolated = errors.New("continuation: invariant violated")

func newWrongStateError(op string, got State) error {
	return fmt.Errorf("continuation: %s: wrong state %s", op, got)
}

// MaxPayloadCount bounds the payload/args buffers a ContObj carries,
// mirroring the fixed-size argument-passing slots the fiber entry closure
// receives.
const MaxPayloadCount = 32

// ContObj is one continuation object: the fiber plus its payload buffers and
// lifecycle state. A ContObj does not track which ContRef holds it; after a
// suspension the host wraps it in a new ContRef with NewContRef.
type ContObj struct {
	fiber Fiber
	state State

	payloads     []uint64
	results      []uint64
	resumeArgs   []uint64
	suspendTag   uint32
}

// NewContObj allocates a fresh continuation object wrapping entry, in
// StateFresh. The entry closure never runs until the first Resume.
func NewContObj(entry func(Suspender)) *ContObj {
	return &ContObj{fiber: NewFiber(entry), state: StateFresh}
}

// State reports the object's current lifecycle state.
func (c *ContObj) State() State { return c.state }

// Payloads returns the argument slots last written by StorePayloads or
// reserved by OccupyNextArgsSlots, for the builtin call that asked for them
// (cont_obj_get_payloads).
func (c *ContObj) Payloads() []uint64 { return c.payloads }

// Results returns the object's result buffer (cont_obj_get_results). No
// function in this package writes that buffer, and the entry closure is given
// no handle to it, so it is empty after the body finishes.
func (c *ContObj) Results() []uint64 { return c.results }

// OccupyNextArgsSlots reserves n slots at the front of the payload buffer
// for the next resume's arguments, growing it if necessary
// (cont_obj_occupy_next_args_slots).
func (c *ContObj) OccupyNextArgsSlots(n int) {
	if cap(c.payloads) < n {
		grown := make([]uint64, n)
		copy(grown, c.payloads)
		c.payloads = grown
	} else if len(c.payloads) < n {
		c.payloads = c.payloads[:n]
	}
}

// ResetPayloads clears the payload buffer without releasing its backing
// array (cont_obj_reset_payloads).
func (c *ContObj) ResetPayloads() { c.payloads = c.payloads[:0] }

// EnsurePayloadsAdditionalCapacity makes the payload buffer's capacity at
// least its current length plus additional slots, reallocating to exactly
// that capacity when it is short and leaving it unchanged otherwise
// (cont_obj_ensure_payloads_additional_capacity).
func (c *ContObj) EnsurePayloadsAdditionalCapacity(additional int) {
	need := len(c.payloads) + additional
	if cap(c.payloads) >= need {
		return
	}
	grown := make([]uint64, len(c.payloads), need)
	copy(grown, c.payloads)
	c.payloads = grown
}

// StorePayloads overwrites the payload buffer with vals.
func (c *ContObj) StorePayloads(vals []uint64) {
	c.payloads = append(c.payloads[:0], vals...)
}

// Resume runs or re-enters the object's fiber once. On return it reports
// whether the body finished or suspended (with
// SuspendTag() now valid). Resume traps unless the object is Fresh or
// Suspended — resuming an already-running or already-finished continuation
// is a programmer error.
func (c *ContObj) Resume() (finished bool, err error) {
	if c.state != StateFresh && c.state != StateSuspended {
		return false, newWrongStateError("resume", c.state)
	}
	c.state = StateRunning
	res, err := c.fiber.Resume()
	if err != nil {
		c.state = StateFinished
		return false, fmt.Errorf("%w: %v", ErrContinuationInvariantViolated, err)
	}
	if res.Returned {
		c.state = StateFinished
		return true, nil
	}
	c.state = StateSuspended
	c.suspendTag = res.Tag
	return false, nil
}

// SuspendTag returns the tag the body passed to Suspend, valid immediately
// after a Resume that reports !finished.
func (c *ContObj) SuspendTag() uint32 { return c.suspendTag }

// ContRef is a reference handed to Wasm code. GetContObj takes ownership of
// the underlying object, leaving the reference empty; a second call traps
// with ErrContinuationAlreadyTaken. Emptiness is tracked per reference only:
// two references wrapping the same object are two live pointers to it.
type ContRef struct {
	obj *ContObj
}

// NewContRef wraps obj in a fresh reference. It does not invalidate other
// references: one that still holds obj keeps it, and its GetContObj returns
// obj as well.
func NewContRef(obj *ContObj) *ContRef { return &ContRef{obj: obj} }

// GetContObj takes and returns the wrapped object, clearing the reference.
// Calling it again returns ErrContinuationAlreadyTaken.
func (r *ContRef) GetContObj() (*ContObj, error) {
	if r.obj == nil {
		return nil, ErrContinuationAlreadyTaken
	}
	obj := r.obj
	r.obj = nil
	return obj, nil
}

// IsTaken reports whether GetContObj has already emptied this reference.
func (r *ContRef) IsTaken() bool { return r.obj == nil }

// Package continuation implements the fiber-backed continuation object and
// reference: creation, resume, suspend, and the exclusive-ownership
// discipline a reference enforces over its object.
//
// Fiber assembly (the actual stack-switch primitive) is treated as an
// external collaborator, assumed available as a primitive with a known
// contract. goFiber below is the portable reference implementation of that
// contract, built on goroutines and channels rather than hand-written
// stack-switch assembly, since backend code generation is out of scope for
// this package. It satisfies the same Fiber interface a real
// assembly-backed fiber would, so the rest of this package — and anything
// built on top of it — is written against the interface, never the
// goroutine plumbing.
package continuation

import (
	"errors"

	"golang.org/x/sync/errgroup"
)

// FiberResult is the outcome of resuming a fiber once.
type FiberResult struct {
	// Returned is true when the fiber's entry closure ran to completion.
	Returned bool
	// Tag is valid only when !Returned: the tag the fiber's body passed to
	// Suspend.
	Tag uint32
}

// ErrNoParentFrame is the error for a suspend with no resumed fiber to
// return to. No function in this package returns it: Suspend has no error
// result, and a Suspender is only handed to a fiber's entry closure.
var ErrNoParentFrame = errors.New("continuation: suspend called with no parent frame")

// ErrFiberAlreadyFinished is returned by Resume on a fiber that has already
// returned.
var ErrFiberAlreadyFinished = errors.New("continuation: resume called on a finished fiber")

// Fiber is the stack-switch primitive's contract backing the resume/suspend
// builtins. A Fiber is created once via NewFiber with an entry closure that
// has not yet run, then driven through alternating Resume/suspend-from-within
// calls.
type Fiber interface {
	// Resume runs (or re-enters) the fiber's entry closure until it either
	// returns or calls Suspend on the Suspender passed to it. Resume must
	// only be called on a Fresh or Suspended fiber; calling it on a
	// Finished fiber returns ErrFiberAlreadyFinished.
	Resume() (FiberResult, error)
}

// Suspender is handed to a fiber's entry closure so it can yield control
// back to its resumer.
type Suspender interface {
	// Suspend yields control to whoever last called Resume, carrying tag.
	// Control returns from this call only when a later Resume re-enters the
	// fiber — execution then continues in the caller's Wasm body.
	Suspend(tag uint32)
}

// goFiber is the goroutine-backed reference implementation of Fiber. Each
// goFiber owns exactly one background goroutine running its entry closure;
// an errgroup.Group of size one supervises that goroutine so its terminal
// error (a panic recovered into an error, or nil on normal return) is
// observed exactly once by Resume, rather than needing a second
// channel/mutex pair to deduplicate it.
type goFiber struct {
	entry func(Suspender)

	toFiber   chan struct{}
	fromFiber chan fiberEvent

	group   *errgroup.Group
	started bool
	done    bool
}

type fiberEvent struct {
	suspended bool
	tag       uint32
}

// NewFiber allocates a fresh fiber whose entry closure has not yet run.
func NewFiber(entry func(Suspender)) Fiber {
	f := &goFiber{
		entry:     entry,
		toFiber:   make(chan struct{}),
		fromFiber: make(chan fiberEvent),
	}
	f.group = &errgroup.Group{}
	return f
}

// suspendToken is the Suspender the background goroutine uses to talk back
// to Resume.
type suspendToken struct{ f *goFiber }

func (s suspendToken) Suspend(tag uint32) {
	s.f.fromFiber <- fiberEvent{suspended: true, tag: tag}
	<-s.f.toFiber // blocks here until the next Resume.
}

func (f *goFiber) Resume() (FiberResult, error) {
	if f.done {
		return FiberResult{}, ErrFiberAlreadyFinished
	}
	if !f.started {
		f.started = true
		f.group.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.New("continuation: fiber entry closure panicked")
					f.fromFiber <- fiberEvent{suspended: false}
				}
			}()
			f.entry(suspendToken{f: f})
			f.fromFiber <- fiberEvent{suspended: false}
			return nil
		})
	} else {
		f.toFiber <- struct{}{}
	}

	ev := <-f.fromFiber
	if ev.suspended {
		return FiberResult{Returned: false, Tag: ev.tag}, nil
	}
	f.done = true
	if err := f.group.Wait(); err != nil {
		return FiberResult{}, err
	}
	return FiberResult{Returned: true}, nil
}

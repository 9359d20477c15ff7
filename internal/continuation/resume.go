package continuation

import (
	"errors"
	"fmt"
)

// Selector is the 32-bit value the resume builtin hands back to its caller:
// 0 on ordinary return, or the high nibble set to 0x8 plus a 28-bit tag on
// suspend.
type Selector uint32

const (
	selectorSuspendBit = 0x8000_0000
	// tagNibbleMask covers the whole high nibble, which a tag must never set:
	// the suspend/return discriminator occupies all four of those bits, not
	// just the sign bit.
	tagNibbleMask = 0xF000_0000
	// MaxTag is the largest tag value that fits in the low 28 bits once the
	// high nibble is reserved for the suspend/return discriminator.
	MaxTag = 0x0FFF_FFFF
)

// SelectorReturn is the selector produced when a continuation's body ran to
// completion.
const SelectorReturn Selector = 0

// EncodeSuspend packs tag into a suspend selector. Panics if tag & 0xF000_0000
// != 0: the top nibble is reserved for the suspend/return discriminator, so
// only the low 28 bits are available to the tag.
func EncodeSuspend(tag uint32) Selector {
	if tag&tagNibbleMask != 0 {
		panic(fmt.Sprintf("continuation: suspend tag %#x does not fit in 28 bits", tag))
	}
	return Selector(selectorSuspendBit | tag)
}

// ErrTagOutOfRange is the translation-time counterpart to EncodeSuspend's
// panic: a tag immediate decoded from a Wasm module, rather than a host bug,
// so it surfaces as an error instead of trapping the process.
var ErrTagOutOfRange = errors.New("continuation: tag does not fit in 28 bits")

// ValidateTag reports ErrTagOutOfRange if tag sets any bit EncodeSuspend
// requires to be zero. Translation-time callers (suspend/resume_throw
// lowering) use this instead of calling EncodeSuspend directly, since a
// malformed tag here comes from untrusted module bytes, not a programmer
// error.
func ValidateTag(tag uint32) error {
	if tag&tagNibbleMask != 0 {
		return fmt.Errorf("%w: %#x", ErrTagOutOfRange, tag)
	}
	return nil
}

// IsSuspend reports whether the selector encodes a suspend rather than a
// return.
func (s Selector) IsSuspend() bool { return s&selectorSuspendBit != 0 }

// Tag extracts the suspend tag. Only meaningful when IsSuspend() is true.
func (s Selector) Tag() uint32 { return uint32(s) &^ tagNibbleMask }

// ResumeOnce drives obj's fiber through exactly one Resume step and
// translates the outcome into a Selector: SelectorReturn on completion,
// EncodeSuspend(tag) on suspension.
//
// A body that returns without suspending yields SelectorReturn on the first
// ResumeOnce, and the object is then Finished — a second ResumeOnce traps,
// and a second GetContObj on the reference that produced obj traps with
// ErrContinuationAlreadyTaken.
//
// A body that calls Suspend(3) yields EncodeSuspend(3) == 0x8000_0003 on
// the first ResumeOnce; the host can then wrap obj in a new ContRef, and a
// later ResumeOnce on the same obj completes with SelectorReturn.
func ResumeOnce(obj *ContObj) (Selector, error) {
	finished, err := obj.Resume()
	if err != nil {
		return 0, err
	}
	if finished {
		return SelectorReturn, nil
	}
	return EncodeSuspend(obj.SuspendTag()), nil
}

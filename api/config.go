// Package api holds the public, stable types for configuring and driving a
// compilation run: calling convention, pointer width, and the handful of
// codegen toggles a host embedding this core needs to pick before it builds
// a VMOffsets/translation pipeline.
package api

import "github.com/continuwasm/core/internal/engine/wazevo/wazevoapi"

// CallingConvention selects how translated functions receive arguments and
// the implicit VMContext pointer.
type CallingConvention int

const (
	// CallingConventionDefault passes the VMContext as the final argument,
	// matching the augmented signature scenario 3 describes.
	CallingConventionDefault CallingConvention = iota
	// CallingConventionArray boxes every argument (including results) into
	// a single array-call entry point, the calling convention array-call
	// trampolines use to invoke functions of unknown static signature.
	CallingConventionArray
)

// SpectreMitigation selects which Spectre-v1 bounds-check hardening the
// compiled code applies to memory and table accesses.
type SpectreMitigation int

const (
	SpectreMitigationNone SpectreMitigation = iota
	SpectreMitigationHeap
	SpectreMitigationTable
	SpectreMitigationAll
)

// RuntimeConfig controls how a module is laid out and compiled. The zero
// value is not valid; use NewRuntimeConfig to get one with sane defaults,
// then narrow it with the With* methods. Each With* method returns a new
// config rather than mutating the receiver, so a base config can be reused
// to derive several variants safely.
type RuntimeConfig struct {
	pointerSize       wazevoapi.PointerSize
	callingConvention CallingConvention
	spectre           SpectreMitigation
	debugInfo         bool
}

// defaultConfig is cloned by NewRuntimeConfig so every field has an explicit
// default in one place.
var defaultConfig = &RuntimeConfig{
	pointerSize:       wazevoapi.PointerSize64,
	callingConvention: CallingConventionDefault,
	spectre:           SpectreMitigationAll,
	debugInfo:         false,
}

// NewRuntimeConfig returns a RuntimeConfig with 64-bit pointers, the default
// calling convention, full Spectre mitigation, and debug info disabled.
func NewRuntimeConfig() *RuntimeConfig {
	ret := *defaultConfig
	return &ret
}

func (c *RuntimeConfig) clone() *RuntimeConfig {
	ret := *c
	return &ret
}

// WithPointerSize32 targets 32-bit pointers, using the 32-bit VMContext
// layout rules.
func (c *RuntimeConfig) WithPointerSize32() *RuntimeConfig {
	ret := c.clone()
	ret.pointerSize = wazevoapi.PointerSize32
	return ret
}

// WithPointerSize64 targets 64-bit pointers. This is the default.
func (c *RuntimeConfig) WithPointerSize64() *RuntimeConfig {
	ret := c.clone()
	ret.pointerSize = wazevoapi.PointerSize64
	return ret
}

// WithCallingConvention selects how translated functions receive arguments.
func (c *RuntimeConfig) WithCallingConvention(cc CallingConvention) *RuntimeConfig {
	ret := c.clone()
	ret.callingConvention = cc
	return ret
}

// WithSpectreMitigation selects which bounds-check hardening compiled
// memory and table accesses apply.
func (c *RuntimeConfig) WithSpectreMitigation(s SpectreMitigation) *RuntimeConfig {
	ret := c.clone()
	ret.spectre = s
	return ret
}

// WithDebugInfo toggles whether the translator retains source-location and
// local-variable naming metadata alongside compiled code.
func (c *RuntimeConfig) WithDebugInfo(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.debugInfo = enabled
	return ret
}

func (c *RuntimeConfig) PointerSize() wazevoapi.PointerSize       { return c.pointerSize }
func (c *RuntimeConfig) CallingConvention() CallingConvention     { return c.callingConvention }
func (c *RuntimeConfig) SpectreMitigation() SpectreMitigation     { return c.spectre }
func (c *RuntimeConfig) DebugInfo() bool                          { return c.debugInfo }

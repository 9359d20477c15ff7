package api

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/continuwasm/core/internal/engine/wazevo/wazevoapi"
)

func TestRuntimeConfig_Defaults(t *testing.T) {
	c := NewRuntimeConfig()
	require.Equal(t, wazevoapi.PointerSize64, c.PointerSize())
	require.Equal(t, CallingConventionDefault, c.CallingConvention())
	require.Equal(t, SpectreMitigationAll, c.SpectreMitigation())
	require.False(t, c.DebugInfo())
}

func TestRuntimeConfig_With(t *testing.T) {
	base := NewRuntimeConfig()
	tests := []struct {
		name string
		with func(*RuntimeConfig) *RuntimeConfig
		want func(*testing.T, *RuntimeConfig)
	}{
		{
			name: "pointer size 32",
			with: func(c *RuntimeConfig) *RuntimeConfig { return c.WithPointerSize32() },
			want: func(t *testing.T, c *RuntimeConfig) {
				require.Equal(t, wazevoapi.PointerSize32, c.PointerSize())
			},
		},
		{
			name: "calling convention array",
			with: func(c *RuntimeConfig) *RuntimeConfig { return c.WithCallingConvention(CallingConventionArray) },
			want: func(t *testing.T, c *RuntimeConfig) {
				require.Equal(t, CallingConventionArray, c.CallingConvention())
			},
		},
		{
			name: "spectre mitigation none",
			with: func(c *RuntimeConfig) *RuntimeConfig { return c.WithSpectreMitigation(SpectreMitigationNone) },
			want: func(t *testing.T, c *RuntimeConfig) {
				require.Equal(t, SpectreMitigationNone, c.SpectreMitigation())
			},
		},
		{
			name: "debug info enabled",
			with: func(c *RuntimeConfig) *RuntimeConfig { return c.WithDebugInfo(true) },
			want: func(t *testing.T, c *RuntimeConfig) {
				require.True(t, c.DebugInfo())
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.with(base)
			tc.want(t, got)
			// base itself must be untouched: With* never mutates the receiver.
			require.Equal(t, wazevoapi.PointerSize64, base.PointerSize())
			require.Equal(t, CallingConventionDefault, base.CallingConvention())
		})
	}
}

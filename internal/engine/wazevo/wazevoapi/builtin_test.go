package wazevoapi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_IndicesStable(t *testing.T) {
	r := NewRegistry()
	for i, b := range r.All() {
		got, ok := r.Index(b.Name)
		require.True(t, ok)
		require.Equal(t, i, got, "builtin %q must resolve to its canonical position", b.Name)
		require.Equal(t, b, r.At(i))
	}
}

func TestRegistry_Count(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, len(r.All()), r.Count())
	require.Greater(t, r.Count(), 0)
}

func TestRegistry_ContinuationBuiltinsPresent(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{
		"cont_new", "resume", "suspend",
		"cont_obj_get_payloads", "cont_obj_get_results",
		"cont_obj_occupy_next_args_slots", "cont_obj_reset_payloads",
		"cont_obj_ensure_payloads_additional_capacity",
		"cont_ref_get_cont_obj", "new_cont_ref",
		"alllocate_payload_buffer", "dealllocate_payload_buffer",
	} {
		_, ok := r.Index(name)
		require.Truef(t, ok, "missing builtin %q", name)
	}
}

func TestRegistry_AtPanicsOutOfRange(t *testing.T) {
	r := NewRegistry()
	require.Panics(t, func() { r.At(r.Count()) })
	require.Panics(t, func() { r.At(-1) })
}

func TestRegistry_UnknownNameNotFound(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Index("does_not_exist")
	require.False(t, ok)
}

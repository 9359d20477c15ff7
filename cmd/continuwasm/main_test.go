package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDoMain_DefaultPointerSize(t *testing.T) {
	var out, errOut bytes.Buffer
	code := doMain(nil, &out, &errOut)
	require.Equal(t, 0, code)
	require.Contains(t, out.String(), "vmcontext size:")
	require.Contains(t, out.String(), "pointer size 8")
	require.Contains(t, out.String(), "builtins registered")
	require.Empty(t, errOut.String())
}

func TestDoMain_Help(t *testing.T) {
	var out, errOut bytes.Buffer
	code := doMain([]string{"-h"}, &out, &errOut)
	require.Equal(t, 0, code)
	require.Contains(t, errOut.String(), "continuwasm:")
	require.Empty(t, out.String())
}

func TestDoMain_32Bit_SmallerVMContext(t *testing.T) {
	var out64, out32 bytes.Buffer
	var errOut bytes.Buffer

	require.Equal(t, 0, doMain(nil, &out64, &errOut))
	require.Equal(t, 0, doMain([]string{"-32"}, &out32, &errOut))

	require.Contains(t, out64.String(), "pointer size 8")
	require.Contains(t, out32.String(), "pointer size 4")
	require.NotEqual(t, out64.String(), out32.String())
}

func TestDoMain_UnknownFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	code := doMain([]string{"-bogus"}, &out, &errOut)
	require.Equal(t, 1, code)
}

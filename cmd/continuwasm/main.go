package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/continuwasm/core/api"
	"github.com/continuwasm/core/internal/engine/wazevo/wazevoapi"
	"github.com/continuwasm/core/internal/wasm"
)

func main() {
	os.Exit(doMain(os.Args[1:], os.Stdout, os.Stderr))
}

// doMain is separated out for unit testing: it takes its arguments and
// streams explicitly rather than reading os.Args/os.Stdout/os.Stderr.
func doMain(args []string, stdOut, stdErr io.Writer) int {
	fs := flag.NewFlagSet("continuwasm", flag.ContinueOnError)
	fs.SetOutput(stdErr)

	var pointerSize32 bool
	fs.BoolVar(&pointerSize32, "32", false, "lay out VMContext for a 32-bit target")
	var help bool
	fs.BoolVar(&help, "h", false, "prints usage")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if help {
		printUsage(stdErr, fs)
		return 0
	}

	cfg := api.NewRuntimeConfig()
	if pointerSize32 {
		cfg = cfg.WithPointerSize32()
	}

	m := demoModule()
	offsets := wazevoapi.NewVMOffsets(cfg.PointerSize(), wazevoapi.Counts(m.Counts()))

	fmt.Fprintf(stdOut, "module %q: %d imported funcs, %d funcs, %d tables, %d memories, %d globals\n",
		m.Name, m.Counts().ImportedFunctions, m.Counts().Functions,
		m.Counts().Tables,
		m.Counts().Memories,
		m.Counts().Globals)
	fmt.Fprintf(stdOut, "vmcontext size: %d bytes (pointer size %d)\n", offsets.Size(), offsets.PointerSize())
	for _, rs := range offsets.RegionSizes() {
		fmt.Fprintf(stdOut, "  %-32s %4d bytes\n", rs.Description, rs.Bytes)
	}

	registry := wazevoapi.NewRegistry()
	fmt.Fprintf(stdOut, "%d builtins registered\n", registry.Count())
	return 0
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "continuwasm: inspect the VMContext layout and builtin registry for a demo module")
	fs.PrintDefaults()
}

// demoModule builds a small module with one imported function, one table,
// and a defined memory, so the CLI has something non-trivial to lay out.
func demoModule() *wasm.Module {
	m := wasm.NewModule()
	m.Name = "demo"

	i32 := wasm.Value{Numeric: wasm.ValueTypeI32}
	ft := m.DeclareTypeFunc(wasm.NewFunctionType([]wasm.Value{i32, i32}, []wasm.Value{i32}))

	if _, err := m.DeclareFuncImport("env", "add", ft); err != nil {
		panic(err)
	}
	local := m.DeclareFuncType(ft)
	if err := m.DeclareFuncExport(local, "run"); err != nil {
		panic(err)
	}

	m.DeclareTable(wasm.Table{
		ElemType: wasm.RefType{Nullable: true, Heap: wasm.HeapType{Kind: wasm.HeapTypeFunc}},
		Min:      4, Max: -1,
	})
	m.DeclareMemory(wasm.Memory{Min: 1, Max: -1})
	return m
}

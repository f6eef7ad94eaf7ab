// DataCode CLI - runs compiled DataCode bytecode artifacts
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/datacode/export"
	"github.com/chazu/datacode/manifest"
	"github.com/chazu/datacode/pkg/bytecode"
	"github.com/chazu/datacode/vm"
)

type options struct {
	verbose    bool
	disasm     bool
	globals    bool
	exportPath string
	configDir  string
	program    string
}

func main() {
	var opts options
	flag.BoolVar(&opts.verbose, "v", false, "Verbose output (debug logging)")
	flag.BoolVar(&opts.disasm, "disasm", false, "Print the program disassembly before running")
	flag.BoolVar(&opts.globals, "globals", false, "Print the named globals after running")
	flag.StringVar(&opts.exportPath, "export", "", "Export globals to an SQLite database")
	flag.StringVar(&opts.configDir, "config", ".", "Directory to search for datacode.toml")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: datacode [options] program.dcb\n\n")
		fmt.Fprintf(os.Stderr, "Runs a compiled DataCode program.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  datacode build/main.dcb                 # Run a program\n")
		fmt.Fprintf(os.Stderr, "  datacode -disasm build/main.dcb         # Show bytecode, then run\n")
		fmt.Fprintf(os.Stderr, "  datacode -export out.db build/main.dcb  # Run and export globals\n")
	}
	flag.Parse()
	opts.program = flag.Arg(0)

	os.Exit(run(opts, os.Stdout, os.Stderr))
}

func run(opts options, stdout, stderr io.Writer) int {
	m, err := manifest.FindAndLoad(opts.configDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	cfg := vm.DefaultConfig()
	verbosity := 0
	var logPath *string
	if m != nil {
		cfg = m.EngineConfig()
		verbosity = m.Log.Verbosity
		logPath = m.LogFile()
		if opts.program == "" {
			opts.program = m.ProgramPath()
		}
		if opts.exportPath == "" {
			opts.exportPath = m.ExportPath()
		}
	}
	if opts.verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, logPath)
	log := commonlog.GetLogger("datacode")

	if opts.program == "" {
		fmt.Fprintf(stderr, "Error: no program given and no [run] program in datacode.toml\n")
		return 2
	}

	p, err := bytecode.ReadFile(opts.program)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	log.Debugf("loaded %s (%d functions)", opts.program, len(p.Functions))

	if opts.disasm {
		fmt.Fprint(stdout, p.Disassemble())
	}

	interp := vm.New(builtins(stdout), cfg)
	result, err := interp.Run(p)
	if err != nil {
		var f *vm.Fault
		if errors.As(err, &f) {
			fmt.Fprintf(stderr, "Error: %s", f.Trace())
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	if !result.IsNull() {
		fmt.Fprintln(stdout, result)
	}

	snap := interp.Snapshot()
	if opts.globals {
		printGlobals(stdout, snap)
	}
	if opts.exportPath != "" {
		if err := export.ToSQLite(opts.exportPath, snap); err != nil {
			fmt.Fprintf(stderr, "Error: export failed: %v\n", err)
			return 1
		}
	}
	return 0
}

func printGlobals(w io.Writer, snap *vm.Snapshot) {
	for _, v := range snap.Vars {
		marker := ""
		if v.Explicit {
			marker = " (global)"
		}
		fmt.Fprintf(w, "%s%s = %s\n", v.Name, marker, v.Value)
	}
	for _, r := range snap.Relations {
		fmt.Fprintf(w, "relation %s\n", r)
	}
	for _, pk := range snap.PrimaryKeys {
		fmt.Fprintf(w, "primary key %s.%s\n", pk.Table, pk.Column)
	}
}

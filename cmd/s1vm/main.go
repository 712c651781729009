package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Neopallium/s1vm/engine"
	"github.com/Neopallium/s1vm/isa"
	"github.com/Neopallium/s1vm/runtime"
)

func main() {
	var (
		progName    = flag.String("prog", "", "Built-in program to run")
		funcName    = flag.String("func", "", "Exported function to call (optional)")
		argsStr     = flag.String("args", "", "Call arguments (comma-separated)")
		fuel        = flag.Uint64("fuel", 0, "Hard fuel limit (0 = unlimited)")
		slice       = flag.Uint64("slice", 0, "Fuel slice per scheduling round (0 = run to completion)")
		pages       = flag.Uint("pages", 0, "Memory growth cap in pages (0 = module's declared max)")
		depth       = flag.Uint("depth", 0, "Call depth limit (0 = default)")
		list        = flag.Bool("list", false, "List exported functions and exit")
		verbose     = flag.Bool("v", false, "Verbose engine logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *progName == "" {
		fmt.Fprintln(os.Stderr, "Usage: s1vm -prog <name> [-func name] [-args v1,v2] [-fuel n] [-slice n]")
		fmt.Fprintln(os.Stderr, "       s1vm -prog <name> -list")
		fmt.Fprintln(os.Stderr, "       s1vm -prog <name> -i  (interactive mode)")
		fmt.Fprintln(os.Stderr, "\nBuilt-in programs:")
		for _, p := range demoPrograms {
			fmt.Fprintf(os.Stderr, "  %-8s %s\n", p.name, p.desc)
		}
		os.Exit(1)
	}

	prog, ok := findProgram(*progName)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown program %q\n", *progName)
		os.Exit(1)
	}

	opts := instanceOptions(*fuel, *slice, *pages, *depth)

	if *interactive {
		if err := runInteractive(prog, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(prog, opts, *funcName, *argsStr, *list, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func instanceOptions(fuel, slice uint64, pages, depth uint) []runtime.InstanceOption {
	var opts []runtime.InstanceOption
	if fuel > 0 {
		opts = append(opts, runtime.WithFuelLimit(fuel))
	}
	if slice > 0 {
		opts = append(opts, runtime.WithFuelSlice(slice))
	}
	if pages > 0 {
		opts = append(opts, runtime.WithMaxMemoryPages(uint32(pages)))
	}
	if depth > 0 {
		opts = append(opts, runtime.WithMaxCallDepth(int(depth)))
	}
	return opts
}

func newRuntime(prog demoProgram, verbose bool) (*runtime.Runtime, *runtime.Module, error) {
	var ropts []runtime.Option
	if verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return nil, nil, err
		}
		ropts = append(ropts, runtime.WithLogger(logger))
	}

	rt := runtime.New(ropts...)
	if prog.hosts != nil {
		if err := prog.hosts(rt); err != nil {
			rt.Close(context.Background())
			return nil, nil, fmt.Errorf("register hosts: %w", err)
		}
	}

	mod, err := rt.LoadModule(prog.name, prog.build())
	if err != nil {
		rt.Close(context.Background())
		return nil, nil, fmt.Errorf("load %s: %w", prog.name, err)
	}
	return rt, mod, nil
}

func run(prog demoProgram, opts []runtime.InstanceOption, funcName, argsStr string, listOnly, verbose bool) error {
	ctx := context.Background()

	rt, mod, err := newRuntime(prog, verbose)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	exports := mod.Exports()
	fmt.Printf("Program: %s (%s)\n\nExported functions:\n", prog.name, prog.desc)
	for _, name := range exports {
		sig, _ := mod.ExportType(name)
		fmt.Printf("  %s%s\n", name, sig)
	}

	if listOnly {
		return nil
	}

	if funcName == "" {
		if len(exports) == 1 {
			funcName = exports[0]
		} else {
			fmt.Printf("\nUse -func to pick a function to call.\n")
			return nil
		}
	}

	sig, ok := mod.ExportType(funcName)
	if !ok {
		return fmt.Errorf("no export %q", funcName)
	}
	args, err := parseArgs(argsStr, sig)
	if err != nil {
		return err
	}

	inst, err := mod.Instantiate(ctx, opts...)
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}
	defer inst.Close(ctx)

	fmt.Printf("\nCalling %s(%s)...\n", funcName, argsStr)
	out, err := inst.Call(ctx, funcName, args...)
	if err != nil {
		return fmt.Errorf("call %s: %w", funcName, err)
	}

	rounds := 0
	for {
		switch {
		case out.Completed():
			if v, has := out.Result(); has {
				fmt.Printf("Result: %s\n", v)
			} else {
				fmt.Printf("Completed.\n")
			}
			if rounds > 0 {
				fmt.Printf("(%d fuel slice rounds)\n", rounds)
			}
			return nil

		case out.Trapped() != nil:
			return fmt.Errorf("trap: %v", out.Trapped())

		default:
			sess := out.Suspended()
			if host := sess.WaitingOn(); host != "" {
				out, err = resumeHost(ctx, sess, host)
			} else {
				rounds++
				out, err = sess.Resume(ctx)
			}
			if err != nil {
				return err
			}
		}
	}
}

// resumeHost reads the waiting host function's completion value from the
// terminal and resumes the suspended call with it.
func resumeHost(ctx context.Context, sess *runtime.CallSession, host string) (*runtime.Outcome, error) {
	t, ok := sess.WaitingType()
	if !ok {
		return sess.Resume(ctx)
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("suspended waiting on host %q with no terminal to supply a value", host)
	}
	fmt.Printf("Suspended waiting on host %q. Completion value (%s): ", host, t)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return nil, err
	}
	v, err := parseValue(strings.TrimSpace(line), t)
	if err != nil {
		return nil, err
	}
	return sess.Resume(ctx, v)
}

func parseArgs(argsStr string, sig isa.FuncType) ([]engine.Value, error) {
	var parts []string
	if argsStr != "" {
		parts = strings.Split(argsStr, ",")
	}
	if len(parts) != len(sig.Params) {
		return nil, fmt.Errorf("signature %s takes %d arguments, got %d", sig, len(sig.Params), len(parts))
	}
	args := make([]engine.Value, len(parts))
	for i, s := range parts {
		v, err := parseValue(strings.TrimSpace(s), sig.Params[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}

func parseValue(s string, t isa.ValType) (engine.Value, error) {
	switch t {
	case isa.I32:
		v, err := strconv.ParseInt(s, 0, 32)
		if err != nil {
			return engine.Value{}, fmt.Errorf("parse %q as i32: %w", s, err)
		}
		return engine.I32Val(int32(v)), nil
	case isa.I64:
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return engine.Value{}, fmt.Errorf("parse %q as i64: %w", s, err)
		}
		return engine.I64Val(v), nil
	case isa.F32:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return engine.Value{}, fmt.Errorf("parse %q as f32: %w", s, err)
		}
		return engine.F32Val(float32(v)), nil
	case isa.F64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return engine.Value{}, fmt.Errorf("parse %q as f64: %w", s, err)
		}
		return engine.F64Val(v), nil
	default:
		return engine.Value{}, fmt.Errorf("unsupported value type %s", t)
	}
}

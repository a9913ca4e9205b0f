package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/component-host/engine"
	"github.com/wippyai/component-host/executor"
	"github.com/wippyai/component-host/host"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to component wasm file")
		watchDir    = flag.String("watch", "", "Watch a directory of component files")
		funcName    = flag.String("func", "", "Method to invoke (optional)")
		argsStr     = flag.String("args", "", "Comma-separated arguments")
		timeout     = flag.Duration("timeout", 0, "Execution timeout (default 30s)")
		list        = flag.Bool("list", false, "List exported methods and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	if *wasmFile == "" && *watchDir == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -wasm <file.wasm> [-func name] [-args a,b] [-timeout 30s]")
		fmt.Fprintln(os.Stderr, "       run -wasm <file.wasm> -list")
		fmt.Fprintln(os.Stderr, "       run -wasm <file.wasm> -i  (interactive mode)")
		fmt.Fprintln(os.Stderr, "       run -watch <dir>  (mirror a component directory)")
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	engine.SetLogger(logger.Named("engine"))

	if *interactive {
		if *wasmFile == "" {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs -wasm")
			os.Exit(1)
		}
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*wasmFile, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*wasmFile, *watchDir, *funcName, *argsStr, *timeout, *list, *verbose, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(wasmFile, watchDir, funcName, argsStr string, timeout time.Duration, listOnly, verbose bool, logger *zap.Logger) error {
	ctx := context.Background()

	h, err := host.New(ctx, host.Config{
		DefaultTimeout: timeout,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("create host: %w", err)
	}
	defer h.Close(ctx)

	if watchDir != "" {
		return watch(ctx, h, watchDir)
	}

	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	name := componentName(wasmFile)
	id, err := h.Upload(ctx, data, name)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	tc, ok := h.Component(id)
	if !ok {
		return fmt.Errorf("component %s missing after upload", id)
	}

	fmt.Printf("Component: %s\n", tc.Metadata.Name)
	fmt.Printf("ID: %s\n", id)
	fmt.Printf("Size: %d bytes\n", tc.Metadata.Size)
	fmt.Printf("Complexity: %d/100\n", tc.Metadata.Analysis.Stats.Complexity)
	fmt.Printf("Security risk: %s\n", tc.Security.Risk)
	for _, w := range tc.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}

	methods := tc.Module.Methods()
	fmt.Printf("\nExported methods:\n")
	if defs := tc.TypeDefs; defs != "" {
		for _, line := range strings.Split(strings.TrimRight(defs, "\n"), "\n") {
			fmt.Printf("  %s\n", line)
		}
	} else {
		fmt.Printf("  (none)\n")
	}

	if listOnly {
		return nil
	}

	if funcName == "" {
		funcName = defaultMethod(methods)
		if funcName == "" {
			fmt.Printf("\nNo method specified and no obvious entry point found.\n")
			fmt.Printf("Use -func to specify a method to call.\n")
			return nil
		}
	}

	args, err := parseArgs(methods, funcName, argsStr)
	if err != nil {
		return err
	}

	req := executor.Request{
		ComponentID: id,
		Method:      funcName,
		Args:        args,
		Timeout:     timeout,
	}
	if verbose {
		req.OnProgress = func(p executor.Progress) {
			fmt.Printf("[%s] %s\n", p.Stage, p.Message)
		}
	}

	fmt.Printf("\nCalling %s(%s)...\n", funcName, argsStr)
	result := h.Execute(ctx, req)
	if !result.Success {
		return fmt.Errorf("execute: %s", result.Error)
	}

	fmt.Printf("Result: %v\n", result.Value)
	fmt.Printf("Elapsed: %s\n", result.Elapsed)
	if result.MemoryBytes > 0 {
		fmt.Printf("Memory: %d bytes\n", result.MemoryBytes)
	}
	return nil
}

// watch mirrors a component directory into the host until interrupted.
func watch(ctx context.Context, h *host.Host, dir string) error {
	w, err := h.Watch(ctx, dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	defer w.Close()

	fmt.Printf("Watching %s, press Ctrl-C to stop.\n", dir)
	for _, m := range h.List(nil) {
		fmt.Printf("  %s (%s)\n", m.Name, shortID(m.Hash))
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}

func componentName(path string) string {
	base := path
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	return strings.TrimSuffix(base, ".wasm")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// cooke calculates decision makers with Cooke's classical model.
//
// Usage:
//
//	cooke calculate  -p project.json [--weight global|item|equal|user] [--alpha a | --optimise] [-o result.json]
//	cooke robustness -p project.json --items|--experts --max-exclude K [--min-exclude J]
//	cooke run        -p project.json --plan plan.yaml [-o result.json]
//	cooke scores     -p project.json
//	cooke convert    in.dtt out.json
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runCLI(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// runCLI executes the command line and then releases what the global flags
// started, also when the command failed.
func runCLI(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

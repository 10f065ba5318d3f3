package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.design/x/mainthread"

	"github.com/doeshing/kmd/internal/infrastructure/cli"
)

// Hotkey registration must happen on the process main thread on macOS, so
// the whole CLI runs under mainthread.Init.
func main() {
	mainthread.Init(run)
}

func run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, err := cli.NewRootCmd(ctx, cli.Options{Verbose: isVerbose()})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func isVerbose() bool {
	if strings.EqualFold(os.Getenv("KMD_DEBUG"), "1") || strings.EqualFold(os.Getenv("KMD_DEBUG"), "true") {
		return true
	}
	for _, arg := range os.Args[1:] {
		if arg == "--verbose" || arg == "-v" {
			return true
		}
	}
	return false
}

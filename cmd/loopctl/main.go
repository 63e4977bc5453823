// Command loopctl drives the loop call-setup client from the shell.
//
// Configuration is read from LOOP_* environment variables; see EnvConfig.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	cfg, err := parseEnv()
	if err != nil {
		exitf("%v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], cfg, os.Stdout, os.Stderr); err != nil {
		exitf("loopctl: %v", err)
	}
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

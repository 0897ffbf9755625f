package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shandysiswandi/goledger/internal/app"
)

func main() {
	// goledger [-config path] <transactions.csv> replays a file and exits;
	// without arguments the HTTP server is started.
	if len(os.Args) > 1 {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		code := app.RunCLI(ctx, os.Args[1:], os.Stdout, os.Stderr)
		stop()
		os.Exit(code)
	}

	application := app.New()    // Initialize the application
	wait := application.Start() // Start the application and wait for the termination signal
	<-wait                      // Wait for the application to receive a termination signal

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	application.Stop(ctx) // Stop the application gracefully
}

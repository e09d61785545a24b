// Command client runs the oxy sprite demo in a native window, or in a browser canvas when built with
// GOOS=js GOARCH=wasm.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/Carmen-Shannon/oxy-runtime/client"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := client.Run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

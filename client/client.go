// Package client is the runnable front end of the runtime: it turns a command line into an engine.Config,
// installs a logger and runs the sprite demo until the window closes.
package client

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Carmen-Shannon/oxy-runtime/common"
	"github.com/Carmen-Shannon/oxy-runtime/engine"
	"go.uber.org/zap"
)

// EnvFile is the optional dotenv file read for OXY_* defaults.
const EnvFile = ".env"

// NewLogger builds the process logger: a colored console logger at debug level, or the JSON production
// logger at info level.
//
// Parameters:
//   - debug: true for the development logger
//
// Returns:
//   - *zap.Logger: the logger
//   - error: error if the logger cannot open its outputs
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Run parses args, runs the demo and returns the process exit code.
//
// Parameters:
//   - ctx: cancelling ctx shuts the runtime down cleanly
//   - args: the command line arguments without the program name
//   - stderr: where usage and startup errors are written
//   - options: extra engine options, appended after the demo setup
//
// Returns:
//   - int: 0 on a clean shutdown, 1 on a runtime failure, 2 on an initialization or usage failure
func Run(ctx context.Context, args []string, stderr io.Writer, options ...engine.EngineBuilderOption) int {
	opts, err := ParseOptions("oxy", args, EnvFile, os.Getenv, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return int(engine.ExitClean)
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return int(engine.ExitInitFailure)
	}

	log, err := NewLogger(opts.Debug)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return int(engine.ExitInitFailure)
	}
	defer log.Sync()
	common.SetLogger(log)
	defer common.SetLogger(nil)

	options = append([]engine.EngineBuilderOption{engine.WithSetup(SetupDemo)}, options...)
	status, err := engine.Run(ctx, opts.Config, options...)
	if err != nil {
		log.Error("runtime stopped", zap.Stringer("status", status), zap.Error(err))
	}
	return int(status)
}

// SetupDemo creates the demo scene and registers it on the scheduler at z-index 0.
//
// Parameters:
//   - rt: the started runtime
//
// Returns:
//   - error: error if the scene's resources cannot be created
func SetupDemo(rt *engine.Runtime) error {
	size := rt.Surface.Descriptor()
	d, err := NewDemo(rt.Registry, int(size.Width), int(size.Height))
	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	rt.Scheduler.AddScene(0, d)
	return nil
}

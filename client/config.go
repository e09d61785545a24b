package client

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-runtime/common"
	"github.com/Carmen-Shannon/oxy-runtime/engine"
	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
	"github.com/joho/godotenv"
)

// Environment keys read from the process environment and the optional .env file.
const (
	EnvBackend    = "OXY_BACKEND"
	EnvPower      = "OXY_POWER"
	EnvWidth      = "OXY_WIDTH"
	EnvHeight     = "OXY_HEIGHT"
	EnvTarget     = "OXY_TARGET"
	EnvCanvas     = "OXY_CANVAS"
	EnvPresent    = "OXY_PRESENT_MODE"
	EnvFrameLimit = "OXY_FRAME_LIMIT"
	EnvContent    = "OXY_CONTENT"
	EnvDebug      = "OXY_DEBUG"
)

// Options is the parsed client command line.
type Options struct {
	Config engine.Config
	Debug  bool
}

// ParseOptions builds Options from args. Flag defaults come from the environment first, then from the
// .env file at envFile, then from engine.DefaultConfig. A missing .env file is not an error.
//
// Parameters:
//   - name: the program name used in usage output
//   - args: the command line arguments without the program name
//   - envFile: path of the .env file, empty to skip it
//   - getenv: environment lookup, usually os.Getenv
//   - output: where usage and flag errors are written
//
// Returns:
//   - Options: the parsed options
//   - error: flag.ErrHelp, a flag error, or a value that does not parse
func ParseOptions(name string, args []string, envFile string, getenv func(string) string, output io.Writer) (Options, error) {
	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Options{}, fmt.Errorf("client: read %s: %w", envFile, err)
		}
		if m != nil {
			dotenv = m
		}
	}
	lookup := func(key, fallback string) string {
		return common.Coalesce(getenv(key), dotenv[key], fallback)
	}

	def := engine.DefaultConfig()
	fset := flag.NewFlagSet(name, flag.ContinueOnError)
	fset.SetOutput(output)
	backend := fset.String("backend", lookup(EnvBackend, def.Backend.String()), "graphics backend: auto, vulkan, metal, dx12, gl, webgpu or headless")
	power := fset.String("power", lookup(EnvPower, def.Power.String()), "adapter power preference: low-power or high-performance")
	width := fset.String("width", lookup(EnvWidth, strconv.Itoa(def.Width)), "initial width in pixels")
	height := fset.String("height", lookup(EnvHeight, strconv.Itoa(def.Height)), "initial height in pixels")
	target := fset.String("target", lookup(EnvTarget, def.Target.String()), "presentation target: native-window or web-canvas")
	canvas := fset.String("canvas", lookup(EnvCanvas, def.CanvasID), "canvas element id for the web-canvas target")
	present := fset.String("present", lookup(EnvPresent, "vsync"), "present mode: vsync or uncapped")
	limit := fset.String("fps", lookup(EnvFrameLimit, "0"), "frame limit in frames per second, 0 is uncapped")
	content := fset.String("content", lookup(EnvContent, ""), "content directory or .oxa archive")
	maxFrames := fset.Uint64("frames", 0, "stop after this many frames, 0 runs until the window closes")
	profile := fset.Bool("profile", false, "log frame timings")
	debug := fset.Bool("debug", lookup(EnvDebug, "") != "", "development logging")
	if err := fset.Parse(args); err != nil {
		return Options{}, err
	}

	cfg := def
	cfg.MaxFrames = *maxFrames
	cfg.Profiling = *profile
	cfg.CanvasID = *canvas
	cfg.ContentPath = *content
	cfg.Prefetch = fset.Args()

	var errs []error
	var err error
	if cfg.Backend, err = gpu.ParseBackend(*backend); err != nil {
		errs = append(errs, err)
	}
	if cfg.Power, err = gpu.ParsePowerPreference(*power); err != nil {
		errs = append(errs, err)
	}
	if cfg.Target, err = engine.ParseTarget(*target); err != nil {
		errs = append(errs, err)
	}
	if cfg.PresentMode, err = parsePresentMode(*present); err != nil {
		errs = append(errs, err)
	}
	if cfg.Width, err = strconv.Atoi(*width); err != nil {
		errs = append(errs, fmt.Errorf("client: width: %w", err))
	}
	if cfg.Height, err = strconv.Atoi(*height); err != nil {
		errs = append(errs, fmt.Errorf("client: height: %w", err))
	}
	if cfg.FrameLimit, err = strconv.ParseFloat(*limit, 64); err != nil {
		errs = append(errs, fmt.Errorf("client: fps: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return Options{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Options{}, err
	}
	return Options{Config: cfg, Debug: *debug}, nil
}

func parsePresentMode(s string) (gpu.PresentMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "vsync", "fifo":
		return gpu.PresentModeVSync, nil
	case "uncapped", "immediate", "mailbox":
		return gpu.PresentModeUncapped, nil
	}
	return gpu.PresentModeVSync, fmt.Errorf("client: unknown present mode %q", s)
}

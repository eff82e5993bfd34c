package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/akamensky/argparse"
	"github.com/nvr-ai/go-stabilize/config"
	"github.com/nvr-ai/go-stabilize/display"
	"github.com/nvr-ai/go-stabilize/logging"
	"github.com/nvr-ai/go-stabilize/stabilizer"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	displayFyne   = "fyne"
	displayWindow = "window"
	displayNone   = "none"

	// maxSurfaceWidth caps each grid cell of the fyne window.
	maxSurfaceWidth = 960
)

// flags holds the parsed command line.
type flags struct {
	inputs    []string
	devices   []int
	enhance   bool
	debug     bool
	display   string
	config    string
	estimator string
	logLevel  string
	logFormat string
	report    int
	warmup    int
}

func parseFlags(args []string) (flags, error) {
	parser := argparse.NewParser("stabilize", "Real-time per-camera video stabilization")
	inputs := parser.StringList("i", "input", &argparse.Options{
		Required: true,
		Help:     "Source to stabilize: device index, video path/URI or frame directory. Repeat for more cameras",
	})
	devices := parser.IntList("d", "device", &argparse.Options{
		Help: "Accelerator ordinal, assigned round-robin across inputs",
	})
	enhance := parser.Flag("e", "enhance", &argparse.Options{Help: "Enable the enhancement stage"})
	debug := parser.Flag("g", "debug", &argparse.Options{Help: "Record original and stabilized frames side by side"})
	surface := parser.Selector("s", "display", []string{displayFyne, displayWindow, displayNone}, &argparse.Options{
		Default: displayFyne,
		Help:    "Display backend",
	})
	cfgPath := parser.String("c", "config", &argparse.Options{Help: "JSON config file"})
	estimator := parser.Selector("m", "estimator", []string{config.EstimatorRANSAC, config.EstimatorLeastSquares}, &argparse.Options{
		Help: "Motion estimator, overrides the config file",
	})
	level := parser.String("l", "log-level", &argparse.Options{Default: "info", Help: "Log level"})
	format := parser.Selector("f", "log-format", []string{string(logging.FormatConsole), string(logging.FormatJSON)}, &argparse.Options{
		Default: string(logging.FormatConsole),
		Help:    "Log encoding",
	})
	report := parser.Int("r", "report", &argparse.Options{Help: "Stage timing report interval in seconds, 0 disables"})
	warmup := parser.Int("w", "warmup", &argparse.Options{Help: "Warm-up detection attempts, 0 retries until stopped"})

	if err := parser.Parse(args); err != nil {
		return flags{}, errors.New(parser.Usage(err))
	}

	return flags{
		inputs:    *inputs,
		devices:   *devices,
		enhance:   *enhance,
		debug:     *debug,
		display:   *surface,
		config:    *cfgPath,
		estimator: *estimator,
		logLevel:  *level,
		logFormat: *format,
		report:    *report,
		warmup:    *warmup,
	}, nil
}

// loadConfig reads the config file, if any, and applies the flag overrides.
func loadConfig(f flags) (config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		if cfg, err = config.Load(f.config); err != nil {
			return cfg, err
		}
	}
	if f.estimator != "" {
		cfg.Estimator = f.estimator
	}
	if f.debug {
		cfg.Debug = true
	}
	if f.report > 0 {
		cfg.ReportInterval = time.Duration(f.report) * time.Second
	}
	if f.warmup > 0 {
		cfg.WarmupAttempts = f.warmup
	}
	return cfg, cfg.Validate()
}

// deviceFor assigns devices round-robin; with none given every instance
// runs on ordinal 0.
func deviceFor(devices []int, instance int) int {
	if len(devices) == 0 {
		return 0
	}
	return devices[instance%len(devices)]
}

func main() {
	f, err := parseFlags(os.Args)
	if err != nil {
		fmt.Fprint(os.Stderr, err)
		os.Exit(1)
	}

	log := logging.New(os.Stdout, logging.Format(f.logFormat), logging.ParseLevel(f.logLevel))

	cfg, err := loadConfig(f)
	if err != nil {
		log.Fatal().Err(err).Msg("can't load config")
	}

	running := &atomic.Bool{}
	running.Store(true)

	var (
		surfaces *display.Table
		fyneApp  fyne.App
		window   fyne.Window
	)
	switch f.display {
	case displayFyne:
		fyneApp = app.NewWithID("ai.nvr.stabilize")
		surfaces, window = display.NewFyneTable(fyneApp, len(f.inputs), "stabilize", maxSurfaceWidth)
		window.SetCloseIntercept(func() {
			running.Store(false)
			window.Close()
		})
	case displayWindow:
		surfaces = display.NewTable(len(f.inputs), func(i int) display.Surface {
			return display.NewWindowSurface(fmt.Sprintf("stabilize %d: %s", i, f.inputs[i]))
		})
	default:
		surfaces = display.NewTable(len(f.inputs), func(int) display.Surface {
			return &display.NullSurface{}
		})
	}
	defer surfaces.Close()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signals
		log.Info().Stringer("signal", sig).Msg("stopping instances")
		running.Store(false)
	}()

	shared := stabilizer.Shared{Running: running, Surfaces: surfaces}

	var wg sync.WaitGroup
	for i, input := range f.inputs {
		device := deviceFor(f.devices, i)
		opts := stabilizer.Options{
			Source:   input,
			Instance: i,
			Device:   device,
			Enhance:  f.enhance,
			Config:   cfg,
		}
		wg.Add(1)
		go func(l zerolog.Logger) {
			defer wg.Done()
			stabilizer.Run(opts, shared, l)
		}(logging.ForInstance(log, i, input, device))
	}

	log.Info().Int("instances", len(f.inputs)).Str("display", f.display).Msg("stabilizer started")

	if fyneApp != nil {
		go func() {
			wg.Wait()
			fyne.Do(fyneApp.Quit)
		}()
		window.ShowAndRun()
		running.Store(false)
	}
	wg.Wait()

	log.Info().Msg("all instances closed")
}

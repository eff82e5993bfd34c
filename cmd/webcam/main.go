package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/akamensky/argparse"
	"github.com/nvr-ai/go-stabilize/config"
	"github.com/nvr-ai/go-stabilize/display"
	"github.com/nvr-ai/go-stabilize/logging"
	"github.com/nvr-ai/go-stabilize/stabilizer"
	"github.com/rs/zerolog"
)

// fpsMeter counts observed frames and reports a rate once per second.
type fpsMeter struct {
	frames int
	last   time.Time
	fps    float64
}

// observe records one frame and reports whether a new reading is available.
func (m *fpsMeter) observe(now time.Time) bool {
	if m.last.IsZero() {
		m.last = now
	}
	m.frames++
	elapsed := now.Sub(m.last).Seconds()
	if elapsed < 1.0 {
		return false
	}
	m.fps = float64(m.frames) / elapsed
	m.frames = 0
	m.last = now
	return true
}

func main() {
	parser := argparse.NewParser("webcam", "Preview one stabilized camera in a window")
	source := parser.String("i", "input", &argparse.Options{Default: "0", Help: "Device index, video path/URI or frame directory"})
	device := parser.Int("d", "device", &argparse.Options{Default: 0, Help: "Accelerator ordinal"})
	enhance := parser.Flag("e", "enhance", &argparse.Options{Help: "Enable the enhancement stage"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Fprint(os.Stderr, parser.Usage(err))
		os.Exit(1)
	}

	log := logging.NewConsole(zerolog.InfoLevel)

	running := &atomic.Bool{}
	running.Store(true)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	go func() {
		<-signals
		running.Store(false)
	}()

	surfaces := display.NewTable(1, func(int) display.Surface {
		return display.NewWindowSurface("stabilized " + *source)
	})
	defer surfaces.Close()

	meter := &fpsMeter{}
	stabilizer.Run(stabilizer.Options{
		Source:  *source,
		Device:  *device,
		Enhance: *enhance,
		Config:  config.Default(),
		Observer: func(s stabilizer.FrameStats) {
			if meter.observe(time.Now()) {
				log.Info().
					Float64("fps", meter.fps).
					Int("points", s.Tracked).
					Float64("dx", s.Residual.DX).
					Float64("dy", s.Residual.DY).
					Msg("preview")
			}
		},
	}, stabilizer.Shared{Running: running, Surfaces: surfaces}, logging.ForInstance(log, 0, *source, *device))
}

// Package display holds the surfaces stabilized frames are presented on and
// the fixed table that hands one surface to each instance.
package display

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrNoSlot is returned when an instance asks for a slot outside the table.
var ErrNoSlot = errors.New("no display slot")

// Surface presents RGB-ordered frames for a single instance.
type Surface interface {
	Show(rgb gocv.Mat) error
	Close() error
}

// Table is the pre-sized set of surfaces shared by every instance. Each
// instance only ever touches the slot at its own index, so slots need no
// locking.
type Table struct {
	slots    []Surface
	released []sync.Once
}

// NewTable creates n slots, filling slot i with newSurface(i).
func NewTable(n int, newSurface func(i int) Surface) *Table {
	t := &Table{slots: make([]Surface, n), released: make([]sync.Once, n)}
	for i := range t.slots {
		t.slots[i] = newSurface(i)
	}
	return t
}

// Slot returns the surface of instance i.
func (t *Table) Slot(i int) (Surface, error) {
	if t == nil || i < 0 || i >= len(t.slots) {
		return nil, errors.Wrapf(ErrNoSlot, "instance %d", i)
	}
	return t.slots[i], nil
}

// Len returns the number of slots.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.slots)
}

// Release closes the surface of instance i. Only the first call for a slot
// closes it; later calls return nil.
func (t *Table) Release(i int) error {
	if t == nil || i < 0 || i >= len(t.slots) {
		return errors.Wrapf(ErrNoSlot, "instance %d", i)
	}
	var err error
	t.released[i].Do(func() {
		err = t.slots[i].Close()
	})
	return err
}

// Close releases every slot still held and returns the first error.
func (t *Table) Close() error {
	var first error
	for i := range t.slots {
		if err := t.Release(i); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NullSurface discards frames and counts them. It backs headless runs.
type NullSurface struct {
	frames atomic.Int64
}

// Show implements Surface.
func (s *NullSurface) Show(rgb gocv.Mat) error {
	if rgb.Empty() {
		return errors.New("empty frame")
	}
	s.frames.Add(1)
	return nil
}

// Frames returns the number of frames shown.
func (s *NullSurface) Frames() int64 {
	return s.frames.Load()
}

// Close implements Surface.
func (s *NullSurface) Close() error {
	return nil
}

// WindowSurface shows frames in a highgui window.
type WindowSurface struct {
	window *gocv.Window
	bgr    gocv.Mat
}

// NewWindowSurface opens a highgui window named title.
func NewWindowSurface(title string) *WindowSurface {
	return &WindowSurface{
		window: gocv.NewWindow(title),
		bgr:    gocv.NewMat(),
	}
}

// Show implements Surface.
func (s *WindowSurface) Show(rgb gocv.Mat) error {
	if rgb.Empty() {
		return errors.New("empty frame")
	}
	gocv.CvtColor(rgb, &s.bgr, gocv.ColorRGBToBGR)
	s.window.IMShow(s.bgr)
	s.window.WaitKey(1)
	return nil
}

// Close implements Surface.
func (s *WindowSurface) Close() error {
	s.bgr.Close()
	return s.window.Close()
}

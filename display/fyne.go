package display

import (
	"fmt"
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// FyneSurface presents frames on a canvas image inside a fyne window.
type FyneSurface struct {
	image    *canvas.Image
	bgr      gocv.Mat
	maxWidth uint
}

// NewFyneSurface creates a surface whose frames are downscaled to at most
// maxWidth pixels wide. Zero keeps the native width.
func NewFyneSurface(maxWidth uint) *FyneSurface {
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillContain
	img.SetMinSize(fyne.NewSize(320, 240))

	return &FyneSurface{
		image:    img,
		bgr:      gocv.NewMat(),
		maxWidth: maxWidth,
	}
}

// CanvasObject returns the widget to place in a layout.
func (s *FyneSurface) CanvasObject() fyne.CanvasObject {
	return s.image
}

// Show implements Surface. The frame is converted on the calling goroutine;
// only the canvas swap runs on the fyne thread.
func (s *FyneSurface) Show(rgb gocv.Mat) error {
	img, err := s.render(rgb)
	if err != nil {
		return err
	}

	fyne.Do(func() {
		s.image.Image = img
		s.image.Refresh()
	})
	return nil
}

// render turns an RGB Mat into a Go image sized for the surface.
func (s *FyneSurface) render(rgb gocv.Mat) (image.Image, error) {
	if rgb.Empty() {
		return nil, errors.New("empty frame")
	}

	// ToImage expects BGR channel order.
	gocv.CvtColor(rgb, &s.bgr, gocv.ColorRGBToBGR)
	img, err := s.bgr.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "convert frame")
	}

	if s.maxWidth > 0 && uint(img.Bounds().Dx()) > s.maxWidth {
		img = resize.Resize(s.maxWidth, 0, img, resize.Bilinear)
	}
	return img, nil
}

// Close implements Surface.
func (s *FyneSurface) Close() error {
	return s.bgr.Close()
}

// NewFyneTable creates one FyneSurface per instance and lays them out in a
// grid inside a single window.
//
// Arguments:
//   - app: The running fyne application.
//   - n: The number of instances.
//   - title: The window title.
//   - maxWidth: The per-surface width cap, zero for native width.
//
// Returns:
//   - *Table: The surface table to share with the instances.
//   - fyne.Window: The window holding the grid. The caller shows it.
func NewFyneTable(app fyne.App, n int, title string, maxWidth uint) (*Table, fyne.Window) {
	columns := 1
	for columns*columns < n {
		columns++
	}

	objects := make([]fyne.CanvasObject, 0, n)
	table := NewTable(n, func(i int) Surface {
		s := NewFyneSurface(maxWidth)
		objects = append(objects, s.CanvasObject())
		return s
	})

	w := app.NewWindow(fmt.Sprintf("%s (%d)", title, n))
	w.SetContent(container.NewGridWithColumns(columns, objects...))
	return table, w
}

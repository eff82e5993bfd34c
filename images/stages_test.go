package images

import (
	"image"
	"testing"

	"github.com/nvr-ai/go-stabilize/motion"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func gray(t *testing.T, bgr gocv.Mat) gocv.Mat {
	t.Helper()
	g := gocv.NewMat()
	gocv.CvtColor(bgr, &g, gocv.ColorBGRToGray)
	return g
}

func TestFeatureDetector(t *testing.T) {
	gen := NewPatternGenerator(320, 240)

	det, err := NewFeatureDetector(10)
	require.NoError(t, err)
	defer det.Close()

	t.Run("pattern has corners", func(t *testing.T) {
		frame := gen.Frame(0, 0)
		defer frame.Close()
		g := gray(t, frame)
		defer g.Close()

		pts := det.DetectPoints(g)
		assert.NotEmpty(t, pts)
		for _, p := range pts {
			assert.True(t, p.X >= 0 && p.X < 320 && p.Y >= 0 && p.Y < 240)
		}
	})

	t.Run("uniform frame has none", func(t *testing.T) {
		frame := gen.Uniform()
		defer frame.Close()
		g := gray(t, frame)
		defer g.Close()

		assert.Empty(t, det.Detect(g))
	})

	t.Run("empty frame has none", func(t *testing.T) {
		empty := gocv.NewMat()
		defer empty.Close()
		assert.Empty(t, det.Detect(empty))
	})

	t.Run("bad threshold", func(t *testing.T) {
		_, err := NewFeatureDetector(0)
		assert.Equal(t, ErrDetectorInit, errors.Cause(err))
	})
}

func TestFlowTrackerAndEstimator(t *testing.T) {
	gen := NewPatternGenerator(320, 240)
	base := gen.Frame(0, 0)
	defer base.Close()
	shifted := gen.Frame(4, 0)
	defer shifted.Close()

	prev := gray(t, base)
	defer prev.Close()
	curr := gray(t, shifted)
	defer curr.Close()

	det, err := NewFeatureDetector(10)
	require.NoError(t, err)
	defer det.Close()
	pts := det.DetectPoints(prev)
	require.NotEmpty(t, pts)

	tracker := NewFlowTracker()
	defer tracker.Close()

	c, err := tracker.Track(prev, curr, pts)
	require.NoError(t, err)
	require.NoError(t, c.Check())
	assert.Len(t, c.Curr, len(pts))
	assert.Len(t, c.Valid, len(pts))
	assert.Greater(t, c.Tracked(), len(pts)/2)

	t.Run("ransac", func(t *testing.T) {
		d, err := NewAffineEstimator(3).Estimate(c)
		require.NoError(t, err)
		assert.InDelta(t, 4, d.DX, 0.5)
		assert.InDelta(t, 0, d.DY, 0.5)
		assert.InDelta(t, 0, d.DTheta, 0.01)
	})

	t.Run("least squares", func(t *testing.T) {
		d, err := motion.NewRigidEstimator(3).Estimate(c)
		require.NoError(t, err)
		assert.InDelta(t, 4, d.DX, 0.5)
		assert.InDelta(t, 0, d.DY, 0.5)
	})

	t.Run("no points", func(t *testing.T) {
		_, err := tracker.Track(prev, curr, nil)
		assert.Equal(t, ErrNoPoints, err)
	})

	t.Run("empty frame", func(t *testing.T) {
		empty := gocv.NewMat()
		defer empty.Close()
		_, err := tracker.Track(empty, curr, pts)
		assert.Equal(t, ErrEmptyFrame, err)
	})
}

func TestAffineEstimatorDegenerate(t *testing.T) {
	c := motion.Correspondence{
		Prev:  []motion.Point{{X: 1, Y: 1}, {X: 5, Y: 9}, {X: 20, Y: 3}},
		Curr:  []motion.Point{{X: 1, Y: 1}, {X: 5, Y: 9}, {X: 20, Y: 3}},
		Valid: []bool{true, false, true},
	}
	_, err := NewAffineEstimator(3).Estimate(c)
	assert.Equal(t, motion.ErrDegenerateFit, errors.Cause(err))
}

func TestPartialAffineHasNoShear(t *testing.T) {
	var prev, curr []motion.Point
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			p := motion.Point{X: float64(x * 10), Y: float64(y * 10)}
			prev = append(prev, p)
			// Anisotropic scale, which a rotation+translation model cannot express.
			curr = append(curr, motion.Point{X: 1.1*p.X + 2, Y: p.Y - 1})
		}
	}

	a, ok := fitPartialAffine(prev, curr)
	require.True(t, ok)
	assert.InDelta(t, a[0], a[4], 1e-6)
	assert.InDelta(t, -a[1], a[3], 1e-6)
}

func TestWarperCropComputedOnce(t *testing.T) {
	gen := NewPatternGenerator(320, 240)
	frame := gen.Frame(0, 0)
	defer frame.Close()

	w := NewWarper(1.04)
	defer w.Close()

	_, ok := w.CropMatrix()
	assert.False(t, ok)

	out := gocv.NewMat()
	defer out.Close()

	var first motion.Affine
	var checksum string
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Apply(frame, motion.Delta{}, &out))
		crop, ok := w.CropMatrix()
		require.True(t, ok)
		if i == 0 {
			first = crop
			checksum = checksumOf(t, out)
			continue
		}
		assert.Equal(t, first, crop)
		assert.Equal(t, checksum, checksumOf(t, out))
	}

	want := motion.CropTransform(320, 240, 1.04)
	for i := range want {
		assert.InDelta(t, want[i], first[i], 1e-9)
	}
	assert.Equal(t, 320, out.Cols())
	assert.Equal(t, 240, out.Rows())
}

func TestEnhancer(t *testing.T) {
	gen := NewPatternGenerator(160, 120)
	frame := gen.Frame(0, 0)
	defer frame.Close()

	enh, err := NewEnhancer(EnhancerConfig{Diameter: 5, SigmaColor: 45, SigmaSpace: 45})
	require.NoError(t, err)
	defer enh.Close()

	out := gocv.NewMat()
	defer out.Close()
	require.NoError(t, enh.Apply(frame, &out))
	assert.Equal(t, frame.Rows(), out.Rows())
	assert.Equal(t, frame.Cols(), out.Cols())
	assert.Equal(t, 3, out.Channels())

	again := gocv.NewMat()
	defer again.Close()
	require.NoError(t, enh.Apply(frame, &again))
	assert.Equal(t, checksumOf(t, out), checksumOf(t, again))

	plain := gocv.NewMat()
	defer plain.Close()
	require.NoError(t, ToRGB(frame, &plain))
	assert.Greater(t, maxChannelDiff(out, plain), 10.0, "enhancement must change more than the channel order")

	_, err = NewEnhancer(EnhancerConfig{})
	assert.Equal(t, ErrFilterInit, errors.Cause(err))
}

func TestEnhancerOutputIsRGB(t *testing.T) {
	frame := gocv.NewMatWithSize(64, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()
	frame.SetTo(gocv.NewScalar(30, 30, 30, 0))
	fillBGR(frame, image.Rect(0, 0, 32, 64), 255, 0, 0)

	enh, err := NewEnhancer(EnhancerConfig{Diameter: 5, SigmaColor: 45, SigmaSpace: 45})
	require.NoError(t, err)
	defer enh.Close()

	out := gocv.NewMat()
	defer out.Close()
	require.NoError(t, enh.Apply(frame, &out))

	planes := gocv.Split(out)
	defer closeAll(planes)
	// Blue, well inside the block, sits in the last channel.
	assert.Less(t, planes[0].GetUCharAt(32, 12), uint8(50))
	assert.Less(t, planes[1].GetUCharAt(32, 12), uint8(50))
	assert.Greater(t, planes[2].GetUCharAt(32, 12), uint8(200))
}

func TestEnhancerSpreadsSaturation(t *testing.T) {
	// Four low-saturation stripes, saturation roughly 23, 42, 59 and 73.
	frame := gocv.NewMatWithSize(64, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()
	for i, r := range []float64{110, 120, 130, 140} {
		fillBGR(frame, image.Rect(i*16, 0, i*16+16, 64), 100, 100, r)
	}

	enh, err := NewEnhancer(EnhancerConfig{Diameter: 5, SigmaColor: 45, SigmaSpace: 45})
	require.NoError(t, err)
	defer enh.Close()

	out := gocv.NewMat()
	defer out.Close()
	require.NoError(t, enh.Apply(frame, &out))

	inLow, inHigh := saturationRange(t, frame, gocv.ColorBGRToHSV)
	outLow, outHigh := saturationRange(t, out, gocv.ColorRGBToHSV)
	assert.Less(t, inHigh-inLow, 60.0)
	assert.Greater(t, outHigh-outLow, 150.0)
}

func TestMatChecksum(t *testing.T) {
	frame := gocv.NewMatWithSize(32, 32, gocv.MatTypeCV8UC3)
	defer frame.Close()
	frame.SetTo(gocv.NewScalar(0, 0, 0, 0))
	fillBGR(frame, image.Rect(16, 0, 32, 32), 255, 255, 255)

	left := frame.Region(image.Rect(0, 0, 16, 32))
	defer left.Close()
	right := frame.Region(image.Rect(16, 0, 32, 32))
	defer right.Close()
	require.False(t, left.IsContinuous())

	// Regions hash their own pixels, not the parent rows they point into.
	assert.NotEqual(t, checksumOf(t, left), checksumOf(t, right))

	clone := right.Clone()
	defer clone.Close()
	assert.Equal(t, checksumOf(t, clone), checksumOf(t, right))

	empty := gocv.NewMat()
	defer empty.Close()
	assert.Equal(t, "empty", checksumOf(t, empty))
}

func checksumOf(t *testing.T, m gocv.Mat) string {
	t.Helper()
	sum, err := MatChecksum(m)
	require.NoError(t, err)
	return sum
}

// fillBGR paints rect of frame with a BGR color.
func fillBGR(frame gocv.Mat, rect image.Rectangle, b, g, r float64) {
	roi := frame.Region(rect)
	defer roi.Close()
	roi.SetTo(gocv.NewScalar(b, g, r, 0))
}

// saturationRange returns the smallest and largest saturation sampled at
// the center row of every 16 pixel stripe.
func saturationRange(t *testing.T, frame gocv.Mat, code gocv.ColorConversionCode) (float64, float64) {
	t.Helper()
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, code)
	planes := gocv.Split(hsv)
	defer closeAll(planes)

	low, high := 255.0, 0.0
	for x := 8; x < frame.Cols(); x += 16 {
		s := float64(planes[1].GetUCharAt(frame.Rows()/2, x))
		low = min(low, s)
		high = max(high, s)
	}
	return low, high
}

func maxChannelDiff(a, b gocv.Mat) float64 {
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a, b, &diff)

	planes := gocv.Split(diff)
	defer closeAll(planes)
	var worst float64
	for i := range planes {
		_, hi, _, _ := gocv.MinMaxLoc(planes[i])
		worst = max(worst, float64(hi))
	}
	return worst
}

func TestToRGB(t *testing.T) {
	src := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC3)
	defer src.Close()
	src.SetTo(gocv.NewScalar(10, 20, 30, 0))

	dst := gocv.NewMat()
	defer dst.Close()
	require.NoError(t, ToRGB(src, &dst))

	planes := gocv.Split(dst)
	defer closeAll(planes)
	assert.Equal(t, uint8(30), planes[0].GetUCharAt(0, 0))
	assert.Equal(t, uint8(20), planes[1].GetUCharAt(0, 0))
	assert.Equal(t, uint8(10), planes[2].GetUCharAt(0, 0))
}

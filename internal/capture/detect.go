package capture

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// Point is a pixel coordinate in the source frame.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Quadrilateral is a detected document boundary, corners ordered
// top-left, top-right, bottom-right, bottom-left.
type Quadrilateral struct {
	Corners    [4]Point `json:"corners"`
	Confidence float64  `json:"confidence"`
}

// AspectRatio returns short-side / long-side, in (0, 1].
func (q Quadrilateral) AspectRatio() float64 {
	top := dist(q.Corners[0], q.Corners[1])
	bottom := dist(q.Corners[3], q.Corners[2])
	left := dist(q.Corners[0], q.Corners[3])
	right := dist(q.Corners[1], q.Corners[2])
	w := math.Max(top, bottom)
	h := math.Max(left, right)
	if w <= 0 || h <= 0 {
		return 0
	}
	if w < h {
		return w / h
	}
	return h / w
}

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

const detectWidth = 160

// DetectQuadrilateral finds the most document-like bright region in a
// frame. It thresholds a grayscale downsample against the mean
// luminance and takes the extreme mask points toward each corner
// (min x+y, max x-y, max x+y, min x-y). Confidence reflects how much
// brighter the region interior is than the rest of the frame.
func DetectQuadrilateral(img image.Image) (Quadrilateral, bool) {
	b := img.Bounds()
	if b.Dx() < 8 || b.Dy() < 8 {
		return Quadrilateral{}, false
	}

	scale := float64(detectWidth) / float64(b.Dx())
	if scale > 1 {
		scale = 1
	}
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)
	small := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(small, small.Bounds(), img, b, xdraw.Src, nil)

	var sum float64
	for _, px := range small.Pix {
		sum += float64(px)
	}
	mean := sum / float64(len(small.Pix))
	// paper should sit above the frame's mean luminance
	threshold := mean + 10

	var (
		found           bool
		inSum, outSum   float64
		inN, outN       int
		tl, tr, br, bl  Point
		minSum, maxDiff = math.Inf(1), math.Inf(-1)
		maxSum, minDiff = math.Inf(-1), math.Inf(1)
	)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float64(small.GrayAt(x, y).Y)
			if v < threshold {
				outSum += v
				outN++
				continue
			}
			inSum += v
			inN++
			found = true
			fx, fy := float64(x), float64(y)
			if fx+fy < minSum {
				minSum = fx + fy
				tl = Point{fx, fy}
			}
			if fx-fy > maxDiff {
				maxDiff = fx - fy
				tr = Point{fx, fy}
			}
			if fx+fy > maxSum {
				maxSum = fx + fy
				br = Point{fx, fy}
			}
			if fx-fy < minDiff {
				minDiff = fx - fy
				bl = Point{fx, fy}
			}
		}
	}
	if !found || inN < (w*h)/20 {
		return Quadrilateral{}, false
	}

	// contrast between region interior and the rest, normalized to 0..1
	contrast := 0.0
	if outN > 0 {
		contrast = (inSum/float64(inN) - outSum/float64(outN)) / 255.0
	}
	coverage := float64(inN) / float64(w*h)
	conf := clamp01(contrast*2.5) * clamp01(coverage*3)

	inv := 1.0 / scale
	q := Quadrilateral{
		Corners: [4]Point{
			{tl.X * inv, tl.Y * inv},
			{tr.X * inv, tr.Y * inv},
			{br.X * inv, br.Y * inv},
			{bl.X * inv, bl.Y * inv},
		},
		Confidence: conf,
	}
	return q, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

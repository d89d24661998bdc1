package capture

import (
	"image"
	"math"
)

// homography is a 3x3 projective transform in row-major order.
type homography [9]float64

// apply maps (x, y) through the transform.
func (h homography) apply(x, y float64) (float64, float64) {
	w := h[6]*x + h[7]*y + h[8]
	if w == 0 {
		return 0, 0
	}
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w
}

// solveHomography computes the projective transform mapping each src[i]
// onto dst[i] by solving the standard 8x8 linear system.
func solveHomography(src, dst [4]Point) (homography, bool) {
	// Unknowns a..h with i fixed at 1:
	//   dst.x = (a*x + b*y + c) / (g*x + h*y + 1)
	//   dst.y = (d*x + e*y + f) / (g*x + h*y + 1)
	var m [8][9]float64
	for i := 0; i < 4; i++ {
		sx, sy := src[i].X, src[i].Y
		dx, dy := dst[i].X, dst[i].Y
		m[2*i] = [9]float64{sx, sy, 1, 0, 0, 0, -dx * sx, -dx * sy, dx}
		m[2*i+1] = [9]float64{0, 0, 0, sx, sy, 1, -dy * sx, -dy * sy, dy}
	}

	// Gaussian elimination with partial pivoting.
	for col := 0; col < 8; col++ {
		pivot := col
		for r := col + 1; r < 8; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return homography{}, false
		}
		m[col], m[pivot] = m[pivot], m[col]
		for r := 0; r < 8; r++ {
			if r == col {
				continue
			}
			f := m[r][col] / m[col][col]
			for c := col; c < 9; c++ {
				m[r][c] -= f * m[col][c]
			}
		}
	}

	var h homography
	for i := 0; i < 8; i++ {
		h[i] = m[i][8] / m[i][i]
	}
	h[8] = 1
	return h, true
}

// CorrectPerspective maps the four detected corners onto an axis-aligned
// rectangle. Output width is the longer of the top and bottom edges;
// output height the longer of the left and right edges. Sampling is
// bilinear on the inverse mapping.
func CorrectPerspective(img image.Image, q Quadrilateral) image.Image {
	c := q.Corners
	outW := int(math.Round(math.Max(dist(c[0], c[1]), dist(c[3], c[2]))))
	outH := int(math.Round(math.Max(dist(c[0], c[3]), dist(c[1], c[2]))))
	if outW < 1 || outH < 1 {
		return img
	}

	dst := [4]Point{
		{0, 0},
		{float64(outW), 0},
		{float64(outW), float64(outH)},
		{0, float64(outH)},
	}
	// transform from output coordinates back into the source frame
	h, ok := solveHomography(dst, c)
	if !ok {
		return img
	}

	out := image.NewRGBA(image.Rect(0, 0, outW, outH))
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			sx, sy := h.apply(float64(x)+0.5, float64(y)+0.5)
			r, g, b, a := bilinearSample(img, sx, sy)
			i := out.PixOffset(x, y)
			out.Pix[i] = r
			out.Pix[i+1] = g
			out.Pix[i+2] = b
			out.Pix[i+3] = a
		}
	}
	return out
}

func bilinearSample(img image.Image, x, y float64) (uint8, uint8, uint8, uint8) {
	b := img.Bounds()
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	sample := func(px, py int) (float64, float64, float64, float64) {
		if px < b.Min.X {
			px = b.Min.X
		}
		if px >= b.Max.X {
			px = b.Max.X - 1
		}
		if py < b.Min.Y {
			py = b.Min.Y
		}
		if py >= b.Max.Y {
			py = b.Max.Y - 1
		}
		r, g, bl, a := img.At(px, py).RGBA()
		return float64(r >> 8), float64(g >> 8), float64(bl >> 8), float64(a >> 8)
	}

	r00, g00, b00, a00 := sample(x0, y0)
	r10, g10, b10, a10 := sample(x0+1, y0)
	r01, g01, b01, a01 := sample(x0, y0+1)
	r11, g11, b11, a11 := sample(x0+1, y0+1)

	lerp2 := func(v00, v10, v01, v11 float64) uint8 {
		top := v00*(1-fx) + v10*fx
		bot := v01*(1-fx) + v11*fx
		return uint8(math.Round(top*(1-fy) + bot*fy))
	}
	return lerp2(r00, r10, r01, r11),
		lerp2(g00, g10, g01, g11),
		lerp2(b00, b10, b01, b11),
		lerp2(a00, a10, a01, a11)
}

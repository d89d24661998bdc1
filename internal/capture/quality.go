package capture

import (
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/medscan-app/medscan/constants"
)

const qualityWidth = 240

// ScoreQuality combines a sharpness estimate with average luminance
// into a 0..1 score and a four-level grade. Poor quality is surfaced
// upstream as a non-blocking retake recommendation.
func ScoreQuality(img image.Image) (float64, constants.QualityLevel) {
	b := img.Bounds()
	if b.Dx() < 4 || b.Dy() < 4 {
		return 0, constants.QualityPoor
	}

	scale := float64(qualityWidth) / float64(b.Dx())
	if scale > 1 {
		scale = 1
	}
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)
	gray := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, b, xdraw.Src, nil)

	// gradient energy as the sharpness proxy
	var grad float64
	var n int
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := float64(gray.GrayAt(x+1, y).Y) - float64(gray.GrayAt(x-1, y).Y)
			gy := float64(gray.GrayAt(x, y+1).Y) - float64(gray.GrayAt(x, y-1).Y)
			grad += gx*gx + gy*gy
			n++
		}
	}
	sharpness := 0.0
	if n > 0 {
		// ~1500 gradient energy per pixel is a crisp document scan
		sharpness = clamp01((grad / float64(n)) / 1500.0)
	}

	var lumSum float64
	for _, px := range gray.Pix {
		lumSum += float64(px)
	}
	lum := lumSum / float64(len(gray.Pix)) / 255.0
	// ideal exposure sits around 0.55; fall off toward black or white
	exposure := clamp01(1 - 2.2*absf(lum-0.55))

	score := 0.6*sharpness + 0.4*exposure
	return score, gradeQuality(score)
}

func gradeQuality(score float64) constants.QualityLevel {
	switch {
	case score >= 0.8:
		return constants.QualityExcellent
	case score >= 0.6:
		return constants.QualityGood
	case score >= 0.4:
		return constants.QualityAcceptable
	default:
		return constants.QualityPoor
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

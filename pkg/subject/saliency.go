package subject

import (
	"context"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// SaliencyConfig tunes the offline locator
type SaliencyConfig struct {
	// MaxSide is the longest side the image is reduced to before scoring
	MaxSide int
	// WindowRatios are the window sizes tried, relative to the shorter side
	WindowRatios []float64
	// ContrastWeight and BrightnessWeight mix edge strength and luminance
	ContrastWeight   float64
	BrightnessWeight float64
}

// SaliencyLocator finds the window with the strongest local contrast.
// It needs no model and is used when no vision endpoint is configured.
type SaliencyLocator struct {
	config SaliencyConfig
}

// NewSaliencyLocator creates a locator with default configuration
func NewSaliencyLocator() *SaliencyLocator {
	return NewSaliencyLocatorWithConfig(SaliencyConfig{
		MaxSide:          256,
		WindowRatios:     []float64{0.25, 0.4, 0.6},
		ContrastWeight:   0.8,
		BrightnessWeight: 0.2,
	})
}

// NewSaliencyLocatorWithConfig creates a locator with custom configuration
func NewSaliencyLocatorWithConfig(config SaliencyConfig) *SaliencyLocator {
	return &SaliencyLocator{config: config}
}

func (l *SaliencyLocator) Locate(ctx context.Context, img image.Image) (Subject, error) {
	if err := ctx.Err(); err != nil {
		return Subject{}, err
	}
	small := imaging.Fit(img, l.config.MaxSide, l.config.MaxSide, imaging.Box)
	w, h := small.Bounds().Dx(), small.Bounds().Dy()
	if w < 3 || h < 3 {
		return Subject{Label: "salient region", Box: CenterBox}, nil
	}

	sum := l.integralSaliency(small)

	var best Box
	bestScore := -1.0
	short := math.Min(float64(w), float64(h))
	for _, ratio := range l.config.WindowRatios {
		win := int(short * ratio)
		if win < 2 {
			continue
		}
		step := win / 8
		if step < 1 {
			step = 1
		}
		for y := 0; y+win <= h; y += step {
			for x := 0; x+win <= w; x += step {
				score := windowMean(sum, w, x, y, win, win)
				if score > bestScore {
					bestScore = score
					best = Box{
						X: float64(x) / float64(w),
						Y: float64(y) / float64(h),
						W: float64(win) / float64(w),
						H: float64(win) / float64(h),
					}
				}
			}
		}
	}
	if bestScore < 0 {
		return Subject{Label: "salient region", Box: CenterBox}, nil
	}
	return Subject{Label: "salient region", Confidence: math.Min(bestScore, 1), Box: best}, nil
}

// integralSaliency returns a summed-area table of per-pixel saliency with a
// stride of w+1.
func (l *SaliencyLocator) integralSaliency(img *image.NRGBA) []float64 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	luma := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			p := img.Pix[i : i+3]
			luma[y*w+x] = (0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])) / 255
		}
	}

	sum := make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		row := 0.0
		for x := 0; x < w; x++ {
			var edge float64
			if x > 0 && y > 0 && x < w-1 && y < h-1 {
				// sobel magnitude
				gx := luma[(y-1)*w+x+1] + 2*luma[y*w+x+1] + luma[(y+1)*w+x+1] -
					luma[(y-1)*w+x-1] - 2*luma[y*w+x-1] - luma[(y+1)*w+x-1]
				gy := luma[(y+1)*w+x-1] + 2*luma[(y+1)*w+x] + luma[(y+1)*w+x+1] -
					luma[(y-1)*w+x-1] - 2*luma[(y-1)*w+x] - luma[(y-1)*w+x+1]
				edge = math.Min(math.Hypot(gx, gy)/4, 1)
			}
			row += l.config.ContrastWeight*edge + l.config.BrightnessWeight*luma[y*w+x]
			sum[(y+1)*(w+1)+x+1] = sum[y*(w+1)+x+1] + row
		}
	}
	return sum
}

func windowMean(sum []float64, w, x, y, ww, wh int) float64 {
	stride := w + 1
	total := sum[(y+wh)*stride+x+ww] - sum[y*stride+x+ww] - sum[(y+wh)*stride+x] + sum[y*stride+x]
	return total / float64(ww*wh)
}

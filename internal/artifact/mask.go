package artifact

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"

	"github.com/disintegration/imaging"
)

// DecodeMask reads a mask image and verifies every pixel is 0 or 255.
// Colour masks are reduced to luminance before validation.
func DecodeMask(path string) (*image.Gray, error) {
	img, err := imaging.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("decode mask %s: %w", path, err)
	}

	gray, ok := img.(*image.Gray)
	if !ok {
		gray = toGray(img)
	}
	if err := validateBinary(path, gray); err != nil {
		return nil, err
	}
	return gray, nil
}

// MaskEmpty reports whether no pixel of m is set.
func MaskEmpty(m *image.Gray) bool {
	if m == nil {
		return true
	}
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := m.Pix[(y-b.Min.Y)*m.Stride : (y-b.Min.Y)*m.Stride+b.Dx()]
		for _, v := range row {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

// BoundingBox returns [xmin, ymin, xmax, ymax] of the set pixels and whether
// any pixel is set. The max edges are exclusive.
func BoundingBox(m *image.Gray) ([4]float64, bool) {
	if m == nil {
		return [4]float64{}, false
	}
	b := m.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if m.GrayAt(x, y).Y == 0 {
				continue
			}
			minX, minY = min(minX, x), min(minY, y)
			maxX, maxY = max(maxX, x), max(maxY, y)
		}
	}
	if maxX < minX {
		return [4]float64{}, false
	}
	return [4]float64{float64(minX), float64(minY), float64(maxX + 1), float64(maxY + 1)}, true
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.SetGray(x, y, color.GrayModel.Convert(img.At(x, y)).(color.Gray))
		}
	}
	return gray
}

func validateBinary(path string, m *image.Gray) error {
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		offset := (y - b.Min.Y) * m.Stride
		for x := 0; x < b.Dx(); x++ {
			v := m.Pix[offset+x]
			if v != 0 && v != 255 {
				return &InvalidMaskError{Path: path, X: b.Min.X + x, Y: y, Value: v}
			}
		}
	}
	return nil
}

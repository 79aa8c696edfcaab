package terrain

import (
	"image"
	"image/color"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"

	"github.com/roverlab/traverse/pkg/errors"
)

// loadImage reads a grayscale raster from a PNG or JPEG file.
//
// Pixel luminance is scaled to [0, 1]. Images carry no no-data sentinel, so
// every cell is valid.
func loadImage(path, name, unit string) (*Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMissingLayer, err, "load layer %q from %s", name, path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "image %s: decode", path)
	}

	bounds := img.Bounds()
	rows, cols := bounds.Dy(), bounds.Dx()
	layer, err := NewLayer(name, unit, rows, cols)
	if err != nil {
		return nil, err
	}

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			px := color.Gray16Model.Convert(img.At(bounds.Min.X+c, bounds.Min.Y+r)).(color.Gray16)
			layer.set(r, c, float64(px.Y)/65535.0)
		}
	}
	return layer, nil
}

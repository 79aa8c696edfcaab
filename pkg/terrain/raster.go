package terrain

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/roverlab/traverse/pkg/errors"
)

// rasterNoDataDefault matches the conventional ESRI ASCII grid sentinel.
const rasterNoDataDefault = -9999

// loadRaster reads an ESRI ASCII grid (.asc) file into a layer.
//
// The format is a short header (ncols, nrows, xllcorner, yllcorner, cellsize,
// optional NODATA_value) followed by nrows*ncols whitespace-separated
// samples in row-major order, north row first. Cells equal to the no-data
// sentinel become NaN.
func loadRaster(path, name, unit string, noData *float64) (*Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMissingLayer, err, "load layer %q from %s", name, path)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	next := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		return sc.Text(), true
	}

	var rows, cols int
	sentinel := float64(rasterNoDataDefault)
	if noData != nil {
		sentinel = *noData
	}

	// Header: key/value pairs until the first purely numeric token that is
	// not preceded by a key we recognize.
	var pending string
	for {
		tok, ok := next()
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "raster %s: truncated header", path)
		}
		key := strings.ToLower(tok)
		switch key {
		case "ncols", "nrows", "xllcorner", "yllcorner", "cellsize", "nodata_value":
			val, ok := next()
			if !ok {
				return nil, errors.New(errors.ErrCodeInvalidConfig, "raster %s: missing value for %s", path, key)
			}
			n, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "raster %s: bad %s", path, key)
			}
			switch key {
			case "ncols":
				cols = int(n)
			case "nrows":
				rows = int(n)
			case "nodata_value":
				if noData == nil {
					sentinel = n
				}
			}
		default:
			pending = tok
		}
		if pending != "" {
			break
		}
	}

	if rows <= 0 || cols <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "raster %s: missing ncols/nrows header", path)
	}

	layer, err := NewLayer(name, unit, rows, cols)
	if err != nil {
		return nil, err
	}

	read := 0
	store := func(tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "raster %s: bad sample %d", path, read)
		}
		if v != sentinel {
			layer.set(read/cols, read%cols, v)
		}
		read++
		return nil
	}

	if err := store(pending); err != nil {
		return nil, err
	}
	for read < rows*cols {
		tok, ok := next()
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidConfig,
				"raster %s: expected %d samples, got %d", path, rows*cols, read)
		}
		if err := store(tok); err != nil {
			return nil, err
		}
	}
	return layer, nil
}

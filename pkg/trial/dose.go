package trial

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"bin2dicom/internal/models"
	"bin2dicom/pkg/errs"
)

// doseBytesPerVoxel is the stored width of one dose value: the binary
// dose planes are always float32.
const doseBytesPerVoxel = 4

// DoseOptions control the byte-level interpretation of dose slice files.
type DoseOptions struct {
	// ByteOrder of the stored float32 values. Defaults to little endian.
	ByteOrder binary.ByteOrder
}

func (o *DoseOptions) byteOrder() binary.ByteOrder {
	if o == nil || o.ByteOrder == nil {
		return binary.LittleEndian
	}
	return o.ByteOrder
}

// ReadDoseData stacks the trial's companion dose slice files into a
// dose volume of absolute values. Slices are discovered next to the
// trial file as <stem>.binary.NNN.
func (f *File) ReadDoseData(grid models.DoseGridInfo, opts *DoseOptions) (*models.DoseVolume, error) {
	base := strings.TrimSuffix(f.path, filepath.Ext(f.path))
	return ReadDoseData(base, grid, opts)
}

// ReadDoseData reads the dose planes named <base>.binary.NNN with a
// zero-padded, contiguous index starting at 0 and stacks them in index
// order. A gap in the sequence is a MissingSliceError naming the first
// absent index; a plane whose length is not nx*ny*4 bytes is a
// SizeMismatchError. Every stored value is multiplied by the grid's
// scaling factor to yield absolute dose.
func ReadDoseData(base string, grid models.DoseGridInfo, opts *DoseOptions) (*models.DoseVolume, error) {
	order := opts.byteOrder()
	planeVoxels := grid.NX * grid.NY
	expected := int64(planeVoxels) * doseBytesPerVoxel

	dose := &models.DoseVolume{
		Data: make([]float64, planeVoxels*grid.NZ),
		NX:   grid.NX, NY: grid.NY, NZ: grid.NZ,
	}

	for z := 0; z < grid.NZ; z++ {
		path := fmt.Sprintf("%s.binary.%03d", base, z)
		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &errs.MissingSliceError{Base: base, Index: z}
			}
			return nil, fmt.Errorf("reading dose slice %d: %w", z, err)
		}
		if int64(len(raw)) != expected {
			return nil, &errs.SizeMismatchError{Path: path, Expected: expected, Actual: int64(len(raw))}
		}
		plane := dose.Data[z*planeVoxels : (z+1)*planeVoxels]
		for i := range plane {
			plane[i] = float64(math.Float32frombits(order.Uint32(raw[i*4:]))) * grid.Scaling
		}
	}
	return dose, nil
}

// Package imgvol reads the raw binary voxel volume that accompanies a
// Pinnacle header, reinterpreting fixed-width voxels into a dense 3D
// array addressed [z][y][x]. Byte order and slice stacking direction
// are explicit options rather than baked-in assumptions, because the
// source format does not declare either.
package imgvol

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"bin2dicom/internal/models"
	"bin2dicom/pkg/errs"
)

// Options control the byte-level interpretation of the volume file.
type Options struct {
	// ByteOrder of multi-byte voxels. Defaults to little endian, which
	// matches the reference datasets distributed with the original
	// converter; exports from big-endian hosts need the override.
	ByteOrder binary.ByteOrder

	// Descending reverses the slice stacking direction: file slice 0
	// becomes volume slice nz-1.
	Descending bool
}

func (o *Options) byteOrder() binary.ByteOrder {
	if o == nil || o.ByteOrder == nil {
		return binary.LittleEndian
	}
	return o.ByteOrder
}

func (o *Options) descending() bool { return o != nil && o.Descending }

// Read reads the volume at path using the declared geometry. The file
// length must equal nx*ny*nz*bytes_pix exactly; any mismatch is a
// SizeMismatchError reporting both lengths. Slices are converted one at
// a time so peak memory stays at one decoded volume plus one raw slice.
func Read(path string, geom models.ImageGeometry, opts *Options) (*models.Volume, error) {
	convert, err := voxelConverter(path, geom, opts.byteOrder())
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening volume: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat volume: %w", err)
	}
	expected := int64(geom.VoxelCount()) * int64(geom.BytesPerVoxel)
	if info.Size() != expected {
		return nil, &errs.SizeMismatchError{Path: path, Expected: expected, Actual: info.Size()}
	}

	vol := &models.Volume{
		Data: make([]float64, geom.VoxelCount()),
		NX:   geom.NX, NY: geom.NY, NZ: geom.NZ,
	}
	sliceBytes := geom.NX * geom.NY * geom.BytesPerVoxel
	buf := make([]byte, sliceBytes)
	r := bufio.NewReader(f)

	for k := 0; k < geom.NZ; k++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("reading volume slice %d: %w", k, err)
		}
		z := k
		if opts.descending() {
			z = geom.NZ - 1 - k
		}
		convert(buf, vol.Slice(z))
	}
	return vol, nil
}

// voxelConverter maps the header's datatype/bytes_pix declaration to a
// buffer conversion function, following the original format's codes:
// datatype 1 is signed integer (1 or 2 bytes), datatype 2 is float32.
func voxelConverter(path string, geom models.ImageGeometry, order binary.ByteOrder) (func(src []byte, dst []float64), error) {
	switch {
	case geom.Datatype == 1 && geom.BytesPerVoxel == 2:
		return func(src []byte, dst []float64) {
			for i := range dst {
				dst[i] = float64(int16(order.Uint16(src[i*2:])))
			}
		}, nil
	case geom.Datatype == 1 && geom.BytesPerVoxel == 1:
		return func(src []byte, dst []float64) {
			for i := range dst {
				dst[i] = float64(int8(src[i]))
			}
		}, nil
	case geom.Datatype == 2 && geom.BytesPerVoxel == 4:
		return func(src []byte, dst []float64) {
			for i := range dst {
				dst[i] = float64(math.Float32frombits(order.Uint32(src[i*4:])))
			}
		}, nil
	default:
		return nil, errs.NewFormatError(path, "datatype",
			fmt.Sprintf("unsupported datatype %d with %d bytes per voxel", geom.Datatype, geom.BytesPerVoxel))
	}
}

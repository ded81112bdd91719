package header

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bin2dicom/pkg/errs"
)

// writeHeader writes a header fixture and returns its path.
func writeHeader(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ImageSet_0.header")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validHeader = `
// Pinnacle image header
x_dim = 4;
y_dim = 4;
z_dim = 2;
x_pixdim = 0.0977;
y_pixdim = 0.0977;
z_pixdim = 0.3;
x_start = -25.0;
y_start = -25.0;
z_start = -77.5;
datatype = 1;
bytes_pix = 2;
patient_id = 12345;
db_name = "Doe^Jane";
study_id = 7;
exam_id = 42;
modality = CT;
manufacturer = "ACME Medical";
model = "ScanMaster 9";
date = 20240115;
patient_position = HFS;
vendor_private_field = whatever;
`

func TestParseValidHeader(t *testing.T) {
	path := writeHeader(t, validHeader)
	geom, pat, err := Parse(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, geom.NX)
	assert.Equal(t, 4, geom.NY)
	assert.Equal(t, 2, geom.NZ)
	assert.InDelta(t, 0.0977, geom.DX, 1e-12)
	assert.InDelta(t, 0.3, geom.DZ, 1e-12)
	assert.InDelta(t, -77.5, geom.OZ, 1e-12)
	assert.Equal(t, 1, geom.Datatype)
	assert.Equal(t, 2, geom.BytesPerVoxel)
	assert.Equal(t, 32, geom.VoxelCount())

	assert.Equal(t, "12345", pat.PatientID)
	assert.Equal(t, "Doe^Jane", pat.PatientName, "quotes should be stripped")
	assert.Equal(t, "7", pat.StudyID)
	assert.Equal(t, "42", pat.ExamID)
	assert.Equal(t, "CT", pat.Modality)
	assert.Equal(t, "ACME Medical", pat.Manufacturer)
	assert.Equal(t, "HFS", pat.PatientPosition)
}

func TestParseMissingRequiredKey(t *testing.T) {
	// z_dim removed.
	content := `
x_dim = 4;
y_dim = 4;
x_pixdim = 1.0;
y_pixdim = 1.0;
z_pixdim = 1.0;
x_start = 0;
y_start = 0;
z_start = 0;
datatype = 1;
bytes_pix = 2;
`
	path := writeHeader(t, content)
	_, _, err := Parse(path, nil)
	require.Error(t, err)

	var fmtErr *errs.FormatError
	require.True(t, errors.As(err, &fmtErr))
	assert.Equal(t, "z_dim", fmtErr.Field)
}

func TestParseNonNumericValue(t *testing.T) {
	content := `
x_dim = 4;
y_dim = 4;
z_dim = 2;
x_pixdim = thin;
y_pixdim = 1.0;
z_pixdim = 1.0;
x_start = 0;
y_start = 0;
z_start = 0;
datatype = 1;
bytes_pix = 2;
`
	path := writeHeader(t, content)
	_, _, err := Parse(path, nil)
	require.Error(t, err)

	var fmtErr *errs.FormatError
	require.True(t, errors.As(err, &fmtErr))
	assert.Equal(t, "x_pixdim", fmtErr.Field)
}

func TestParseNonPositiveSpacing(t *testing.T) {
	content := `
x_dim = 4;
y_dim = 4;
z_dim = 2;
x_pixdim = 1.0;
y_pixdim = 1.0;
z_pixdim = -0.3;
x_start = 0;
y_start = 0;
z_start = 0;
datatype = 1;
bytes_pix = 2;
`
	path := writeHeader(t, content)
	_, _, err := Parse(path, nil)
	require.Error(t, err)

	var fmtErr *errs.FormatError
	require.True(t, errors.As(err, &fmtErr))
	assert.Equal(t, "z_pixdim", fmtErr.Field)
}

func TestSlicePositions(t *testing.T) {
	path := writeHeader(t, validHeader)
	geom, _, err := Parse(path, nil)
	require.NoError(t, err)

	assert.InDelta(t, -77.5, geom.SlicePosition(0), 1e-12)
	assert.InDelta(t, -77.2, geom.SlicePosition(1), 1e-12)

	min, max := geom.ZExtent()
	assert.InDelta(t, -77.5, min, 1e-12)
	assert.InDelta(t, -77.2, max, 1e-12)
}

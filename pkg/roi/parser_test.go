package roi

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bin2dicom/pkg/errs"
)

func writeROI(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.roi")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const sampleROI = `//-----------------------------------------------------
//  Beginning of ROI: PTV
//-----------------------------------------------------
roi={
name:           PTV;
color:          red;
num_curve =     2;
curve={
num_points =    3;
points={
1.0 2.0 -10.0
1.5 2.5 -10.0
1.0 3.0 -10.0
};
};  // End of curve
curve={
num_points =    2;
points={
1.0 2.0 -9.7
1.5 2.5 -9.7
};
};  // End of curve
};  // End of roi
//-----------------------------------------------------
//  Beginning of ROI: Spinal Cord
//-----------------------------------------------------
roi={
name:           Spinal Cord;
color:          khaki;
num_curve =     0;
};  // End of roi
`

func TestParseStructures(t *testing.T) {
	set, err := Parse(writeROI(t, sampleROI), nil)
	require.NoError(t, err)

	require.Len(t, set.Structures, 2)
	assert.Equal(t, []string{"PTV", "Spinal Cord"}, set.Names())

	ptv := set.ByName("PTV")
	require.NotNil(t, ptv)
	assert.Equal(t, [3]uint8{255, 0, 0}, ptv.Color)
	require.Len(t, ptv.Contours, 2)

	first := ptv.Contours[0]
	assert.Equal(t, -10.0, first.Z)
	require.Len(t, first.Points, 3)
	assert.Equal(t, [2]float64{1.0, 2.0}, first.Points[0])
	assert.Equal(t, [2]float64{1.0, 3.0}, first.Points[2])

	assert.Equal(t, -9.7, ptv.Contours[1].Z)
}

func TestParseStructureWithoutContours(t *testing.T) {
	set, err := Parse(writeROI(t, sampleROI), nil)
	require.NoError(t, err)

	cord := set.ByName("Spinal Cord")
	require.NotNil(t, cord)
	assert.Equal(t, [3]uint8{240, 230, 140}, cord.Color)
	assert.Empty(t, cord.Contours, "zero curve blocks must parse to an empty contour list, not an error")
}

func TestParseUnknownColorFallsBackToWhite(t *testing.T) {
	content := `//  Beginning of ROI: Mystery
roi={
name: Mystery;
color: heliotrope;
};
`
	set, err := Parse(writeROI(t, content), nil)
	require.NoError(t, err)
	assert.Equal(t, [3]uint8{255, 255, 255}, set.Structures[0].Color)
}

func TestParseEmptyPointsBlock(t *testing.T) {
	content := `//  Beginning of ROI: Hollow
roi={
name: Hollow;
color: blue;
curve={
num_points = 0;
points={
};
};
};
`
	set, err := Parse(writeROI(t, content), nil)
	require.NoError(t, err)

	require.Len(t, set.Structures, 1)
	require.Len(t, set.Structures[0].Contours, 1)
	assert.Empty(t, set.Structures[0].Contours[0].Points, "an empty contour is valid")
}

func TestParseUnmatchedBrace(t *testing.T) {
	content := "//  Beginning of ROI: Broken\nroi={\nname: Broken;\n"
	_, err := Parse(writeROI(t, content), nil)
	require.Error(t, err)

	var fmtErr *errs.FormatError
	require.True(t, errors.As(err, &fmtErr))
	assert.GreaterOrEqual(t, fmtErr.Offset, int64(0))
}

func TestDuplicateNamesSurfaced(t *testing.T) {
	content := `//  Beginning of ROI: Lens
roi={
name: Lens;
};
//  Beginning of ROI: Lens
roi={
name: Lens;
};
`
	set, err := Parse(writeROI(t, content), nil)
	require.NoError(t, err)

	require.Len(t, set.Structures, 2)
	assert.Equal(t, []string{"Lens"}, set.DuplicateNames())
}

func TestParseNameFromBlockWhenBannerMissing(t *testing.T) {
	content := `roi={
name: Implicit;
};
`
	set, err := Parse(writeROI(t, content), nil)
	require.NoError(t, err)
	assert.Equal(t, "Implicit", set.Structures[0].Name)
}

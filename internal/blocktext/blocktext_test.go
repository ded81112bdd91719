package blocktext

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bin2dicom/pkg/errs"
)

const sample = `
// comment line
Trial = {
  Name = "Plan1";
  DoseGrid .VoxelSize .X = 0.4;
  DoseGrid .VoxelSize .Y = 0.5;
  PrescriptionList = {
    Prescription = {
      PrescriptionDose = 200;
    };
  };
};
`

func TestParseNestedBlocks(t *testing.T) {
	root, err := Parse(sample, "sample.Trial")
	require.NoError(t, err)

	trial := root.Child("Trial")
	require.NotNil(t, trial)

	name, ok := trial.Attr("Name")
	require.True(t, ok)
	assert.Equal(t, "Plan1", name, "quotes should be stripped")

	dose, ok := trial.Lookup("PrescriptionList", "Prescription", "PrescriptionDose")
	require.True(t, ok)
	assert.Equal(t, "200", dose)
}

func TestParseDottedKeys(t *testing.T) {
	root, err := Parse(sample, "sample.Trial")
	require.NoError(t, err)

	trial := root.Child("Trial")
	x, ok := trial.Lookup("DoseGrid", "VoxelSize", "X")
	require.True(t, ok)
	assert.Equal(t, "0.4", x)

	y, ok := trial.Lookup("DoseGrid", "VoxelSize", "Y")
	require.True(t, ok)
	assert.Equal(t, "0.5", y)
}

func TestParseRawRows(t *testing.T) {
	src := `curve = {
  num_points = 2;
  points = {
    1.0 2.0 -10.0
    1.5 2.5 -10.0
  };
};
`
	root, err := Parse(src, "points.roi")
	require.NoError(t, err)

	points := root.Child("curve").Child("points")
	require.NotNil(t, points)
	assert.Equal(t, "1.0 2.0 -10.0\n1.5 2.5 -10.0", points.Raw)
}

func TestParseColonAssignments(t *testing.T) {
	src := `roi = {
  name:  PTV;
  color: red;
};
`
	root, err := Parse(src, "colon.roi")
	require.NoError(t, err)

	name, ok := root.Child("roi").Attr("name")
	require.True(t, ok)
	assert.Equal(t, "PTV", name)
}

func TestParseUnclosedBlock(t *testing.T) {
	_, err := Parse("outer = {\n  key = 1;\n", "broken.roi")
	require.Error(t, err)

	var fmtErr *errs.FormatError
	require.True(t, errors.As(err, &fmtErr))
	assert.Equal(t, "broken.roi", fmtErr.Path)
	assert.EqualValues(t, 0, fmtErr.Offset, "offset of the unclosed opening line")
}

func TestParseStrayClosingBrace(t *testing.T) {
	_, err := Parse("key = 1;\n};\n", "stray.roi")
	require.Error(t, err)

	var fmtErr *errs.FormatError
	require.True(t, errors.As(err, &fmtErr))
	assert.EqualValues(t, 9, fmtErr.Offset, "offset of the stray brace line")
}

func TestChildAllOrder(t *testing.T) {
	src := "roi = {\n a = 1;\n};\nroi = {\n a = 2;\n};\n"
	root, err := Parse(src, "multi.roi")
	require.NoError(t, err)

	rois := root.ChildAll("roi")
	require.Len(t, rois, 2)
	first, _ := rois[0].Attr("a")
	second, _ := rois[1].Attr("a")
	assert.Equal(t, "1", first)
	assert.Equal(t, "2", second)
}

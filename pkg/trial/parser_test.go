package trial

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bin2dicom/pkg/errs"
)

func writeTrial(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.Trial")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const sampleTrial = `Trial ={
Name = "Prostate Plan";
DoseGrid .VoxelSize .X = 0.4;
DoseGrid .VoxelSize .Y = 0.4;
DoseGrid .VoxelSize .Z = 0.3;
DoseGrid .Dimension .X = 4;
DoseGrid .Dimension .Y = 4;
DoseGrid .Dimension .Z = 2;
DoseGrid .Origin .X = -10.0;
DoseGrid .Origin .Y = -12.0;
DoseGrid .Origin .Z = -77.5;
DoseGrid .DoseGridScaling = 0.01;
PrescriptionList ={
Prescription ={
Name = "presc_1";
PrescriptionDose = 200;
NumberOfFractions = 25;
Method = "Prescribe";
};
};
BeamList ={
Beam ={
Name = "AP";
GantryAngle = 180;
MonitorUnits = 120.5;
Machine ={
Name = "LINAC1";
};
};
Beam ={
Name = "LL";
GantryAngle = 90;
};
};
PatientRepresentation ={
PatientVolumeName = "ImageSet_0";
CtToDensityName = "Standard";
};
};
`

func TestDoseGrid(t *testing.T) {
	f, err := Parse(writeTrial(t, sampleTrial), nil)
	require.NoError(t, err)

	grid, err := f.DoseGrid()
	require.NoError(t, err)

	assert.Equal(t, 4, grid.NX)
	assert.Equal(t, 4, grid.NY)
	assert.Equal(t, 2, grid.NZ)
	assert.InDelta(t, 0.4, grid.DX, 1e-12)
	assert.InDelta(t, 0.3, grid.DZ, 1e-12)
	assert.InDelta(t, -77.5, grid.OZ, 1e-12)
	assert.InDelta(t, 0.01, grid.Scaling, 1e-12)
}

func TestDoseGridMissingDimension(t *testing.T) {
	content := `Trial ={
DoseGrid .VoxelSize .X = 0.4;
DoseGrid .VoxelSize .Y = 0.4;
DoseGrid .VoxelSize .Z = 0.3;
DoseGrid .Dimension .X = 4;
DoseGrid .Dimension .Y = 4;
};
`
	f, err := Parse(writeTrial(t, content), nil)
	require.NoError(t, err)

	_, err = f.DoseGrid()
	require.Error(t, err)

	var fmtErr *errs.FormatError
	require.True(t, errors.As(err, &fmtErr))
	assert.Equal(t, "DoseGrid.Dimension.Z", fmtErr.Field)
}

func TestDoseGridScalingDefaultsToUnit(t *testing.T) {
	content := `Trial ={
DoseGrid .VoxelSize .X = 0.4;
DoseGrid .VoxelSize .Y = 0.4;
DoseGrid .VoxelSize .Z = 0.4;
DoseGrid .Dimension .X = 2;
DoseGrid .Dimension .Y = 2;
DoseGrid .Dimension .Z = 2;
};
`
	f, err := Parse(writeTrial(t, content), nil)
	require.NoError(t, err)

	grid, err := f.DoseGrid()
	require.NoError(t, err)
	assert.Equal(t, 1.0, grid.Scaling)
	assert.Equal(t, 0.0, grid.OX, "origin defaults to zero")
}

func TestPrescriptionKnownAndUnknown(t *testing.T) {
	f, err := Parse(writeTrial(t, sampleTrial), nil)
	require.NoError(t, err)

	p := f.Prescription()

	name, ok := p.Name.Get()
	require.True(t, ok)
	assert.Equal(t, "presc_1", name)

	dose, ok := p.Dose.Get()
	require.True(t, ok)
	assert.Equal(t, 200.0, dose)

	fractions, ok := p.Fractions.Get()
	require.True(t, ok)
	assert.Equal(t, 25, fractions)

	assert.False(t, p.Percent.IsKnown(), "absent fields stay unknown")
	assert.False(t, p.DoseUnits.IsKnown())
	assert.False(t, p.Point.IsKnown())
}

func TestPrescriptionMissingList(t *testing.T) {
	content := `Trial ={
Name = "bare";
DoseGrid .VoxelSize .X = 0.4;
DoseGrid .VoxelSize .Y = 0.4;
DoseGrid .VoxelSize .Z = 0.4;
DoseGrid .Dimension .X = 2;
DoseGrid .Dimension .Y = 2;
DoseGrid .Dimension .Z = 2;
};
`
	f, err := Parse(writeTrial(t, content), nil)
	require.NoError(t, err)

	p := f.Prescription()
	assert.False(t, p.Name.IsKnown())
	assert.False(t, p.Dose.IsKnown())
	assert.False(t, p.Fractions.IsKnown())
}

func TestBeams(t *testing.T) {
	f, err := Parse(writeTrial(t, sampleTrial), nil)
	require.NoError(t, err)

	beams := f.Beams()
	require.Len(t, beams, 2)

	assert.Equal(t, "AP", beams[0].Name)
	assert.Equal(t, "LINAC1", beams[0].Machine)
	gantry, ok := beams[0].GantryAngle.Get()
	require.True(t, ok)
	assert.Equal(t, 180.0, gantry)
	mu, ok := beams[0].MonitorUnits.Get()
	require.True(t, ok)
	assert.Equal(t, 120.5, mu)

	assert.Equal(t, "LL", beams[1].Name)
	assert.Empty(t, beams[1].Machine)
	assert.False(t, beams[1].MonitorUnits.IsKnown())
}

func TestPatientRepresentation(t *testing.T) {
	f, err := Parse(writeTrial(t, sampleTrial), nil)
	require.NoError(t, err)

	rep := f.PatientRepresentation()
	assert.Equal(t, "ImageSet_0", rep.VolumeName)
	assert.Equal(t, "Standard", rep.CTToDensityName)
	assert.Empty(t, rep.DMTableName)
}

func TestTrialName(t *testing.T) {
	f, err := Parse(writeTrial(t, sampleTrial), nil)
	require.NoError(t, err)

	name, ok := f.Name()
	require.True(t, ok)
	assert.Equal(t, "Prostate Plan", name)
}

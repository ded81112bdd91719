package refs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateFullGraph(t *testing.T) {
	g, err := Allocate(3, All())
	require.NoError(t, err)

	assert.NotEmpty(t, g.StudyID)
	assert.NotEmpty(t, g.FrameOfReferenceID)
	assert.NotEmpty(t, g.ImageSeriesID)
	assert.NotEmpty(t, g.StructureSetSeriesID)
	assert.NotEmpty(t, g.DoseSeriesID)
	assert.NotEmpty(t, g.PlanSeriesID)
	require.Len(t, g.SliceInstanceIDs, 3)

	// study + frame + image series + 3 series/instance pairs + 3 slices
	assert.Len(t, g.AllIDs(), 12)
}

func TestAllocateUniqueWithinRun(t *testing.T) {
	g, err := Allocate(50, All())
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, id := range g.AllIDs() {
		assert.False(t, seen[id], "id %s allocated twice", id)
		seen[id] = true
	}
}

func TestAllocateDisjointAcrossRuns(t *testing.T) {
	a, err := Allocate(5, All())
	require.NoError(t, err)
	b, err := Allocate(5, All())
	require.NoError(t, err)

	inA := make(map[string]bool)
	for _, id := range a.AllIDs() {
		inA[id] = true
	}
	for _, id := range b.AllIDs() {
		assert.False(t, inA[id], "id %s shared across runs", id)
	}
}

func TestAllocateImageOnly(t *testing.T) {
	g, err := Allocate(2, Want{})
	require.NoError(t, err)

	assert.NotEmpty(t, g.ImageSeriesID)
	assert.Empty(t, g.StructureSetSeriesID)
	assert.Empty(t, g.DoseSeriesID)
	assert.Empty(t, g.PlanSeriesID)
	assert.Empty(t, g.PlanInstanceID)
	assert.Len(t, g.AllIDs(), 5)
}

func TestAllocateZeroSlices(t *testing.T) {
	g, err := Allocate(0, Want{Dose: true})
	require.NoError(t, err)
	assert.Empty(t, g.SliceInstanceIDs)
	assert.NotEmpty(t, g.DoseSeriesID)
}

// Package refs allocates the identifier graph of one conversion run:
// one study, one series per output object type, one shared frame of
// reference and one instance per CT slice. Each allocation is
// independent; no registry survives across runs, so two runs can never
// share or collide on identifiers.
package refs

import (
	"github.com/google/uuid"

	"bin2dicom/internal/models"
	"bin2dicom/pkg/errs"
)

// Want selects which output object types the run will assemble. The
// image series is always allocated; it anchors the cross-references.
type Want struct {
	StructureSet bool
	Dose         bool
	Plan         bool
}

// All requests every output object type.
func All() Want {
	return Want{StructureSet: true, Dose: true, Plan: true}
}

// Allocate generates a fresh identifier graph for a run with numSlices
// CT slices. Identifiers are random UUIDs; a collision inside one
// allocation is checked defensively and surfaces as an IdentifierError,
// though the design makes it unreachable in practice.
func Allocate(numSlices int, want Want) (*models.ReferenceGraph, error) {
	g := &models.ReferenceGraph{
		StudyID:            newID(),
		FrameOfReferenceID: newID(),
		ImageSeriesID:      newID(),
	}
	if want.StructureSet {
		g.StructureSetSeriesID = newID()
		g.StructureSetInstanceID = newID()
	}
	if want.Dose {
		g.DoseSeriesID = newID()
		g.DoseInstanceID = newID()
	}
	if want.Plan {
		g.PlanSeriesID = newID()
		g.PlanInstanceID = newID()
	}
	g.SliceInstanceIDs = make([]string, numSlices)
	for i := range g.SliceInstanceIDs {
		g.SliceInstanceIDs[i] = newID()
	}

	seen := make(map[string]bool)
	for _, id := range g.AllIDs() {
		if seen[id] {
			return nil, &errs.IdentifierError{ID: id, Msg: "duplicate identifier in allocation"}
		}
		seen[id] = true
	}
	return g, nil
}

func newID() string {
	return uuid.NewString()
}

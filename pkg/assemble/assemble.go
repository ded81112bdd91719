// Package assemble builds the four output records handed to the
// external DICOM encoder: the per-slice image series, the structure
// set, the dose and the plan. All geometry, identifiers, pixel buffers
// and point lists are fully resolved here; the encoder performs no
// spatial reasoning of its own.
package assemble

import (
	"fmt"
	"math"

	"bin2dicom/internal/models"
)

// SliceRecord is one CT slice ready for encoding: the pixel buffer,
// its patient-space position and the identifiers linking it into the
// study.
type SliceRecord struct {
	StudyID            string
	SeriesID           string
	InstanceID         string
	FrameOfReferenceID string

	// Index is the zero-based slice index; instance numbering is
	// Index+1 by convention.
	Index int

	Rows, Cols     int
	PixelSpacing   [2]float64 // row spacing, column spacing
	SliceThickness float64
	Position       [3]float64 // patient coordinates of the first voxel

	// PixelData holds signed 16-bit intensities in row-major order;
	// transfer encoding is the encoder's concern.
	PixelData []int16

	Patient models.PatientInfo
}

// ImageSeries materializes one record per CT slice in stacking order.
// The sequence is finite and consumed once by the encoder; clinical
// series run to a few hundred slices, so full materialization is fine.
func ImageSeries(vol *models.Volume, geom models.ImageGeometry, pat models.PatientInfo, graph *models.ReferenceGraph) ([]SliceRecord, error) {
	if len(graph.SliceInstanceIDs) != geom.NZ {
		return nil, fmt.Errorf("identifier graph has %d slice instances, volume has %d slices",
			len(graph.SliceInstanceIDs), geom.NZ)
	}
	records := make([]SliceRecord, geom.NZ)
	for k := 0; k < geom.NZ; k++ {
		records[k] = SliceRecord{
			StudyID:            graph.StudyID,
			SeriesID:           graph.ImageSeriesID,
			InstanceID:         graph.SliceInstanceIDs[k],
			FrameOfReferenceID: graph.FrameOfReferenceID,
			Index:              k,
			Rows:               geom.NY,
			Cols:               geom.NX,
			PixelSpacing:       [2]float64{geom.DY, geom.DX},
			SliceThickness:     geom.DZ,
			Position:           [3]float64{geom.OX, geom.OY, geom.SlicePosition(k)},
			PixelData:          clampInt16(vol.Slice(k)),
			Patient:            pat,
		}
	}
	return records, nil
}

// ContourEntry is one retained contour with its point list in patient
// coordinates and, when its plane matches a CT slice within tolerance,
// the instance id of that slice.
type ContourEntry struct {
	GeometricType string // CLOSED_PLANAR

	// Points are (x, y, z) patient coordinates; z repeats the contour's
	// slice position.
	Points [][3]float64

	// ReferencedSliceInstanceID is empty when no CT slice lies within
	// tolerance of the contour plane.
	ReferencedSliceInstanceID string
}

// ROIEntry is one named structure of the structure-set record.
type ROIEntry struct {
	Number              int
	Name                string
	Color               [3]uint8
	GenerationAlgorithm string
	Contours            []ContourEntry
}

// StructureSetRecord is the single structure-set output record.
type StructureSetRecord struct {
	StudyID            string
	SeriesID           string
	InstanceID         string
	FrameOfReferenceID string

	// ReferencedImageSeriesID links the structure set to the CT series
	// it was resolved against.
	ReferencedImageSeriesID string

	Label   string
	ROIs    []ROIEntry
	Patient models.PatientInfo
}

// StructureSet builds the structure-set record from the resolved (and
// tolerance-filtered) structure set. geom supplies the slice positions
// used to match contours to CT instances within half a slice spacing.
func StructureSet(ss *models.StructureSet, geom models.ImageGeometry, pat models.PatientInfo, graph *models.ReferenceGraph) StructureSetRecord {
	rec := StructureSetRecord{
		StudyID:                 graph.StudyID,
		SeriesID:                graph.StructureSetSeriesID,
		InstanceID:              graph.StructureSetInstanceID,
		FrameOfReferenceID:      graph.FrameOfReferenceID,
		ReferencedImageSeriesID: graph.ImageSeriesID,
		Label:                   "RT Structure Set",
		Patient:                 pat,
	}
	tol := geom.DZ / 2
	for i, st := range ss.Structures {
		roi := ROIEntry{
			Number:              i + 1,
			Name:                st.Name,
			Color:               st.Color,
			GenerationAlgorithm: "MANUAL",
		}
		for _, c := range st.Contours {
			entry := ContourEntry{GeometricType: "CLOSED_PLANAR"}
			for _, p := range c.Points {
				entry.Points = append(entry.Points, [3]float64{p[0], p[1], c.Z})
			}
			if k, ok := matchSlice(c.Z, geom, tol); ok && len(c.Points) > 0 {
				entry.ReferencedSliceInstanceID = graph.SliceInstanceIDs[k]
			}
			roi.Contours = append(roi.Contours, entry)
		}
		rec.ROIs = append(rec.ROIs, roi)
	}
	return rec
}

// matchSlice returns the index of the CT slice whose position lies
// within tol of z.
func matchSlice(z float64, geom models.ImageGeometry, tol float64) (int, bool) {
	k := int(math.Round((z - geom.OZ) / geom.DZ))
	if k < 0 || k >= geom.NZ {
		return 0, false
	}
	if math.Abs(z-geom.SlicePosition(k)) > tol {
		return 0, false
	}
	return k, true
}

// DoseRecord is the single dose output record: the stacked multi-frame
// pixel buffer, its grid geometry and the scaling restoring absolute
// dose.
type DoseRecord struct {
	StudyID            string
	SeriesID           string
	InstanceID         string
	FrameOfReferenceID string

	// ReferencedImageSeriesID links the dose to the CT series; empty
	// when the dose established a standalone frame.
	ReferencedImageSeriesID string

	Frames, Rows, Cols int
	PixelSpacing       [2]float64 // row spacing, column spacing
	SliceThickness     float64
	Position           [3]float64

	// GridFrameOffsets are the per-frame z offsets from Position,
	// derived from the dose slice spacing.
	GridFrameOffsets []float64

	DoseUnits     string
	DoseType      string
	SummationType string

	// GridScaling converts PixelData values back to absolute dose.
	GridScaling float64
	PixelData   []uint32

	Patient models.PatientInfo
}

// Dose builds the dose record. Absolute dose values are quantized to
// unsigned 32-bit pixels under a grid scaling chosen from the maximum
// dose, preserving full range for the encoder.
func Dose(dose *models.DoseVolume, grid models.DoseGridInfo, pat models.PatientInfo, graph *models.ReferenceGraph) DoseRecord {
	scaling := 1.0
	if max := dose.Max(); max > 0 {
		scaling = max / 65535.0
	}
	pixels := make([]uint32, len(dose.Data))
	for i, d := range dose.Data {
		if d < 0 {
			d = 0
		}
		pixels[i] = uint32(math.Round(d / scaling))
	}
	offsets := make([]float64, grid.NZ)
	for i := range offsets {
		offsets[i] = float64(i) * grid.DZ
	}
	return DoseRecord{
		StudyID:                 graph.StudyID,
		SeriesID:                graph.DoseSeriesID,
		InstanceID:              graph.DoseInstanceID,
		FrameOfReferenceID:      graph.FrameOfReferenceID,
		ReferencedImageSeriesID: graph.ImageSeriesID,
		Frames:                  grid.NZ,
		Rows:                    grid.NY,
		Cols:                    grid.NX,
		PixelSpacing:            [2]float64{grid.DY, grid.DX},
		SliceThickness:          grid.DZ,
		Position:                [3]float64{grid.OX, grid.OY, grid.OZ},
		GridFrameOffsets:        offsets,
		DoseUnits:               "GY",
		DoseType:                "PHYSICAL",
		SummationType:           "PLAN",
		GridScaling:             scaling,
		PixelData:               pixels,
		Patient:                 pat,
	}
}

// PlanRecord is the single plan output record: a best-effort mapping of
// the trial's prescription and beams. Fields absent from the source
// stay Unknown; nothing is defaulted to a number.
type PlanRecord struct {
	StudyID            string
	SeriesID           string
	InstanceID         string
	FrameOfReferenceID string

	// ReferencedStructureSetID and ReferencedDoseID are empty when the
	// corresponding object was not assembled in this run.
	ReferencedStructureSetID string
	ReferencedDoseID         string

	Label    string
	Geometry string

	Prescription models.PrescriptionInfo
	Beams        []models.Beam

	Patient models.PatientInfo
}

// Plan builds the plan record.
func Plan(presc models.PrescriptionInfo, beams []models.Beam, pat models.PatientInfo, graph *models.ReferenceGraph) PlanRecord {
	label := "Treatment Plan"
	if name, ok := presc.Name.Get(); ok {
		label = name
	}
	return PlanRecord{
		StudyID:                  graph.StudyID,
		SeriesID:                 graph.PlanSeriesID,
		InstanceID:               graph.PlanInstanceID,
		FrameOfReferenceID:       graph.FrameOfReferenceID,
		ReferencedStructureSetID: graph.StructureSetInstanceID,
		ReferencedDoseID:         graph.DoseInstanceID,
		Label:                    label,
		Geometry:                 "PATIENT",
		Prescription:             presc,
		Beams:                    beams,
		Patient:                  pat,
	}
}

// clampInt16 converts voxel intensities to the signed 16-bit range the
// image record stores.
func clampInt16(src []float64) []int16 {
	out := make([]int16, len(src))
	for i, v := range src {
		switch {
		case v > math.MaxInt16:
			out[i] = math.MaxInt16
		case v < math.MinInt16:
			out[i] = math.MinInt16
		default:
			out[i] = int16(math.Round(v))
		}
	}
	return out
}

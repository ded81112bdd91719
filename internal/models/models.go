// Package models defines the immutable data entities shared by the
// conversion pipeline: image geometry, voxel volumes, structure sets,
// dose grids and the identifier graph that links the assembled DICOM
// records together. Entities are write-once: parsers construct them and
// downstream components only read.
package models

import (
	"fmt"
	"math"
)

// ImageGeometry describes the voxel grid of the primary image volume as
// declared by the Pinnacle header: dimensions, per-axis spacing and the
// patient-coordinate position of voxel (0,0,0).
type ImageGeometry struct {
	// NX, NY, NZ are the voxel counts along each axis.
	NX, NY, NZ int

	// DX, DY, DZ are the voxel spacings along each axis in cm.
	DX, DY, DZ float64

	// OX, OY, OZ are the patient coordinates of voxel index (0,0,0).
	OX, OY, OZ float64

	// Datatype is the Pinnacle datatype code (1 = integer, 2 = float).
	Datatype int

	// BytesPerVoxel is the stored width of one voxel in bytes.
	BytesPerVoxel int
}

// VoxelCount returns the total number of voxels in the volume.
func (g ImageGeometry) VoxelCount() int {
	return g.NX * g.NY * g.NZ
}

// SlicePosition returns the patient z coordinate of slice k.
func (g ImageGeometry) SlicePosition(k int) float64 {
	return g.OZ + float64(k)*g.DZ
}

// ZExtent returns the patient z coordinates of the first and last slice.
func (g ImageGeometry) ZExtent() (min, max float64) {
	return g.OZ, g.SlicePosition(g.NZ - 1)
}

// PatientInfo carries the demographic and study fields read from the
// header. All fields are opaque strings passed through verbatim; nothing
// is normalized or defaulted here.
type PatientInfo struct {
	PatientID       string
	PatientName     string
	StudyID         string
	ExamID          string
	Modality        string
	Manufacturer    string
	Model           string
	ScanDate        string
	PatientPosition string
}

// Volume is a dense 3D array of voxel intensities addressed [z][y][x]
// with z as the slowest-varying axis, stored flat in Data.
type Volume struct {
	Data       []float64
	NX, NY, NZ int
}

// At returns the voxel intensity at (x, y, z).
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[(z*v.NY+y)*v.NX+x]
}

// Slice returns the voxels of plane z as a flat row-major view.
func (v *Volume) Slice(z int) []float64 {
	n := v.NX * v.NY
	return v.Data[z*n : (z+1)*n]
}

// Contour is one closed planar polygon of a structure: an ordered list
// of 2D patient-coordinate points on a single slice. A contour with zero
// points is valid.
type Contour struct {
	// Z is the patient z coordinate of the slice this contour lies on.
	Z float64

	// Points are (x, y) patient coordinates in drawing order. The
	// polygon is implicitly closed; the first point is not repeated.
	Points [][2]float64
}

// Structure is one named region of interest with its display color and
// contours in slice order of definition.
type Structure struct {
	Name     string
	Color    [3]uint8
	Contours []Contour
}

// StructureSet is the ordered collection of structures parsed from one
// ROI file, tagged after spatial resolution with the frame of reference
// it was validated against.
type StructureSet struct {
	Structures         []Structure
	FrameOfReferenceID string
}

// Names returns the structure names in definition order.
func (s *StructureSet) Names() []string {
	names := make([]string, len(s.Structures))
	for i, st := range s.Structures {
		names[i] = st.Name
	}
	return names
}

// ByName returns the first structure with the given name, or nil.
func (s *StructureSet) ByName(name string) *Structure {
	for i := range s.Structures {
		if s.Structures[i].Name == name {
			return &s.Structures[i]
		}
	}
	return nil
}

// DuplicateNames returns the structure names that appear more than once
// in the set. Duplicates are legal in source data but worth surfacing.
func (s *StructureSet) DuplicateNames() []string {
	seen := make(map[string]int)
	for _, st := range s.Structures {
		seen[st.Name]++
	}
	var dups []string
	for _, st := range s.Structures {
		if seen[st.Name] > 1 {
			dups = append(dups, st.Name)
			seen[st.Name] = 0 // report each name once
		}
	}
	return dups
}

// DoseGridInfo describes the dose grid geometry declared by the trial
// file. Its resolution and origin are independent of the image volume.
type DoseGridInfo struct {
	NX, NY, NZ int
	DX, DY, DZ float64
	OX, OY, OZ float64

	// Scaling converts stored dose-file values to absolute dose. A unit
	// factor is used when the trial file does not declare one.
	Scaling float64
}

// ZExtent returns the patient z coordinates of the first and last dose plane.
func (g DoseGridInfo) ZExtent() (min, max float64) {
	return g.OZ, g.OZ + float64(g.NZ-1)*g.DZ
}

// DoseVolume is a dense 3D array of absolute dose values addressed
// [z][y][x], already multiplied by the grid scaling factor.
type DoseVolume struct {
	Data       []float64
	NX, NY, NZ int
}

// At returns the absolute dose at (x, y, z).
func (v *DoseVolume) At(x, y, z int) float64 {
	return v.Data[(z*v.NY+y)*v.NX+x]
}

// Max returns the largest dose value in the volume, or 0 for an empty one.
func (v *DoseVolume) Max() float64 {
	max := math.Inf(-1)
	for _, d := range v.Data {
		if d > max {
			max = d
		}
	}
	if math.IsInf(max, -1) {
		return 0
	}
	return max
}

// Optional is a tagged Known/Unknown value for fields that may be absent
// from the source data. An absent field stays Unknown in the output
// records instead of being filled with a numeric placeholder, so "no
// data" can never be mistaken for "zero".
type Optional[T any] struct {
	value T
	known bool
}

// Known wraps a value read from the source data.
func Known[T any](v T) Optional[T] {
	return Optional[T]{value: v, known: true}
}

// Unknown returns an absent value.
func Unknown[T any]() Optional[T] {
	return Optional[T]{}
}

// IsKnown reports whether the value was present in the source data.
func (o Optional[T]) IsKnown() bool { return o.known }

// Get returns the value and whether it is known.
func (o Optional[T]) Get() (T, bool) { return o.value, o.known }

// String renders the value, or "unknown" when absent.
func (o Optional[T]) String() string {
	if !o.known {
		return "unknown"
	}
	return fmt.Sprintf("%v", o.value)
}

// PrescriptionInfo carries the prescription fields extracted from the
// trial file. Every field is individually Known or Unknown.
type PrescriptionInfo struct {
	Name      Optional[string]
	Dose      Optional[float64]
	DoseUnits Optional[string]
	Fractions Optional[int]
	Percent   Optional[float64]
	Method    Optional[string]
	Point     Optional[string]
}

// Beam is one treatment beam extracted from the trial's beam list.
type Beam struct {
	Name            string
	Machine         string
	Energy          Optional[float64]
	GantryAngle     Optional[float64]
	CollimatorAngle Optional[float64]
	CouchAngle      Optional[float64]
	MonitorUnits    Optional[float64]
}

// PatientRepresentation carries the trial's patient-representation
// block: which volume the plan was computed on and the conversion
// tables used. Pass-through metadata, all optional.
type PatientRepresentation struct {
	VolumeName         string
	CTToDensityName    string
	CTToDensityVersion string
	DMTableName        string
	DMTableVersion     string
}

// ReferenceGraph holds every identifier allocated for one conversion
// run and the directed links between the output objects. Links are id
// fields, never live object references, so each record can be encoded
// independently and out of order.
type ReferenceGraph struct {
	StudyID            string
	FrameOfReferenceID string

	// One series per output object type.
	ImageSeriesID        string
	StructureSetSeriesID string
	DoseSeriesID         string
	PlanSeriesID         string

	// One instance per CT slice, in slice order.
	SliceInstanceIDs []string

	// One instance per single-record object.
	StructureSetInstanceID string
	DoseInstanceID         string
	PlanInstanceID         string
}

// AllIDs returns every non-empty identifier in the graph.
func (g *ReferenceGraph) AllIDs() []string {
	ids := []string{
		g.StudyID, g.FrameOfReferenceID,
		g.ImageSeriesID, g.StructureSetSeriesID, g.DoseSeriesID, g.PlanSeriesID,
		g.StructureSetInstanceID, g.DoseInstanceID, g.PlanInstanceID,
	}
	ids = append(ids, g.SliceInstanceIDs...)
	out := ids[:0]
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

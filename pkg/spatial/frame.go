// Package spatial unifies the geometry of the image volume, structure
// set and dose grid into one frame of reference, and validates that the
// objects are spatially consistent before assembly.
//
// The canonical transform is patient = origin + index * spacing per
// axis, expressed as a homogeneous 4x4 affine. Axis signs follow the CT
// geometry when one is present.
package spatial

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"bin2dicom/internal/models"
	"bin2dicom/pkg/errs"
)

// Affine is the invertible index<->patient transform of one frame.
type Affine struct {
	fwd *mat.Dense
	inv *mat.Dense
}

// NewAffine builds the canonical affine from an origin and per-axis
// spacing. Spacing must be non-zero on every axis.
func NewAffine(origin, spacing [3]float64) (Affine, error) {
	fwd := mat.NewDense(4, 4, []float64{
		spacing[0], 0, 0, origin[0],
		0, spacing[1], 0, origin[1],
		0, 0, spacing[2], origin[2],
		0, 0, 0, 1,
	})
	inv := mat.NewDense(4, 4, nil)
	if err := inv.Inverse(fwd); err != nil {
		return Affine{}, fmt.Errorf("singular voxel transform (zero spacing?): %v", err)
	}
	return Affine{fwd: fwd, inv: inv}, nil
}

func apply(m *mat.Dense, a, b, c float64) (float64, float64, float64) {
	in := mat.NewVecDense(4, []float64{a, b, c, 1})
	var out mat.VecDense
	out.MulVec(m, in)
	return out.AtVec(0), out.AtVec(1), out.AtVec(2)
}

// IndexToPatient maps continuous voxel indices to patient coordinates.
func (a Affine) IndexToPatient(i, j, k float64) (x, y, z float64) {
	return apply(a.fwd, i, j, k)
}

// PatientToIndex maps patient coordinates to continuous voxel indices.
func (a Affine) PatientToIndex(x, y, z float64) (i, j, k float64) {
	return apply(a.inv, x, y, z)
}

// Frame is one resolved frame of reference: the shared coordinate basis
// linking volume, structures and dose, with its stable identifier.
type Frame struct {
	ID      string
	Origin  [3]float64
	Spacing [3]float64
	Dims    [3]int
	Affine  Affine
}

// ZExtent returns the patient z coordinates of the frame's first and
// last slice.
func (f *Frame) ZExtent() (min, max float64) {
	return f.Origin[2], f.Origin[2] + float64(f.Dims[2]-1)*f.Spacing[2]
}

// ContourExclusion records one contour dropped because its slice
// position lies outside the volume's z extent beyond tolerance.
type ContourExclusion struct {
	Structure string
	Z         float64
	Min, Max  float64
}

func (e ContourExclusion) String() string {
	return fmt.Sprintf("structure %q: contour at z=%g outside volume extent [%g, %g]", e.Structure, e.Z, e.Min, e.Max)
}

// Options tune the resolution tolerances.
type Options struct {
	// Tolerance is the maximum distance a contour's z position may lie
	// outside the volume extent, and the slack allowed in dose/CT
	// alignment checks. Zero means half the slice spacing.
	Tolerance float64
}

// Result is the outcome of one resolution pass.
type Result struct {
	Frame *Frame

	// Structures is the filtered structure set tagged with the frame
	// id, nil when no structure set was supplied.
	Structures *models.StructureSet

	// Excluded lists the contours dropped by the z-extent check.
	Excluded []ContourExclusion
}

// Resolve establishes the frame of reference for one conversion run.
// The CT geometry defines the frame when present; otherwise the dose
// grid establishes its own standalone frame. Out-of-extent contours are
// excluded and reported rather than failing the structure set, and a
// dose grid that disagrees with the CT frame beyond tolerance is a
// GeometryInconsistencyError.
func Resolve(geom *models.ImageGeometry, ss *models.StructureSet, grid *models.DoseGridInfo, frameID string, opts *Options) (*Result, error) {
	if geom == nil && grid == nil {
		return nil, fmt.Errorf("nothing to resolve: no image geometry and no dose grid")
	}

	var frame *Frame
	var err error
	if geom != nil {
		frame, err = frameOf(frameID, [3]float64{geom.OX, geom.OY, geom.OZ},
			[3]float64{geom.DX, geom.DY, geom.DZ}, [3]int{geom.NX, geom.NY, geom.NZ})
	} else {
		frame, err = frameOf(frameID, [3]float64{grid.OX, grid.OY, grid.OZ},
			[3]float64{grid.DX, grid.DY, grid.DZ}, [3]int{grid.NX, grid.NY, grid.NZ})
	}
	if err != nil {
		return nil, err
	}

	tol := frame.Spacing[2] / 2
	if opts != nil && opts.Tolerance > 0 {
		tol = opts.Tolerance
	}

	res := &Result{Frame: frame}

	if ss != nil {
		res.Structures, res.Excluded = filterStructures(ss, frame, geom != nil, tol)
	}

	if geom != nil && grid != nil {
		if err := checkDoseAlignment(geom, grid, tol); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func frameOf(id string, origin, spacing [3]float64, dims [3]int) (*Frame, error) {
	aff, err := NewAffine(origin, spacing)
	if err != nil {
		return nil, err
	}
	return &Frame{ID: id, Origin: origin, Spacing: spacing, Dims: dims, Affine: aff}, nil
}

// filterStructures copies the structure set, dropping contours whose z
// position lies outside the frame's z extent by more than tol. Empty
// contours carry no geometry and are always retained; the check only
// applies when a CT volume defines the extent.
func filterStructures(ss *models.StructureSet, frame *Frame, haveCT bool, tol float64) (*models.StructureSet, []ContourExclusion) {
	min, max := frame.ZExtent()
	out := &models.StructureSet{FrameOfReferenceID: frame.ID}
	var excluded []ContourExclusion

	for _, st := range ss.Structures {
		kept := models.Structure{Name: st.Name, Color: st.Color}
		for _, c := range st.Contours {
			if haveCT && len(c.Points) > 0 && (c.Z < min-tol || c.Z > max+tol) {
				excluded = append(excluded, ContourExclusion{Structure: st.Name, Z: c.Z, Min: min, Max: max})
				continue
			}
			kept.Contours = append(kept.Contours, c)
		}
		out.Structures = append(out.Structures, kept)
	}
	return out, excluded
}

// checkDoseAlignment verifies that the dose grid shares the CT frame's
// origin convention: its extent must overlap the CT extent on every
// axis within tolerance. Dose grids are routinely coarser and smaller
// than the image volume, so only overlap is required, not coincidence.
func checkDoseAlignment(geom *models.ImageGeometry, grid *models.DoseGridInfo, tol float64) error {
	type axis struct {
		name             string
		ctMin, ctSpan    float64
		doseMin, doseSpn float64
	}
	axes := []axis{
		{"x", geom.OX, float64(geom.NX-1) * geom.DX, grid.OX, float64(grid.NX-1) * grid.DX},
		{"y", geom.OY, float64(geom.NY-1) * geom.DY, grid.OY, float64(grid.NY-1) * grid.DY},
		{"z", geom.OZ, float64(geom.NZ-1) * geom.DZ, grid.OZ, float64(grid.NZ-1) * grid.DZ},
	}
	for _, a := range axes {
		ctMax := a.ctMin + a.ctSpan
		doseMax := a.doseMin + a.doseSpn
		if a.doseMin > ctMax+tol || doseMax < a.ctMin-tol {
			return &errs.GeometryInconsistencyError{
				Axis: a.name,
				Msg: fmt.Sprintf("dose grid extent [%g, %g] does not overlap image extent [%g, %g]",
					a.doseMin, doseMax, a.ctMin, ctMax),
			}
		}
	}
	return nil
}

// Package convert orchestrates one conversion run: parsing the
// Pinnacle export, unifying its geometry into one frame of reference,
// allocating the identifier graph and assembling the output records for
// the external DICOM encoder.
package convert

import (
	"fmt"
	"path/filepath"
	"strings"

	"bin2dicom/internal/models"
	"bin2dicom/pkg/assemble"
	"bin2dicom/pkg/config"
	"bin2dicom/pkg/header"
	"bin2dicom/pkg/imgvol"
	"bin2dicom/pkg/refs"
	"bin2dicom/pkg/roi"
	"bin2dicom/pkg/spatial"
	"bin2dicom/pkg/trial"
)

// Params holds the conversion inputs. HeaderPath is required; the rest
// select which output objects the run assembles.
type Params struct {
	// HeaderPath is the image header file.
	HeaderPath string

	// ImagePath is the binary volume file. Empty means the header path
	// with its extension replaced by .img.
	ImagePath string

	// ROIPath enables structure-set assembly when non-empty.
	ROIPath string

	// TrialPath enables dose and plan assembly when non-empty.
	TrialPath string

	// Config supplies the encoding chain, byte order, slice stacking
	// and tolerance settings. Nil means defaults.
	Config *config.Config

	// Logf receives progress and warning lines. Nil discards them.
	Logf func(format string, args ...any)
}

// Converter runs the conversion pipeline and holds the assembled
// records. All parsing and assembly is synchronous and deterministic;
// a Converter is used for exactly one run.
type Converter struct {
	params *Params
	cfg    *config.Config
	logf   func(string, ...any)

	geom    models.ImageGeometry
	patient models.PatientInfo
	volume  *models.Volume
	frame   *spatial.Frame
	graph   *models.ReferenceGraph

	imageSeries  []assemble.SliceRecord
	structureSet *assemble.StructureSetRecord
	dose         *assemble.DoseRecord
	plan         *assemble.PlanRecord

	excluded   []spatial.ContourExclusion
	duplicates []string
}

// NewConverter creates a converter for one run with the provided
// parameters.
func NewConverter(params *Params) *Converter {
	cfg := params.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logf := params.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Converter{params: params, cfg: cfg, logf: logf}
}

// Run executes the complete pipeline: parse, resolve, allocate,
// assemble. A parser-level failure aborts the run; per-contour spatial
// mismatches are downgraded to warnings and reported via Exclusions.
func (c *Converter) Run() error {
	dec, err := c.cfg.Decoder()
	if err != nil {
		return fmt.Errorf("configuring text decoder: %w", err)
	}

	c.logf("Step 1: Parsing image header...")
	c.geom, c.patient, err = header.Parse(c.params.HeaderPath, dec)
	if err != nil {
		return fmt.Errorf("parsing header: %w", err)
	}

	c.logf("Step 2: Reading binary volume (%dx%dx%d)...", c.geom.NX, c.geom.NY, c.geom.NZ)
	c.volume, err = imgvol.Read(c.imagePath(), c.geom, &imgvol.Options{
		ByteOrder:  c.cfg.ByteOrder(),
		Descending: c.cfg.Descending(),
	})
	if err != nil {
		return fmt.Errorf("reading volume: %w", err)
	}

	var structures *models.StructureSet
	if c.params.ROIPath != "" {
		c.logf("Step 3: Parsing ROI file...")
		structures, err = roi.Parse(c.params.ROIPath, dec)
		if err != nil {
			return fmt.Errorf("parsing ROI file: %w", err)
		}
		c.duplicates = structures.DuplicateNames()
		for _, name := range c.duplicates {
			c.logf("Warning: structure name %q appears more than once", name)
		}
	}

	var trialFile *trial.File
	var grid models.DoseGridInfo
	var doseVolume *models.DoseVolume
	if c.params.TrialPath != "" {
		c.logf("Step 4: Parsing trial file...")
		trialFile, err = trial.Parse(c.params.TrialPath, dec)
		if err != nil {
			return fmt.Errorf("parsing trial file: %w", err)
		}
		grid, err = trialFile.DoseGrid()
		if err != nil {
			return fmt.Errorf("extracting dose grid: %w", err)
		}
		c.logf("Step 4b: Reading dose slices (%dx%dx%d)...", grid.NX, grid.NY, grid.NZ)
		doseVolume, err = trialFile.ReadDoseData(grid, &trial.DoseOptions{ByteOrder: c.cfg.ByteOrder()})
		if err != nil {
			return fmt.Errorf("reading dose data: %w", err)
		}
	}

	c.logf("Step 5: Allocating identifiers...")
	c.graph, err = refs.Allocate(c.geom.NZ, refs.Want{
		StructureSet: structures != nil,
		Dose:         doseVolume != nil,
		Plan:         trialFile != nil,
	})
	if err != nil {
		return fmt.Errorf("allocating identifiers: %w", err)
	}

	c.logf("Step 6: Resolving frame of reference...")
	var gridRef *models.DoseGridInfo
	if doseVolume != nil {
		gridRef = &grid
	}
	resolved, err := spatial.Resolve(&c.geom, structures, gridRef, c.graph.FrameOfReferenceID,
		&spatial.Options{Tolerance: c.cfg.Spatial.Tolerance})
	if err != nil {
		return fmt.Errorf("resolving frame of reference: %w", err)
	}
	c.frame = resolved.Frame
	c.excluded = resolved.Excluded
	for _, ex := range c.excluded {
		c.logf("Warning: excluding %s", ex)
	}

	c.logf("Step 7: Assembling output records...")
	c.imageSeries, err = assemble.ImageSeries(c.volume, c.geom, c.patient, c.graph)
	if err != nil {
		return fmt.Errorf("assembling image series: %w", err)
	}
	if resolved.Structures != nil {
		rec := assemble.StructureSet(resolved.Structures, c.geom, c.patient, c.graph)
		c.structureSet = &rec
	}
	if doseVolume != nil {
		rec := assemble.Dose(doseVolume, grid, c.patient, c.graph)
		c.dose = &rec
	}
	if trialFile != nil {
		rec := assemble.Plan(trialFile.Prescription(), trialFile.Beams(), c.patient, c.graph)
		c.plan = &rec
	}
	return nil
}

// imagePath returns the binary volume path, defaulting to the header
// path with its extension replaced by .img.
func (c *Converter) imagePath() string {
	if c.params.ImagePath != "" {
		return c.params.ImagePath
	}
	base := strings.TrimSuffix(c.params.HeaderPath, filepath.Ext(c.params.HeaderPath))
	return base + ".img"
}

// Geometry returns the parsed image geometry.
func (c *Converter) Geometry() models.ImageGeometry { return c.geom }

// Patient returns the parsed patient fields.
func (c *Converter) Patient() models.PatientInfo { return c.patient }

// Frame returns the resolved frame of reference.
func (c *Converter) Frame() *spatial.Frame { return c.frame }

// Graph returns the run's identifier graph.
func (c *Converter) Graph() *models.ReferenceGraph { return c.graph }

// ImageSeries returns the assembled per-slice records.
func (c *Converter) ImageSeries() []assemble.SliceRecord { return c.imageSeries }

// StructureSet returns the assembled structure-set record, nil when no
// ROI file was supplied.
func (c *Converter) StructureSet() *assemble.StructureSetRecord { return c.structureSet }

// Dose returns the assembled dose record, nil when no trial file was
// supplied.
func (c *Converter) Dose() *assemble.DoseRecord { return c.dose }

// Plan returns the assembled plan record, nil when no trial file was
// supplied.
func (c *Converter) Plan() *assemble.PlanRecord { return c.plan }

// Exclusions returns the contours dropped by the spatial checks.
func (c *Converter) Exclusions() []spatial.ContourExclusion { return c.excluded }

// DuplicateStructureNames returns structure names that appeared more
// than once in the ROI file.
func (c *Converter) DuplicateStructureNames() []string { return c.duplicates }

// Package trial parses Pinnacle .Trial files: the hierarchical plan
// description carrying the dose grid geometry, prescriptions and beams,
// plus the companion binary dose slices.
package trial

import (
	"strconv"
	"strings"

	"bin2dicom/internal/blocktext"
	"bin2dicom/internal/models"
	"bin2dicom/pkg/errs"
	"bin2dicom/pkg/textenc"
)

// File is one parsed trial file. Accessors read the parsed tree; the
// file is never re-parsed.
type File struct {
	path  string
	trial *blocktext.Node
}

// Parse reads, decodes and parses the trial file at path. dec may be
// nil for the default encoding chain.
func Parse(path string, dec *textenc.Decoder) (*File, error) {
	if dec == nil {
		dec = textenc.Default()
	}
	content, err := dec.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	root, err := blocktext.Parse(content, path)
	if err != nil {
		return nil, err
	}
	trial := root.Child("Trial")
	if trial == nil {
		// Some exports omit the outer Trial wrapper.
		trial = root
	}
	return &File{path: path, trial: trial}, nil
}

// Path returns the trial file path.
func (f *File) Path() string { return f.path }

// Name returns the trial's own name, if declared.
func (f *File) Name() (string, bool) { return f.trial.Attr("Name") }

// DoseGrid extracts the dose grid geometry. Dimensions and voxel sizes
// are required and must be positive; the origin defaults to zero the
// way the source format does. The scaling factor converting stored
// dose-file values to absolute dose defaults to 1 when not declared.
func (f *File) DoseGrid() (models.DoseGridInfo, error) {
	var grid models.DoseGridInfo

	dg := f.trial.Child("DoseGrid")
	if dg == nil {
		return grid, errs.NewFormatError(f.path, "DoseGrid", "required block missing")
	}

	var err error
	readDim := func(axis string, dst *int) {
		if err != nil {
			return
		}
		v, ok := dg.Lookup("Dimension", axis)
		if !ok {
			err = errs.NewFormatError(f.path, "DoseGrid.Dimension."+axis, "required key missing")
			return
		}
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n <= 0 {
			err = errs.NewFormatError(f.path, "DoseGrid.Dimension."+axis, "not a positive integer: "+v)
			return
		}
		*dst = n
	}
	readSize := func(axis string, dst *float64) {
		if err != nil {
			return
		}
		v, ok := dg.Lookup("VoxelSize", axis)
		if !ok {
			err = errs.NewFormatError(f.path, "DoseGrid.VoxelSize."+axis, "required key missing")
			return
		}
		s, convErr := strconv.ParseFloat(v, 64)
		if convErr != nil || s <= 0 {
			err = errs.NewFormatError(f.path, "DoseGrid.VoxelSize."+axis, "not a positive number: "+v)
			return
		}
		*dst = s
	}

	readDim("X", &grid.NX)
	readDim("Y", &grid.NY)
	readDim("Z", &grid.NZ)
	readSize("X", &grid.DX)
	readSize("Y", &grid.DY)
	readSize("Z", &grid.DZ)
	if err != nil {
		return models.DoseGridInfo{}, err
	}

	grid.OX = floatOr(dg, 0, "Origin", "X")
	grid.OY = floatOr(dg, 0, "Origin", "Y")
	grid.OZ = floatOr(dg, 0, "Origin", "Z")

	grid.Scaling = 1.0
	if v, ok := dg.Attr("DoseGridScaling"); ok {
		s, convErr := strconv.ParseFloat(v, 64)
		if convErr != nil {
			return models.DoseGridInfo{}, errs.NewFormatError(f.path, "DoseGrid.DoseGridScaling", "not a number: "+v)
		}
		grid.Scaling = s
	} else if v, ok := f.trial.Attr("DoseGridScaling"); ok {
		s, convErr := strconv.ParseFloat(v, 64)
		if convErr != nil {
			return models.DoseGridInfo{}, errs.NewFormatError(f.path, "DoseGridScaling", "not a number: "+v)
		}
		grid.Scaling = s
	}
	return grid, nil
}

// Prescription extracts the first prescription of the trial's
// prescription list. Every field is individually Known or Unknown; a
// trial without prescriptions yields all-Unknown, which is valid.
func (f *File) Prescription() models.PrescriptionInfo {
	var p models.PrescriptionInfo

	list := f.trial.Child("PrescriptionList")
	if list == nil {
		return p
	}
	presc := list.Child("Prescription")
	if presc == nil {
		return p
	}

	p.Name = stringAttr(presc, "Name")
	p.Dose = floatAttr(presc, "PrescriptionDose")
	p.DoseUnits = stringAttr(presc, "DoseUnits")
	p.Fractions = intAttr(presc, "NumberOfFractions")
	p.Percent = floatAttr(presc, "PrescriptionPercent")
	p.Method = stringAttr(presc, "Method")
	p.Point = stringAttr(presc, "PrescriptionPoint")
	return p
}

// Beams extracts the trial's beam list in definition order. Trials
// without beams yield an empty slice.
func (f *File) Beams() []models.Beam {
	list := f.trial.Child("BeamList")
	if list == nil {
		return nil
	}
	var beams []models.Beam
	for _, node := range list.Children {
		if !strings.HasPrefix(node.Name, "Beam") {
			continue
		}
		b := models.Beam{
			Name:            attrDefault(node, "Name", node.Name),
			Energy:          floatAttr(node, "Energy"),
			GantryAngle:     floatAttr(node, "GantryAngle"),
			CollimatorAngle: floatAttr(node, "CollimatorAngle"),
			CouchAngle:      floatAttr(node, "CouchAngle"),
			MonitorUnits:    floatAttr(node, "MonitorUnits"),
		}
		if machine, ok := node.Lookup("Machine", "Name"); ok {
			b.Machine = machine
		} else if machine, ok := node.Attr("MachineNameAndVersion"); ok {
			b.Machine = machine
		}
		beams = append(beams, b)
	}
	return beams
}

// PatientRepresentation returns the trial's patient-representation
// metadata, empty strings for absent fields.
func (f *File) PatientRepresentation() models.PatientRepresentation {
	rep := f.trial.Child("PatientRepresentation")
	if rep == nil {
		return models.PatientRepresentation{}
	}
	return models.PatientRepresentation{
		VolumeName:         attrDefault(rep, "PatientVolumeName", ""),
		CTToDensityName:    attrDefault(rep, "CtToDensityName", ""),
		CTToDensityVersion: attrDefault(rep, "CtToDensityVersion", ""),
		DMTableName:        attrDefault(rep, "DMTableName", ""),
		DMTableVersion:     attrDefault(rep, "DMTableVersion", ""),
	}
}

func floatOr(n *blocktext.Node, def float64, path ...string) float64 {
	v, ok := n.Lookup(path...)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func attrDefault(n *blocktext.Node, key, def string) string {
	if v, ok := n.Attr(key); ok && v != "" {
		return v
	}
	return def
}

func stringAttr(n *blocktext.Node, key string) models.Optional[string] {
	if v, ok := n.Attr(key); ok && v != "" {
		return models.Known(v)
	}
	return models.Unknown[string]()
}

func floatAttr(n *blocktext.Node, key string) models.Optional[float64] {
	v, ok := n.Attr(key)
	if !ok {
		return models.Unknown[float64]()
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return models.Unknown[float64]()
	}
	return models.Known(f)
}

func intAttr(n *blocktext.Node, key string) models.Optional[int] {
	v, ok := n.Attr(key)
	if !ok {
		return models.Unknown[int]()
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return models.Unknown[int]()
	}
	return models.Known(i)
}

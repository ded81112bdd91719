// Package header parses the Pinnacle image header: line-oriented
// key = value text declaring the voxel grid and the patient/study
// demographics of the companion binary volume.
package header

import (
	"strconv"
	"strings"

	"bin2dicom/internal/models"
	"bin2dicom/pkg/errs"
	"bin2dicom/pkg/textenc"
)

// requiredKeys are the geometry keys a header must declare. Their
// absence is a FormatError naming the key; every other key is ignored
// for forward compatibility.
var requiredKeys = []string{
	"x_dim", "y_dim", "z_dim",
	"x_pixdim", "y_pixdim", "z_pixdim",
	"x_start", "y_start", "z_start",
	"datatype", "bytes_pix",
}

// Parse reads and decodes the header at path and extracts the image
// geometry and pass-through patient fields. dec may be nil, in which
// case the default encoding chain is used.
func Parse(path string, dec *textenc.Decoder) (models.ImageGeometry, models.PatientInfo, error) {
	var geom models.ImageGeometry
	var pat models.PatientInfo

	if dec == nil {
		dec = textenc.Default()
	}
	content, err := dec.DecodeFile(path)
	if err != nil {
		return geom, pat, err
	}

	fields := parseFields(content)
	for _, key := range requiredKeys {
		if _, ok := fields[key]; !ok {
			return geom, pat, errs.NewFormatError(path, key, "required key missing")
		}
	}

	intVal := func(key string) (int, error) {
		v, err := strconv.Atoi(fields[key])
		if err != nil {
			return 0, errs.NewFormatError(path, key, "not an integer: "+fields[key])
		}
		return v, nil
	}
	floatVal := func(key string) (float64, error) {
		v, err := strconv.ParseFloat(fields[key], 64)
		if err != nil {
			return 0, errs.NewFormatError(path, key, "not a number: "+fields[key])
		}
		return v, nil
	}

	if geom.NX, err = intVal("x_dim"); err != nil {
		return geom, pat, err
	}
	if geom.NY, err = intVal("y_dim"); err != nil {
		return geom, pat, err
	}
	if geom.NZ, err = intVal("z_dim"); err != nil {
		return geom, pat, err
	}
	if geom.DX, err = floatVal("x_pixdim"); err != nil {
		return geom, pat, err
	}
	if geom.DY, err = floatVal("y_pixdim"); err != nil {
		return geom, pat, err
	}
	if geom.DZ, err = floatVal("z_pixdim"); err != nil {
		return geom, pat, err
	}
	if geom.OX, err = floatVal("x_start"); err != nil {
		return geom, pat, err
	}
	if geom.OY, err = floatVal("y_start"); err != nil {
		return geom, pat, err
	}
	if geom.OZ, err = floatVal("z_start"); err != nil {
		return geom, pat, err
	}
	if geom.Datatype, err = intVal("datatype"); err != nil {
		return geom, pat, err
	}
	if geom.BytesPerVoxel, err = intVal("bytes_pix"); err != nil {
		return geom, pat, err
	}

	for key, v := range map[string]int{"x_dim": geom.NX, "y_dim": geom.NY, "z_dim": geom.NZ, "bytes_pix": geom.BytesPerVoxel} {
		if v <= 0 {
			return geom, pat, errs.NewFormatError(path, key, "must be positive: "+fields[key])
		}
	}
	for key, v := range map[string]float64{"x_pixdim": geom.DX, "y_pixdim": geom.DY, "z_pixdim": geom.DZ} {
		if v <= 0 {
			return geom, pat, errs.NewFormatError(path, key, "must be positive: "+fields[key])
		}
	}

	pat = models.PatientInfo{
		PatientID:       fields["patient_id"],
		PatientName:     fields["db_name"],
		StudyID:         fields["study_id"],
		ExamID:          fields["exam_id"],
		Modality:        fields["modality"],
		Manufacturer:    fields["manufacturer"],
		Model:           fields["model"],
		ScanDate:        fields["date"],
		PatientPosition: fields["patient_position"],
	}
	return geom, pat, nil
}

// parseFields scans key = value lines, ignoring blank lines and //
// comments. Values are trimmed of the terminating semicolon, a leading
// colon and surrounding quotes; later assignments win.
func parseFields(content string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), ";"))
		if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
			value = value[1 : len(value)-1]
		} else if strings.HasPrefix(value, ":") {
			value = strings.TrimSpace(value[1:])
		}
		if key != "" {
			fields[key] = value
		}
	}
	return fields
}

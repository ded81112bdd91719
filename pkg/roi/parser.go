// Package roi parses Pinnacle .roi files into a structure set. An ROI
// file is a sequence of named roi blocks, each holding display
// properties and zero or more curve blocks; a curve is one closed
// planar contour given as x y z point rows.
package roi

import (
	"regexp"
	"strconv"
	"strings"

	"bin2dicom/internal/blocktext"
	"bin2dicom/internal/models"
	"bin2dicom/pkg/textenc"
)

// roiNamePattern matches the banner comment that precedes each roi
// block and carries the structure's display name.
var roiNamePattern = regexp.MustCompile(`Beginning of ROI:\s*(.+)`)

// Parse reads, decodes and parses the ROI file at path. dec may be nil
// for the default encoding chain. A structure with zero curve blocks
// parses to an empty contour list; that is valid output, not an error.
func Parse(path string, dec *textenc.Decoder) (*models.StructureSet, error) {
	if dec == nil {
		dec = textenc.Default()
	}
	content, err := dec.DecodeFile(path)
	if err != nil {
		return nil, err
	}

	// Structure names live in banner comments, which the block grammar
	// discards, so collect them up front in file order.
	var bannerNames []string
	for _, m := range roiNamePattern.FindAllStringSubmatch(content, -1) {
		bannerNames = append(bannerNames, strings.TrimSpace(m[1]))
	}

	root, err := blocktext.Parse(content, path)
	if err != nil {
		return nil, err
	}

	set := &models.StructureSet{}
	for i, block := range root.ChildAll("roi") {
		st := models.Structure{
			Name:  structureName(block, bannerNames, i),
			Color: colorByName(attrOr(block, "color", "")),
		}
		for _, curve := range block.ChildAll("curve") {
			st.Contours = append(st.Contours, parseCurve(curve))
		}
		set.Structures = append(set.Structures, st)
	}
	return set, nil
}

// structureName prefers the banner comment name, then the block's own
// name attribute, then a positional fallback.
func structureName(block *blocktext.Node, banners []string, i int) string {
	if i < len(banners) && banners[i] != "" {
		return banners[i]
	}
	if name, ok := block.Attr("name"); ok && name != "" {
		return name
	}
	return "ROI_" + strconv.Itoa(i)
}

func attrOr(n *blocktext.Node, key, def string) string {
	if v, ok := n.Attr(key); ok {
		return v
	}
	return def
}

// parseCurve converts one curve block to a contour. Point rows are
// whitespace-separated x y z triplets; the contour keeps the 2D points
// and takes its slice position from the first triplet's z. A curve with
// no points yields an empty contour.
func parseCurve(curve *blocktext.Node) models.Contour {
	var c models.Contour
	points := curve.Child("points")
	if points == nil {
		return c
	}
	values := strings.Fields(points.Raw)
	for i := 0; i+2 < len(values); i += 3 {
		x, errX := strconv.ParseFloat(values[i], 64)
		y, errY := strconv.ParseFloat(values[i+1], 64)
		z, errZ := strconv.ParseFloat(values[i+2], 64)
		if errX != nil || errY != nil || errZ != nil {
			continue
		}
		if len(c.Points) == 0 {
			c.Z = z
		}
		c.Points = append(c.Points, [2]float64{x, y})
	}
	return c
}

// colorByName maps the Pinnacle display color names to RGB. Unknown
// names fall back to white.
func colorByName(name string) [3]uint8 {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "red":
		return [3]uint8{255, 0, 0}
	case "green":
		return [3]uint8{0, 255, 0}
	case "blue":
		return [3]uint8{0, 0, 255}
	case "yellow":
		return [3]uint8{255, 255, 0}
	case "cyan":
		return [3]uint8{0, 255, 255}
	case "magenta":
		return [3]uint8{255, 0, 255}
	case "khaki":
		return [3]uint8{240, 230, 140}
	case "orange":
		return [3]uint8{255, 165, 0}
	case "purple":
		return [3]uint8{128, 0, 128}
	case "brown":
		return [3]uint8{165, 42, 42}
	default:
		return [3]uint8{255, 255, 255}
	}
}

// Command bin2dicom runs the conversion core against a Pinnacle export
// and writes a YAML manifest of the assembled records. The manifest is
// the handoff point for the DICOM encoder, which owns UID formatting,
// transfer syntaxes and on-disk serialization.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"bin2dicom/pkg/config"
	"bin2dicom/pkg/convert"
)

type flags struct {
	header  string
	image   string
	roi     string
	trial   string
	output  string
	cfgPath string
	ctOnly  bool
	verbose bool
}

func main() {
	var f flags

	root := &cobra.Command{
		Use:   "bin2dicom",
		Short: "Convert Pinnacle treatment-planning exports for DICOM encoding",
		Long: `bin2dicom parses a Pinnacle export (image header, binary volume,
ROI file, trial file with binary dose slices), unifies the geometry into
one frame of reference and assembles the four cross-referenced output
records: image series, structure set, dose and plan.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(&f)
		},
		SilenceUsage: true,
	}

	root.Flags().StringVar(&f.header, "header", "", "path to the binary image header file (required)")
	root.Flags().StringVar(&f.image, "image", "", "path to the binary image file (default: header path with .img extension)")
	root.Flags().StringVar(&f.roi, "roi", "", "path to the ROI file for structure-set conversion")
	root.Flags().StringVar(&f.trial, "trial", "", "path to the trial file for dose and plan conversion")
	root.Flags().StringVar(&f.output, "output", "", "output directory for the conversion manifest (required)")
	root.Flags().StringVar(&f.cfgPath, "config", "", "path to a YAML conversion config")
	root.Flags().BoolVar(&f.ctOnly, "ct-only", false, "convert CT images only, ignore ROI and trial files")
	root.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "enable verbose output")
	_ = root.MarkFlagRequired("header")
	_ = root.MarkFlagRequired("output")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(f *flags) error {
	cfg := config.DefaultConfig()
	if f.cfgPath != "" {
		var err error
		cfg, err = config.LoadConfig(f.cfgPath)
		if err != nil {
			return err
		}
	}

	params := &convert.Params{
		HeaderPath: f.header,
		ImagePath:  f.image,
		ROIPath:    f.roi,
		TrialPath:  f.trial,
		Config:     cfg,
	}
	if f.ctOnly {
		params.ROIPath = ""
		params.TrialPath = ""
	}
	if f.verbose || cfg.Output.Verbose {
		params.Logf = log.Printf
	}

	converter := convert.NewConverter(params)
	if err := converter.Run(); err != nil {
		return err
	}

	if err := os.MkdirAll(f.output, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	manifestPath := filepath.Join(f.output, "manifest.yaml")
	if err := writeManifest(converter, manifestPath); err != nil {
		return err
	}

	fmt.Printf("Assembled %d CT slice records\n", len(converter.ImageSeries()))
	if ss := converter.StructureSet(); ss != nil {
		fmt.Printf("Assembled structure set with %d ROIs\n", len(ss.ROIs))
	}
	if d := converter.Dose(); d != nil {
		fmt.Printf("Assembled dose record (%d frames, scaling %g)\n", d.Frames, d.GridScaling)
	}
	if p := converter.Plan(); p != nil {
		fmt.Printf("Assembled plan record (prescription dose: %s)\n", p.Prescription.Dose)
	}
	if ex := converter.Exclusions(); len(ex) > 0 {
		fmt.Printf("Excluded %d out-of-extent contours\n", len(ex))
	}
	fmt.Printf("Manifest written to %s\n", manifestPath)
	return nil
}

// manifest is the YAML summary of one run: the identifier graph and the
// record inventory, without pixel payloads.
type manifest struct {
	Study struct {
		StudyID            string `yaml:"studyId"`
		FrameOfReferenceID string `yaml:"frameOfReferenceId"`
	} `yaml:"study"`
	ImageSeries struct {
		SeriesID string `yaml:"seriesId"`
		Slices   int    `yaml:"slices"`
	} `yaml:"imageSeries"`
	StructureSet *struct {
		SeriesID string   `yaml:"seriesId"`
		ROIs     []string `yaml:"rois"`
	} `yaml:"structureSet,omitempty"`
	Dose *struct {
		SeriesID string  `yaml:"seriesId"`
		Frames   int     `yaml:"frames"`
		Scaling  float64 `yaml:"scaling"`
	} `yaml:"dose,omitempty"`
	Plan *struct {
		SeriesID string `yaml:"seriesId"`
		Label    string `yaml:"label"`
		Beams    int    `yaml:"beams"`
	} `yaml:"plan,omitempty"`
	ExcludedContours []string `yaml:"excludedContours,omitempty"`
}

func writeManifest(c *convert.Converter, path string) error {
	var m manifest
	graph := c.Graph()
	m.Study.StudyID = graph.StudyID
	m.Study.FrameOfReferenceID = graph.FrameOfReferenceID
	m.ImageSeries.SeriesID = graph.ImageSeriesID
	m.ImageSeries.Slices = len(c.ImageSeries())

	if ss := c.StructureSet(); ss != nil {
		m.StructureSet = &struct {
			SeriesID string   `yaml:"seriesId"`
			ROIs     []string `yaml:"rois"`
		}{SeriesID: ss.SeriesID}
		for _, r := range ss.ROIs {
			m.StructureSet.ROIs = append(m.StructureSet.ROIs, r.Name)
		}
	}
	if d := c.Dose(); d != nil {
		m.Dose = &struct {
			SeriesID string  `yaml:"seriesId"`
			Frames   int     `yaml:"frames"`
			Scaling  float64 `yaml:"scaling"`
		}{SeriesID: d.SeriesID, Frames: d.Frames, Scaling: d.GridScaling}
	}
	if p := c.Plan(); p != nil {
		m.Plan = &struct {
			SeriesID string `yaml:"seriesId"`
			Label    string `yaml:"label"`
			Beams    int    `yaml:"beams"`
		}{SeriesID: p.SeriesID, Label: p.Label, Beams: len(p.Beams)}
	}
	for _, ex := range c.Exclusions() {
		m.ExcludedContours = append(m.ExcludedContours, ex.String())
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"math"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ashlar/pkg/mat"
	"github.com/samcharles93/ashlar/pkg/mxf"
)

type sectionReport struct {
	Type    string `json:"type"`
	Version uint32 `json:"version"`
	Offset  uint64 `json:"offset"`
	Size    uint64 `json:"size"`
}

type matrixStats struct {
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Frobenius float64 `json:"frobenius"`
}

type inspectReport struct {
	Path     string          `json:"path"`
	Format   string          `json:"format"`
	FileSize uint64          `json:"file_size"`
	Flags    uint64          `json:"flags"`
	Sections []sectionReport `json:"sections"`
	Matrix   *mxf.MatrixInfo `json:"matrix,omitempty"`
	Stats    *matrixStats    `json:"stats,omitempty"`
}

func inspectCmd() *cli.Command {
	var (
		inPath    string
		jsonOut   bool
		withStats bool
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect the contents of an .mxf matrix container",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "in",
				Aliases:     []string{"i"},
				Usage:       "path to .mxf file",
				Destination: &inPath,
				Required:    true,
			},
			&cli.BoolFlag{Name: "json", Usage: "emit the report as JSON", Destination: &jsonOut},
			&cli.BoolFlag{Name: "stats", Usage: "load the payload and report value statistics", Destination: &withStats},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			f, err := mxf.Open(inPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open %s: %v", inPath, err), 1)
			}
			defer func() { _ = f.Close() }()

			report := inspectReport{
				Path:     inPath,
				Format:   fmt.Sprintf("mxf v%d.%d", f.Header.Major, f.Header.Minor),
				FileSize: f.Header.FileSize,
				Flags:    f.Header.Flags,
			}
			for _, s := range f.Sections {
				report.Sections = append(report.Sections, sectionReport{
					Type:    sectionName(s.Type),
					Version: s.Version,
					Offset:  s.Offset,
					Size:    s.Size,
				})
			}
			if meta := f.Section(mxf.SectionMatrixInfo); meta != nil {
				var info mxf.MatrixInfo
				if err := json.Unmarshal(f.SectionData(meta), &info); err != nil {
					return cli.Exit(fmt.Sprintf("error: decode matrix info: %v", err), 1)
				}
				report.Matrix = &info
			}
			if withStats {
				a, _, err := mxf.ReadMatrix(inPath)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: load payload: %v", err), 1)
				}
				report.Stats = statsOf(a)
			}

			if jsonOut {
				b, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(b))
				return nil
			}
			printReport(report)
			return nil
		},
	}
}

func printReport(r inspectReport) {
	fmt.Printf("file:     %s\n", r.Path)
	fmt.Printf("format:   %s\n", r.Format)
	fmt.Printf("size:     %.1f MiB\n", float64(r.FileSize)/(1<<20))
	fmt.Printf("flags:    0x%x\n", r.Flags)
	fmt.Println("sections:")
	for _, s := range r.Sections {
		fmt.Printf("  %-14s v%-3d offset %-10d size %d\n", s.Type, s.Version, s.Offset, s.Size)
	}
	if r.Matrix != nil {
		triangle := r.Matrix.Triangle
		if triangle == "" {
			triangle = mxf.TriangleFull
		}
		fmt.Printf("matrix:   %d-by-%d %s %s-major (%s)\n",
			r.Matrix.Rows, r.Matrix.Cols, r.Matrix.DType, r.Matrix.Order, triangle)
		if r.Matrix.Creator != "" {
			fmt.Printf("creator:  %s\n", r.Matrix.Creator)
		}
	}
	if r.Stats != nil {
		fmt.Printf("stats:    min %g  max %g  fro %g\n", r.Stats.Min, r.Stats.Max, r.Stats.Frobenius)
	}
}

func statsOf(a *mat.Dense) *matrixStats {
	stats := &matrixStats{Min: math.Inf(1), Max: math.Inf(-1)}
	fro := 0.0
	for i := 0; i < a.Rows; i++ {
		for _, v := range a.Row(i) {
			stats.Min = math.Min(stats.Min, v)
			stats.Max = math.Max(stats.Max, v)
			fro += v * v
		}
	}
	stats.Frobenius = math.Sqrt(fro)
	return stats
}

func sectionName(t uint32) string {
	switch mxf.SectionType(t) {
	case mxf.SectionMatrixInfo:
		return "matrix-info"
	case mxf.SectionMatrixData:
		return "matrix-data"
	default:
		return fmt.Sprintf("0x%04x", t)
	}
}

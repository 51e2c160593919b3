package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ashlar/internal/version"
	"github.com/samcharles93/ashlar/pkg/backend"
	"github.com/samcharles93/ashlar/pkg/device"
	"github.com/samcharles93/ashlar/pkg/mxf"
	"github.com/samcharles93/ashlar/pkg/ooc"
)

func factorCmd() *cli.Command {
	var (
		inPath          string
		outPath         string
		upper           bool
		clean           bool
		blockMultiplier int64
		maxBlock        int64
		reserveMiB      int64
	)

	flags := append([]cli.Flag{}, commonPoolFlags()...)
	flags = append(flags, loggingFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "in",
			Aliases:     []string{"i"},
			Usage:       "input .mxf container",
			Destination: &inPath,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Usage:       "output .mxf container (default: overwrite input)",
			Destination: &outPath,
		},
		&cli.BoolFlag{
			Name:        "upper",
			Usage:       "mirror the factor into the upper triangle",
			Destination: &upper,
		},
		&cli.BoolFlag{
			Name:        "clean",
			Usage:       "zero the non-factor triangle",
			Destination: &clean,
		},
		&cli.Int64Flag{
			Name:        "block-multiplier",
			Usage:       "target blocks per device (0 = default)",
			Destination: &blockMultiplier,
		},
		&cli.Int64Flag{
			Name:        "max-block",
			Usage:       "cap on the block edge length (0 = memory bound only)",
			Destination: &maxBlock,
		},
		&cli.Int64Flag{
			Name:        "reserve-mib",
			Usage:       "per-device memory reserve in MiB (0 = default)",
			Destination: &reserveMiB,
		},
	)

	return &cli.Command{
		Name:  "factor",
		Usage: "Factor an mxf matrix out of core",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := LoadConfig()
			applyPoolConfig(cmd, cfg)
			applyPlanConfig(cmd, cfg, &blockMultiplier, &reserveMiB)
			log, slogger := buildLogging()

			a, info, err := mxf.ReadMatrix(inPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: read %s: %v", inPath, err), 1)
			}
			if a.Rows != a.Cols {
				return cli.Exit(fmt.Sprintf("error: matrix must be square, got %d-by-%d", a.Rows, a.Cols), 1)
			}

			pool, err := backend.Open(backendName, int(devices))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open backend: %v", err), 1)
			}
			defer func() { _ = pool.Close() }()
			reg, err := device.NewRegistry(pool.Resources())
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: register devices: %v", err), 1)
			}

			log.Info("factoring",
				"path", inPath, "n", a.Rows, "triangle", info.Triangle,
				"backend", pool.Name(), "devices", reg.Len())
			start := time.Now()
			if _, err := ooc.Cholesky(reg, a, ooc.Options{
				Plan: ooc.PlanOptions{
					Multiplier: int(blockMultiplier),
					Reserve:    uint64(reserveMiB) << 20,
					MaxBlock:   int(maxBlock),
				},
				Upper: upper,
				Clean: clean,
				Log:   slogger,
			}); err != nil {
				return cli.Exit(fmt.Sprintf("error: factor: %v", err), 1)
			}
			took := time.Since(start)

			target := outPath
			if target == "" {
				target = inPath
			}
			if err := mxf.WriteMatrix(target, a, mxf.MatrixInfo{
				Triangle: factorTriangle(upper, clean),
				Creator:  "ashlar/" + version.Resolve().Version,
			}); err != nil {
				return cli.Exit(fmt.Sprintf("error: write %s: %v", target, err), 1)
			}

			n := float64(a.Rows)
			log.Info("factored",
				"path", target, "took", took.Round(time.Millisecond),
				"gflops", fmt.Sprintf("%.2f", n*n*n/3/took.Seconds()/1e9))
			return nil
		},
	}
}

// factorTriangle names the triangle the output container holds. Without
// clean both triangles carry data, so the container is marked full.
func factorTriangle(upper, clean bool) string {
	switch {
	case upper && clean:
		return mxf.TriangleUpper
	case clean:
		return mxf.TriangleLower
	default:
		return mxf.TriangleFull
	}
}

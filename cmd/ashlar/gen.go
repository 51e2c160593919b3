package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ashlar/internal/version"
	"github.com/samcharles93/ashlar/pkg/mat"
	"github.com/samcharles93/ashlar/pkg/mxf"
)

func genCmd() *cli.Command {
	var (
		outPath string
		order   int64
		seed    int64
	)

	return &cli.Command{
		Name:  "gen",
		Usage: "Generate a synthetic SPD matrix container",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output .mxf container",
				Destination: &outPath,
				Required:    true,
			},
			&cli.Int64Flag{
				Name:        "n",
				Usage:       "matrix order",
				Value:       4096,
				Destination: &order,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "generator seed",
				Value:       1,
				Destination: &seed,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if order <= 0 {
				return cli.Exit(fmt.Sprintf("error: n must be positive, got %d", order), 1)
			}
			a := mat.NewSPD(int(order), seed)
			if err := mxf.WriteMatrix(outPath, a, mxf.MatrixInfo{
				Triangle: mxf.TriangleFull,
				Creator:  "ashlar/" + version.Resolve().Version,
			}); err != nil {
				return cli.Exit(fmt.Sprintf("error: write %s: %v", outPath, err), 1)
			}
			fmt.Printf("wrote %s (%d-by-%d, %.1f MiB)\n",
				outPath, order, order, float64(order*order*8)/(1<<20))
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ashlar/pkg/backend"
	"github.com/samcharles93/ashlar/pkg/device"
	"github.com/samcharles93/ashlar/pkg/mat"
	"github.com/samcharles93/ashlar/pkg/ooc"
)

type benchResult struct {
	N      int     `json:"n"`
	Runs   int     `json:"runs"`
	BestMS float64 `json:"best_ms"`
	AvgMS  float64 `json:"avg_ms"`
	GFLOPS float64 `json:"gflops"`
}

func benchCmd() *cli.Command {
	var (
		sizes      string
		warmupRuns int64
		benchRuns  int64
		jsonOut    bool
	)

	flags := append([]cli.Flag{}, commonPoolFlags()...)
	flags = append(flags, loggingFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "sizes",
			Usage:       "comma-separated matrix orders",
			Value:       "1024,2048,4096",
			Destination: &sizes,
		},
		&cli.Int64Flag{
			Name:        "warmup",
			Usage:       "number of warmup runs per size",
			Value:       1,
			Destination: &warmupRuns,
		},
		&cli.Int64Flag{
			Name:        "runs",
			Usage:       "number of timed runs per size",
			Value:       3,
			Destination: &benchRuns,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "emit results as JSON",
			Destination: &jsonOut,
		},
	)

	return &cli.Command{
		Name:  "bench",
		Usage: "Benchmark out-of-core factorization on synthetic matrices",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := LoadConfig()
			applyPoolConfig(cmd, cfg)
			_, slogger := buildLogging()

			orders, err := parseSizes(sizes)
			if err != nil {
				return cli.Exit("error: "+err.Error(), 1)
			}
			if benchRuns < 1 {
				return cli.Exit("error: runs must be at least 1", 1)
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

			if !jsonOut {
				fmt.Println("=== Ashlar Benchmark ===")
				fmt.Printf("Backend:  %s\n", pool.Name())
				fmt.Printf("Devices:  %d\n", reg.Len())
				fmt.Printf("CPUs:     %d\n", runtime.NumCPU())
				fmt.Printf("Warmup:   %d runs\n", warmupRuns)
				fmt.Printf("Runs:     %d\n", benchRuns)
				fmt.Println()
			}

			results := make([]benchResult, 0, len(orders))
			for _, n := range orders {
				res, err := benchOrder(reg, n, int(warmupRuns), int(benchRuns), slogger)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: bench n=%d: %v", n, err), 1)
				}
				results = append(results, res)
				if !jsonOut {
					fmt.Printf("n=%-6d best %8.1f ms  avg %8.1f ms  %7.2f GFLOP/s\n",
						res.N, res.BestMS, res.AvgMS, res.GFLOPS)
				}
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			return nil
		},
	}
}

func benchOrder(reg *device.Registry, n, warmup, runs int, log *slog.Logger) (benchResult, error) {
	src := mat.NewSPD(n, int64(n))
	work := mat.NewDense(n, n)
	best := math.MaxFloat64
	total := 0.0
	for i := 0; i < warmup+runs; i++ {
		copy(work.Data, src.Data)
		start := time.Now()
		if _, err := ooc.Cholesky(reg, work, ooc.Options{Log: log}); err != nil {
			return benchResult{}, err
		}
		took := time.Since(start).Seconds()
		if i < warmup {
			continue
		}
		total += took
		if took < best {
			best = took
		}
	}
	flops := float64(n) * float64(n) * float64(n) / 3
	return benchResult{
		N:      n,
		Runs:   runs,
		BestMS: best * 1000,
		AvgMS:  total / float64(runs) * 1000,
		GFLOPS: flops / best / 1e9,
	}, nil
}

func parseSizes(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("bad matrix order %q", p)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no matrix orders given")
	}
	return out, nil
}

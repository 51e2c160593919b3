package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ashlar/pkg/backend"
)

func devicesCmd() *cli.Command {
	flags := append([]cli.Flag{}, commonPoolFlags()...)

	return &cli.Command{
		Name:  "devices",
		Usage: "List the devices of the negotiated backend",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := LoadConfig()
			applyPoolConfig(cmd, cfg)

			fmt.Printf("available backends: %s\n", backend.Available())
			pool, err := backend.Open(backendName, int(devices))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open backend: %v", err), 1)
			}
			defer func() { _ = pool.Close() }()

			fmt.Printf("negotiated: %s\n\n", pool.Name())
			for _, r := range pool.Resources() {
				fmt.Printf("device %d: %.1f GiB free\n", r.ID, float64(r.FreeMemory)/(1<<30))
			}
			return nil
		},
	}
}

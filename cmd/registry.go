package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/registry"
	"github.com/sells-group/leadgen-cli/internal/sink"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect and seed the registry of already exported place IDs",
}

var registryStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many place IDs the registry holds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		reg, done, err := openRegistry(ctx)
		if err != nil {
			return err
		}
		defer done()

		seen, err := reg.Load(ctx)
		if err != nil {
			return eris.Wrap(err, "registry status")
		}
		fmt.Printf("Driver:\t%s\nPlace IDs:\t%d\n", cfg.Registry.Driver, seen.Len())
		return nil
	},
}

var registryImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge place IDs from an existing CSV or XLSX export into the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		reg, done, err := openRegistry(ctx)
		if err != nil {
			return err
		}
		defer done()

		added, total, err := importIDs(ctx, reg, args[0])
		if err != nil {
			return err
		}
		zap.L().Info("registry import complete",
			zap.String("file", args[0]),
			zap.Int("added", added),
			zap.Int("total", total),
		)
		fmt.Printf("Imported %d new place IDs (%d total)\n", added, total)
		return nil
	},
}

func openRegistry(ctx context.Context) (registry.Registry, closer, error) {
	if err := cfg.Validate("registry"); err != nil {
		return nil, nil, err
	}
	return initRegistry(ctx, cfg, nil)
}

// importIDs unions the place IDs found in path into reg and reports how
// many were new.
func importIDs(ctx context.Context, reg registry.Registry, path string) (added, total int, err error) {
	ids, err := sink.PlaceIDsFromFile(path)
	if err != nil {
		return 0, 0, err
	}
	seen, err := reg.Load(ctx)
	if err != nil {
		return 0, 0, eris.Wrap(err, "registry import: load")
	}
	fresh := ids.Difference(seen)
	if fresh.Len() == 0 {
		return 0, seen.Len(), nil
	}
	if err := reg.Save(ctx, fresh); err != nil {
		return 0, 0, eris.Wrap(err, "registry import: save")
	}
	return fresh.Len(), seen.Len() + fresh.Len(), nil
}

func init() {
	registryCmd.AddCommand(registryStatusCmd)
	registryCmd.AddCommand(registryImportCmd)
	rootCmd.AddCommand(registryCmd)
}

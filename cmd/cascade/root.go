package main

import (
	"github.com/spf13/cobra"

	"github.com/cascadedb/cascade/internal/catalog"
	"github.com/cascadedb/cascade/internal/config"
	"github.com/cascadedb/cascade/internal/log"
)

var (
	version = "0.1.0"
	commit  = "unknown"
)

type rootOptions struct {
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "cascade",
		Short:   "cascade - projection pushdown planner",
		Version: version,
		Long: `cascade plans queries against table sources and pushes projections,
including nested struct fields and metadata pseudo-columns, into the
source scan.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return err
			}
			log.Configure(cfg.Log)
			opts.cfg = cfg
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate("cascade {{.Version}} (commit: " + commit + ")\n")

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("schema", "", "schema to resolve tables in (default \"public\")")

	rootCmd.AddCommand(newExplainCmd(opts))
	rootCmd.AddCommand(newTablesCmd(opts))
	return rootCmd
}

// openCatalog builds the configured catalog backend. The returned close
// function is a no-op for the memory backend.
func openCatalog(cfg *config.Config) (catalog.Catalog, func() error, error) {
	switch cfg.Catalog.Backend {
	case "postgres":
		pg, err := catalog.OpenPG(cfg.Catalog.DSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return demoCatalog(), func() error { return nil }, nil
	}
}

func schemaFlag(cmd *cobra.Command) string {
	schema, _ := cmd.Flags().GetString("schema")
	return schema
}

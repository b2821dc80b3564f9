package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/arkilian/lakestage/internal/pipeline"
)

func runCmd(g *globalFlags) *cobra.Command {
	var rc pipeline.RunContext

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load one source file into one partition",
		Example: `  lakestage run --environment Dev --source-location raw --source-key ins/policies \
    --base-file-name policies.csv --target-location cleanse --database ins --table policies \
    --year 2024 --month 1 --day 5 --scratch-location tmp`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, logger, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			if rc.ExecutionID == "" {
				rc.ExecutionID = uuid.NewString()
			}

			rec, err := a.Metrics(map[string]string{"database": rc.Database, "table": rc.Table})
			if err != nil {
				return err
			}
			p, err := a.Pipeline(rec)
			if err != nil {
				return err
			}

			summary, runErr := p.Run(ctx, rc)
			if err := rec.Flush(ctx); err != nil {
				logger.Warn("failed to push metrics", "error", err)
			}
			if runErr != nil {
				logger.Error("run failed", "execution_id", rc.ExecutionID, "error", runErr)
				return runErr
			}
			return printJSON(cmd, summary)
		},
	}

	f := cmd.Flags()
	f.StringVar(&rc.Environment, "environment", "", "Deployment environment (Dev, Test, Prod)")
	f.StringVar(&rc.SourceLocation, "source-location", "", "Storage prefix of raw sources")
	f.StringVar(&rc.SourceKey, "source-key", "", "Source key under the source location")
	f.StringVar(&rc.BaseFileName, "base-file-name", "", "Source file name")
	f.StringVar(&rc.TargetLocation, "target-location", "", "Storage prefix of cleansed tables")
	f.StringVar(&rc.Database, "database", "", "Target catalog database")
	f.StringVar(&rc.Table, "table", "", "Target catalog table")
	f.IntVar(&rc.Key.Year, "year", 0, "Partition year")
	f.IntVar(&rc.Key.Month, "month", 0, "Partition month")
	f.IntVar(&rc.Key.Day, "day", 0, "Partition day")
	f.StringVar(&rc.ExecutionID, "execution-id", "", "Run identifier (generated when empty)")
	f.StringVar(&rc.ScratchLocation, "scratch-location", "", "Storage prefix for recommended mapping and spec")
	f.StringVar(&rc.SpecLocation, "spec-location", "", "Storage prefix of mapping and spec files (defaults to artifacts.spec_prefix)")
	f.StringVar(&rc.LineageTable, "lineage-table", "", "Results table receiving lineage events")

	for _, name := range []string{
		"environment", "source-location", "source-key", "base-file-name", "target-location",
		"database", "table", "year", "month", "day", "scratch-location",
	} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

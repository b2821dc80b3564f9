package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arkilian/lakestage/internal/catalog"
	"github.com/arkilian/lakestage/pkg/types"
)

func catalogCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the table catalog",
	}
	cmd.AddCommand(describeCmd(g), partitionsCmd(g))
	return cmd
}

type tableFlags struct {
	database string
	table    string
}

func (t *tableFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&t.database, "database", "", "Catalog database")
	cmd.Flags().StringVar(&t.table, "table", "", "Catalog table")
	_ = cmd.MarkFlagRequired("database")
	_ = cmd.MarkFlagRequired("table")
}

func describeCmd(g *globalFlags) *cobra.Command {
	var t tableFlags
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Show a table definition and its schema history",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, _, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			def, err := a.Catalog().GetTable(ctx, t.database, t.table)
			if err != nil {
				return err
			}
			versions, err := a.Catalog().SchemaVersions(ctx, t.database, t.table)
			if err != nil {
				return err
			}
			return printJSON(cmd, struct {
				Table    *types.TableSchema            `json:"table"`
				Versions []catalog.SchemaVersionRecord `json:"versions"`
			}{def, versions})
		},
	}
	t.bind(cmd)
	return cmd
}

func partitionsCmd(g *globalFlags) *cobra.Command {
	var (
		t   tableFlags
		key types.PartitionKey
	)
	cmd := &cobra.Command{
		Use:   "partitions",
		Short: "List the data files registered for a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, _, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			var records []*catalog.PartitionRecord
			if key == (types.PartitionKey{}) {
				records, err = a.Catalog().AllPartitions(ctx, t.database, t.table)
			} else {
				if err := key.Validate(); err != nil {
					return err
				}
				records, err = a.Catalog().ListPartitions(ctx, t.database, t.table, key)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-12s %-8s %-10s %-36s %s\n", "PARTITION", "ROWS", "BYTES", "EXECUTION", "OBJECT")
			for _, r := range records {
				fmt.Fprintf(out, "%-12s %-8d %-10d %-36s %s\n", r.Key, r.RowCount, r.SizeBytes, r.ExecutionID, r.ObjectPath)
			}
			return nil
		},
	}
	t.bind(cmd)
	cmd.Flags().IntVar(&key.Year, "year", 0, "Partition year (all partitions when unset)")
	cmd.Flags().IntVar(&key.Month, "month", 0, "Partition month")
	cmd.Flags().IntVar(&key.Day, "day", 0, "Partition day")
	return cmd
}

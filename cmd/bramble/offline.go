package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/bramble/pkg/workspace"
)

// cliWorkspace is the workspace id used by one-shot commands
const cliWorkspace = "cli"

func newSearchCommand(c *cli) *cobra.Command {
	var (
		req     workspace.SearchRequest
		rounds  int
		tidy    bool
		qngPath string
		csvPath string
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the registry, expand the result and write it out",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.IsEmpty() {
				return errors.New("one of --name, --address or --file-number is required")
			}
			return c.run(cmd.Context(), func(ctx context.Context, a *app) error {
				w := a.manager.Get(cliWorkspace)
				if tidy {
					w.SetTidy(ctx, true)
				}

				out, err := w.Search(ctx, req)
				if err != nil {
					return err
				}
				if out.NoResults {
					fmt.Fprintln(cmd.OutOrStdout(), "no results")
					return nil
				}
				report(cmd.OutOrStdout(), "search", out)

				for i := 0; i < rounds; i++ {
					out, err = w.Expand(ctx, workspace.Selection{IDs: w.Graph().NodeIDs()})
					if err != nil {
						return err
					}
					report(cmd.OutOrStdout(), fmt.Sprintf("expand %d", i+1), out)
					if out.NoResults || out.NewRecords == 0 {
						break
					}
				}
				return writeOutputs(w, qngPath, csvPath)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.Name, "name", "", "name to search (SQL LIKE pattern)")
	flags.StringVar(&req.Address, "address", "", "street address to search (SQL LIKE pattern)")
	flags.StringVar(&req.FileNumber, "file-number", "", "file number fragment to search")
	flags.IntVar(&rounds, "expand", 0, "expansion rounds after the search")
	flags.BoolVar(&tidy, "tidy", false, "run full deduplication on every ingestion")
	flags.StringVar(&qngPath, "out", "", "write the graph as QNG to this file")
	flags.StringVar(&csvPath, "export", "", "write the business-data CSV to this file")
	return cmd
}

func newTidyCommand(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "tidy <graph.qng>",
		Short: "Merge likely duplicates in a QNG graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), func(ctx context.Context, a *app) error {
				w := a.manager.Get(cliWorkspace)
				if err := loadFile(ctx, w, args[0]); err != nil {
					return err
				}
				r := w.TidyNow(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "merged %d groups, folded %d nodes, %d parse failures\n",
					r.GroupsMerged, r.NodesFolded, len(r.ParseFailures))
				if out == "" {
					out = args[0]
				}
				return writeOutputs(w, out, "")
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file (defaults to overwriting the input)")
	return cmd
}

func newComposeCommand(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "compose <a.qng> <b.qng>...",
		Short: "Compose several QNG graphs into one",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.New("--out is required")
			}
			return c.run(cmd.Context(), func(ctx context.Context, a *app) error {
				w := a.manager.Get(cliWorkspace)
				for _, path := range args {
					if err := loadFile(ctx, w, path); err != nil {
						return err
					}
				}
				g := w.Graph()
				fmt.Fprintf(cmd.OutOrStdout(), "composed %d graphs: %d nodes, %d edges\n", len(args), g.Len(), g.EdgeCount())
				return writeOutputs(w, out, "")
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file")
	return cmd
}

func newMigrateCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply snapshot database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			c.cfg.DatabaseEnabled = true
			c.cfg.RedisEnabled, c.cfg.KafkaEnabled, c.cfg.GraphDBEnabled = false, false, false
			return c.run(cmd.Context(), func(ctx context.Context, a *app) error {
				c.logger.WithField("version", c.cfg.DatabaseMigrationVersion).Info("Migrations applied")
				return nil
			})
		},
	}
	cmd.Flags().Int("target", 0, "target migration version (0 migrates to the latest)")
	_ = c.v.BindPFlag("db_migration_version", cmd.Flags().Lookup("target"))
	return cmd
}

func report(out io.Writer, step string, o workspace.Outcome) {
	fmt.Fprintf(out, "%s: %d records (%d new), %d nodes, %d edges, %d unresolved stubs\n",
		step, o.Records, o.NewRecords, o.Nodes, o.Edges, len(o.Unresolved))
}

func loadFile(ctx context.Context, w *workspace.Workspace, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := w.LoadQNG(ctx, f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func writeOutputs(w *workspace.Workspace, qngPath, csvPath string) error {
	if qngPath != "" {
		if err := writeFile(qngPath, w.SaveQNG); err != nil {
			return err
		}
	}
	if csvPath != "" {
		if err := writeFile(csvPath, w.ExportBusinessData); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

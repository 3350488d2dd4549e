package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sentinel/internal/bundle"
	"github.com/roach88/sentinel/internal/record"
	"github.com/roach88/sentinel/internal/seed"
	"github.com/roach88/sentinel/internal/store"
)

// StatusResult describes the database.
type StatusResult struct {
	Database      string         `json:"database"`
	SchemaVersion int            `json:"schemaVersion"`
	Counts        map[string]int `json:"counts"`
}

func (r StatusResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Database: %s (schema v%d)", r.Database, r.SchemaVersion)
	for _, c := range record.AllCollections {
		fmt.Fprintf(&b, "\n  %-12s %d", c, r.Counts[string(c)])
	}
	return b.String()
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show database version and record counts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				version, err := st.SchemaVersion(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read schema version", err)
				}
				counts, err := st.Counts(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to count records", err)
				}
				res := StatusResult{Database: rootOpts.DB, SchemaVersion: version, Counts: map[string]int{}}
				for c, n := range counts {
					res.Counts[string(c)] = n
				}
				return rootOpts.formatter(cmd).Success(res)
			})
		},
	}
}

// SeedResult reports a seed or reset.
type SeedResult struct {
	Site string `json:"site"`
	seed.Result
}

func (r SeedResult) String() string {
	if !r.Applied {
		return "Store already has traps; nothing seeded."
	}
	return fmt.Sprintf("Seeded %s: %d records.", r.Site, r.Records)
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the Bari Loseto demo site into an empty database",
		Long: `Load the built-in Bari Loseto catalog: five traps, twelve inspections
over the last two weeks, three alert rules and a kickoff message.

Nothing is written if the database already has traps.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, cmd, seed.Apply)
		},
	}
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every record and the settings, then seed the demo site",
		Example: `  sentinel reset --yes
  sentinel reset --db ./field.db --yes`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return NewExitError(ExitCommandError, "reset deletes every record and the settings; pass --yes to confirm")
			}
			return runSeed(rootOpts, cmd, seed.Reset)
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

type seedFunc func(ctx context.Context, s *store.Store, c *seed.Catalog, opts seed.Options) (seed.Result, error)

func runSeed(rootOpts *RootOptions, cmd *cobra.Command, apply seedFunc) error {
	catalog, err := seed.Loseto()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load seed catalog", err)
	}
	return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
		res, err := apply(ctx, st, catalog, seed.Options{IDs: rootOpts.ids(), Now: rootOpts.clock()})
		if err != nil {
			return WrapExitError(ExitFailure, "seed failed", err)
		}
		return rootOpts.formatter(cmd).Success(SeedResult{Site: catalog.Site.Name, Result: res})
	})
}

// FileResult reports a file written by export or csv.
type FileResult struct {
	Path    string `json:"path"`
	Records int    `json:"records"`
}

func (r FileResult) String() string {
	return fmt.Sprintf("Wrote %d records to %s", r.Records, r.Path)
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		all    bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export records and settings as a JSON bundle",
		Long: `Export traps, inspections, alert rules, messages and settings as a
version 2 JSON bundle. --all adds media and the outbox for a full backup.

Without --output the bundle is written to stdout.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				b, err := bundle.Export(ctx, st, all, rootOpts.now())
				if err != nil {
					return WrapExitError(ExitFailure, "export failed", err)
				}
				if output == "" {
					return bundle.Write(cmd.OutOrStdout(), b)
				}
				if err := writeFile(output, func(f *os.File) error { return bundle.Write(f, b) }); err != nil {
					return err
				}
				n := len(b.Traps) + len(b.Inspections) + len(b.Alerts) + len(b.Messages) + len(b.Media) + len(b.Outbox)
				return rootOpts.formatter(cmd).Success(FileResult{Path: output, Records: n})
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include media and outbox")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the bundle to this file")
	return cmd
}

// ImportResult reports an import.
type ImportResult struct {
	File string `json:"file"`
	bundle.ImportResult
}

func (r ImportResult) String() string {
	return fmt.Sprintf("Imported %s: %d traps, %d inspections, %d rules, %d messages, %d media, %d outbox items",
		r.File, r.Traps, r.Inspections, r.Alerts, r.Messages, r.Media, r.Outbox)
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a JSON bundle",
		Long: `Import a JSON bundle written by export (version 2 or older).

Records are upserted by id in one transaction; a bundle with a dangling
reference writes nothing. --all first deletes every record so the database
matches the bundle. Settings are merged either way.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open bundle", err)
			}
			defer f.Close()

			b, err := bundle.Read(f)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read bundle", err)
			}
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				res, err := bundle.Import(ctx, st, b, bundle.ImportOptions{Wipe: all, IDs: rootOpts.ids()})
				if err != nil {
					return WrapExitError(ExitFailure, "import failed", err)
				}
				return rootOpts.formatter(cmd).Success(ImportResult{File: args[0], ImportResult: res})
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "replace every record with the bundle's")
	return cmd
}

// NewCSVCommand creates the csv command.
func NewCSVCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:           "csv",
		Short:         "Export inspections as CSV",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				traps, err := store.GetAll[record.Trap](ctx, st)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to load traps", err)
				}
				insps, err := store.GetAll[record.Inspection](ctx, st)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to load inspections", err)
				}
				if output == "" {
					return bundle.WriteCSV(cmd.OutOrStdout(), traps, insps)
				}
				if err := writeFile(output, func(f *os.File) error { return bundle.WriteCSV(f, traps, insps) }); err != nil {
					return err
				}
				return rootOpts.formatter(cmd).Success(FileResult{Path: output, Records: len(insps)})
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the CSV to this file")
	return cmd
}

// writeFile creates path and hands it to write.
func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create output file", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return WrapExitError(ExitFailure, "failed to write "+path, err)
	}
	if err := f.Close(); err != nil {
		return WrapExitError(ExitFailure, "failed to write "+path, err)
	}
	return nil
}

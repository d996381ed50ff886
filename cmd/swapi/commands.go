package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"swapiapi/internal/config"
	"swapiapi/internal/entity"
	"swapiapi/internal/ingest"
	"swapiapi/internal/logging"
	"swapiapi/internal/platform/swapi"
	"swapiapi/internal/store"
)

type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	db     *store.DB
	out    io.Writer

	migrate bool
}

func newApp() *app {
	return &app{}
}

// Execute builds the command tree and runs it with args.
func (a *app) Execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	if a.out != nil {
		root.SetOut(a.out)
	}
	// PostRun hooks are skipped when a command fails, so close here.
	defer func() {
		if a.db != nil {
			a.db.Close()
		}
	}()
	return root.ExecuteContext(ctx)
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:               "swapi",
		Short:             "SWAPI catalog maintenance",
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	root.PersistentFlags().BoolVar(&a.migrate, "migrate", false, "apply pending migrations before running")

	root.AddCommand(a.importCommand(), a.runsCommand(), a.statsCommand())
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.New(cfg.LoggingConfig())

	db, err := store.Open(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.db = db

	if a.migrate || cfg.AutoMigrate {
		if err := store.Migrate(cmd.Context(), db, a.logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (a *app) service() *ingest.Service {
	client := swapi.NewClient(swapi.Options{
		BaseURL:    a.cfg.SwapiBaseURL,
		VerifySSL:  a.cfg.VerifySwapiSSL,
		Timeout:    a.cfg.SwapiTimeout,
		RPS:        a.cfg.SwapiRPS,
		MaxRetries: a.cfg.SwapiMaxRetries,
		UserAgent:  a.cfg.AppName + "/" + a.cfg.AppVersion,
	})
	return ingest.NewService(client, store.NewCatalogRepo(a.db), ingest.NewRunRepo(a.db),
		ingest.Config{Workers: a.cfg.ImportWorkers}, a.logger)
}

// kindsFor expands an import argument into the kinds to import.
func kindsFor(arg string) ([]entity.Kind, error) {
	if arg == "all" {
		return entity.Kinds, nil
	}
	kind, err := entity.ParseKind(arg)
	if err != nil {
		return nil, err
	}
	return []entity.Kind{kind}, nil
}

func (a *app) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "import <characters|films|starships|all>",
		Short:     "Import one kind, or every kind, from SWAPI",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"characters", "films", "starships", "all"},
		Example: `  swapi import films
  swapi import all --migrate`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := kindsFor(args[0])
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, _ := kindsFor(args[0])
			svc := a.service()
			for _, kind := range kinds {
				summary, err := svc.ImportAll(cmd.Context(), kind)
				if err != nil {
					return fmt.Errorf("import %s: %w", kind, err)
				}
				printSummary(cmd.OutOrStdout(), summary)
			}
			return nil
		},
	}
}

func printSummary(w io.Writer, s ingest.Summary) {
	fmt.Fprintf(w, "%s: fetched=%d stored=%d linked=%d deferred=%d resolved=%d failed=%d\n",
		s.Kind, s.Fetched, s.Count, s.Linked, s.Deferred, s.Resolved, len(s.Errors))
	for _, e := range s.Errors {
		fmt.Fprintf(w, "  %s: %s\n", e.Key, e.Error)
	}
}

func (a *app) runsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Print recent import runs as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := a.service().Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

func (a *app) statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print row counts per kind and pending links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := store.NewCatalogRepo(a.db)
			out := cmd.OutOrStdout()
			for _, kind := range entity.Kinds {
				n, err := repo.Count(cmd.Context(), kind)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-10s %d\n", kind, n)
			}
			pending, err := repo.CountPending(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-10s %d\n", "pending", pending)
			return nil
		},
	}
}

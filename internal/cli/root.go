package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/roach88/library/internal/engine"
)

// Config holds environment defaults for the global flags.
type Config struct {
	Database string `env:"LIBRARY_DB" envDefault:"library.db"`
	Backend  string `env:"LIBRARY_BACKEND" envDefault:"sqlite"`
	Format   string `env:"LIBRARY_FORMAT" envDefault:"text"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string
	Backend  string // "sqlite" | "bolt"

	// Tokens overrides the invocation token generator (for testing).
	// If nil, engines use UUIDv7Generator.
	Tokens engine.TokenGenerator

	logger *slog.Logger
}

// Logger returns the logger configured for this invocation.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.Default()
	}
	return o.logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidBackends defines the allowed storage backends.
var ValidBackends = []string{BackendSQLite, BackendBolt}

// NewRootCommand creates the root command for the library CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	cfg, cfgErr := LoadConfig()
	if cfgErr != nil {
		cfg = Config{Database: "library.db", Backend: BackendSQLite, Format: "text"}
	}

	cmd := &cobra.Command{
		Use:   "library",
		Short: "library - an ownership-scoped book record store",
		Long: `A book record store where every record has a registered owner.

Books are stored as "name;category;author" strings. Only the owner recorded
for a book may update it; anyone may list the books an owner holds. Every
call is journaled so the store can be replayed and verified.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgErr != nil {
				return WrapExitError(ExitCommandError, "invalid environment", cfgErr)
			}
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if !slices.Contains(ValidBackends, opts.Backend) {
				return fmt.Errorf("invalid backend %q: must be one of %v", opts.Backend, ValidBackends)
			}

			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", cfg.Format, "output format (json|text) [$LIBRARY_FORMAT]")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", cfg.Database, "path to the database file [$LIBRARY_DB]")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", cfg.Backend, "storage backend (sqlite|bolt) [$LIBRARY_BACKEND]")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewBooksCommand(opts))
	cmd.AddCommand(NewBatchCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// Command lmsctl administers the library directly against the configured storage.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lms/internal/app"
	"lms/internal/config"
	"lms/internal/library"
	"lms/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var storageBackends = []string{config.BackendMemory, config.BackendBadger, config.BackendSQLite, config.BackendClickHouse}

// cli carries state shared by all subcommands.
type cli struct {
	out     io.Writer
	asJSON  bool
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
	db     storage.Storage
	lib    *library.Library
}

func main() {
	c := &cli{out: os.Stdout}
	err := newRootCmd(c).Execute()
	if closeErr := c.close(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "close storage: %v\n", closeErr)
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "lmsctl",
		Short: "Administer the library catalog, members and loans",
		Long: "lmsctl reads STORAGE_BACKEND (" + strings.Join(storageBackends, ", ") +
			") and the other service variables from the environment or a .env file.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd.Context())
		},
	}
	root.SetOut(c.out)
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print JSON instead of tables")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log at info level")

	root.AddCommand(
		newBooksCmd(c),
		newMembersCmd(c),
		newLoansCmd(c),
		newSeedCmd(c),
		newStatsCmd(c),
	)
	return root
}

// open loads configuration and the library unless a test injected one.
func (c *cli) open(ctx context.Context) error {
	if c.lib != nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if !c.verbose {
		cfg.LogLevel = "warn"
	}
	c.cfg = cfg

	logger, err := app.NewLogger(cfg)
	if err != nil {
		return err
	}
	c.logger = logger

	db, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	c.db = db

	lib, err := app.OpenLibrary(ctx, cfg, db, logger)
	if err != nil {
		db.Close()
		return err
	}
	c.lib = lib
	return nil
}

func (c *cli) close() error {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

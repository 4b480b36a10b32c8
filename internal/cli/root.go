// Package cli implements the command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/aidanlsb/sramp/internal/audit"
	"github.com/aidanlsb/sramp/internal/config"
	"github.com/aidanlsb/sramp/internal/derive"
	"github.com/aidanlsb/sramp/internal/logger"
	"github.com/aidanlsb/sramp/internal/ontology"
	"github.com/aidanlsb/sramp/internal/query"
	"github.com/aidanlsb/sramp/internal/resolver"
	"github.com/aidanlsb/sramp/internal/store"
	"github.com/aidanlsb/sramp/internal/ui"
)

var (
	// Global flags
	configPath   string
	databaseFlag string
	logLevelFlag string

	// Resolved values
	resolvedConfigPath string
	cfg                *config.Config

	// out receives command output; tests redirect it.
	out io.Writer = os.Stdout
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sramp",
	Short: "sramp - an artifact catalog with a path query language",
	Long: `sramp registers documents as artifacts, derives metadata from their content
(XML Schema declarations, Markdown sections) and links related artifacts.

The catalog is queried with a path language:

  /s-ramp/<model>/<type>[predicate]/<relationship>...`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		out = cmd.OutOrStdout()

		// Commands that run without a config
		switch cmd.Name() {
		case "init", "completion", "help", "version":
			return nil
		}

		var err error
		cfg, resolvedConfigPath, err = loadConfigWithPath()
		if err != nil {
			return handleError(ErrConfigInvalid, err)
		}
		if databaseFlag != "" {
			cfg.Database = databaseFlag
		}

		level := cfg.Log.Level
		if logLevelFlag != "" {
			level = logLevelFlag
		}
		if err := logger.Initialize(level, cfg.Log.JSON); err != nil {
			return handleError(ErrInvalidInput, err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

// Execute runs the CLI. Errors are printed here, once, in the selected
// output mode.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !jsonOutput {
		printError(os.Stderr, err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&databaseFlag, "db", "", "Path to the catalog database (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (for agent/script use)")
}

func loadConfigWithPath() (*config.Config, string, error) {
	resolvedPath := config.ResolveConfigPath(configPath)

	var loaded *config.Config
	var err error
	if strings.TrimSpace(configPath) != "" {
		loaded, err = config.LoadFrom(configPath)
	} else {
		loaded, err = config.Load()
	}
	if err != nil {
		return nil, "", err
	}
	return loaded, resolvedPath, nil
}

// catalog bundles the components a command needs.
type catalog struct {
	store    *store.Store
	ontology *ontology.Registry
	engine   *query.Engine
	linker   *resolver.Linker
	ingester *derive.Ingester
	audit    *audit.Logger
}

// openCatalog opens the database and loads the ontologies named by the
// config. Callers must Close the result.
func openCatalog() (*catalog, error) {
	reg, err := loadOntologies()
	if err != nil {
		return nil, err
	}

	s, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, errors.WithHintf(err, "Check the database path %s, or run 'sramp init'.", cfg.DatabasePath())
	}

	engine := query.NewEngine(s, reg)
	engine.SetDefaultCount(cfg.Query.DefaultCount)
	linker := resolver.NewLinker(engine, cfg.Resolution.Workers)

	return &catalog{
		store:    s,
		ontology: reg,
		engine:   engine,
		linker:   linker,
		ingester: derive.NewIngester(s, reg, linker),
		audit:    audit.New(cfg.DatabasePath(), cfg.Audit),
	}, nil
}

func (c *catalog) Close() error {
	return c.store.Close()
}

// record writes an audit entry. Failures are logged, not returned: the
// catalog change has already happened.
func (c *catalog) record(err error) {
	if err != nil {
		logger.Named("audit").Warnw("could not write audit entry", "path", c.audit.Path(), "error", err)
	}
}

// displayContext sizes tables for the command output. Output that is not a
// file (tests, pipes through cobra buffers) uses the default width.
func displayContext() *ui.DisplayContext {
	if f, ok := out.(*os.File); ok {
		return ui.NewDisplayContext(f)
	}
	return ui.NewDisplayContextWithWidth(ui.DefaultTermWidth)
}

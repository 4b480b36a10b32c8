package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/sramp/internal/config"
	"github.com/aidanlsb/sramp/internal/store"
	"github.com/aidanlsb/sramp/internal/ui"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file and an empty catalog",
	Long: `Creates the config file (unless it exists) and the catalog database it
names.

Examples:
  sramp init
  sramp --config ./sramp.toml init --ontology "ontologies/*.yaml"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ResolveConfigPath(configPath)

		created, err := config.CreateDefault(path)
		if err != nil {
			return handleError(ErrFileWriteError, err)
		}

		loaded, err := config.LoadFrom(path)
		if err != nil {
			return handleError(ErrConfigInvalid, err)
		}

		ontologies, _ := cmd.Flags().GetStringArray("ontology")
		added := 0
		for _, glob := range ontologies {
			if !slices.Contains(loaded.Ontologies, glob) {
				loaded.Ontologies = append(loaded.Ontologies, glob)
				added++
			}
		}
		if added > 0 {
			if err := config.SaveTo(path, loaded); err != nil {
				return handleError(ErrFileWriteError, err)
			}
		}

		if databaseFlag != "" {
			loaded.Database = databaseFlag
		}
		s, err := store.Open(loaded.DatabasePath())
		if err != nil {
			return handleError(ErrDatabaseError, err)
		}
		if err := s.Close(); err != nil {
			return handleError(ErrDatabaseError, err)
		}

		if jsonOutput {
			outputSuccess(map[string]any{
				"config":         path,
				"config_created": created,
				"database":       loaded.DatabasePath(),
				"ontologies":     loaded.Ontologies,
			}, nil)
			return nil
		}

		if created {
			fmt.Fprintln(out, ui.Successf("Created config %s", path))
		} else {
			fmt.Fprintln(out, ui.Hint("Using existing config "+path))
		}
		if added > 0 {
			fmt.Fprintln(out, ui.Successf("Added %s", ui.Count(added, "ontology pattern", "ontology patterns")))
		}
		fmt.Fprintln(out, ui.Successf("Catalog ready at %s", loaded.DatabasePath()))
		return nil
	},
}

func init() {
	initCmd.Flags().StringArray("ontology", nil, "Ontology glob to add to the config; repeatable")
	rootCmd.AddCommand(initCmd)
}

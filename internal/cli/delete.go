package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/sramp/internal/ui"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <uuid|number>...",
	Short: "Remove artifacts from the catalog",
	Long: `Remove an artifact with its properties, classifications and outgoing
relationships. Relationships of other artifacts that target it are left in
place and resolve to nothing.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uuids, err := resolveArtifactRefs(args)
		if err != nil {
			return handleError(ErrInvalidInput, err)
		}

		cat, err := openCatalog()
		if err != nil {
			return handleError(ErrDatabaseError, err)
		}
		defer cat.Close()

		for _, id := range uuids {
			if err := cat.store.DeleteArtifact(cmd.Context(), id); err != nil {
				return handleError(queryErrorCode(err), err)
			}
			cat.record(cat.audit.LogDelete(id))
			if !jsonOutput {
				fmt.Fprintln(out, ui.Successf("Deleted %s", id))
			}
		}

		if jsonOutput {
			outputSuccess(map[string]any{"deleted": uuids}, &Meta{Count: len(uuids)})
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

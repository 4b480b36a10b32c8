package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/sramp/internal/ui"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalog()
		if err != nil {
			return handleError(ErrDatabaseError, err)
		}
		defer cat.Close()

		st, err := cat.store.Stats(cmd.Context())
		if err != nil {
			return handleError(ErrDatabaseError, err)
		}

		if jsonOutput {
			outputSuccess(st, nil)
			return nil
		}

		fmt.Fprintln(out, ui.Header("Catalog")+" "+ui.Hint(cfg.DatabasePath()))
		t := ui.NewTable(2)
		t.AddRow(ui.Hint("artifacts"), strconv.Itoa(st.Artifacts))
		t.AddRow(ui.Hint("derived"), strconv.Itoa(st.Derived))
		t.AddRow(ui.Hint("relationships"), strconv.Itoa(st.Relationships))
		t.AddRow(ui.Hint("targets"), strconv.Itoa(st.Targets))
		fmt.Fprint(out, t.String())

		if len(st.ByModel) > 0 {
			fmt.Fprintln(out)
			fmt.Fprintln(out, ui.Header("By model"))
			models := make([]string, 0, len(st.ByModel))
			for m := range st.ByModel {
				models = append(models, m)
			}
			sort.Strings(models)
			byModel := ui.NewTable(2)
			for _, m := range models {
				byModel.AddRow(m, strconv.Itoa(st.ByModel[m]))
			}
			fmt.Fprint(out, byModel.String())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

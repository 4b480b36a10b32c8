package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/sramp/internal/audit"
	"github.com/aidanlsb/sramp/internal/dates"
	"github.com/aidanlsb/sramp/internal/ui"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recorded catalog changes",
	Long: `Show the ingests and deletions recorded in audit.log. Recording is enabled
with audit = true in the config file.

Examples:
  sramp audit --since yesterday
  sramp audit --artifact 3 --limit 5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		l := audit.New(cfg.DatabasePath(), cfg.Audit)
		flags := cmd.Flags()

		var (
			entries []audit.Entry
			err     error
		)
		if ref, _ := flags.GetString("artifact"); ref != "" {
			uuids, rerr := resolveArtifactRefs([]string{ref})
			if rerr != nil {
				return handleError(ErrInvalidInput, rerr)
			}
			entries, err = l.ReadForArtifact(uuids[0])
		} else if since, _ := flags.GetString("since"); since != "" {
			day, derr := dates.ParseDateArg(since, clock())
			if derr != nil {
				return handleError(ErrInvalidInput, derr)
			}
			entries, err = l.ReadSince(day)
		} else {
			entries, err = l.Read()
		}
		if err != nil {
			return handleError(ErrFileReadError, err)
		}

		if limit, _ := flags.GetInt("limit"); limit > 0 && len(entries) > limit {
			entries = entries[len(entries)-limit:]
		}

		if jsonOutput {
			if entries == nil {
				entries = []audit.Entry{}
			}
			outputSuccess(entries, &Meta{Count: len(entries)})
			return nil
		}

		if len(entries) == 0 {
			if !l.Enabled() {
				fmt.Fprintln(out, ui.Hint("No audit entries. Set audit = true in the config to record changes."))
			} else {
				fmt.Fprintln(out, ui.Hint("No audit entries."))
			}
			return nil
		}

		t := ui.NewTable(4)
		for _, e := range entries {
			t.AddRow(ui.Hint(e.Timestamp.Local().Format("2006-01-02 15:04:05")), e.Operation, auditSubject(e), auditDetail(e))
		}
		fmt.Fprint(out, t.String())
		return nil
	},
}

func auditSubject(e audit.Entry) string {
	switch {
	case e.Name != "":
		return e.Name
	case e.Path != "":
		return e.Path
	default:
		return ui.UUID(e.UUID)
	}
}

func auditDetail(e audit.Entry) string {
	var parts []string
	if e.Model != "" {
		parts = append(parts, e.Model+"/"+e.Type)
	}
	for _, k := range []string{"derived", "removed"} {
		if v, ok := e.Extra[k]; ok {
			parts = append(parts, fmt.Sprintf("%s %v", k, v))
		}
	}
	return ui.Hint(strings.Join(parts, ", "))
}

func init() {
	auditCmd.Flags().String("since", "", "Only entries from this day on (YYYY-MM-DD, today, yesterday)")
	auditCmd.Flags().String("artifact", "", "Only entries for this artifact (UUID or result number)")
	auditCmd.Flags().Int("limit", 0, "Show at most this many of the latest entries")
	rootCmd.AddCommand(auditCmd)
}

package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/sramp/internal/model"
	"github.com/aidanlsb/sramp/internal/ui"
)

var getCmd = &cobra.Command{
	Use:   "get <uuid|number>...",
	Short: "Show artifacts with their properties and relationships",
	Long: `Show artifacts by UUID, or by their numbers in the last query output.

Examples:
  sramp get 6f1c2a3b-4d5e-4f60-8a7b-9c0d1e2f3a4b
  sramp get 3
  sramp get 1-4`,
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

		ctx := cmd.Context()
		artifacts := make([]*model.Artifact, 0, len(uuids))
		for _, id := range uuids {
			a, err := cat.store.GetArtifact(ctx, id)
			if err != nil {
				return handleError(queryErrorCode(err), err)
			}
			artifacts = append(artifacts, a)
		}

		if jsonOutput {
			if len(artifacts) == 1 {
				outputSuccess(artifacts[0], nil)
			} else {
				outputSuccess(artifacts, &Meta{Count: len(artifacts)})
			}
			return nil
		}

		// Name the targets so relationships read without a second lookup.
		var targetIDs []string
		for _, a := range artifacts {
			for _, rel := range a.Relationships {
				for _, t := range rel.Targets {
					targetIDs = append(targetIDs, t.UUID)
				}
			}
		}
		names := make(map[string]string, len(targetIDs))
		if len(targetIDs) > 0 {
			summaries, err := cat.store.ArtifactsByUUID(ctx, targetIDs)
			if err != nil {
				return handleError(ErrDatabaseError, err)
			}
			for _, s := range summaries {
				names[s.UUID] = s.Name
			}
		}

		for i, a := range artifacts {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprint(out, renderArtifact(a, names))
		}
		return nil
	},
}

// renderArtifact formats the text view of an artifact. names maps target
// UUIDs to artifact names.
func renderArtifact(a *model.Artifact, names map[string]string) string {
	var sb strings.Builder

	sb.WriteString(ui.Header(a.Name))
	sb.WriteString("\n")

	core := ui.NewTable(2)
	core.AddRow(ui.Hint("uuid"), ui.UUID(a.UUID))
	core.AddRow(ui.Hint("type"), a.Model+"/"+a.Type)
	for _, f := range []struct{ label, value string }{
		{"description", a.Description},
		{"version", a.Version},
		{"mime type", a.MimeType},
		{"created by", a.CreatedBy},
		{"derived from", a.DerivedFrom},
	} {
		if f.value != "" {
			core.AddRow(ui.Hint(f.label), f.value)
		}
	}
	if !a.CreatedAt.IsZero() {
		core.AddRow(ui.Hint("created"), a.CreatedAt.Format(time.RFC3339))
	}
	if !a.LastModifiedAt.IsZero() {
		core.AddRow(ui.Hint("modified"), a.LastModifiedAt.Format(time.RFC3339))
	}
	sb.WriteString(core.String())

	if len(a.Properties) > 0 {
		sb.WriteString("\n" + ui.Header("Properties") + "\n")
		props := ui.NewTable(2)
		for _, name := range a.PropertyNames() {
			props.AddRow(name, a.Properties[name])
		}
		sb.WriteString(props.String())
	}

	if len(a.Classifiers) > 0 {
		sb.WriteString("\n" + ui.Header("Classifiers") + "\n")
		classifiers := append([]string(nil), a.Classifiers...)
		sort.Strings(classifiers)
		for _, c := range classifiers {
			sb.WriteString("  " + c + "\n")
		}
	}

	if len(a.Relationships) > 0 {
		sb.WriteString("\n" + ui.Header("Relationships") + "\n")
		rels := ui.NewTable(3)
		for _, rel := range a.Relationships {
			if len(rel.Targets) == 0 {
				rels.AddRow(rel.Name, ui.Hint("(no targets)"), "")
				continue
			}
			for i, t := range rel.Targets {
				label := rel.Name
				if i > 0 {
					label = ""
				}
				rels.AddRow(label, ui.UUID(t.UUID), names[t.UUID])
			}
		}
		sb.WriteString(rels.String())
	}

	return sb.String()
}

func init() {
	rootCmd.AddCommand(getCmd)
}

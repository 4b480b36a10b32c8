package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/aidanlsb/sramp/internal/derive"
	"github.com/aidanlsb/sramp/internal/model"
	"github.com/aidanlsb/sramp/internal/ui"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Register a document and derive artifacts from it",
	Long: `Register a document as a primary artifact. XML Schema (.xsd) and Markdown
(.md) documents are analyzed: their declarations and sections become derived
artifacts, and references between documents become relationships.

The model and type are detected from the file extension unless --type is
given as model/type. Ingesting a file again replaces what it produced before.

Examples:
  sramp ingest schemas/orders.xsd
  sramp ingest docs/guide.md --classifier Customer --property owner=billing
  sramp ingest notes.txt --type core/Document --name "Release notes"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		content, err := os.ReadFile(path)
		if err != nil {
			return handleError(ErrFileReadError, errors.Wrapf(err, "read %s", path))
		}

		primary, err := primaryFromFlags(cmd, path)
		if err != nil {
			return handleError(ErrInvalidInput, err)
		}

		cat, err := openCatalog()
		if err != nil {
			return handleError(ErrDatabaseError, err)
		}
		defer cat.Close()

		var spinner *ui.Spinner
		if !jsonOutput {
			spinner = ui.NewSpinner("Ingesting " + primary.Name)
			spinner.Start()
		}
		result, err := cat.ingester.IngestFile(cmd.Context(), primary, path, content)
		if spinner != nil {
			spinner.Stop()
		}
		if err != nil {
			return handleError(ingestErrorCode(err), err)
		}
		cat.record(cat.audit.LogIngest(result.Primary, result.Primary.Properties[derive.PropertySourcePath], len(result.Derived)))

		if jsonOutput {
			outputSuccess(result, nil)
			return nil
		}

		fmt.Fprintln(out, ui.Successf("Ingested %s as %s/%s", primary.Name, primary.Model, primary.Type))
		fmt.Fprintf(out, "  %s %s\n", ui.Hint("uuid"), ui.UUID(primary.UUID))
		if n := len(result.Derived); n > 0 {
			fmt.Fprintf(out, "  %s %s\n", ui.Hint("derived"), ui.Count(n, "artifact", "artifacts"))
		}
		if link := result.Link; link != nil && link.Total > 0 {
			fmt.Fprintf(out, "  %s %d resolved, %d discarded of %s\n", ui.Hint("links"),
				link.Resolved, link.Discarded, ui.Count(link.Total, "reference", "references"))
			if link.Ambiguous > 0 {
				fmt.Fprintln(out, ui.Warningf("%s matched several artifacts; the smallest UUID was linked",
					ui.Count(link.Ambiguous, "reference", "references")))
			}
		}
		return nil
	},
}

// primaryFromFlags builds the primary artifact for path from the ingest flags.
func primaryFromFlags(cmd *cobra.Command, path string) (*model.Artifact, error) {
	flags := cmd.Flags()
	artifactModel, artifactType, mimeType := derive.DetectType(path)

	if t, _ := flags.GetString("type"); t != "" {
		m, ty, ok := strings.Cut(t, "/")
		if !ok || m == "" || ty == "" {
			return nil, errors.WithHint(errors.Newf("invalid --type %q", t),
				"Use model/type, for example xsd/XsdDocument or core/Document.")
		}
		artifactModel, artifactType = m, ty
	}

	name, _ := flags.GetString("name")
	if name == "" {
		name = filepath.Base(path)
	}
	description, _ := flags.GetString("description")
	version, _ := flags.GetString("version")
	createdBy, _ := flags.GetString("created-by")
	classifiers, _ := flags.GetStringArray("classifier")

	a := &model.Artifact{
		Name:        name,
		Model:       artifactModel,
		Type:        artifactType,
		Description: description,
		Version:     version,
		MimeType:    mimeType,
		CreatedBy:   createdBy,
		Classifiers: classifiers,
	}

	props, _ := flags.GetStringArray("property")
	for _, p := range props {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, errors.WithHint(errors.Newf("invalid --property %q", p),
				"Use name=value, for example owner=billing.")
		}
		a.SetProperty(strings.TrimSpace(k), v)
	}
	return a, nil
}

func ingestErrorCode(err error) string {
	if code := queryErrorCode(err); code != ErrDatabaseError {
		return code
	}
	if errors.Is(err, derive.ErrDerivation) {
		return ErrDerivationFailed
	}
	return ErrDatabaseError
}

func init() {
	ingestCmd.Flags().String("type", "", "Artifact model/type (default: detected from the extension)")
	ingestCmd.Flags().String("name", "", "Artifact name (default: file name)")
	ingestCmd.Flags().String("description", "", "Artifact description")
	ingestCmd.Flags().String("version", "", "Artifact version")
	ingestCmd.Flags().String("created-by", "", "Author recorded on the artifact")
	ingestCmd.Flags().StringArray("classifier", nil, "Classifier (class id or URI); repeatable")
	ingestCmd.Flags().StringArray("property", nil, "Custom property name=value; repeatable")
	rootCmd.AddCommand(ingestCmd)
}

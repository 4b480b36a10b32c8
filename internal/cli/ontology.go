package cli

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/aidanlsb/sramp/internal/ontology"
	"github.com/aidanlsb/sramp/internal/ui"
)

var ontologyCmd = &cobra.Command{
	Use:   "ontology",
	Short: "Inspect the classification ontologies",
}

var ontologyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List declared classes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadOntologies()
		if err != nil {
			return handleError(ErrConfigInvalid, err)
		}
		classes := reg.Classes()

		if jsonOutput {
			outputSuccess(map[string]any{
				"ontologies": reg.Ontologies(),
				"classes":    classes,
			}, &Meta{Count: len(classes)})
			return nil
		}

		if len(classes) == 0 {
			fmt.Fprintln(out, ui.Hint("No ontologies loaded. Add patterns with 'sramp init --ontology <glob>'."))
			return nil
		}

		t := ui.NewTable(3)
		for _, c := range classes {
			parent := ""
			if c.ParentURI != "" {
				parent = ui.Hint("< " + c.ParentURI)
			}
			t.AddRow(ui.AccentBold.Render(c.ID), c.URI, parent)
		}
		fmt.Fprint(out, t.String())
		fmt.Fprintln(out, ui.Hint(ui.Count(len(classes), "class", "classes")))
		return nil
	},
}

var ontologyResolveCmd = &cobra.Command{
	Use:   "resolve <classifier>...",
	Short: "Resolve classifiers to class URIs and their ancestors",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadOntologies()
		if err != nil {
			return handleError(ErrConfigInvalid, err)
		}

		type resolved struct {
			Classifier string   `json:"classifier"`
			URI        string   `json:"uri"`
			Normalized []string `json:"normalized"`
		}
		results := make([]resolved, 0, len(args))
		for _, c := range args {
			uri, err := reg.Resolve(c)
			if err != nil {
				return handleError(ErrClassifierInvalid, err)
			}
			normalized, err := reg.Normalize(uri)
			if err != nil {
				return handleError(ErrClassifierInvalid, err)
			}
			results = append(results, resolved{Classifier: c, URI: uri, Normalized: normalized})
		}

		if jsonOutput {
			outputSuccess(results, &Meta{Count: len(results)})
			return nil
		}
		for _, r := range results {
			fmt.Fprintf(out, "%s %s\n", ui.Bold.Render(r.Classifier), r.URI)
			for _, n := range r.Normalized {
				if n != r.URI {
					fmt.Fprintf(out, "  %s\n", ui.Hint(n))
				}
			}
		}
		return nil
	},
}

func loadOntologies() (*ontology.Registry, error) {
	reg := ontology.NewRegistry()
	if err := reg.LoadGlobs(cfg.OntologyGlobs()); err != nil {
		return nil, errors.Wrap(err, "load ontologies")
	}
	return reg, nil
}

func init() {
	ontologyCmd.AddCommand(ontologyListCmd)
	ontologyCmd.AddCommand(ontologyResolveCmd)
	rootCmd.AddCommand(ontologyCmd)
}

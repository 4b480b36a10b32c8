package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/sramp/internal/model"
	"github.com/aidanlsb/sramp/internal/query"
	"github.com/aidanlsb/sramp/internal/shellquote"
	"github.com/aidanlsb/sramp/internal/ui"
)

var queryCmd = &cobra.Command{
	Use:   "query <template>",
	Short: "Run a path query against the catalog",
	Long: `Run a query written in the catalog path language. Each '?' in the template
is replaced, left to right, by one --param value.

Paths:
  /s-ramp                               every artifact
  /s-ramp/xsd                           artifacts of the xsd model
  /s-ramp/xsd/XsdDocument               ... of one type
  /s-ramp/xsd/XsdDocument/importedXsds  targets of a relationship

Predicates:
  [@name = ?]  [@version != '2']  [@priority > 3]  [@description]
  [importedXsds[@name = 'common.xsd']]
  [s-ramp:classifiedByAnyOf(., 'Customer')]
  [xp2:matches(., '.*invoice.*')]   [fn:not(@derived = 'true')]

Params:
  --param string:foo  --param number:3  --param date:2024-01-31
  --param date:yesterday  --param datetime:2024-01-31T09:30:00Z

Examples:
  sramp query "/s-ramp/xsd/ElementDeclaration[@namespace = ?]" --param urn:orders
  sramp query /s-ramp --order-by lastModifiedTimestamp --desc --count 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()

		rawParams, _ := cmd.Flags().GetStringArray("param")
		params, err := parseParams(rawParams)
		if err != nil {
			return handleError(ErrQueryParams, err)
		}
		in, err := queryArgsFromFlags(cmd)
		if err != nil {
			return handleError(ErrInvalidPaging, err)
		}

		cat, err := openCatalog()
		if err != nil {
			return handleError(ErrDatabaseError, err)
		}
		defer cat.Close()

		template := query.NewTemplate(args[0])
		if cfg.Query.DefaultOrderBy != "" {
			template = template.WithOrderBy(cfg.Query.DefaultOrderBy)
		}
		stmt := cat.engine.Prepare(template)
		for _, p := range params {
			stmt.Set(p)
		}

		result, err := stmt.Execute(cmd.Context(), in)
		if err != nil {
			return handleError(queryErrorCode(err), err)
		}

		items := model.NumberedList(result.Items, result.StartIndex)
		saveLastResults(args[0], rawParams, items)
		if jsonOutput {
			outputSuccess(items, &Meta{
				Count:          len(items),
				TotalAvailable: result.TotalAvailable,
				StartIndex:     result.StartIndex,
				HasMore:        result.HasMore(),
				QueryTimeMs:    time.Since(start).Milliseconds(),
			})
			return nil
		}

		if len(items) == 0 {
			fmt.Fprintln(out, ui.Hint(fmt.Sprintf("No results (%s available).", ui.Count(result.TotalAvailable, "match", "matches"))))
			return nil
		}
		fmt.Fprint(out, ui.ArtifactRows(displayContext(), items))
		fmt.Fprintln(out)
		fmt.Fprintln(out, ui.Hint(fmt.Sprintf("Showing %d-%d of %s.",
			result.StartIndex+1, result.StartIndex+len(items), ui.Count(result.TotalAvailable, "match", "matches"))))
		if result.HasMore() {
			fmt.Fprintln(out, ui.Hint("Next page: "+nextPageCommand(cmd, args[0], rawParams, result.StartIndex+len(items), result.Count)))
		}
		return nil
	},
}

// nextPageCommand renders the query command line that fetches the page
// starting at nextIndex.
func nextPageCommand(cmd *cobra.Command, template string, rawParams []string, nextIndex, count int) string {
	args := []string{cmd.Root().Name(), cmd.Name(), template}
	for _, p := range rawParams {
		args = append(args, "--param", p)
	}
	flags := cmd.Flags()
	if flags.Changed("order-by") {
		v, _ := flags.GetString("order-by")
		args = append(args, "--order-by", v)
	}
	if desc, _ := flags.GetBool("desc"); desc {
		args = append(args, "--desc")
	}
	args = append(args, "--start-index", strconv.Itoa(nextIndex), "--count", strconv.Itoa(count))
	return shellquote.Join(args...)
}

// queryArgsFromFlags reads the paging flags. Only flags the user set are
// passed on, so the engine and template defaults apply to the rest.
func queryArgsFromFlags(cmd *cobra.Command) (query.ArgsInput, error) {
	var in query.ArgsInput
	flags := cmd.Flags()

	if flags.Changed("order-by") {
		v, _ := flags.GetString("order-by")
		in.OrderBy = &v
	}
	if flags.Changed("desc") {
		desc, _ := flags.GetBool("desc")
		asc := !desc
		in.Ascending = &asc
	}
	if flags.Changed("start-page") && flags.Changed("start-index") {
		return in, fmt.Errorf("use either --start-page or --start-index, not both")
	}
	for name, dest := range map[string]**int{
		"start-page":  &in.StartPage,
		"start-index": &in.StartIndex,
		"count":       &in.Count,
	} {
		if flags.Changed(name) {
			v, _ := flags.GetInt(name)
			*dest = &v
		}
	}
	return in, nil
}

func init() {
	queryCmd.Flags().StringArrayP("param", "p", nil, "Value for the next '?' placeholder (kind:value)")
	queryCmd.Flags().String("order-by", "", "Property to order results by (default name)")
	queryCmd.Flags().Bool("desc", false, "Order descending")
	queryCmd.Flags().Int("start-page", 1, "1-based page number")
	queryCmd.Flags().Int("start-index", 0, "0-based index of the first result")
	queryCmd.Flags().Int("count", query.DefaultCount, "Page size")
	rootCmd.AddCommand(queryCmd)
}

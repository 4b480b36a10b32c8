package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/aidanlsb/sramp/internal/ui"
	"github.com/aidanlsb/sramp/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Keep the catalog in sync with a directory",
	Long: `Ingest the XML Schema and Markdown files under a directory, then watch it.
Changed files are re-ingested in place and deleted files are removed from the
catalog together with their derived artifacts. Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalog()
		if err != nil {
			return handleError(ErrDatabaseError, err)
		}
		defer cat.Close()

		w, err := watcher.New(watcher.Config{
			Root:       args[0],
			Catalog:    ingestingCatalog{cat: cat},
			Extensions: []string{".xsd", ".md", ".markdown"},
			OnChange:   reportChange,
		})
		if err != nil {
			return handleError(ErrInvalidInput, err)
		}

		ctx := cmd.Context()
		if skip, _ := cmd.Flags().GetBool("no-sync"); !skip {
			n, err := w.Sync(ctx)
			if err != nil {
				return handleError(ErrDatabaseError, err)
			}
			if !jsonOutput {
				fmt.Fprintln(out, ui.Successf("Synced %s", ui.Count(n, "file", "files")))
			}
		}

		if !jsonOutput {
			fmt.Fprintln(out, ui.Hint("Watching "+w.Root()+" (Ctrl-C to stop)"))
		}
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return handleError(ErrInternal, err)
		}
		return nil
	},
}

// ingestingCatalog applies file changes through the ingester and records
// them in the audit log.
type ingestingCatalog struct {
	cat *catalog
}

func (c ingestingCatalog) IngestPath(ctx context.Context, path string) error {
	result, err := c.cat.ingester.ReadFile(ctx, path)
	if err != nil {
		return err
	}
	c.cat.record(c.cat.audit.LogIngest(result.Primary, path, len(result.Derived)))
	return nil
}

func (c ingestingCatalog) RemovePath(ctx context.Context, path string) error {
	removed, err := c.cat.ingester.RemoveFile(ctx, path)
	if err != nil {
		return err
	}
	if removed > 0 {
		c.cat.record(c.cat.audit.LogRemove(path, removed))
	}
	return nil
}

func reportChange(path string, op watcher.Op, err error) {
	if jsonOutput {
		event := map[string]any{"path": path, "op": op}
		if err != nil {
			event["error"] = err.Error()
		}
		outputSuccess(event, nil)
		return
	}
	name := filepath.Base(path)
	switch {
	case err != nil:
		fmt.Fprintln(out, ui.Error(fmt.Sprintf("%s %s: %v", op, name, err)))
	case op == watcher.OpRemove:
		fmt.Fprintln(out, ui.Successf("Removed %s", name))
	default:
		fmt.Fprintln(out, ui.Successf("Ingested %s", name))
	}
}

func init() {
	watchCmd.Flags().Bool("no-sync", false, "Skip the initial ingest of existing files")
	rootCmd.AddCommand(watchCmd)
}

package cli

import (
	"time"

	"github.com/aidanlsb/sramp/internal/lastresults"
	"github.com/aidanlsb/sramp/internal/logger"
	"github.com/aidanlsb/sramp/internal/model"
)

// resolveArtifactRefs turns command arguments into UUIDs. Arguments that
// parse as result numbers ("3", "1-4") refer to the last query page; anything
// else is taken as a UUID.
func resolveArtifactRefs(args []string) ([]string, error) {
	nums, err := lastresults.ParseNumberArgs(args)
	if err != nil {
		return args, nil
	}
	lr, err := lastresults.Read(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}
	return lr.UUIDs(nums)
}

// saveLastResults records a query page for numbered follow-ups. Errors are
// logged, not returned.
func saveLastResults(template string, rawParams []string, items []model.Numbered[model.ArtifactSummary]) {
	lr := &lastresults.LastResults{
		Query:     template,
		Params:    rawParams,
		Timestamp: time.Now().UTC(),
		Results:   items,
	}
	if err := lastresults.Write(cfg.DatabasePath(), lr); err != nil {
		logger.Named("cli").Warnw("could not save last results", "error", err)
	}
}

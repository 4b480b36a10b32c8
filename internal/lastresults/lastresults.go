// Package lastresults persists the most recent query page so follow-up
// commands can refer to artifacts by result number.
package lastresults

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/aidanlsb/sramp/internal/atomicfile"
	"github.com/aidanlsb/sramp/internal/model"
)

// FileName is the file written next to the catalog database.
const FileName = "last-results.json"

var (
	ErrNoLastResults    = errors.New("no last results available")
	ErrNumberOutOfRange = errors.New("result number out of range")
)

// LastResults is one page of query results with their result numbers.
type LastResults struct {
	Query     string                                   `json:"query"`
	Params    []string                                 `json:"params,omitempty"`
	Timestamp time.Time                                `json:"timestamp"`
	Results   []model.Numbered[model.ArtifactSummary] `json:"results"`
}

// Path returns the last-results file for the database at dbPath.
func Path(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), FileName)
}

// Write saves lr next to the database.
func Write(dbPath string, lr *LastResults) error {
	data, err := json.MarshalIndent(lr, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal last results")
	}
	if err := atomicfile.WriteFile(Path(dbPath), data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write last results")
	}
	return nil
}

// Read loads the last results saved for the database at dbPath.
func Read(dbPath string) (*LastResults, error) {
	data, err := os.ReadFile(Path(dbPath))
	if os.IsNotExist(err) {
		return nil, errors.WithHint(ErrNoLastResults, "Run 'sramp query' first, or pass a UUID.")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read last results")
	}

	var lr LastResults
	if err := json.Unmarshal(data, &lr); err != nil {
		return nil, errors.Wrap(err, "failed to parse last results")
	}
	return &lr, nil
}

// UUIDs returns the UUIDs of the results with the given numbers, in the order
// asked for. Numbers are those shown by the query, so page 2 of a query with
// 10 results per page starts at 11.
func (lr *LastResults) UUIDs(nums []int) ([]string, error) {
	byNum := make(map[int]string, len(lr.Results))
	first, last := 0, 0
	for i, r := range lr.Results {
		byNum[r.Num] = r.Item.UUID
		if i == 0 || r.Num < first {
			first = r.Num
		}
		if r.Num > last {
			last = r.Num
		}
	}

	uuids := make([]string, 0, len(nums))
	for _, n := range nums {
		id, ok := byNum[n]
		if !ok {
			if len(lr.Results) == 0 {
				return nil, errors.Wrapf(ErrNumberOutOfRange, "%d (the last query returned nothing)", n)
			}
			return nil, errors.Wrapf(ErrNumberOutOfRange, "%d (valid range: %d-%d)", n, first, last)
		}
		uuids = append(uuids, id)
	}
	return uuids, nil
}

package derive

import (
	"context"
	"os"
	"path/filepath"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/aidanlsb/sramp/internal/model"
)

// PropertySourcePath records the absolute path a primary artifact was read
// from.
const PropertySourcePath = "sourcePath"

// IngestFile ingests the content of the file at path. A primary previously
// ingested from the same path is replaced with everything derived from it;
// the new primary keeps the old UUID so relationships pointing at it stay
// valid. When the new content cannot be ingested the previous version stays.
func (i *Ingester) IngestFile(ctx context.Context, primary *model.Artifact, path string, content []byte) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", path)
	}
	primary.SetProperty(PropertySourcePath, abs)

	existing, err := i.store.PrimariesByProperty(ctx, PropertySourcePath, abs)
	if err != nil {
		return nil, err
	}
	replace := existing
	if len(existing) > 0 {
		if primary.UUID == "" {
			primary.UUID = existing[0]
		} else if !slices.Contains(existing, primary.UUID) {
			replace = append(slices.Clone(existing), primary.UUID)
		}
		i.log.Debugw("replacing artifact", "uuid", primary.UUID, "path", abs)
	} else if primary.UUID != "" {
		replace = []string{primary.UUID}
	}

	return i.ingest(ctx, primary, content, replace)
}

// ReadFile builds a primary artifact for path, typed by its extension, and
// ingests it.
func (i *Ingester) ReadFile(ctx context.Context, path string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	artifactModel, artifactType, mimeType := DetectType(path)
	primary := &model.Artifact{
		Name:     filepath.Base(path),
		Model:    artifactModel,
		Type:     artifactType,
		MimeType: mimeType,
	}
	return i.IngestFile(ctx, primary, path, content)
}

// RemoveFile deletes the artifacts ingested from path and returns how many
// were removed.
func (i *Ingester) RemoveFile(ctx context.Context, path string) (int, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, errors.Wrapf(err, "resolve %s", path)
	}
	existing, err := i.store.PrimariesByProperty(ctx, PropertySourcePath, abs)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range existing {
		n, err := i.store.DeleteDerivation(ctx, id)
		if err != nil {
			return removed, errors.Wrapf(err, "remove %s", abs)
		}
		removed += n
	}
	if removed > 0 {
		i.log.Infow("removed artifacts", "path", abs, "artifacts", removed)
	}
	return removed, nil
}

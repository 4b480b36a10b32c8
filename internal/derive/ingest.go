package derive

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aidanlsb/sramp/internal/logger"
	"github.com/aidanlsb/sramp/internal/model"
	"github.com/aidanlsb/sramp/internal/resolver"
	"github.com/aidanlsb/sramp/internal/store"
)

// Store persists artifacts.
type Store interface {
	SaveArtifact(ctx context.Context, a *model.Artifact, normalized []string) error
	SaveRelationships(ctx context.Context, a *model.Artifact) error
	DeleteArtifact(ctx context.Context, uuid string) error
	DeleteDerivation(ctx context.Context, primaryUUID string) (int, error)
	Derivation(ctx context.Context, primaryUUID string) ([]*model.Artifact, error)
	PrimariesByProperty(ctx context.Context, name, value string) ([]string, error)
}

// Normalizer resolves classifiers to class URIs and expands URIs with their
// ancestor classes.
type Normalizer interface {
	Resolve(classifier string) (string, error)
	NormalizeAll(classifiers []string) ([]string, error)
}

// Result reports what one ingestion stored.
type Result struct {
	Primary *model.Artifact      `json:"primary"`
	Derived []*model.Artifact    `json:"derived"`
	Link    *resolver.LinkResult `json:"link"`
}

// Ingester stores a primary artifact together with everything derived from it
// and links the derivation's relationship sources.
type Ingester struct {
	store    Store
	ontology Normalizer
	linker   *resolver.Linker
	derivers map[string]Deriver
	log      *zap.SugaredLogger
	now      func() time.Time
}

// NewIngester creates an ingester with the XSD and Markdown derivers
// registered. ontology may be nil, in which case classifiers are stored as
// given without expansion.
func NewIngester(store Store, ontology Normalizer, linker *resolver.Linker) *Ingester {
	i := &Ingester{
		store:    store,
		ontology: ontology,
		linker:   linker,
		derivers: make(map[string]Deriver),
		log:      logger.Named("derive"),
		now:      time.Now,
	}
	i.Register(TypeXsdDocument, XSDDeriver{})
	i.Register(TypeMarkdownDocument, MarkdownDeriver{})
	return i
}

// Register sets the deriver used for primaries of artifactType.
func (i *Ingester) Register(artifactType string, d Deriver) {
	i.derivers[artifactType] = d
}

// Ingest derives, stores and links. Every source of the derivation exists
// before the link pass starts, so sources may resolve to artifacts derived
// later from the same content. A primary with the UUID of a stored artifact
// replaces that artifact's whole derivation.
func (i *Ingester) Ingest(ctx context.Context, primary *model.Artifact, content []byte) (*Result, error) {
	var replace []string
	if primary.UUID != "" {
		replace = []string{primary.UUID}
	}
	return i.ingest(ctx, primary, content, replace)
}

// ingest stores primary in place of the derivations rooted at replace.
// Nothing is written until derivation and classification succeed, and a
// failure while writing puts the replaced derivations back.
func (i *Ingester) ingest(ctx context.Context, primary *model.Artifact, content []byte, replace []string) (*Result, error) {
	if primary.Model == "" || primary.Type == "" {
		return nil, errors.WithHint(errors.New("artifact model and type are required"),
			"Pass --type, or use a file extension the catalog recognizes.")
	}

	previous, err := i.snapshot(ctx, replace)
	if err != nil {
		return nil, err
	}

	if primary.UUID == "" {
		primary.UUID = uuid.NewString()
	}
	now := i.now().UTC().Truncate(time.Second)
	if primary.CreatedAt.IsZero() {
		primary.CreatedAt = createdAt(previous, primary.UUID, now)
	}
	primary.LastModifiedAt = now
	primary.Content = string(content)

	derivation := &Derivation{}
	if d, ok := i.derivers[primary.Type]; ok {
		if derivation, err = d.Derive(primary, content); err != nil {
			return nil, errors.Wrapf(errors.Mark(err, ErrDerivation), "derive %s", primary.Name)
		}
	}

	all := append([]*model.Artifact{primary}, derivation.Artifacts...)
	normalized := make([][]string, len(all))
	for k, a := range all {
		if normalized[k], err = i.classify(a); err != nil {
			return nil, errors.Wrapf(err, "classify %s", a.Name)
		}
	}

	link, err := i.commit(ctx, replace, all, normalized, derivation.Sources)
	if err != nil {
		if rbErr := i.rollback(ctx, all, previous); rbErr != nil {
			i.log.Errorw("rollback failed", "uuid", primary.UUID, "error", rbErr)
			err = errors.CombineErrors(err, rbErr)
		}
		return nil, err
	}

	i.log.Infow("ingested artifact",
		"uuid", primary.UUID,
		"type", primary.Type,
		"replaced", len(previous),
		"derived", len(derivation.Artifacts),
		"sources", len(derivation.Sources),
		"resolved", link.Resolved)

	return &Result{Primary: primary, Derived: derivation.Artifacts, Link: link}, nil
}

// snapshot loads the derivations about to be replaced.
func (i *Ingester) snapshot(ctx context.Context, replace []string) ([]*model.Artifact, error) {
	var previous []*model.Artifact
	for _, id := range replace {
		d, err := i.store.Derivation(ctx, id)
		if err != nil {
			return nil, errors.Wrapf(err, "load derivation %s", id)
		}
		previous = append(previous, d...)
	}
	return previous, nil
}

func createdAt(previous []*model.Artifact, id string, now time.Time) time.Time {
	for _, a := range previous {
		if a.UUID == id && !a.CreatedAt.IsZero() {
			return a.CreatedAt
		}
	}
	return now
}

// commit deletes the replaced derivations, saves all and links the sources.
func (i *Ingester) commit(ctx context.Context, replace []string, all []*model.Artifact, normalized [][]string, sources []*resolver.Source) (*resolver.LinkResult, error) {
	for _, id := range replace {
		if _, err := i.store.DeleteDerivation(ctx, id); err != nil && !errors.Is(err, store.ErrArtifactNotFound) {
			return nil, errors.Wrapf(err, "replace %s", id)
		}
	}

	for k, a := range all {
		if err := i.store.SaveArtifact(ctx, a, normalized[k]); err != nil {
			return nil, errors.Wrapf(err, "save %s", a.Name)
		}
	}

	if len(sources) == 0 {
		return &resolver.LinkResult{}, nil
	}
	link, err := i.linker.ResolveAll(ctx, sources)
	if err != nil {
		return nil, errors.Wrap(err, "link relationships")
	}
	for _, a := range all {
		if len(a.Relationships) == 0 {
			continue
		}
		if err := i.store.SaveRelationships(ctx, a); err != nil {
			return nil, errors.Wrapf(err, "save relationships of %s", a.Name)
		}
	}
	return link, nil
}

// rollback removes whatever part of all was stored and saves previous again.
// It runs even when ctx is already cancelled.
func (i *Ingester) rollback(ctx context.Context, all, previous []*model.Artifact) error {
	ctx = context.WithoutCancel(ctx)
	var errs error
	for _, a := range all {
		if err := i.store.DeleteArtifact(ctx, a.UUID); err != nil && !errors.Is(err, store.ErrArtifactNotFound) {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "discard %s", a.Name))
		}
	}
	for _, a := range previous {
		normalized, err := i.normalize(a.Classifiers)
		if err != nil {
			// The ontology changed since a was stored; keep what it had.
			normalized = a.Classifiers
		}
		if err := i.store.SaveArtifact(ctx, a, normalized); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "restore %s", a.Name))
		}
	}
	if errs == nil && len(previous) > 0 {
		i.log.Warnw("restored previous artifacts", "artifacts", len(previous))
	}
	return errs
}

// classify replaces a's classifiers with the class URIs they resolve to and
// returns their normalized set. Unknown classifiers fail with
// ontology.ErrInvalidClassifier.
func (i *Ingester) classify(a *model.Artifact) ([]string, error) {
	if len(a.Classifiers) == 0 || i.ontology == nil {
		return i.normalize(a.Classifiers)
	}
	uris := make([]string, 0, len(a.Classifiers))
	seen := make(map[string]bool, len(a.Classifiers))
	for _, c := range a.Classifiers {
		uri, err := i.ontology.Resolve(c)
		if err != nil {
			return nil, err
		}
		if !seen[uri] {
			seen[uri] = true
			uris = append(uris, uri)
		}
	}
	a.Classifiers = uris
	return i.normalize(uris)
}

func (i *Ingester) normalize(classifiers []string) ([]string, error) {
	if len(classifiers) == 0 {
		return nil, nil
	}
	if i.ontology == nil {
		return classifiers, nil
	}
	return i.ontology.NormalizeAll(classifiers)
}

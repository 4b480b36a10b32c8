package resolver

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aidanlsb/sramp/internal/logger"
	"github.com/aidanlsb/sramp/internal/model"
)

// DefaultWorkers is the number of sources resolved in parallel by ResolveAll.
const DefaultWorkers = 4

// Finder runs criteria queries. Results must be ordered by UUID.
type Finder interface {
	Find(ctx context.Context, artifactModel string, types []string, criteria map[string]string) (*model.PagedResult[model.ArtifactSummary], error)
}

// LinkResult summarizes one link pass.
type LinkResult struct {
	Total     int `json:"total"`
	Resolved  int `json:"resolved"`
	Discarded int `json:"discarded"`
	Ambiguous int `json:"ambiguous"`
}

// LinkContext is the state of one link pass. It guards mutation of owning
// relationships, which several sources may share.
type LinkContext struct {
	mu     sync.Mutex
	result LinkResult
}

// NewLinkContext returns the state for a new link pass.
func NewLinkContext() *LinkContext {
	return &LinkContext{}
}

// Result returns the counts so far.
func (lc *LinkContext) Result() LinkResult {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.result
}

// Linker resolves sources through a Finder.
type Linker struct {
	finder  Finder
	log     *zap.SugaredLogger
	workers int
}

// NewLinker creates a linker. workers <= 0 means DefaultWorkers.
func NewLinker(finder Finder, workers int) *Linker {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Linker{
		finder:  finder,
		log:     logger.Named("resolver"),
		workers: workers,
	}
}

// SetLogger replaces the linker logger.
func (l *Linker) SetLogger(log *zap.SugaredLogger) {
	if log != nil {
		l.log = log
	}
}

// Resolve evaluates one pending source. When artifacts match, the smallest
// UUID wins and the target takes it; more than one match is counted as
// ambiguous. When none match the NotFound callback runs, the target is
// removed from its owner and dropped. Only finder failures are errors.
func (l *Linker) Resolve(ctx context.Context, lc *LinkContext, src *Source) error {
	if src.state != StatePending {
		return nil
	}

	criteria, err := src.Criteria.Build()
	if err != nil {
		return errors.Wrapf(err, "source %s", src)
	}

	page, err := l.finder.Find(ctx, src.Model, src.Types, criteria)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", src)
	}

	candidates := len(page.Items)
	if page.TotalAvailable > candidates {
		candidates = page.TotalAvailable
	}

	if len(page.Items) == 0 {
		if src.NotFound != nil {
			src.NotFound(src)
		}
		l.log.Debugw("relationship target not found", "source", src.String())

		lc.mu.Lock()
		defer lc.mu.Unlock()
		if src.Owner != nil && src.Target != nil {
			src.Owner.RemoveTarget(src.Target)
		}
		src.Target = nil
		src.state = StateDiscarded
		lc.result.Discarded++
		return nil
	}

	pick := page.Items[0]
	for _, item := range page.Items[1:] {
		if item.UUID < pick.UUID {
			pick = item
		}
	}
	if candidates > 1 {
		l.log.Warnw("ambiguous relationship target",
			"source", src.String(),
			"candidates", candidates,
			"picked", pick.UUID)
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()
	src.Target.UUID = pick.UUID
	src.Target.Type = pick.Type
	src.state = StateResolved
	src.candidates = candidates
	lc.result.Resolved++
	if candidates > 1 {
		lc.result.Ambiguous++
	}
	return nil
}

// ResolveAll resolves every source of one derivation. All sources must exist
// before it is called. Independent sources are resolved in parallel; the
// first finder failure cancels the rest and is returned.
func (l *Linker) ResolveAll(ctx context.Context, sources []*Source) (*LinkResult, error) {
	lc := NewLinkContext()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			return l.Resolve(gctx, lc, src)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := lc.Result()
	result.Total = len(sources)
	l.log.Infow("linked relationship sources",
		"total", result.Total,
		"resolved", result.Resolved,
		"discarded", result.Discarded,
		"ambiguous", result.Ambiguous)
	return &result, nil
}

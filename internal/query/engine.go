package query

import (
	"context"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/aidanlsb/sramp/internal/logger"
	"github.com/aidanlsb/sramp/internal/model"
)

// Backend executes compiled queries with paging applied.
type Backend interface {
	ExecuteQuery(ctx context.Context, q *Compiled, args Args) (*model.PagedResult[model.ArtifactSummary], error)
}

// findPageSize caps the rows returned by Find.
const findPageSize = 1000

// Engine runs templated queries: bind, parse, compile, execute.
type Engine struct {
	backend      Backend
	ontology     OntologyResolver
	log          *zap.SugaredLogger
	defaultCount int
}

// NewEngine creates an engine over backend. ontology may be nil when no
// classification functions are used.
func NewEngine(backend Backend, ontology OntologyResolver) *Engine {
	return &Engine{
		backend:      backend,
		ontology:     ontology,
		log:          logger.Named("query"),
		defaultCount: DefaultCount,
	}
}

// SetLogger replaces the engine logger.
func (e *Engine) SetLogger(log *zap.SugaredLogger) {
	if log != nil {
		e.log = log
	}
}

// SetDefaultCount sets the page size used when a call gives no count.
func (e *Engine) SetDefaultCount(count int) {
	if count > 0 {
		e.defaultCount = count
	}
}

// Prepare returns a statement for binding params to t and executing it.
func (e *Engine) Prepare(t Template) *Statement {
	s := t.Statement()
	s.engine = e
	return s
}

// Query binds params to a template string and executes it in one call.
func (e *Engine) Query(ctx context.Context, template string, params []Param, in ArgsInput) (*model.PagedResult[model.ArtifactSummary], error) {
	s := e.Prepare(NewTemplate(template))
	for _, p := range params {
		s.Set(p)
	}
	return s.Execute(ctx, in)
}

// Execute binds, parses, compiles and runs the statement. Ordering comes from
// in when given, otherwise from the template.
func (s *Statement) Execute(ctx context.Context, in ArgsInput) (*model.PagedResult[model.ArtifactSummary], error) {
	if s.engine == nil {
		return nil, errors.New("statement was not prepared by an engine")
	}
	if in.OrderBy == nil {
		orderBy := s.template.orderBy
		in.OrderBy = &orderBy
	}
	if in.Ascending == nil {
		ascending := s.template.ascending
		in.Ascending = &ascending
	}
	if in.Count == nil {
		count := s.engine.defaultCount
		in.Count = &count
	}

	bound, err := s.Bind()
	if err != nil {
		return nil, err
	}
	return s.engine.execute(ctx, bound, in)
}

func (e *Engine) execute(ctx context.Context, bound string, in ArgsInput) (*model.PagedResult[model.ArtifactSummary], error) {
	args, err := in.Normalize()
	if err != nil {
		return nil, err
	}

	q, err := Parse(bound)
	if err != nil {
		return nil, err
	}

	compiled, err := Compile(q, e.ontology, CompileOptions{OrderBy: args.OrderBy, Ascending: args.Ascending})
	if err != nil {
		return nil, errors.Wrapf(err, "compile %s", bound)
	}

	e.log.Debugw("executing query",
		"query", bound,
		"sql", compiled.SelectSQL(),
		"start_index", args.StartIndex,
		"count", args.Count)

	result, err := e.backend.ExecuteQuery(ctx, compiled, args)
	if err != nil {
		return nil, errors.Wrapf(err, "execute %s", bound)
	}
	return result, nil
}

// Find returns artifacts of the given model whose type is one of types and
// whose properties equal every criteria value, ordered by UUID. An empty
// model matches any model; empty types match any type.
func (e *Engine) Find(ctx context.Context, artifactModel string, types []string, criteria map[string]string) (*model.PagedResult[model.ArtifactSummary], error) {
	template, params, err := criteriaTemplate(artifactModel, types, criteria)
	if err != nil {
		return nil, err
	}

	s := e.Prepare(NewTemplate(template).WithOrderBy("uuid"))
	for _, p := range params {
		s.Set(p)
	}
	count := findPageSize
	return s.Execute(ctx, ArgsInput{Count: &count})
}

// criteriaTemplate builds
//
//	/s-ramp/<model>[(@artifactType = ? or ...) and @key = ? and ...]
//
// with criteria keys in sorted order.
func criteriaTemplate(artifactModel string, types []string, criteria map[string]string) (string, []Param, error) {
	if artifactModel == "" {
		artifactModel = "*"
	} else if !IsName(artifactModel) {
		return "", nil, errors.Wrapf(ErrInvalidCriteria, "invalid model %q", artifactModel)
	}

	var conds []string
	var params []Param

	if len(types) > 0 {
		typeConds := make([]string, len(types))
		for i, t := range types {
			typeConds[i] = "@artifactType = ?"
			params = append(params, StringParam(t))
		}
		conds = append(conds, "("+strings.Join(typeConds, " or ")+")")
	}

	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		if !IsName(k) {
			return "", nil, errors.Wrapf(ErrInvalidCriteria, "invalid property name %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		conds = append(conds, "@"+k+" = ?")
		params = append(params, StringParam(criteria[k]))
	}

	template := "/s-ramp/" + artifactModel
	if len(conds) > 0 {
		template += "[" + strings.Join(conds, " and ") + "]"
	}
	return template, params, nil
}

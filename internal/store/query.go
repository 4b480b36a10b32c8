package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/aidanlsb/sramp/internal/model"
	"github.com/aidanlsb/sramp/internal/query"
	"github.com/aidanlsb/sramp/internal/sqlutil"
)

// ExecuteQuery runs a compiled query and returns one page of results plus the
// total number of matches.
func (s *Store) ExecuteQuery(ctx context.Context, q *query.Compiled, args query.Args) (*model.PagedResult[model.ArtifactSummary], error) {
	result := &model.PagedResult[model.ArtifactSummary]{
		Items:      []model.ArtifactSummary{},
		StartIndex: args.StartIndex,
		Count:      args.Count,
		OrderBy:    args.OrderBy,
		Ascending:  args.Ascending,
	}

	if err := s.db.QueryRowContext(ctx, q.CountSQL()).Scan(&result.TotalAvailable); err != nil {
		return nil, errors.Wrap(err, "count matches")
	}
	if args.Count == 0 || args.StartIndex >= result.TotalAvailable {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, q.SelectSQL()+" LIMIT ? OFFSET ?", args.Count, args.StartIndex)
	if err != nil {
		return nil, errors.Wrap(err, "select matches")
	}
	items, err := sqlutil.ScanRows(rows, func(r *sql.Rows) (model.ArtifactSummary, error) {
		return scanSummary(r, new(any))
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan matches")
	}
	if items != nil {
		result.Items = items
	}

	s.log.Debugw("query executed",
		"total", result.TotalAvailable,
		"returned", len(result.Items),
		"start_index", args.StartIndex)
	return result, nil
}

// scanSummary scans the summary columns, followed by any extra destinations.
func scanSummary(r *sql.Rows, extra ...any) (model.ArtifactSummary, error) {
	var item model.ArtifactSummary
	var createdAt, modifiedAt, derived string
	dest := append([]any{
		&item.UUID, &item.Name, &item.Model, &item.Type, &item.Description,
		&item.CreatedBy, &createdAt, &modifiedAt, &derived,
	}, extra...)
	if err := r.Scan(dest...); err != nil {
		return item, err
	}
	item.CreatedAt = parseTime(createdAt)
	item.LastModifiedAt = parseTime(modifiedAt)
	item.Derived = derived == "true"
	return item, nil
}

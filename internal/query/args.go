package query

import "github.com/cockroachdb/errors"

const (
	// DefaultCount is the page size used when no count is given.
	DefaultCount = 100
	// DefaultOrderBy is the property results are ordered by when none is given.
	DefaultOrderBy = "name"
)

// ArgsInput carries the optional paging and ordering arguments of a query call.
// Nil means "not supplied".
type ArgsInput struct {
	OrderBy    *string
	Ascending  *bool
	StartPage  *int
	StartIndex *int
	Count      *int
}

// Args are normalized paging and ordering values, applied by the backend as
// ORDER BY / LIMIT / OFFSET.
type Args struct {
	OrderBy    string
	Ascending  bool
	StartIndex int
	Count      int
}

// Normalize fills in defaults:
//   - count defaults to DefaultCount
//   - start index is used as given; otherwise (startPage-1)*count when a start
//     page is given; otherwise 0
//   - order-by defaults to DefaultOrderBy, ascending to true
func (in ArgsInput) Normalize() (Args, error) {
	args := Args{
		OrderBy:   DefaultOrderBy,
		Ascending: true,
		Count:     DefaultCount,
	}

	if in.OrderBy != nil && *in.OrderBy != "" {
		args.OrderBy = *in.OrderBy
	}
	if in.Ascending != nil {
		args.Ascending = *in.Ascending
	}

	if in.Count != nil {
		if *in.Count < 0 {
			return Args{}, errors.Wrapf(ErrInvalidPaging, "count must not be negative (got %d)", *in.Count)
		}
		args.Count = *in.Count
	}

	switch {
	case in.StartIndex != nil:
		if *in.StartIndex < 0 {
			return Args{}, errors.Wrapf(ErrInvalidPaging, "start index must not be negative (got %d)", *in.StartIndex)
		}
		args.StartIndex = *in.StartIndex
	case in.StartPage != nil:
		if *in.StartPage < 1 {
			return Args{}, errors.Wrapf(ErrInvalidPaging, "start page must be at least 1 (got %d)", *in.StartPage)
		}
		args.StartIndex = (*in.StartPage - 1) * args.Count
	}

	return args, nil
}

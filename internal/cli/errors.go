package cli

import (
	"github.com/cockroachdb/errors"

	"github.com/aidanlsb/sramp/internal/ontology"
	"github.com/aidanlsb/sramp/internal/query"
	"github.com/aidanlsb/sramp/internal/store"
)

// Error codes for structured error responses.
// These codes are stable and can be relied upon by agents.
const (
	ErrConfigInvalid     = "CONFIG_INVALID"
	ErrDatabaseError     = "DATABASE_ERROR"
	ErrQueryInvalid      = "QUERY_INVALID"
	ErrQueryParams       = "QUERY_PARAMS"
	ErrInvalidPaging     = "INVALID_PAGING"
	ErrClassifierInvalid = "CLASSIFIER_INVALID"
	ErrArtifactNotFound  = "ARTIFACT_NOT_FOUND"
	ErrFileReadError     = "FILE_READ_ERROR"
	ErrFileWriteError    = "FILE_WRITE_ERROR"
	ErrDerivationFailed  = "DERIVATION_FAILED"
	ErrInvalidInput      = "INVALID_INPUT"
	ErrInternal          = "INTERNAL_ERROR"
)

// queryErrorCode maps query engine failures to error codes.
func queryErrorCode(err error) string {
	switch {
	case errors.Is(err, query.ErrTooFewParams), errors.Is(err, query.ErrTooManyParams),
		errors.Is(err, query.ErrInvalidParam):
		return ErrQueryParams
	case errors.Is(err, query.ErrInvalidPaging):
		return ErrInvalidPaging
	case errors.Is(err, ontology.ErrInvalidClassifier):
		return ErrClassifierInvalid
	case errors.Is(err, query.ErrQueryParse),
		errors.Is(err, query.ErrExpectedPropertyArgument),
		errors.Is(err, query.ErrExpectedStringLiteral),
		errors.Is(err, query.ErrUnknownFunction),
		errors.Is(err, query.ErrNoRelationshipContext),
		errors.Is(err, query.ErrInvalidQuery),
		errors.Is(err, query.ErrInvalidCriteria):
		return ErrQueryInvalid
	case errors.Is(err, store.ErrArtifactNotFound):
		return ErrArtifactNotFound
	default:
		return ErrDatabaseError
	}
}

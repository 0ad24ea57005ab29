package storex

import (
	"net/http"

	"github.com/Abraxas-365/eventcraft/errx"
)

var ErrorRegistry = errx.NewRegistry("STOREX")

var (
	ErrInvalidQuery     = ErrorRegistry.Register("INVALID_QUERY", errx.TypeValidation, http.StatusBadRequest, "invalid query")
	ErrUnsupportedURL   = ErrorRegistry.Register("UNSUPPORTED_URL", errx.TypeValidation, http.StatusBadRequest, "unsupported store URL")
	ErrInvalidRecord    = ErrorRegistry.Register("INVALID_RECORD", errx.TypeValidation, http.StatusBadRequest, "record type cannot be stored")
	ErrConnectionFailed = ErrorRegistry.Register("CONNECTION_FAILED", errx.TypeUnavailable, http.StatusServiceUnavailable, "database connection failed")
	ErrCreateFailed     = ErrorRegistry.Register("CREATE_FAILED", errx.TypeInternal, http.StatusInternalServerError, "failed to create record")
	ErrQueryFailed      = ErrorRegistry.Register("QUERY_FAILED", errx.TypeInternal, http.StatusInternalServerError, "query execution failed")
	ErrCountFailed      = ErrorRegistry.Register("COUNT_FAILED", errx.TypeInternal, http.StatusInternalServerError, "failed to count records")
)

func IsConnectionFailed(err error) bool {
	return errx.IsCode(err, ErrConnectionFailed)
}

func IsInvalidQuery(err error) bool {
	return errx.IsCode(err, ErrInvalidQuery)
}

// Package errorhandler renders errors no handler mapped to a business outcome.
package errorhandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/nullprotocol/creditledger/internal/pkg/logger"
	"github.com/nullprotocol/creditledger/internal/pkg/response"
	"github.com/nullprotocol/creditledger/internal/pkg/sqlstore"
)

// Handle logs err against the request and writes a 503 for storage outages
// and timeouts, or a 500 otherwise.
func Handle(ctx context.Context, w http.ResponseWriter, op string, err error) {
	l := logger.FromContext(ctx)

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		l.Warn().Err(err).Str("op", op).Msg("Request timed out")
		response.ServiceUnavailable(w)
	case sqlstore.IsStorageFailure(err):
		var se *sqlstore.StorageError
		errors.As(err, &se)
		l.Error().Err(err).Str("op", op).Str("engine", string(se.Engine)).Msg("Storage failure")
		response.ServiceUnavailable(w)
	default:
		l.Error().Err(err).Str("op", op).Msg("Request failed")
		response.InternalError(w)
	}
}

// Package bulk describes bulk-input sessions against server-side endpoints:
// a declared endpoint receives a stream of documents together with an
// endpoint state carried between invocations and a work unit given once.
package bulk

import (
	"context"
	"io"

	"golang.org/x/xerrors"
)

// DefaultAPIPath is the declaration of the built-in document ingester.
const DefaultAPIPath = "/data-hub/5/data-services/ingestion/bulkIngester.api"

var ErrDocumentNotFound = xerrors.New("Could not read non-existent document.")

// Caller is one bulk-input session.
//
// Accept may buffer inputs, AwaitCompletion blocks until every accepted input was handed to the endpoint.
type Caller interface {
	Accept(ctx context.Context, input []byte) error
	AwaitCompletion(ctx context.Context) error
}

// Service is a connection to a database that can load endpoint declarations and open sessions on them.
// Implementations must be safe for concurrent use, sessions are not.
type Service interface {
	io.Closer
	Declaration(ctx context.Context, apiPath string) (*Declaration, error)
	BulkInputCaller(ctx context.Context, declaration *Declaration, endpointState, workUnit []byte) (Caller, error)
}

// NotFoundError builds the error returned for missing declarations.
func NotFoundError(apiPath string) error {
	return xerrors.Errorf("unable to read %q: %w", apiPath, ErrDocumentNotFound)
}

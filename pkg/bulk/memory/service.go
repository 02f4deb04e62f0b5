// Package memory is an in-process bulk backend. It serves the built-in ingester
// semantics for every declaration and keeps documents in memory.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/doublecloud/hubwriter/pkg/bulk"
	"golang.org/x/xerrors"
)

type Document struct {
	URI     string
	Content []byte
}

type Service struct {
	mu        sync.Mutex
	modules   map[string][]byte
	documents []Document
	calls     int
	failWith  error
	closed    bool
}

var _ bulk.Service = (*Service)(nil)

func NewService() *Service {
	return &Service{
		mu:        sync.Mutex{},
		modules:   map[string][]byte{},
		documents: nil,
		calls:     0,
		failWith:  nil,
		closed:    false,
	}
}

// PutModule stores a declaration document under the given path.
func (s *Service) PutModule(apiPath string, declaration []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[apiPath] = declaration
}

// FailCalls makes every following endpoint invocation return err, nil restores normal operation.
func (s *Service) FailCalls(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *Service) Declaration(_ context.Context, apiPath string) (*bulk.Declaration, error) {
	s.mu.Lock()
	raw, ok := s.modules[apiPath]
	s.mu.Unlock()
	if !ok {
		if apiPath == bulk.DefaultAPIPath {
			return bulk.BuiltinDeclaration(), nil
		}
		return nil, bulk.NotFoundError(apiPath)
	}
	decl, err := bulk.ParseDeclaration(apiPath, raw)
	if err != nil {
		return nil, xerrors.Errorf("unable to parse declaration: %w", err)
	}
	return decl, nil
}

func (s *Service) BulkInputCaller(_ context.Context, declaration *bulk.Declaration, endpointState, workUnit []byte) (bulk.Caller, error) {
	return bulk.NewBufferedCaller(declaration.InputBatchSize, endpointState, func(_ context.Context, state []byte, inputs [][]byte) ([]byte, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.calls++
		if s.failWith != nil {
			return nil, s.failWith
		}
		for _, input := range inputs {
			content := make([]byte, len(input))
			copy(content, input)
			s.documents = append(s.documents, Document{URI: bulk.DocumentURI(workUnit), Content: content})
		}
		return state, nil
	}), nil
}

// Documents returns a snapshot of the stored documents in ingestion order.
func (s *Service) Documents() []Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]Document, len(s.documents))
	copy(result, s.documents)
	return result
}

func (s *Service) DocumentsWithPrefix(prefix string) []Document {
	var result []Document
	for _, doc := range s.Documents() {
		if strings.HasPrefix(doc.URI, prefix) {
			result = append(result, doc)
		}
	}
	return result
}

// Calls returns the number of endpoint invocations, failed ones included.
func (s *Service) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Service) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Package elastic indexes bulk-ingested documents into an Elasticsearch index.
package elastic

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/doublecloud/hubwriter/pkg/bulk"
	"github.com/doublecloud/hubwriter/pkg/util"
	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esutil"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

const (
	DefaultModulesIndex = "modules"
	bodySample          = 8 * 1024
)

type Config struct {
	Addresses    []string
	Username     string
	Password     string
	Index        string
	ModulesIndex string
}

func (c *Config) Validate() error {
	if len(c.Addresses) == 0 {
		return xerrors.New("no addresses given")
	}
	if c.Index == "" {
		return xerrors.New("index is empty")
	}
	if strings.ToLower(c.Index) != c.Index || strings.ContainsAny(c.Index, `\/*?"<>| ,#:`) {
		return xerrors.Errorf("invalid index name %q", c.Index)
	}
	if c.ModulesIndex == "" {
		c.ModulesIndex = DefaultModulesIndex
	}
	return nil
}

type Service struct {
	cfg    *Config
	client *elasticsearch.Client
	logger *zap.Logger
}

var _ bulk.Service = (*Service)(nil)

func NewService(cfg *Config, logger *zap.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Errorf("invalid elastic config: %w", err)
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, xerrors.Errorf("unable to create elastic client: %w", err)
	}
	return &Service{
		cfg:    cfg,
		client: client,
		logger: logger.With(zap.String("component", "esclient")),
	}, nil
}

// moduleID keeps ids of arbitrary api paths short and free of path separators.
func moduleID(apiPath string) string {
	h := sha1.New()
	h.Write([]byte(apiPath))
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Service) Declaration(ctx context.Context, apiPath string) (*bulk.Declaration, error) {
	res, err := s.client.Get(s.cfg.ModulesIndex, moduleID(apiPath), s.client.Get.WithContext(ctx))
	if err != nil {
		return nil, xerrors.Errorf("unable to get %q from index %q: %w", apiPath, s.cfg.ModulesIndex, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, xerrors.Errorf("unable to read response: %w", err)
	}
	if res.StatusCode == http.StatusNotFound {
		if apiPath == bulk.DefaultAPIPath {
			return bulk.BuiltinDeclaration(), nil
		}
		return nil, bulk.NotFoundError(apiPath)
	}
	if res.IsError() {
		return nil, xerrors.Errorf("error on getting %q, HTTP status: %s, body: %s", apiPath, res.Status(), util.SampleBytes(body, bodySample))
	}
	content := gjson.GetBytes(body, "_source.content")
	if !content.Exists() {
		return nil, xerrors.Errorf("module %q has no content", apiPath)
	}
	decl, err := bulk.ParseDeclaration(apiPath, []byte(content.String()))
	if err != nil {
		return nil, xerrors.Errorf("unable to parse declaration: %w", err)
	}
	return decl, nil
}

func (s *Service) BulkInputCaller(_ context.Context, declaration *bulk.Declaration, endpointState, workUnit []byte) (bulk.Caller, error) {
	return bulk.NewBufferedCaller(declaration.InputBatchSize, endpointState, func(ctx context.Context, state []byte, inputs [][]byte) ([]byte, error) {
		if err := s.pushBatch(ctx, workUnit, inputs); err != nil {
			return nil, err
		}
		return state, nil
	}), nil
}

func (s *Service) pushBatch(ctx context.Context, workUnit []byte, inputs [][]byte) error {
	if len(inputs) == 0 {
		return nil
	}
	var indexResult = make(chan error)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	startPush := time.Now()
	go func() {
		defer close(indexResult)
		indexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
			Client:     s.client,
			Index:      s.cfg.Index,
			NumWorkers: 1,
			OnError: func(ctx context.Context, err error) {
				indexResult <- xerrors.Errorf("indexer error: %w", err)
			},
		})
		if err != nil {
			indexResult <- xerrors.Errorf("unable to create bulk indexer: %w", err)
			return
		}

		for _, input := range inputs {
			err := indexer.Add(
				ctx,
				esutil.BulkIndexerItem{
					Index:      s.cfg.Index,
					Action:     "index",
					DocumentID: bulk.DocumentURI(workUnit),
					Body:       bytes.NewReader(input),
					OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, responseItem esutil.BulkIndexerResponseItem, err error) {
						if err != nil {
							indexResult <- xerrors.Errorf("document %q indexation error: %w", item.DocumentID, err)
							return
						}
						indexResult <- xerrors.Errorf("got an indexation error for document %q with http code %v, error: %v: %v",
							item.DocumentID, responseItem.Status, responseItem.Error.Type, responseItem.Error.Reason)
					},
				})
			if err != nil {
				indexResult <- xerrors.Errorf("can't add document to index: %w", err)
				break
			}
		}
		if err := indexer.Close(ctx); err != nil {
			indexResult <- err
		}
	}()

	var firstErr error
	for err := range indexResult {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return xerrors.Errorf("can't index documents: %w", firstErr)
	}
	s.logger.Debug("Pushed", zap.Int("count", len(inputs)), zap.Duration("elapsed", time.Since(startPush)))
	return nil
}

func (s *Service) Close() error {
	return nil
}

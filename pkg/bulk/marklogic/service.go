// Package marklogic talks to a MarkLogic app server over its REST and Data Services interfaces.
package marklogic

import (
	"bytes"
	"context"
	"crypto/tls"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/doublecloud/hubwriter/pkg/bulk"
	"github.com/doublecloud/hubwriter/pkg/util"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

const (
	documentsPath   = "/v1/documents"
	jsonContentType = "application/json"
	errorBodySample = 1024
)

type Service struct {
	cfg    *Config
	httpc  *resty.Client
	logger *zap.Logger
}

var _ bulk.Service = (*Service)(nil)

type ServiceOpt func(*Service)

// WithRestyClient replaces the underlying HTTP client, base URL and auth are still applied from the config.
func WithRestyClient(r *resty.Client) ServiceOpt {
	return func(s *Service) {
		s.httpc = r
	}
}

func NewService(cfg *Config, logger *zap.Logger, opts ...ServiceOpt) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Errorf("invalid marklogic config: %w", err)
	}
	s := &Service{
		cfg:    cfg,
		httpc:  resty.New(),
		logger: logger.With(zap.String("component", "marklogic")),
	}
	for _, o := range opts {
		o(s)
	}

	s.httpc.SetBaseURL(cfg.BaseURL())
	if cfg.Timeout > 0 {
		s.httpc.SetTimeout(cfg.Timeout)
	}
	switch cfg.Auth {
	case AuthDigest:
		s.httpc.SetDigestAuth(cfg.Username, cfg.Password)
	case AuthBasic:
		s.httpc.SetBasicAuth(cfg.Username, cfg.Password)
	}
	if cfg.SimpleSSL {
		s.httpc.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec
	}
	return s, nil
}

func (s *Service) Declaration(ctx context.Context, apiPath string) (*bulk.Declaration, error) {
	var raw []byte
	err := s.retry(ctx, "loading "+apiPath, func() error {
		resp, err := s.httpc.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"uri":      apiPath,
				"database": s.cfg.ModulesDatabase,
			}).
			Get(documentsPath)
		if err != nil {
			return xerrors.Errorf("unable to request %q: %w", apiPath, err)
		}
		if resp.StatusCode() == http.StatusNotFound {
			return backoff.Permanent(bulk.NotFoundError(apiPath))
		}
		if err := checkResponse(resp); err != nil {
			return err
		}
		raw = resp.Body()
		return nil
	})
	if err != nil {
		return nil, err
	}
	decl, err := bulk.ParseDeclaration(apiPath, raw)
	if err != nil {
		return nil, xerrors.Errorf("unable to parse declaration: %w", err)
	}
	return decl, nil
}

func (s *Service) BulkInputCaller(_ context.Context, declaration *bulk.Declaration, endpointState, workUnit []byte) (bulk.Caller, error) {
	endpoint := declaration.Endpoint
	return bulk.NewBufferedCaller(declaration.InputBatchSize, endpointState, func(ctx context.Context, state []byte, inputs [][]byte) ([]byte, error) {
		return s.call(ctx, endpoint, state, workUnit, inputs)
	}), nil
}

func (s *Service) call(ctx context.Context, endpoint string, state, workUnit []byte, inputs [][]byte) ([]byte, error) {
	var newState []byte
	err := s.retry(ctx, "calling "+endpoint, func() error {
		fields := make([]*resty.MultipartField, 0, len(inputs)+2)
		fields = append(fields, jsonField("endpointState", state), jsonField("workUnit", workUnit))
		for _, input := range inputs {
			fields = append(fields, jsonField("input", input))
		}
		resp, err := s.httpc.R().
			SetContext(ctx).
			SetMultipartFields(fields...).
			Post(endpoint)
		if err != nil {
			return xerrors.Errorf("unable to call %q: %w", endpoint, err)
		}
		if err := checkResponse(resp); err != nil {
			return err
		}
		body := bytes.TrimSpace(resp.Body())
		if len(body) > 0 && !bytes.Equal(body, []byte("null")) {
			newState = body
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Bulk call completed", zap.String("endpoint", endpoint), zap.Int("inputs", len(inputs)))
	return newState, nil
}

func jsonField(name string, data []byte) *resty.MultipartField {
	return &resty.MultipartField{
		Param:       name,
		FileName:    "",
		ContentType: jsonContentType,
		Reader:      bytes.NewReader(data),
	}
}

// checkResponse lets gateway failures be retried, every other error status is final.
func checkResponse(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	err := xerrors.Errorf("%s %s returned %s: %s",
		resp.Request.Method, resp.Request.URL, resp.Status(), util.SampleBytes(resp.Body(), errorBodySample))
	switch resp.StatusCode() {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return err
	default:
		return backoff.Permanent(err)
	}
}

func (s *Service) retry(ctx context.Context, what string, fn func() error) error {
	b := util.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.RetryCount)), ctx)
	return backoff.RetryNotify(fn, policy, util.BackoffLogger(s.logger, what))
}

func (s *Service) Close() error {
	s.httpc.GetClient().CloseIdleConnections()
	return nil
}

package marklogic

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/doublecloud/hubwriter/pkg/bulk"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/xerrors"
)

type recordedCall struct {
	endpointState string
	workUnit      string
	inputs        []string
}

type fakeServer struct {
	mu        sync.Mutex
	modules   map[string]string
	calls     []recordedCall
	failures  []int
	nextState string
	user      string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.user != "" {
		if user, _, ok := r.BasicAuth(); !ok || user != f.user {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}
	if len(f.failures) > 0 {
		code := f.failures[0]
		f.failures = f.failures[1:]
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"errorResponse":{"message":"boom"}}`))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == documentsPath {
		if r.URL.Query().Get("database") != DefaultModulesDatabase {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body, ok := f.modules[r.URL.Query().Get("uri")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
		return
	}

	reader, err := r.MultipartReader()
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	call := recordedCall{}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(part)
		switch part.FormName() {
		case "endpointState":
			call.endpointState = string(data)
		case "workUnit":
			call.workUnit = string(data)
		case "input":
			call.inputs = append(call.inputs, string(data))
		}
	}
	f.calls = append(f.calls, call)
	_, _ = w.Write([]byte(f.nextState))
}

func (f *fakeServer) recorded() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func newTestService(t *testing.T, handler http.Handler, tune func(cfg *Config)) *Service {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	serverURL, err := url.Parse(server.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(serverURL.Host)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Host = host
	cfg.Port, err = strconv.Atoi(port)
	require.NoError(t, err)
	cfg.Auth = AuthNone
	cfg.RetryInterval = time.Millisecond
	if tune != nil {
		tune(cfg)
	}

	service, err := NewService(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, service.Close()) })
	return service
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, cfg.Validate(), "digest auth without username")

	cfg.Username = "admin"
	require.NoError(t, cfg.Validate())
	require.Equal(t, "http://localhost:8010", cfg.BaseURL())

	cfg.SimpleSSL = true
	require.Equal(t, "https://localhost:8010", cfg.BaseURL())

	cfg.Auth = "kerberos"
	require.Error(t, cfg.Validate())

	cfg.Auth = AuthNone
	cfg.Port = 0
	require.Error(t, cfg.Validate())
}

func TestDeclarationLoadedFromModulesDatabase(t *testing.T) {
	server := &fakeServer{modules: map[string]string{
		"/custom/ingest.api": `{"functionName":"ingest","$bulk":{"inputBatchSize":2}}`,
	}}
	service := newTestService(t, server, nil)

	decl, err := service.Declaration(context.Background(), "/custom/ingest.api")
	require.NoError(t, err)
	require.Equal(t, "/custom/ingest.sjs", decl.Endpoint)
	require.Equal(t, 2, decl.InputBatchSize)
}

func TestDeclarationNotFound(t *testing.T) {
	service := newTestService(t, &fakeServer{modules: map[string]string{}}, nil)

	_, err := service.Declaration(context.Background(), "/missing.api")
	require.Error(t, err)
	require.True(t, xerrors.Is(err, bulk.ErrDocumentNotFound))
	require.Contains(t, err.Error(), "Could not read non-existent document.")
}

func TestBulkCallSendsMultipartAndCarriesState(t *testing.T) {
	server := &fakeServer{modules: map[string]string{}, nextState: `{"next":1}`}
	service := newTestService(t, server, nil)

	decl := &bulk.Declaration{APIPath: "/x.api", Endpoint: "/x.sjs", InputBatchSize: 2}
	caller, err := service.BulkInputCaller(context.Background(), decl, []byte(`{}`), []byte(`{"uriprefix":"/fruit"}`))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, caller.Accept(ctx, []byte(`{"a":1}`)))
	require.Empty(t, server.recorded())
	require.NoError(t, caller.Accept(ctx, []byte(`{"a":2}`)))
	require.NoError(t, caller.Accept(ctx, []byte(`{"a":3}`)))
	require.NoError(t, caller.AwaitCompletion(ctx))

	calls := server.recorded()
	require.Len(t, calls, 2)
	require.Equal(t, `{}`, calls[0].endpointState)
	require.Equal(t, `{"uriprefix":"/fruit"}`, calls[0].workUnit)
	require.Equal(t, []string{`{"a":1}`, `{"a":2}`}, calls[0].inputs)
	require.Equal(t, `{"next":1}`, calls[1].endpointState)
	require.Equal(t, []string{`{"a":3}`}, calls[1].inputs)
}

func TestGatewayErrorsAreRetried(t *testing.T) {
	server := &fakeServer{modules: map[string]string{}, failures: []int{http.StatusServiceUnavailable, http.StatusBadGateway}}
	service := newTestService(t, server, nil)

	decl := &bulk.Declaration{APIPath: "/x.api", Endpoint: "/x.sjs", InputBatchSize: 10}
	caller, err := service.BulkInputCaller(context.Background(), decl, []byte(`{}`), []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, caller.Accept(context.Background(), []byte(`{"a":1}`)))
	require.NoError(t, caller.AwaitCompletion(context.Background()))
	require.Len(t, server.recorded(), 1)
}

func TestServerErrorsAreFinal(t *testing.T) {
	server := &fakeServer{modules: map[string]string{}, failures: []int{http.StatusInternalServerError}}
	service := newTestService(t, server, nil)

	decl := &bulk.Declaration{APIPath: "/x.api", Endpoint: "/x.sjs", InputBatchSize: 10}
	caller, err := service.BulkInputCaller(context.Background(), decl, []byte(`{}`), []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, caller.Accept(context.Background(), []byte(`{"a":1}`)))
	err = caller.AwaitCompletion(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
	require.Contains(t, err.Error(), "boom")
	require.Empty(t, server.recorded())
}

func TestRetriesAreBounded(t *testing.T) {
	server := &fakeServer{modules: map[string]string{}, failures: []int{503, 503, 503}}
	service := newTestService(t, server, func(cfg *Config) { cfg.RetryCount = 1 })

	_, err := service.Declaration(context.Background(), bulk.DefaultAPIPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
}

func TestBasicAuth(t *testing.T) {
	server := &fakeServer{modules: map[string]string{bulk.DefaultAPIPath: `{"endpoint":"/ingest.sjs"}`}, user: "hub-operator"}
	service := newTestService(t, server, func(cfg *Config) {
		cfg.Auth = AuthBasic
		cfg.Username = "hub-operator"
		cfg.Password = "secret"
	})

	decl, err := service.Declaration(context.Background(), bulk.DefaultAPIPath)
	require.NoError(t, err)
	require.Equal(t, "/ingest.sjs", decl.Endpoint)
}

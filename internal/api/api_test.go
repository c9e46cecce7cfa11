package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/metrics"
	"fjacquet/statement-ledger/internal/pipeline"
	"fjacquet/statement-ledger/internal/store"
	"fjacquet/statement-ledger/internal/templates"
	"fjacquet/statement-ledger/internal/writer"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chaseCSV = `Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #
DEBIT,05/03/2024,COFFEE SHOP,-12.50,DEBIT_CARD,987.50,
CREDIT,05/01/2024,PAYROLL,1000.00,ACH_CREDIT,1000.00,
`

func newEngine(t *testing.T) *pipeline.Engine {
	t.Helper()
	builtin, err := templates.Builtin()
	require.NoError(t, err)
	registry, err := templates.NewRegistry(builtin...)
	require.NoError(t, err)
	return pipeline.New(registry, pipeline.DefaultOptions(), logging.Nop())
}

func newServer(t *testing.T, cfg RouterConfig) *httptest.Server {
	t.Helper()
	if cfg.Engine == nil {
		cfg.Engine = newEngine(t)
	}
	srv := httptest.NewServer(NewRouter(cfg))
	t.Cleanup(srv.Close)
	return srv
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRouter_Routes(t *testing.T) {
	router := NewRouter(RouterConfig{
		Engine:   newEngine(t),
		Gatherer: prometheus.NewRegistry(),
	})
	routes, ok := router.(chi.Routes)
	require.True(t, ok)

	var got []string
	err := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		got = append(got, method+" "+route)
		return nil
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"GET /health",
		"GET /metrics",
		"GET /api/v1/templates",
		"POST /api/v1/statements",
		"POST /api/v1/statements/detect",
		"GET /api/v1/ledgers/{id}",
	}, got)
}

func TestHealth(t *testing.T) {
	srv := newServer(t, RouterConfig{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 4, body["templates"])
}

func TestTemplates(t *testing.T) {
	srv := newServer(t, RouterConfig{})

	resp, err := http.Get(srv.URL + "/api/v1/templates")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := decode[[]TemplateInfo](t, resp)
	names := make([]string, 0, len(list))
	for _, info := range list {
		names = append(names, info.Name)
	}
	assert.ElementsMatch(t, []string{"barclays-uk", "camt053", "chase-checking-csv", "hdfc-savings"}, names)
}

func TestProcess(t *testing.T) {
	ledgers := store.NewMockLedgerStore()
	srv := newServer(t, RouterConfig{Store: ledgers})

	resp, err := http.Post(srv.URL+"/api/v1/statements", "text/csv", strings.NewReader(chaseCSV))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	doc := decode[writer.Document](t, resp)
	assert.Equal(t, "ledger-1", doc.ID)
	assert.Equal(t, "chase-checking-csv", doc.Metadata.Template)
	assert.Equal(t, "template", doc.Metadata.DetectionSource)
	require.Len(t, doc.Transactions, 2)
	assert.Equal(t, "2024-05-01", doc.Transactions[0].Date)
	assert.Equal(t, "PAYROLL", doc.Transactions[0].Description)
	assert.Equal(t, 1, ledgers.Len())

	resp, err = http.Get(srv.URL + "/api/v1/ledgers/" + doc.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stored := decode[writer.Document](t, resp)
	assert.Equal(t, doc.ID, stored.ID)
	assert.Len(t, stored.Transactions, 2)
}

func TestProcess_Multipart(t *testing.T) {
	srv := newServer(t, RouterConfig{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "statement.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(chaseCSV))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/v1/statements?format=csv", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc := decode[writer.Document](t, resp)
	assert.Empty(t, doc.ID)
	assert.Len(t, doc.Transactions, 2)
}

func TestProcess_ForcedTemplate(t *testing.T) {
	srv := newServer(t, RouterConfig{})

	resp, err := http.Post(srv.URL+"/api/v1/statements?template=chase-checking-csv", "text/csv", strings.NewReader(chaseCSV))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc := decode[writer.Document](t, resp)
	assert.Equal(t, "forced", doc.Metadata.DetectionSource)
	assert.Equal(t, 1.0, doc.Metadata.Confidence)
}

func TestDetect(t *testing.T) {
	srv := newServer(t, RouterConfig{})

	resp, err := http.Post(srv.URL+"/api/v1/statements/detect", "text/csv", strings.NewReader(chaseCSV))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	det := decode[DetectResponse](t, resp)
	assert.Equal(t, "chase-checking-csv", det.Template)
	assert.False(t, det.Unknown)
	assert.InDelta(t, 0.65, det.Confidence, 0.001)
	assert.NotEmpty(t, det.Scores)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name        string
		cfg         RouterConfig
		method      string
		path        string
		contentType string
		body        string
		wantStatus  int
		wantKind    string
	}{
		{
			name:        "unsupported format",
			method:      http.MethodPost,
			path:        "/api/v1/statements",
			contentType: "image/png",
			body:        "\x89PNG",
			wantStatus:  http.StatusUnsupportedMediaType,
			wantKind:    "unsupported_format",
		},
		{
			name:        "empty body",
			method:      http.MethodPost,
			path:        "/api/v1/statements",
			contentType: "text/csv",
			wantStatus:  http.StatusUnprocessableEntity,
			wantKind:    "corrupt_file",
		},
		{
			name:        "body too large",
			cfg:         RouterConfig{MaxBytes: 16},
			method:      http.MethodPost,
			path:        "/api/v1/statements",
			contentType: "text/csv",
			body:        chaseCSV,
			wantStatus:  http.StatusRequestEntityTooLarge,
			wantKind:    "resource_limit_exceeded",
		},
		{
			name:        "unknown template",
			method:      http.MethodPost,
			path:        "/api/v1/statements?template=nope",
			contentType: "text/csv",
			body:        chaseCSV,
			wantStatus:  http.StatusBadRequest,
			wantKind:    "unknown_template",
		},
		{
			name:        "missing multipart file",
			method:      http.MethodPost,
			path:        "/api/v1/statements/detect",
			contentType: "multipart/form-data; boundary=xyz",
			body:        "--xyz--\r\n",
			wantStatus:  http.StatusBadRequest,
			wantKind:    "bad_request",
		},
		{
			name:       "missing ledger",
			cfg:        RouterConfig{Store: store.NewMockLedgerStore()},
			method:     http.MethodGet,
			path:       "/api/v1/ledgers/ledger-9",
			wantStatus: http.StatusNotFound,
			wantKind:   "not_found",
		},
		{
			name:       "no store",
			method:     http.MethodGet,
			path:       "/api/v1/ledgers/ledger-1",
			wantStatus: http.StatusNotFound,
			wantKind:   "not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.cfg)

			req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			body := decode[ErrorResponse](t, resp)
			assert.Equal(t, tt.wantKind, body.Error)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestProcess_StoreFailure(t *testing.T) {
	ledgers := store.NewMockLedgerStore()
	ledgers.SaveError = errors.New("connection refused")
	logger := logging.NewMockLogger()
	srv := newServer(t, RouterConfig{Store: ledgers, Logger: logger})

	resp, err := http.Post(srv.URL+"/api/v1/statements", "text/csv", strings.NewReader(chaseCSV))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	_ = resp.Body.Close()

	assert.True(t, logger.HasEntry("ERROR", "Request failed"))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := newServer(t, RouterConfig{Metrics: metrics.New(reg), Gatherer: reg})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `ledger_http_requests_total{method="GET",path="/health",status="200"} 1`)
}

func TestLoggingMiddleware(t *testing.T) {
	logger := logging.NewMockLogger()
	srv := newServer(t, RouterConfig{Logger: logger})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.True(t, logger.HasEntry("INFO", "Request completed"))
}

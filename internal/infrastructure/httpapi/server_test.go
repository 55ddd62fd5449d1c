package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filingscout/internal/domain"
	"filingscout/internal/infrastructure/storage"
	"filingscout/internal/normalize"
	"filingscout/internal/ports"
	"filingscout/internal/usecase"
)

type stubSource struct {
	records  []ports.RawRecord
	gotQuery ports.FeedQuery
	err      error
}

func (s *stubSource) Fetch(_ context.Context, q ports.FeedQuery) ([]ports.RawRecord, error) {
	s.gotQuery = q
	return s.records, s.err
}

type okNotifier struct{ calls int }

func (n *okNotifier) Send(context.Context, string, ports.Notification) error {
	n.calls++
	return nil
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(context.Context, string, string) (string, error) {
	return "summary", nil
}

func newTestServer(source ports.FeedSource, notifier ports.Notifier, dryRun ports.Notifier) (*Server, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	tracker := usecase.NewTracker(usecase.TrackerDeps{
		Jobs:     store,
		Fallback: stubSummarizer{},
	})
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Normalizer: normalize.New(""),
		Baseline:   store,
		Tracker:    tracker,
		Recipients: store,
		Notifier:   notifier,
		DryRun:     dryRun,
	})
	return NewServer(":0", pipeline, ports.FeedQuery{Index: "equities"}, nil), store
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(&stubSource{}, &okNotifier{}, nil)

	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestCycleEndpointRunsPipeline(t *testing.T) {
	t.Parallel()

	source := &stubSource{records: []ports.RawRecord{
		{"symbol": "ACME", "sm_name": "Acme Ltd", "desc": "Board Meeting"},
	}}
	srv, _ := newTestServer(source, &okNotifier{}, nil)

	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cycle?symbol=ACME&limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Report domain.CycleReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Report.Fetched)
	assert.Equal(t, 1, resp.Report.Novel)
	assert.NotEmpty(t, resp.Report.RunID)

	// Defaults from config survive, overrides apply on top.
	assert.Equal(t, "equities", source.gotQuery.Index)
	assert.Equal(t, "ACME", source.gotQuery.Symbol)
}

func TestCycleEndpointDryRun(t *testing.T) {
	t.Parallel()

	source := &stubSource{records: []ports.RawRecord{
		{"symbol": "ACME", "sm_name": "Acme Ltd", "desc": "Board Meeting"},
	}}
	real := &okNotifier{}
	dry := &okNotifier{}
	srv, store := newTestServer(source, real, dry)
	store.SetRecipients([]domain.Recipient{{Phone: "918081489340"}})

	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cycle?dry_run=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, real.calls)
	assert.Equal(t, 1, dry.calls)
}

func TestCycleEndpointRejectsBadParameters(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(&stubSource{}, &okNotifier{}, nil)

	for _, target := range []string{"/cycle?limit=abc", "/cycle?limit=-1", "/cycle?dry_run=maybe"} {
		rec := httptest.NewRecorder()
		srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestCycleEndpointMapsFetchFailureToBadGateway(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(&stubSource{err: assert.AnError}, &okNotifier{}, nil)

	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cycle", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	chirouter "github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/biorag/internal/domain"
	healthuc "github.com/kailas-cloud/biorag/internal/usecase/health"
)

// --- Mocks ---

type mockQuery struct {
	result       domain.QueryResult
	err          error
	lastQuestion string
	lastTop      int
}

func (m *mockQuery) Query(_ context.Context, question string, topResults int) (domain.QueryResult, error) {
	m.lastQuestion = question
	m.lastTop = topResults
	return m.result, m.err
}

type mockHealth struct {
	ready  bool
	report healthuc.Report
}

func (m *mockHealth) Ready() bool { return m.ready }

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

func newTestRouter(q QueryService, h HealthService) http.Handler {
	r := chirouter.NewRouter()
	NewServer(q, h, zap.NewNop()).Routes(r)
	return r
}

func postQuery(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/query", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// --- Tests ---

func TestQueryHandler_Success(t *testing.T) {
	q := &mockQuery{result: domain.QueryResult{
		Answer:         "Sample X is frozen.",
		Sources:        []domain.ScoredRecord{{Content: "Frozen tissue aliquot", Similarity: 0.9}},
		ProcessingTime: "0.42s",
		Status:         200,
	}}
	handler := newTestRouter(q, &mockHealth{ready: true})

	rr := postQuery(t, handler, `{"question": "Is sample X frozen?", "top_results": 5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200; body %s", rr.Code, rr.Body.String())
	}

	if q.lastQuestion != "Is sample X frozen?" || q.lastTop != 5 {
		t.Errorf("request not forwarded: question=%q top=%d", q.lastQuestion, q.lastTop)
	}

	var res domain.QueryResult
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Answer != "Sample X is frozen." || len(res.Sources) != 1 {
		t.Errorf("unexpected body %+v", res)
	}
	if res.ProcessingTime != "0.42s" {
		t.Errorf("processing time missing: %+v", res)
	}
}

func TestQueryHandler_BadJSON(t *testing.T) {
	handler := newTestRouter(&mockQuery{}, &mockHealth{})

	rr := postQuery(t, handler, `{"question": `)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
}

func TestQueryHandler_NegativeTopResults(t *testing.T) {
	handler := newTestRouter(&mockQuery{}, &mockHealth{})

	rr := postQuery(t, handler, `{"question": "q", "top_results": -1}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
}

func TestQueryHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantBody ErrorCode
	}{
		{"invalid input", domain.ErrInvalidInput, http.StatusBadRequest, CodeValidationFailed},
		{"not ready", domain.ErrNotReady, http.StatusServiceUnavailable, CodeNotReady},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
		{"embedding down", domain.ErrEmbeddingUnavailable, http.StatusBadGateway, CodeUpstreamUnavailable},
		{"index down", domain.ErrIndexUnavailable, http.StatusBadGateway, CodeUpstreamUnavailable},
		{"generation down", domain.ErrGenerationUnavailable, http.StatusBadGateway, CodeUpstreamUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestRouter(&mockQuery{err: tc.err}, &mockHealth{})

			rr := postQuery(t, handler, `{"question": "q"}`)
			if rr.Code != tc.wantCode {
				t.Fatalf("got %d, want %d", rr.Code, tc.wantCode)
			}

			var errResp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Code != tc.wantBody {
				t.Errorf("error code: got %s, want %s", errResp.Code, tc.wantBody)
			}
		})
	}
}

func TestQueryHandler_UnknownErrorIs500(t *testing.T) {
	handler := newTestRouter(&mockQuery{err: context.DeadlineExceeded}, &mockHealth{})

	rr := postQuery(t, handler, `{"question": "q"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "deadline") {
		t.Error("internal error details must not leak to the client")
	}
}

func TestStatusHandler(t *testing.T) {
	handler := newTestRouter(&mockQuery{}, &mockHealth{
		report: healthuc.Report{Ready: true, Records: 42},
	})

	req := httptest.NewRequest("GET", "/api/status", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}

	var status StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "ready" || status.Records != 42 {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestStatusHandler_Initializing(t *testing.T) {
	handler := newTestRouter(&mockQuery{}, &mockHealth{
		report: healthuc.Report{Ready: false, Records: 0},
	})

	req := httptest.NewRequest("GET", "/api/status", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var status StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "initializing" {
		t.Errorf("expected initializing, got %q", status.Status)
	}
}

func TestHealthHandler(t *testing.T) {
	healthy := newTestRouter(&mockQuery{}, &mockHealth{
		report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK}},
	})
	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	healthy.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("healthy: got %d, want 200", rr.Code)
	}

	degraded := newTestRouter(&mockQuery{}, &mockHealth{
		report: healthuc.Report{Status: healthuc.Degraded, Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckError}},
	})
	rr = httptest.NewRecorder()
	degraded.ServeHTTP(rr, httptest.NewRequest("GET", "/health", http.NoBody))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded: got %d, want 503", rr.Code)
	}
}

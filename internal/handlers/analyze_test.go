package handlers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap/zaptest"

	"cropscan-gateway/internal/analyze"
	"cropscan-gateway/internal/cache"
	"cropscan-gateway/internal/handlers"
	"cropscan-gateway/internal/httpserver"
	"cropscan-gateway/internal/identify"
	"cropscan-gateway/internal/persist"
	"cropscan-gateway/internal/pipeline"
	"cropscan-gateway/internal/ratelimit"
)

const bananaPayload = `{
  "condition": "Potassium deficiency",
  "health_status": "Unhealthy",
  "severity": "Moderate",
  "confidence": 0.84,
  "symptoms": ["yellow-orange scorching along older leaf margins"],
  "treatments": ["apply muriate of potash around the root zone"],
  "prevention": ["split fertilizer applications through the wet season"],
  "nutritional_issues": {
    "deficient_nutrients": ["potassium"],
    "recommendations": ["apply NPK 12:12:17:2 monthly"]
  },
  "fertilizers": [{"product": "NPK 12:12:17:2", "dosage": "200g per mat", "schedule": "monthly"}]
}`

type stubModel struct {
	raw   string
	err   error
	calls int
}

func (m *stubModel) Name() string { return "stub-model" }

func (m *stubModel) Complete(ctx context.Context, prompt string, images [][]byte) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.raw, nil
}

type stubIdentifier struct {
	result *identify.Identification
	calls  int
}

func (p *stubIdentifier) Name() string { return "stub-ident" }

func (p *stubIdentifier) Identify(ctx context.Context, req identify.Request) (*identify.Identification, error) {
	p.calls++
	return p.result, nil
}

type testEnv struct {
	srv      *httptest.Server
	model    *stubModel
	ident    *stubIdentifier
	feedback *persist.MemoryFeedbackStore
}

func newTestServer(t *testing.T, limit int) *testEnv {
	t.Helper()

	store := cache.NewMemoryStore(time.Minute)
	t.Cleanup(func() { store.Close() })

	sink := persist.NewMemorySink()
	training := persist.NewTrainingLogger(sink, 32, nil)
	t.Cleanup(training.Close)

	feedback := persist.NewMemoryFeedbackStore()

	model := &stubModel{raw: bananaPayload}
	ident := &stubIdentifier{result: &identify.Identification{
		ScientificName: "Musa acuminata",
		CommonNames:    []string{"Banana"},
		Confidence:     0.91,
		Source:         "stub-ident",
	}}

	svc := pipeline.NewService(
		pipeline.Config{VersionID: "vtest"},
		store,
		identify.NewChain(ident),
		analyze.NewStage(model, nil),
		training,
		feedback,
	)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, zaptest.NewLogger(t), handlers.New(svc, false),
		ratelimit.New(limit, time.Minute), []string{"*"})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, model: model, ident: ident, feedback: feedback}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestAnalyzeEndToEnd(t *testing.T) {
	env := newTestServer(t, 100)

	image := base64.StdEncoding.EncodeToString([]byte("fake-banana-leaf-jpeg"))
	req := map[string]any{
		"primaryImage": image,
		"category":     "banana",
		"locale":       "en",
		"location":     "Johor",
	}

	resp := postJSON(t, env.srv.URL+"/v1/analyze", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out struct {
		ScanID string          `json:"scanId"`
		Cached bool            `json:"cached"`
		Result *analyze.Result `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if out.ScanID == "" {
		t.Fatalf("missing scanId")
	}
	if out.Cached {
		t.Fatalf("first call reported cached")
	}
	if out.Result == nil || out.Result.HealthStatus != analyze.StatusUnhealthy {
		t.Fatalf("unexpected result: %#v", out.Result)
	}
	if out.Result.NutritionalIssues == nil || len(out.Result.NutritionalIssues.DeficientNutrients) == 0 {
		t.Fatalf("deficient nutrients missing: %#v", out.Result.NutritionalIssues)
	}
	if len(out.Result.Fertilizers) == 0 || out.Result.Fertilizers[0].Product != "NPK 12:12:17:2" {
		t.Fatalf("fertilizer recommendation missing: %#v", out.Result.Fertilizers)
	}
	if out.Result.Identification == nil || out.Result.Identification.ScientificName != "Musa acuminata" {
		t.Fatalf("identification not embedded: %#v", out.Result.Identification)
	}

	// Same image again must come from the cache without touching providers.
	resp2 := postJSON(t, env.srv.URL+"/v1/analyze", req)
	defer resp2.Body.Close()

	var out2 struct {
		ScanID string          `json:"scanId"`
		Cached bool            `json:"cached"`
		Result *analyze.Result `json:"result"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&out2); err != nil {
		t.Fatalf("decode second response: %v", err)
	}
	if !out2.Cached {
		t.Fatalf("second call not cached")
	}
	if out2.ScanID != out.ScanID {
		t.Fatalf("scanId changed across cache hit: %s vs %s", out.ScanID, out2.ScanID)
	}
	if env.model.calls != 1 || env.ident.calls != 1 {
		t.Fatalf("providers called again on cache hit: model=%d ident=%d", env.model.calls, env.ident.calls)
	}
}

func TestAnalyzeMissingImage(t *testing.T) {
	env := newTestServer(t, 100)

	resp := postJSON(t, env.srv.URL+"/v1/analyze", map[string]any{
		"category": "banana",
		"locale":   "en",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	var out struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if out.Error != "invalid_request" {
		t.Fatalf("error code = %q, want invalid_request", out.Error)
	}
}

func TestAnalyzeRejectsBadLocale(t *testing.T) {
	env := newTestServer(t, 100)

	resp := postJSON(t, env.srv.URL+"/v1/analyze", map[string]any{
		"primaryImage": base64.StdEncoding.EncodeToString([]byte("img")),
		"locale":       "fr",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAnalyzeAcceptsDataURL(t *testing.T) {
	env := newTestServer(t, 100)

	resp := postJSON(t, env.srv.URL+"/v1/analyze", map[string]any{
		"primaryImage": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("canvas-export")),
		"locale":       "en",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAnalyzeUnavailableWhenModelsFail(t *testing.T) {
	env := newTestServer(t, 100)
	env.model.err = fmt.Errorf("upstream 503")

	resp := postJSON(t, env.srv.URL+"/v1/analyze", map[string]any{
		"primaryImage": base64.StdEncoding.EncodeToString([]byte("img")),
		"locale":       "en",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}

	var out struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if out.Error != "analysis_failed" {
		t.Fatalf("error code = %q, want analysis_failed", out.Error)
	}
	if out.Details != "" {
		t.Fatalf("details leaked with debug off: %q", out.Details)
	}
}

func TestAskEndToEnd(t *testing.T) {
	env := newTestServer(t, 100)
	env.model.raw = `{"answer": "Apply MOP in split doses after the monsoon."}`

	resp := postJSON(t, env.srv.URL+"/v1/ask", map[string]any{
		"question": "How do I fix potassium deficiency in banana?",
		"locale":   "en",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out struct {
		Answer string `json:"answer"`
		Cached bool   `json:"cached"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Answer == "" || out.Cached {
		t.Fatalf("unexpected answer response: %#v", out)
	}

	// Paraphrase with different punctuation reuses the cached answer.
	resp2 := postJSON(t, env.srv.URL+"/v1/ask", map[string]any{
		"question": "How do I fix potassium   deficiency in banana???",
		"locale":   "en",
	})
	defer resp2.Body.Close()

	var out2 struct {
		Answer string `json:"answer"`
		Cached bool   `json:"cached"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&out2); err != nil {
		t.Fatalf("decode second response: %v", err)
	}
	if !out2.Cached || out2.Answer != out.Answer {
		t.Fatalf("paraphrase missed cache: %#v", out2)
	}
	if env.model.calls != 1 {
		t.Fatalf("model called %d times, want 1", env.model.calls)
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	env := newTestServer(t, 100)

	resp := postJSON(t, env.srv.URL+"/v1/ask", map[string]any{
		"question": "???",
		"locale":   "en",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestFeedbackEndToEnd(t *testing.T) {
	env := newTestServer(t, 100)

	resp := postJSON(t, env.srv.URL+"/v1/feedback", map[string]any{
		"scanId":  "scan-123",
		"rating":  4,
		"comment": "helpful",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	saved := env.feedback.Feedback()
	if len(saved) != 1 || saved[0].ScanID != "scan-123" || saved[0].Rating != 4 {
		t.Fatalf("feedback not stored: %#v", saved)
	}

	bad := postJSON(t, env.srv.URL+"/v1/feedback", map[string]any{
		"scanId": "scan-123",
		"rating": 9,
	})
	defer bad.Body.Close()

	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for rating out of range", bad.StatusCode)
	}
}

func TestRateLimitOnAPIRoutes(t *testing.T) {
	env := newTestServer(t, 3)

	client := &http.Client{}
	var limited int
	for i := 0; i < 5; i++ {
		req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/v1/ask", bytes.NewReader([]byte(`{}`)))
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Client-ID", "client-a")

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if got := resp.Header.Get("X-RateLimit-Limit"); got != "3" {
			t.Fatalf("X-RateLimit-Limit = %q, want 3", got)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			limited++
			if resp.Header.Get("Retry-After") == "" {
				t.Fatalf("429 without Retry-After header")
			}
			if got := resp.Header.Get("X-RateLimit-Remaining"); got != "0" {
				t.Fatalf("X-RateLimit-Remaining = %q on 429, want 0", got)
			}
		}
		resp.Body.Close()
	}
	if limited != 2 {
		t.Fatalf("limited = %d, want 2 of 5 with limit 3", limited)
	}

	// Health endpoint bypasses the limiter.
	resp, err := http.Get(env.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", resp.StatusCode)
	}
}

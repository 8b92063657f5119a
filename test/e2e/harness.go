package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/delverhq/delver/pkg/api"
	"github.com/delverhq/delver/pkg/config"
	"github.com/delverhq/delver/pkg/control"
	"github.com/delverhq/delver/pkg/events"
	"github.com/delverhq/delver/pkg/llm"
	"github.com/delverhq/delver/pkg/models"
	"github.com/delverhq/delver/pkg/research"
	"github.com/delverhq/delver/pkg/search"
	"github.com/delverhq/delver/pkg/service"
)

// app is the in-process application under test: the full engine stack
// behind a real HTTP server, with scripted models and stub search
// providers in place of the outside world.
type app struct {
	t        *testing.T
	cfg      *config.Config
	bus      *events.Bus
	registry *control.Registry
	engine   *research.Engine
	manager  *service.Manager
	searcher *search.Orchestrator
	server   *httptest.Server
	client   *http.Client
}

// baseConfig is the starting configuration for e2e runs: one fake LLM
// provider, no search credentials, small knobs, persistence off.
func baseConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.LLMProviders = map[string]*config.LLMProviderConfig{
		"openai": {Type: config.LLMProviderOpenAI, APIKey: "e2e-test-key-1234567890"},
	}
	cfg.DefaultLLMProvider = "openai"
	cfg.SearchProviders = nil
	cfg.Server.SSETimeoutSeconds = 5

	s := cfg.Settings
	s.DeepsearchMode = config.ModeLinear
	s.MaxEpochs = 1
	s.QueryNum = 2
	s.ResultsPerQuery = 5
	s.SaveData = false
	gapOff := false
	s.UseGapAnalysis = &gapOff
	return cfg
}

// newApp assembles bus, registry, orchestrator, engine, manager, and
// HTTP server. The runner factories are replaced so the real runners
// execute over the scripted model set instead of router-built SDK
// clients; extra options may override the runners entirely.
func newApp(t *testing.T, cfg *config.Config, ms *research.ModelSet, providers []search.Provider, opts ...research.Option) *app {
	t.Helper()

	bus := events.NewBus()
	registry := control.NewRegistry(0, 0)

	reg := search.NewRegistry()
	for _, p := range providers {
		reg.Register(p)
	}
	searcher := search.NewOrchestrator(reg, search.NewCache(0), cfg.Settings.SearchStrategy)

	base := []research.Option{
		research.WithLinearRun(func(*research.ModelSet) research.RunFunc {
			return research.NewLinearRunner(bus, searcher, nil, cfg.Settings, ms, research.NewGapAnalyzer(ms.Gap, 0)).Run
		}),
		research.WithTreeRun(func(*research.ModelSet) research.RunFunc {
			return research.NewTreeExplorer(bus, searcher, nil, cfg.Settings, ms).Run
		}),
	}
	engine := research.NewEngine(cfg, bus, llm.NewRouter(cfg), searcher, nil, registry, append(base, opts...)...)
	manager := service.NewManager(engine, bus, registry)
	server := httptest.NewServer(api.NewServer(cfg, manager, bus).Handler())
	t.Cleanup(server.Close)

	return &app{
		t:        t,
		cfg:      cfg,
		bus:      bus,
		registry: registry,
		engine:   engine,
		manager:  manager,
		searcher: searcher,
		server:   server,
		client:   server.Client(),
	}
}

// runStatus is the decoded GET /research/:id body.
type runStatus struct {
	SessionID string               `json:"session_id"`
	Topic     string               `json:"topic"`
	Status    string               `json:"status"`
	Artifacts *models.RunArtifacts `json:"artifacts"`
}

func (a *app) url(path string) string { return a.server.URL + path }

// postJSON issues a POST with a JSON body and returns the response.
func (a *app) postJSON(path string, body any) *http.Response {
	a.t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(a.t, err)
	resp, err := a.client.Post(a.url(path), "application/json", bytes.NewReader(payload))
	require.NoError(a.t, err)
	return resp
}

// startRun submits a research request and returns the session id.
func (a *app) startRun(req map[string]any) string {
	a.t.Helper()
	resp := a.postJSON("/api/v1/research", req)
	defer resp.Body.Close()
	require.Equal(a.t, http.StatusAccepted, resp.StatusCode)

	var accepted struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&accepted))
	require.NotEmpty(a.t, accepted.SessionID)
	return accepted.SessionID
}

// status fetches the run state over HTTP.
func (a *app) status(sessionID string) runStatus {
	a.t.Helper()
	resp, err := a.client.Get(a.url("/api/v1/research/" + sessionID))
	require.NoError(a.t, err)
	defer resp.Body.Close()
	require.Equal(a.t, http.StatusOK, resp.StatusCode)

	var st runStatus
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&st))
	return st
}

// waitDone polls the status endpoint until the run leaves the running
// state.
func (a *app) waitDone(sessionID string) runStatus {
	a.t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		st := a.status(sessionID)
		if st.Status != service.StatusRunning {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
	a.t.Fatalf("run %s still running after 10s", sessionID)
	return runStatus{}
}

// sessionEvents returns the session's buffered event stream.
func (a *app) sessionEvents(sessionID string) []models.Event {
	return a.bus.Buffered(sessionID, 0)
}

// eventsOfKind filters the buffered stream by kind.
func (a *app) eventsOfKind(sessionID string, kind models.EventKind) []models.Event {
	var out []models.Event
	for _, ev := range a.sessionEvents(sessionID) {
		if ev.Type == kind {
			out = append(out, ev)
		}
	}
	return out
}

// scriptedModel replays canned responses in order; the last response
// repeats once the script runs out of earlier entries. An optional
// delay simulates model latency; entered (when set) receives a signal
// each time a completion starts, so tests can synchronize on it.
type scriptedModel struct {
	mu        sync.Mutex
	delay     time.Duration
	entered   chan struct{}
	responses []string
	calls     int
}

func script(responses ...string) *scriptedModel {
	return &scriptedModel{responses: responses}
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Complete(ctx context.Context, _ []llm.Message) (string, error) {
	if m.entered != nil {
		select {
		case m.entered <- struct{}{}:
		default:
		}
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.responses) == 0 {
		return "", errors.New("script exhausted")
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return resp, nil
}

func (m *scriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// stubProvider is a search backend serving a fixed result set and
// recording every query it receives.
type stubProvider struct {
	mu      sync.Mutex
	name    string
	results []models.SearchResult
	queries []string
}

func newStubProvider(name string, results ...models.SearchResult) *stubProvider {
	return &stubProvider{name: name, results: results}
}

func (p *stubProvider) Name() string      { return p.name }
func (p *stubProvider) IsAvailable() bool { return true }

func (p *stubProvider) Search(_ context.Context, query string, _ int) ([]models.SearchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, query)
	out := make([]models.SearchResult, len(p.results))
	copy(out, p.results)
	return out, nil
}

func (p *stubProvider) Queries() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.queries))
	copy(out, p.queries)
	return out
}

// linearModels scripts one happy linear epoch: plan a query, pick the
// first result, declare the material sufficient, write the report.
func linearModels(report string) *research.ModelSet {
	return &research.ModelSet{
		Planner:    script(`["supporting angle"]`),
		Researcher: script("unused"),
		Writer:     script(report),
		Critic:     script("1", "回答: yes\n总结: the material settles the question"),
		Gap:        script(`{"overall_coverage": 0.9, "confidence": 0.9, "analysis": "done"}`),
	}
}

// webResults builds n distinct generic results.
func webResults(n int) []models.SearchResult {
	out := make([]models.SearchResult, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.SearchResult{
			Title:   "result " + string(rune('a'+i)),
			URL:     "https://example.com/" + string(rune('a'+i)),
			Snippet: "some snippet text about the topic",
			Score:   0.8,
		})
	}
	return out
}

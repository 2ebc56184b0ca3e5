package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"policy_compass/pkg/core/agent"
	"policy_compass/pkg/core/llm"
	"policy_compass/pkg/core/logger"
	"policy_compass/pkg/models"

	"github.com/google/go-cmp/cmp"
)

func init() {
	logger.Silence()
}

const sampleResponse = `{
  "dashboardSummary": {
    "keyThemes": ["Ethics", "Investment"],
    "commonClauses": [
      {"clause": "Oversight", "description": "Regulator", "frequency": 30},
      {"clause": "Funding", "description": "Grants", "frequency": 90}
    ],
    "divergentApproaches": [
      {"approach": "Soft law", "description": "Guidelines only", "examples": ["Japan"]}
    ]
  },
  "contracts": [
    {"id": 2, "country": "Japan", "policyTitle": "C", "summary": "c", "suggestions": "sc"},
    {"id": 0, "country": "Germany", "policyTitle": "A", "summary": "a", "suggestions": "sa"},
    {"id": 1, "country": "India", "policyTitle": "B", "summary": "b"}
  ]
}`

func newTestAnalyzer(mock *llm.MockProvider, opts ...Option) *Analyzer {
	mgr := agent.NewManager(agent.DefaultConfig(), map[string]llm.Provider{"gemini": mock})
	return NewAnalyzer(mgr, opts...)
}

func contractIDs(a *models.FullAnalysis) []int {
	ids := make([]int, len(a.Contracts))
	for i, c := range a.Contracts {
		ids[i] = c.ID
	}
	return ids
}

func TestBuildPrompt(t *testing.T) {
	text, err := BuildPrompt("AI strategy", []string{"France", "Italy"})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`related to "AI strategy"`,
		"countries: France, Italy.",
		"Assign a unique 'id' starting from 0.",
		"differences from Canadian policies",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
}

func TestResponseSchema(t *testing.T) {
	s := ResponseSchema()
	if diff := cmp.Diff([]string{"dashboardSummary", "contracts"}, s.Required); diff != "" {
		t.Errorf("root required mismatch (-want +got):\n%s", diff)
	}
	contract := s.Properties["contracts"].Items
	if contract.Properties["id"].Type != llm.TypeInteger {
		t.Errorf("Expected integer id, got %s", contract.Properties["id"].Type)
	}
	clause := s.Properties["dashboardSummary"].Properties["commonClauses"].Items
	if clause.Properties["frequency"].Type != llm.TypeNumber {
		t.Errorf("Expected number frequency, got %s", clause.Properties["frequency"].Type)
	}
}

func TestParse_SortsContractsByID(t *testing.T) {
	a, err := Parse(sampleResponse)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, contractIDs(a)); diff != "" {
		t.Errorf("contract order mismatch (-want +got):\n%s", diff)
	}
	if a.Contracts[1].Suggestions != "" {
		t.Errorf("Expected empty optional suggestions, got %q", a.Contracts[1].Suggestions)
	}
	if len(a.DashboardSummary.CommonClauses) != 2 {
		t.Errorf("Expected 2 clauses, got %d", len(a.DashboardSummary.CommonClauses))
	}
}

func TestParse_FencedAndInvalid(t *testing.T) {
	if _, err := Parse("```json\n" + sampleResponse + "\n```"); err != nil {
		t.Errorf("Expected fenced JSON to parse, got %v", err)
	}
	if _, err := Parse(""); err == nil {
		t.Error("Expected error for empty response")
	}
}

func TestParse_RejectsIncompleteShapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unterminated object", "{"},
		{"null", "null"},
		{"empty object", "{}"},
		{"truncated contracts", `{"contracts": [{"id": 1}, {"id": 0}`},
		{"null summary", `{"dashboardSummary": null, "contracts": []}`},
		{"contracts not a list", `{"dashboardSummary": {}, "contracts": {"id": 0}}`},
		{"contract missing fields", `{"dashboardSummary": {"keyThemes": []}, "contracts": [{"id": 0, "country": "Spain"}]}`},
		{"array", `[{"id": 0}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Parse(tt.input)
			if err == nil {
				t.Fatalf("Expected error, got %+v", a)
			}
		})
	}
}

func TestParse_AcceptsEmptyContracts(t *testing.T) {
	a, err := Parse(`{"dashboardSummary": {"keyThemes": ["Ethics"]}, "contracts": []}`)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Contracts) != 0 {
		t.Errorf("Expected no contracts, got %d", len(a.Contracts))
	}
}

func TestClone_IsDeep(t *testing.T) {
	a, _ := Parse(sampleResponse)
	c := Clone(a)
	c.Contracts[0].Country = "changed"
	c.DashboardSummary.DivergentApproaches[0].Examples[0] = "changed"
	if a.Contracts[0].Country == "changed" || a.DashboardSummary.DivergentApproaches[0].Examples[0] == "changed" {
		t.Error("Clone shares memory with the original")
	}
}

func TestAnalyze_ValidationSkipsProvider(t *testing.T) {
	tests := []struct {
		name      string
		topic     string
		countries []string
	}{
		{"empty topic", "  ", []string{"Canada"}},
		{"no countries", "trade", nil},
		{"blank countries", "trade", []string{" ", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &llm.MockProvider{}
			_, err := newTestAnalyzer(mock).Analyze(context.Background(), tt.topic, tt.countries)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("Expected ErrValidation, got %v", err)
			}
			if err.Error() != ValidationMessage {
				t.Errorf("Unexpected message %q", err.Error())
			}
			if n := len(mock.GenerateRequests()); n != 0 {
				t.Errorf("Expected no provider call, got %d", n)
			}
		})
	}
}

func TestAnalyze_Success(t *testing.T) {
	mock := &llm.MockProvider{
		GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (string, error) {
			return sampleResponse, nil
		},
	}
	a, err := newTestAnalyzer(mock).Analyze(context.Background(), " AI ethics ", []string{"Germany", " India ", "Japan"})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, contractIDs(a)); diff != "" {
		t.Errorf("contract order mismatch (-want +got):\n%s", diff)
	}

	reqs := mock.GenerateRequests()
	if len(reqs) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(reqs))
	}
	req := reqs[0]
	if !req.JSON || req.Schema == nil {
		t.Error("Expected JSON request with schema")
	}
	if req.Model != "gemini-2.5-pro" {
		t.Errorf("Expected gemini-2.5-pro, got %s", req.Model)
	}
	if req.Temperature == nil || *req.Temperature != 0.1 {
		t.Errorf("Expected temperature 0.1, got %v", req.Temperature)
	}
	if !strings.Contains(req.Prompt, `"AI ethics" for the following countries: Germany, India, Japan.`) {
		t.Errorf("Prompt not normalized:\n%s", req.Prompt)
	}
}

func TestAnalyze_ProviderFailureIsGeneric(t *testing.T) {
	cause := errors.New("quota exceeded")
	mock := &llm.MockProvider{
		GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (string, error) {
			return "", cause
		},
	}
	_, err := newTestAnalyzer(mock).Analyze(context.Background(), "tax", []string{"Spain"})
	if !errors.Is(err, ErrAnalysisFailed) {
		t.Fatalf("Expected ErrAnalysisFailed, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("Expected cause to be retained")
	}
	if err.Error() != FailureMessage {
		t.Errorf("Expected generic message, got %q", err.Error())
	}
}

func TestAnalyze_MalformedResponseIsGeneric(t *testing.T) {
	mock := &llm.MockProvider{
		GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (string, error) {
			return "I could not find any policies.", nil
		},
	}
	_, err := newTestAnalyzer(mock).Analyze(context.Background(), "tax", []string{"Spain"})
	if !errors.Is(err, ErrAnalysisFailed) {
		t.Fatalf("Expected ErrAnalysisFailed, got %v", err)
	}
}

func TestAnalyze_IncompleteResponseNotCached(t *testing.T) {
	for _, reply := range []string{"{", "null", `{"contracts": [{"id": 1}, {"id": 0}`} {
		mock := &llm.MockProvider{
			GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (string, error) {
				return reply, nil
			},
		}
		cache := NewCache(4, time.Minute)
		_, err := newTestAnalyzer(mock, WithCache(cache)).Analyze(context.Background(), "tax", []string{"Spain"})
		if !errors.Is(err, ErrAnalysisFailed) {
			t.Errorf("Reply %q: expected ErrAnalysisFailed, got %v", reply, err)
		}
		if cache.Len() != 0 {
			t.Errorf("Reply %q: expected nothing cached, got %d entries", reply, cache.Len())
		}
	}
}

func TestAnalyze_CollapsesIdenticalRequests(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	mock := &llm.MockProvider{
		GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (string, error) {
			once.Do(func() { close(started) })
			select {
			case <-release:
				return sampleResponse, nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	}
	an := newTestAnalyzer(mock, WithCache(NewCache(4, time.Minute)))

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := an.Analyze(firstCtx, "AI", []string{"Japan"})
		firstErr <- err
	}()
	<-started

	type result struct {
		a   *models.FullAnalysis
		err error
	}
	second := make(chan result, 1)
	go func() {
		a, err := an.Analyze(context.Background(), "AI", []string{"Japan"})
		second <- result{a, err}
	}()

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected cancelled caller to see context.Canceled, got %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)

	res := <-second
	if res.err != nil {
		t.Fatalf("Expected live caller to succeed, got %v", res.err)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, contractIDs(res.a)); diff != "" {
		t.Errorf("Contract order mismatch (-want +got):\n%s", diff)
	}
	if n := len(mock.GenerateRequests()); n != 1 {
		t.Errorf("Expected 1 provider call, got %d", n)
	}
}

func TestAnalyze_CacheKeyedByProvider(t *testing.T) {
	gemini := &llm.MockProvider{
		GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (string, error) {
			return sampleResponse, nil
		},
	}
	other := &llm.MockProvider{
		GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (string, error) {
			return sampleResponse, nil
		},
	}
	mgr := agent.NewManager(agent.DefaultConfig(), map[string]llm.Provider{"gemini": gemini, "other": other})
	an := NewAnalyzer(mgr, WithCache(NewCache(4, time.Minute)))

	if _, err := an.Analyze(context.Background(), "AI", []string{"Japan"}); err != nil {
		t.Fatal(err)
	}
	if err := mgr.SetGlobalProvider("other"); err != nil {
		t.Fatal(err)
	}
	if _, err := an.Analyze(context.Background(), "AI", []string{"Japan"}); err != nil {
		t.Fatal(err)
	}
	if n := len(other.GenerateRequests()); n != 1 {
		t.Errorf("Expected switched provider to be called once, got %d", n)
	}
}

func TestAnalyze_UsesCache(t *testing.T) {
	mock := &llm.MockProvider{
		GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (string, error) {
			return sampleResponse, nil
		},
	}
	an := newTestAnalyzer(mock, WithCache(NewCache(4, time.Minute)))

	first, err := an.Analyze(context.Background(), "AI", []string{"Japan"})
	if err != nil {
		t.Fatal(err)
	}
	first.Contracts[0].Country = "mutated"

	second, err := an.Analyze(context.Background(), "AI", []string{"Japan"})
	if err != nil {
		t.Fatal(err)
	}
	if n := len(mock.GenerateRequests()); n != 1 {
		t.Errorf("Expected 1 provider call, got %d", n)
	}
	if second.Contracts[0].Country == "mutated" {
		t.Error("Cached result was mutated through a previous caller")
	}
}

func TestCache_EvictionAndTTL(t *testing.T) {
	c := NewCache(2, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	a := &models.FullAnalysis{}
	c.Put("a", a)
	c.Put("b", a)
	c.Get("a") // a becomes most recent
	c.Put("c", a)

	if _, ok := c.Get("b"); ok {
		t.Error("Expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("Expected a to survive")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("Expected a to expire")
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 entry left, got %d", c.Len())
	}
}

func TestCache_DisabledIsNoop(t *testing.T) {
	c := NewCache(0, time.Minute)
	c.Put("k", &models.FullAnalysis{})
	if _, ok := c.Get("k"); ok {
		t.Error("Disabled cache should never hit")
	}
}

func TestSimulationProvider(t *testing.T) {
	an := newTestAnalyzer(SimulationProvider())
	a, err := an.Analyze(context.Background(), "solar incentives", []string{"Spain", "Mexico", "Turkey"})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, contractIDs(a)); diff != "" {
		t.Errorf("contract order mismatch (-want +got):\n%s", diff)
	}
	if a.Contracts[0].Country != "Spain" {
		t.Errorf("Expected Spain first, got %s", a.Contracts[0].Country)
	}
}

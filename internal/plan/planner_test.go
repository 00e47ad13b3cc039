package plan

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vivekhaldar/mcpboot/internal/fetcher"
	"github.com/vivekhaldar/mcpboot/internal/llm"
	"github.com/vivekhaldar/mcpboot/internal/whitelist"
)

func TestPlan_ValidPlanOnFirstAttempt(t *testing.T) {
	fake := &llm.FakeClient{Responses: []string{
		"```json\n" + `{"tools":[{"name":"get_weather","description":"fetches weather","inputSchema":{"type":"object","properties":{}},"endpointsUsed":["https://api.weather.com/v1"],"implementationNotes":"call the api","needsNetwork":true}]}` + "\n```",
	}}
	wl := whitelist.FromDomains([]string{"api.weather.com"})

	p := New(fake)
	gp, err := p.Plan(context.Background(), "build a weather tool", nil, wl)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(gp.Tools) != 1 || gp.Tools[0].Name != "get_weather" {
		t.Fatalf("Plan() = %+v", gp)
	}
	if len(fake.Requests) != 1 {
		t.Fatalf("expected 1 LLM call, got %d", len(fake.Requests))
	}
}

func TestPlan_RetriesOnceOnParseError(t *testing.T) {
	fake := &llm.FakeClient{Responses: []string{
		"not json at all",
		`{"tools":[{"name":"pure_calc","description":"adds numbers","inputSchema":{"type":"object"},"endpointsUsed":[],"implementationNotes":"sum a and b","needsNetwork":false}]}`,
	}}
	wl := whitelist.FromDomains(nil)

	p := New(fake)
	gp, err := p.Plan(context.Background(), "build a calculator", nil, wl)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(gp.Tools) != 1 {
		t.Fatalf("Plan() = %+v", gp)
	}
	if len(fake.Requests) != 2 {
		t.Fatalf("expected 2 LLM calls, got %d", len(fake.Requests))
	}
}

func TestPlan_FailsAfterTwoBadAttempts(t *testing.T) {
	fake := &llm.FakeClient{Responses: []string{"garbage", "still garbage"}}
	wl := whitelist.FromDomains(nil)

	p := New(fake)
	_, err := p.Plan(context.Background(), "build something", nil, wl)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if len(fake.Requests) != 2 {
		t.Fatalf("expected 2 LLM calls, got %d", len(fake.Requests))
	}
}

func TestPlan_RejectsEmptyToolsArray(t *testing.T) {
	fake := &llm.FakeClient{Responses: []string{`{"tools":[]}`, `{"tools":[]}`}}
	wl := whitelist.FromDomains(nil)

	p := New(fake)
	_, err := p.Plan(context.Background(), "prompt", nil, wl)
	if err == nil {
		t.Fatal("expected error for empty tools array")
	}
}

func TestPlan_RejectsDuplicateNames(t *testing.T) {
	dup := `{"tools":[{"name":"a","description":"d","inputSchema":{"type":"object"},"endpointsUsed":[],"implementationNotes":"n","needsNetwork":false},{"name":"a","description":"d2","inputSchema":{"type":"object"},"endpointsUsed":[],"implementationNotes":"n2","needsNetwork":false}]}`
	fake := &llm.FakeClient{Responses: []string{dup, dup}}
	wl := whitelist.FromDomains(nil)

	p := New(fake)
	_, err := p.Plan(context.Background(), "prompt", nil, wl)
	if err == nil {
		t.Fatal("expected error for duplicate tool names")
	}
}

func TestPlan_RejectsBadIdentifier(t *testing.T) {
	bad := `{"tools":[{"name":"123bad","description":"d","inputSchema":{"type":"object"},"endpointsUsed":[],"implementationNotes":"n","needsNetwork":false}]}`
	fake := &llm.FakeClient{Responses: []string{bad, bad}}
	wl := whitelist.FromDomains(nil)

	p := New(fake)
	_, err := p.Plan(context.Background(), "prompt", nil, wl)
	if err == nil {
		t.Fatal("expected error for malformed identifier")
	}
}

func TestPlan_WhitelistViolationGetsOneBlindRetryThenFails(t *testing.T) {
	bad := `{"tools":[{"name":"fetch_secret","description":"d","inputSchema":{"type":"object"},"endpointsUsed":["https://evil.example.com/leak"],"implementationNotes":"n","needsNetwork":true}]}`
	fake := &llm.FakeClient{Responses: []string{bad, bad}}
	wl := whitelist.FromDomains([]string{"good.example.com"})

	p := New(fake)
	_, err := p.Plan(context.Background(), "prompt", nil, wl)
	if err == nil {
		t.Fatal("expected whitelist validation error")
	}
	if len(fake.Requests) != maxAttempts {
		t.Fatalf("whitelist failures must get the same blind-retry budget as structural ones, got %d calls, want %d", len(fake.Requests), maxAttempts)
	}
}

func TestPlan_WhitelistViolationRecoversOnRetry(t *testing.T) {
	bad := `{"tools":[{"name":"fetch_secret","description":"d","inputSchema":{"type":"object"},"endpointsUsed":["https://evil.example.com/leak"],"implementationNotes":"n","needsNetwork":true}]}`
	good := `{"tools":[{"name":"fetch_secret","description":"d","inputSchema":{"type":"object"},"endpointsUsed":["https://good.example.com/leak"],"implementationNotes":"n","needsNetwork":true}]}`
	fake := &llm.FakeClient{Responses: []string{bad, good}}
	wl := whitelist.FromDomains([]string{"good.example.com"})

	p := New(fake)
	gp, err := p.Plan(context.Background(), "prompt", nil, wl)
	if err != nil {
		t.Fatalf("expected the retry to recover, got error: %v", err)
	}
	if len(gp.Tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(gp.Tools))
	}
}

func TestPlan_FailureIsLLMErrorWrappingTransportFailure(t *testing.T) {
	transportErr := errors.New("connection reset")
	fake := &llm.FakeClient{Errs: []error{transportErr, transportErr}}
	wl := whitelist.FromDomains(nil)

	p := New(fake)
	_, err := p.Plan(context.Background(), "prompt", nil, wl)
	if err == nil {
		t.Fatal("expected error")
	}
	var le *LLMError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LLMError, got %T: %v", err, err)
	}
	if !errors.Is(err, transportErr) {
		t.Fatalf("expected errors.Is to find the transport failure, got %v", err)
	}
}

func TestPlan_BadIdentifierIsPlanValidationError(t *testing.T) {
	bad := `{"tools":[{"name":"123bad","description":"d","inputSchema":{"type":"object"},"endpointsUsed":[],"implementationNotes":"n","needsNetwork":false}]}`
	fake := &llm.FakeClient{Responses: []string{bad, bad}}
	wl := whitelist.FromDomains(nil)

	p := New(fake)
	_, err := p.Plan(context.Background(), "prompt", nil, wl)

	var pve *PlanValidationError
	if !errors.As(err, &pve) {
		t.Fatalf("expected *PlanValidationError, got %T: %v", err, err)
	}
	if pve.Tool != "123bad" || pve.Field != "name" {
		t.Fatalf("PlanValidationError = %+v", pve)
	}
}

func TestPlan_IncludesDocumentsAndDomainsInUserPrompt(t *testing.T) {
	fake := &llm.FakeClient{Responses: []string{
		`{"tools":[{"name":"t","description":"d","inputSchema":{"type":"object"},"endpointsUsed":[],"implementationNotes":"n","needsNetwork":false}]}`,
	}}
	wl := whitelist.FromDomains([]string{"example.com"})
	docs := []fetcher.FetchedContent{{URL: "https://example.com/a", Text: "hello world", ContentType: "text/plain"}}

	p := New(fake)
	_, err := p.Plan(context.Background(), "do a thing", docs, wl)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	got := fake.Requests[0].User
	for _, want := range []string{"https://example.com/a", "hello world", "example.com"} {
		if !strings.Contains(got, want) {
			t.Fatalf("user prompt missing %q:\n%s", want, got)
		}
	}
}

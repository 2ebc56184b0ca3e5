package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRegistry_HasBuiltins(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{AnalysisPolicyComparison, ChatPolicyAssistant} {
		if _, err := r.GetPrompt(id); err != nil {
			t.Errorf("Expected builtin %s, got error %v", id, err)
		}
	}
	if r.Count() != 2 {
		t.Errorf("Expected 2 builtins, got %d", r.Count())
	}
}

func TestRegistry_Listing(t *testing.T) {
	r := NewRegistry()
	ids := r.ListPrompts()
	if len(ids) != 2 || ids[0] != AnalysisPolicyComparison || ids[1] != ChatPolicyAssistant {
		t.Errorf("Expected sorted builtin ids, got %v", ids)
	}
	chat := r.ListByCategory("chat")
	if len(chat) != 1 || chat[0].ID != ChatPolicyAssistant {
		t.Errorf("Expected one chat prompt, got %+v", chat)
	}
	if got := r.ListByCategory("unknown"); len(got) != 0 {
		t.Errorf("Expected no prompts for unknown category, got %d", len(got))
	}
}

func TestRenderUserPrompt_JoinsCountries(t *testing.T) {
	pt, err := NewRegistry().GetPrompt(AnalysisPolicyComparison)
	if err != nil {
		t.Fatal(err)
	}

	ctx := NewContext().
		Set("Topic", "data privacy").
		Set("Countries", []string{"Japan", "Brazil"})

	out, err := RenderUserPrompt(pt, ctx)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(out, `related to "data privacy" for the following countries: Japan, Brazil.`) {
		t.Errorf("Prompt missing topic/country line:\n%s", out)
	}
}

func TestRenderUserPrompt_MissingVariable(t *testing.T) {
	pt, _ := NewRegistry().GetPrompt(AnalysisPolicyComparison)
	if _, err := RenderUserPrompt(pt, NewContext().Set("Topic", "x")); err == nil {
		t.Error("Expected error for missing Countries variable")
	}
}

func TestLoadFromDirectory_OverridesBuiltin(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "prompts", "analysis")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	override := `{"name": "short", "user_prompt_template": "Compare {{.Topic}}"}`
	if err := os.WriteFile(filepath.Join(dir, "policy_comparison.json"), []byte(override), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	n, err := r.LoadFromDirectory(base)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 override, got %d", n)
	}

	pt, err := r.GetPrompt(AnalysisPolicyComparison)
	if err != nil {
		t.Fatal(err)
	}
	if pt.Category != "analysis" {
		t.Errorf("Expected category from folder, got %q", pt.Category)
	}
	out, _ := RenderUserPrompt(pt, NewContext().Set("Topic", "tariffs"))
	if out != "Compare tariffs" {
		t.Errorf("Expected override output, got %q", out)
	}

	r.Reset()
	pt, _ = r.GetPrompt(AnalysisPolicyComparison)
	if pt.Name != "Comparative policy analysis" {
		t.Errorf("Reset should restore builtin, got %q", pt.Name)
	}
}

func TestLoadFromDirectory_Missing(t *testing.T) {
	if _, err := NewRegistry().LoadFromDirectory(t.TempDir()); err == nil {
		t.Error("Expected error for missing prompts directory")
	}
}

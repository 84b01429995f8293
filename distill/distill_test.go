package distill

import (
	"strings"
	"testing"
)

func TestFit_UnderBudgetIsUnchanged(t *testing.T) {
	content := "# Title\n\nShort body."
	out, truncated := Fit(content, 1000)
	if truncated {
		t.Error("expected no truncation when content is already under budget")
	}
	if out != content {
		t.Error("expected content to be returned unchanged")
	}
}

func TestFit_ZeroBudgetIsNoop(t *testing.T) {
	content := strings.Repeat("word ", 1000)
	out, truncated := Fit(content, 0)
	if truncated || out != content {
		t.Error("expected a non-positive budget to leave content untouched")
	}
}

func TestFit_KeepsFirstHeadingEvenWhenFar(t *testing.T) {
	var b strings.Builder
	b.WriteString("# Article Title\n\n")
	for i := 0; i < 500; i++ {
		b.WriteString("This is filler sentence number to pad the document out past the budget. ")
		b.WriteString("\n\n")
	}
	out, truncated := Fit(b.String(), 50)
	if !truncated {
		t.Fatal("expected truncation for a document far over budget")
	}
	if !strings.HasPrefix(out, "# Article Title") {
		t.Errorf("expected first heading to be kept at the start, got prefix: %q", out[:40])
	}
	if !strings.Contains(out, "[Content truncated to ~50 tokens]") {
		t.Errorf("expected truncation notice, got: %q", out)
	}
}

func TestFit_StripsBoilerplateLines(t *testing.T) {
	var b strings.Builder
	b.WriteString("# Article Title\n\n")
	for i := 0; i < 50; i++ {
		b.WriteString("Home\n")
	}
	for i := 0; i < 300; i++ {
		b.WriteString("Real article content describing something in reasonable detail. ")
	}
	out, truncated := Fit(b.String(), 100)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if strings.Contains(out, "Home\nHome") {
		t.Error("expected repeated nav-like 'Home' lines to be stripped")
	}
}

func TestFit_CompressesTables(t *testing.T) {
	var b strings.Builder
	b.WriteString("# Data\n\n")
	b.WriteString("| Name | Value |\n")
	b.WriteString("|------|-------|\n")
	for i := 0; i < 200; i++ {
		b.WriteString("| row | value that takes up plenty of space to push this over budget |\n")
	}
	out, truncated := Fit(b.String(), 60)
	if !truncated {
		t.Fatal("expected truncation")
	}
	rowCount := strings.Count(out, "| row |")
	if rowCount > tableRowsKept {
		t.Errorf("expected at most %d data rows kept, got %d", tableRowsKept, rowCount)
	}
}

func TestFit_DropsLowDensityParagraphs(t *testing.T) {
	var b strings.Builder
	b.WriteString("# Title\n\n")
	b.WriteString(strings.Repeat("*** --- === ___ ~~~ ", 10) + "\n\n")
	for i := 0; i < 300; i++ {
		b.WriteString("This sentence carries real readable article content worth keeping. ")
	}
	out, truncated := Fit(b.String(), 80)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if strings.Contains(out, "*** ---") {
		t.Error("expected the low-density decorative line to be dropped")
	}
}

func TestContextBudget_KnownModel(t *testing.T) {
	budget := ContextBudget("gpt-4o")
	if budget <= 0 || budget >= 128_000 {
		t.Errorf("expected a budget smaller than the full context window, got %d", budget)
	}
}

func TestContextBudget_UnknownModelFallsBack(t *testing.T) {
	budget := ContextBudget("some-unreleased-model")
	if budget <= 0 {
		t.Errorf("expected a positive default budget, got %d", budget)
	}
}

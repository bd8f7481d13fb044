package plan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_Queries(t *testing.T) {
	qs := Default().Queries()
	if len(qs) != 16 {
		t.Fatalf("expected 16 queries, got %d", len(qs))
	}
	if qs[0].Text != "new store opening" || qs[0].Phase != PhaseKeyword {
		t.Errorf("unexpected first query: %+v", qs[0])
	}
	if qs[8].Text != "Chick-fil-A new location" || qs[8].Phase != PhaseFranchise {
		t.Errorf("unexpected first franchise query: %+v", qs[8])
	}
}

func TestLoad_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	content := `
chains:
  - Whataburger
  - " whataburger "
  - Sonic
chain_suffix: opening
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Keywords) != len(Default().Keywords) {
		t.Errorf("expected default keywords to be kept, got %d", len(p.Keywords))
	}
	if len(p.Chains) != 2 {
		t.Fatalf("expected duplicate chain to be dropped, got %v", p.Chains)
	}
	qs := p.Queries()
	if last := qs[len(qs)-1].Text; last != "Sonic opening" {
		t.Errorf("expected 'Sonic opening', got %q", last)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(path, []byte("keywords: [unterminated"), 0644)
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/wowseoweb3/dashboard-indexer/internal/domain/pricing"
)

func TestToolIDCommand(t *testing.T) {
	var out bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"tool-id", "METADATA_ANALYSIS", "metadata_analysis"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), out.String())
	}

	want := "METADATA_ANALYSIS\t" + pricing.MetadataAnalysis.ID().Hex()
	if lines[0] != want {
		t.Errorf("expected %q, got %q", want, lines[0])
	}
	if !strings.HasSuffix(lines[1], "(not in catalogue)") {
		t.Errorf("lowercase name should be flagged, got %q", lines[1])
	}
	if strings.Contains(lines[1], pricing.MetadataAnalysis.ID().Hex()) {
		t.Error("tool ids must be case-sensitive")
	}
}

func TestToolIDCommand_RequiresName(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"tool-id"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an argument error")
	}
}

func TestRunBatchCommand_RequiresIndexerFlag(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run-batch"})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "indexer") {
		t.Fatalf("expected missing flag error, got %v", err)
	}
}

package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "import.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestAnalyzeSmallFileExactCount(t *testing.T) {
	path := writeTempCSV(t, "name,email\nAna,ana@example.com\nLuis,luis@example.com\n\n,,\nMaria,maria@example.com\n")

	analysis, err := NewFileAnalyzerService().Analyze(path)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if got, want := analysis.Headers, []string{"name", "email"}; !equalStrings(got, want) {
		t.Errorf("headers = %v, want %v", got, want)
	}
	// Blank lines are not data rows.
	if analysis.TotalRows != 3 {
		t.Errorf("TotalRows = %d, want 3", analysis.TotalRows)
	}
	if analysis.IsEstimate {
		t.Error("small file should report an exact count")
	}
	if analysis.IsLarge {
		t.Error("three rows is not a large file")
	}
	if len(analysis.SampleRows) != 3 {
		t.Errorf("SampleRows = %d, want 3", len(analysis.SampleRows))
	}
}

func TestAnalyzeSampleIsBounded(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("name,email\n")
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&sb, "Person %d,p%d@example.com\n", i, i)
	}
	path := writeTempCSV(t, sb.String())

	analysis, err := NewFileAnalyzerService().Analyze(path)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(analysis.SampleRows) != sampleRowLimit {
		t.Errorf("SampleRows = %d, want %d", len(analysis.SampleRows), sampleRowLimit)
	}
	if analysis.TotalRows != 50 {
		t.Errorf("TotalRows = %d, want 50", analysis.TotalRows)
	}
}

func TestAnalyzeEmptyFile(t *testing.T) {
	path := writeTempCSV(t, "")
	if _, err := NewFileAnalyzerService().Analyze(path); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("Analyze on empty file = %v, want ErrEmptyFile", err)
	}

	path = writeTempCSV(t, "\n\n")
	if _, err := NewFileAnalyzerService().Analyze(path); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("Analyze on blank header = %v, want ErrEmptyFile", err)
	}
}

func TestAnalyzeLargeFileEstimation(t *testing.T) {
	// Uniform rows well past the exact-count threshold so the analyzer must
	// extrapolate from its 1000-row sample.
	var sb strings.Builder
	sb.WriteString("name,email,document_number\n")
	rows := 0
	for sb.Len() < 2*exactCountThreshold {
		fmt.Fprintf(&sb, "Person Number %07d,person%07d@example.com,10%07d\n", rows, rows, rows)
		rows++
	}
	path := writeTempCSV(t, sb.String())

	analysis, err := NewFileAnalyzerService().Analyze(path)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !analysis.IsEstimate {
		t.Fatal("large file should report an estimate")
	}

	// Uniform rows: the projection lands at correction-factor accuracy.
	deviation := float64(analysis.TotalRows)/float64(rows) - 1
	if deviation < -0.10 || deviation > 0.10 {
		t.Errorf("estimate %d deviates %.1f%% from actual %d, want within 10%%", analysis.TotalRows, deviation*100, rows)
	}
	if !analysis.IsLarge {
		t.Errorf("estimate %d should be flagged large", analysis.TotalRows)
	}
}

func TestAnalyzeRejectsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.Truncate(MaxImportFileSize + 1); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	f.Close()

	if _, err := NewFileAnalyzerService().Analyze(path); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("Analyze = %v, want ErrFileTooLarge", err)
	}
}

func TestExtrapolateRowCountFallback(t *testing.T) {
	if got := extrapolateRowCount(5000, 0, 0); got != 50 {
		t.Errorf("fallback estimate = %d, want 50", got)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

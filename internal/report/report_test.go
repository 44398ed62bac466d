package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/shopscrape/internal/journal"
)

func TestGenerateSummary(t *testing.T) {
	now := time.Now()

	entries := []*journal.Entry{
		{
			Source:    "cellphones",
			Success:   true,
			Duration:  2 * time.Second,
			CreatedAt: now,
		},
		{
			Source:       "thegioididong",
			Error:        "challenged by Cloudflare",
			ErrorType:    "blocked",
			Duration:     4 * time.Second,
			CreatedAt:    now.Add(1 * time.Second),
			DetectedBot:  true,
			DetectionSrc: "Cloudflare",
		},
		{
			Error:     "Invalid URL: not a url",
			ErrorType: "invalid_url",
			CreatedAt: now.Add(2 * time.Second),
		},
		{
			Source:    "cellphones",
			Success:   true,
			Duration:  2 * time.Second,
			CreatedAt: now.Add(-1 * time.Second),
		},
	}

	summary := GenerateSummary(entries)

	if summary.TotalAttempts != 4 {
		t.Errorf("expected 4 attempts, got %d", summary.TotalAttempts)
	}
	if summary.TotalSucceeded != 2 || summary.TotalFailed != 2 {
		t.Errorf("expected 2/2 split, got %d/%d", summary.TotalSucceeded, summary.TotalFailed)
	}
	if summary.SuccessRate != 50 {
		t.Errorf("expected 50%% success rate, got %v", summary.SuccessRate)
	}
	if summary.TotalDetections != 1 {
		t.Errorf("expected 1 detection, got %d", summary.TotalDetections)
	}
	if summary.DetectionsBySrc["Cloudflare"] != 1 {
		t.Errorf("expected 1 CF detection, got %d", summary.DetectionsBySrc["Cloudflare"])
	}
	if got := summary.BySource["cellphones"]; got != (SourceStats{Attempts: 2, Succeeded: 2}) {
		t.Errorf("unexpected cellphones stats %+v", got)
	}
	if got := summary.BySource["unknown"]; got != (SourceStats{Attempts: 1, Failed: 1}) {
		t.Errorf("unexpected unknown-source stats %+v", got)
	}
	if summary.ByErrorType["blocked"] != 1 || summary.ByErrorType["invalid_url"] != 1 {
		t.Errorf("unexpected error types %v", summary.ByErrorType)
	}
	if summary.AvgDuration != 2*time.Second {
		t.Errorf("expected 2s average, got %v", summary.AvgDuration)
	}
	if summary.Duration != 3*time.Second {
		t.Errorf("expected 3s duration, got %v", summary.Duration)
	}
}

func TestGenerateSummary_Empty(t *testing.T) {
	summary := GenerateSummary(nil)
	if summary.TotalAttempts != 0 || summary.SuccessRate != 0 {
		t.Errorf("expected zero summary, got %+v", summary)
	}
	if summary.BySource == nil || summary.ByErrorType == nil {
		t.Errorf("expected initialized maps")
	}
}

func TestWriteJSON(t *testing.T) {
	summary := Summary{
		TotalAttempts: 5,
	}
	var buf bytes.Buffer
	err := WriteJSON(&buf, summary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(buf.String(), `"TotalAttempts": 5`) {
		t.Errorf("expected JSON to contain TotalAttempts: 5")
	}
}

func TestWriteText(t *testing.T) {
	summary := Summary{
		TotalAttempts:  5,
		TotalSucceeded: 4,
		TotalFailed:    1,
		SuccessRate:    80,
		BySource: map[string]SourceStats{
			"cellphones": {Attempts: 5, Succeeded: 4, Failed: 1},
		},
		ByErrorType: map[string]int{"navigation": 1},
	}
	var buf bytes.Buffer
	err := WriteText(&buf, summary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Attempts:      5") {
		t.Errorf("expected text to contain Attempts: 5")
	}
	if !strings.Contains(out, "Succeeded:     4 (80.0%)") {
		t.Errorf("expected text to contain success rate, got:\n%s", out)
	}
	if !strings.Contains(out, "cellphones: 5 attempts, 4 ok, 1 failed") {
		t.Errorf("expected per-source line")
	}
	if !strings.Contains(out, "navigation: 1") {
		t.Errorf("expected text to contain navigation: 1")
	}
}

func TestWriteHTML(t *testing.T) {
	summary := Summary{
		TotalAttempts:   10,
		TotalDetections: 2,
		DetectionsBySrc: map[string]int{
			"DataDome": 2,
		},
	}
	var buf bytes.Buffer
	err := WriteHTML(&buf, summary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "<title>Scrape Journal Report</title>") {
		t.Errorf("expected HTML title")
	}
	if !strings.Contains(out, "DataDome") {
		t.Errorf("expected HTML to contain DataDome")
	}
}

package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/shopscrape/internal/journal"
)

// SourceStats counts attempts against one retailer.
type SourceStats struct {
	Attempts  int
	Succeeded int
	Failed    int
}

// Summary contains aggregated figures about journaled scrape attempts.
type Summary struct {
	TotalAttempts   int
	TotalSucceeded  int
	TotalFailed     int
	SuccessRate     float64 // percentage, 0 when there are no attempts
	TotalDetections int
	BySource        map[string]SourceStats
	ByErrorType     map[string]int
	DetectionsBySrc map[string]int
	AvgDuration     time.Duration
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}

// GenerateSummary aggregates journal entries.
func GenerateSummary(entries []*journal.Entry) Summary {
	s := Summary{
		BySource:        make(map[string]SourceStats),
		ByErrorType:     make(map[string]int),
		DetectionsBySrc: make(map[string]int),
	}

	if len(entries) == 0 {
		return s
	}

	s.StartTime = entries[0].CreatedAt
	s.EndTime = entries[0].CreatedAt

	var total time.Duration
	for _, e := range entries {
		s.TotalAttempts++
		total += e.Duration

		source := e.Source
		if source == "" {
			source = "unknown"
		}
		stats := s.BySource[source]
		stats.Attempts++

		if e.Success {
			s.TotalSucceeded++
			stats.Succeeded++
		} else {
			s.TotalFailed++
			stats.Failed++
			errType := e.ErrorType
			if errType == "" {
				errType = "unknown"
			}
			s.ByErrorType[errType]++
		}
		s.BySource[source] = stats

		if e.DetectedBot {
			s.TotalDetections++
			s.DetectionsBySrc[e.DetectionSrc]++
		}

		if e.CreatedAt.Before(s.StartTime) {
			s.StartTime = e.CreatedAt
		}
		if e.CreatedAt.After(s.EndTime) {
			s.EndTime = e.CreatedAt
		}
	}

	s.SuccessRate = float64(s.TotalSucceeded) * 100 / float64(s.TotalAttempts)
	s.AvgDuration = total / time.Duration(s.TotalAttempts)
	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Scrape Journal Summary
----------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Attempts:      {{.TotalAttempts}}
Succeeded:     {{.TotalSucceeded}} ({{printf "%.1f" .SuccessRate}}%)
Failed:        {{.TotalFailed}}
Avg Duration:  {{.AvgDuration}}

By Source:
{{- range $src, $st := .BySource}}
  {{$src}}: {{$st.Attempts}} attempts, {{$st.Succeeded}} ok, {{$st.Failed}} failed
{{- else}}
  None
{{- end}}

Failures By Type:
{{- range $typ, $count := .ByErrorType}}
  {{$typ}}: {{$count}}
{{- else}}
  None
{{- end}}

Detections: {{.TotalDetections}}
{{- range $src, $count := .DetectionsBySrc}}
  {{$src}}: {{$count}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: parse text template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render text: %w", err)
	}

	return nil
}

// WriteHTML writes a basic HTML report to the provided writer.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Scrape Journal Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Scrape Journal Report</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>

  <div class="stat-card">
    <div>Attempts</div>
    <div class="stat-val">{{.TotalAttempts}}</div>
  </div>
  <div class="stat-card">
    <div>Success Rate</div>
    <div class="stat-val">{{printf "%.1f" .SuccessRate}}%</div>
  </div>
  <div class="stat-card">
    <div>Failed</div>
    <div class="stat-val">{{.TotalFailed}}</div>
  </div>
  <div class="stat-card">
    <div>Detections</div>
    <div class="stat-val" style="color: {{if gt .TotalDetections 0}}red{{else}}green{{end}};">{{.TotalDetections}}</div>
  </div>

  <h3>By Source</h3>
  <table>
    <tr><th>Source</th><th>Attempts</th><th>Succeeded</th><th>Failed</th></tr>
    {{- range $src, $st := .BySource}}
    <tr><td>{{$src}}</td><td>{{$st.Attempts}}</td><td>{{$st.Succeeded}}</td><td>{{$st.Failed}}</td></tr>
    {{- else}}
    <tr><td colspan="4">None</td></tr>
    {{- end}}
  </table>

  <h3>Failures By Type</h3>
  <table>
    <tr><th>Type</th><th>Count</th></tr>
    {{- range $typ, $count := .ByErrorType}}
    <tr><td>{{$typ}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>Detections By Vendor</h3>
  <table>
    <tr><th>Vendor</th><th>Count</th></tr>
    {{- range $src, $count := .DetectionsBySrc}}
    <tr><td>{{$src}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`
	t, err := htmltemplate.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report: parse html template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}

	return nil
}

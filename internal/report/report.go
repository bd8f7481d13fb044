// Package report builds the run summary, the schedule file and the
// per-state lead pages.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/FranksOps/signlead/internal/serp"
)

// SummaryFile is the run summary's file name inside the output directory.
const SummaryFile = "scrape-summary.json"

// StateSummary is one state's line in the run summary.
type StateSummary struct {
	State         string         `json:"state"`
	StateCode     string         `json:"stateCode"`
	LeadCount     int            `json:"leadCount"`
	Hot           int            `json:"hot"`
	Warm          int            `json:"warm"`
	Queries       int            `json:"queries"`
	RawResults    int            `json:"rawResults"`
	UniqueResults int            `json:"uniqueResults"`
	Rejected      map[string]int `json:"rejected,omitempty"`
	PageWritten   bool           `json:"pageWritten"`
	Published     bool           `json:"published"`
	Exhausted     bool           `json:"exhausted,omitempty"`
	Skipped       bool           `json:"skipped,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// Summary describes one completed run. It is built once when the run ends.
type Summary struct {
	StartedAt       time.Time        `json:"startedAt"`
	FinishedAt      time.Time        `json:"finishedAt"`
	Duration        time.Duration    `json:"-"`
	// DurationSeconds mirrors Duration in the JSON file; WriteJSON fills it.
	DurationSeconds float64          `json:"durationSeconds"`
	NextRun         time.Time        `json:"nextRun"`
	Engine          string           `json:"engine"`
	TotalLeads      int              `json:"totalLeads"`
	StatesProcessed int              `json:"statesProcessed"`
	StatesPublished int              `json:"statesPublished"`
	StatesSkipped   int              `json:"statesSkipped"`
	Exhausted       bool             `json:"exhausted"`
	States          []StateSummary   `json:"stateBreakdown"`
	Credentials     *serp.RotorStats `json:"apiKeyStats,omitempty"`
	Events          []Event          `json:"logs"`
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	summary.DurationSeconds = math.Round(summary.Duration.Seconds()*100) / 100
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: encode summary: %w", err)
	}
	return nil
}

// ReadJSON decodes a summary written by WriteJSON.
func ReadJSON(r io.Reader) (Summary, error) {
	var s Summary
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Summary{}, fmt.Errorf("report: decode summary: %w", err)
	}
	s.Duration = time.Duration(s.DurationSeconds * float64(time.Second))
	return s, nil
}

// SaveSummary writes the summary as SummaryFile inside dir.
func SaveSummary(dir string, summary Summary) (string, error) {
	path := filepath.Join(dir, SummaryFile)
	err := writeFile(path, func(w io.Writer) error { return WriteJSON(w, summary) })
	return path, err
}

// LoadSummary reads SummaryFile from dir.
func LoadSummary(dir string) (Summary, error) {
	f, err := os.Open(filepath.Join(dir, SummaryFile))
	if err != nil {
		return Summary{}, fmt.Errorf("report: %w", err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Sign Lead Run Summary
---------------------
Time:        {{.StartedAt.Format "2006-01-02 15:04:05"}} - {{.FinishedAt.Format "2006-01-02 15:04:05"}}
Duration:    {{.Duration}}
Engine:      {{.Engine}}
Total Leads: {{.TotalLeads}}
States:      {{.StatesProcessed}} processed, {{.StatesPublished}} published, {{.StatesSkipped}} skipped
{{- if .Exhausted}}
Search credentials were exhausted during the run.
{{- end}}
Next Run:    {{.NextRun.Format "2006-01-02 15:04:05"}}
{{- with .Credentials}}

Credentials: {{.ActiveKeys}} active, {{.ExhaustedKeys}} exhausted, {{.TotalCalls}} calls
{{- end}}

States:
{{- range .States}}
  {{printf "%-16s" .State}} {{if .Skipped}}skipped{{else}}{{.LeadCount}} leads ({{.Hot}} hot, {{.Warm}} warm){{if .Published}} published{{else if .PageWritten}} written{{end}}{{end}}{{with .Error}} error: {{.}}{{end}}
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

// WriteFile replaces path with data.
func WriteFile(path string, data []byte) error {
	return writeFile(path, func(w io.Writer) error {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("report: write %s: %w", path, err)
		}
		return nil
	})
}

// writeFile renders into a temp file next to path and renames it into
// place, so readers never see a half-written file.
func writeFile(path string, render func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := render(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("report: close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("report: chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("report: rename %s: %w", path, err)
	}
	return nil
}

package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/minios-linux/wootrans/langmeta"
)

// Report is the JSON summary written with --report.
type Report struct {
	RunID      string           `json:"run_id"`
	Input      string           `json:"input"`
	Model      string           `json:"model"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Targets    []string         `json:"targets"`
	Overrides  []string         `json:"overrides,omitempty"`
	Columns    []string         `json:"columns"`
	Unchanged  map[string]int   `json:"unchanged,omitempty"`
	Languages  []LanguageResult `json:"languages"`
	Totals     Totals           `json:"totals"`
}

func newReport(p *Pipeline, v Values, tr TranslateResult) Report {
	rep := Report{
		RunID:      p.runID,
		Input:      v.InputPath,
		Model:      p.svc.Model(),
		StartedAt:  p.started.UTC(),
		FinishedAt: p.cfg.now().UTC(),
		Targets:    langmeta.Strings(tr.Estimate.Prepared.Targets),
		Overrides:  langmeta.Strings(v.Overrides),
		Columns:    tr.Estimate.Columns.Spec.Columns(),
		Languages:  tr.Results,
		Totals:     tr.Totals,
	}
	if len(tr.Estimate.Unchanged) > 0 {
		rep.Unchanged = make(map[string]int, len(tr.Estimate.Unchanged))
		for l, n := range tr.Estimate.Unchanged {
			rep.Unchanged[string(l)] = n
		}
	}
	return rep
}

func writeReport(path string, rep Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// Package pipeline defines the translation steps of wootrans on top of
// the wizard state machine: load the export, choose the columns, estimate
// each language, confirm, translate, and summarize.
//
// Every step stores a typed result that the next step reads back through
// the wizard, so resubmitting a step always starts from the data of the
// step before it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/minios-linux/wootrans/columns"
	"github.com/minios-linux/wootrans/csvfile"
	"github.com/minios-linux/wootrans/langmeta"
	"github.com/minios-linux/wootrans/lockfile"
	"github.com/minios-linux/wootrans/merge"
	"github.com/minios-linux/wootrans/reconcile"
	"github.com/minios-linux/wootrans/toon"
	"github.com/minios-linux/wootrans/translate"
	"github.com/minios-linux/wootrans/wizard"
)

var (
	// ErrMissingPayload is returned when a step runs without the result of
	// the step before it.
	ErrMissingPayload = errors.New("missing step payload")
	// ErrNotConfirmed is returned by the confirm step until the estimate
	// has been accepted.
	ErrNotConfirmed = errors.New("translation not confirmed")
	// ErrMissingConfiguration is returned when an input, a target
	// language, the model or the API key is missing.
	ErrMissingConfiguration = errors.New("missing configuration")
	// ErrInvalidColumn is returned for a selected meta column that cannot
	// be translated.
	ErrInvalidColumn = errors.New("invalid column selection")
)

// Step names, in order.
const (
	StepLoad      = "load"
	StepColumns   = "columns"
	StepLanguages = "languages"
	StepConfirm   = "confirm"
	StepTranslate = "translate"
	StepResults   = "results"
)

// Step indices.
const (
	IndexLoad = iota
	IndexColumns
	IndexLanguages
	IndexConfirm
	IndexTranslate
	IndexResults
)

// Values are the user choices the steps read.
type Values struct {
	InputPath string
	// SelectedMeta are the meta columns to translate. Nil selects the SEO
	// columns present in the export.
	SelectedMeta []string
	Targets      []langmeta.Code
	Overrides    []langmeta.Code
	Confirmed    bool
}

// Clone returns a copy of v that shares no slices with it.
func (v Values) Clone() Values {
	v.SelectedMeta = slices.Clone(v.SelectedMeta)
	v.Targets = slices.Clone(v.Targets)
	v.Overrides = slices.Clone(v.Overrides)
	return v
}

// ---------------------------------------------------------------------------
// Step results
// ---------------------------------------------------------------------------

// LoadResult is stored by the load step.
type LoadResult struct {
	Summary        *Summary
	DefaultMeta    []string
	SelectableMeta []string
}

// ColumnsResult is stored by the columns step.
type ColumnsResult struct {
	Summary *Summary
	Spec    reconcile.FlattenSpec
}

// EstimateResult is stored by the languages step.
type EstimateResult struct {
	Columns   ColumnsResult
	Prepared  reconcile.Prepared
	Estimates map[langmeta.Code]translate.Estimate
	// Unchanged counts rows skipped per language because the lock file
	// already holds their checksum.
	Unchanged map[langmeta.Code]int
}

// Languages returns the targets that have rows to translate.
func (e EstimateResult) Languages() []langmeta.Code {
	var out []langmeta.Code
	for _, l := range e.Prepared.Targets {
		if len(e.Prepared.Rows[l]) > 0 {
			out = append(out, l)
		}
	}
	return out
}

// ProjectedTotal sums the projected price of every language.
func (e EstimateResult) ProjectedTotal() float64 {
	var total float64
	for _, est := range e.Estimates {
		total += est.ProjectedTotal
	}
	return total
}

// ConfirmResult is stored by the confirm step.
type ConfirmResult struct {
	Estimate EstimateResult
}

// Totals aggregate every language of a run.
type Totals struct {
	Languages int             `json:"languages"`
	Rows      int             `json:"rows"`
	Usage     translate.Usage `json:"usage"`
	Cost      float64         `json:"cost"`
	Files     []string        `json:"files"`
}

// TranslateResult is stored by the translate step.
type TranslateResult struct {
	Estimate EstimateResult
	Results  []LanguageResult
	Totals   Totals
}

// ResultsResult is stored by the results step.
type ResultsResult struct {
	RunID      string
	Translate  TranslateResult
	ReportPath string
}

// previous returns the payload stored by the step before sc.Index.
func previous[T any](sc wizard.Context) (T, error) {
	v, ok := sc.Previous.Data.(T)
	if !ok || sc.Previous.Status != wizard.Success {
		var zero T
		return zero, fmt.Errorf("%w: step %d expects %T", ErrMissingPayload, sc.Index, zero)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config holds the collaborators and resolved settings of a run.
type Config struct {
	// Generator reaches the model. Nil means no API key was configured.
	Generator translate.Generator
	// Translate configures prompts, models, batching and callbacks.
	Translate translate.Options
	// FixedColumns replaces the always-translated columns when non-nil.
	FixedColumns []string
	// OutputDir receives the translated files.
	OutputDir string
	// OutputFormat is "csv" or "xlsx"; empty keeps the input format.
	OutputFormat string
	// Concurrency is the number of languages translated at once.
	Concurrency int
	// Lock, when set, skips rows whose checksum is unchanged and records
	// the checksums of translated rows.
	Lock *lockfile.LockFile
	// ReportPath, when set, receives a JSON run report.
	ReportPath string
	Logger     *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func (c *Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Pipeline is one translation run.
type Pipeline struct {
	cfg     Config
	svc     *translate.Service
	log     *zap.Logger
	runID   string
	started time.Time
	w       *wizard.Wizard[Values]

	// completed holds the languages already written by a translate step
	// that failed on another language. A new estimate clears it.
	completed map[langmeta.Code]LanguageResult
}

// New creates a pipeline positioned on the load step.
func New(cfg Config, values Values) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	p := &Pipeline{runID: uuid.NewString()}
	p.log = cfg.Logger.With(zap.String("run_id", p.runID))
	cfg.Translate.Logger = p.log
	p.cfg = cfg
	if cfg.Generator != nil {
		p.svc = translate.NewService(cfg.Generator, cfg.Translate)
	}
	p.w = wizard.New([]wizard.Step[Values]{
		{Name: StepLoad, Handle: p.load},
		{Name: StepColumns, Handle: p.columns},
		{Name: StepLanguages, Handle: p.languages},
		{Name: StepConfirm, Handle: p.confirm},
		{Name: StepTranslate, Handle: p.translate},
		{Name: StepResults, Handle: p.results},
	}, values)
	p.w.Clone = Values.Clone
	return p
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.cfg.Translate.OnLog != nil {
		p.cfg.Translate.OnLog(format, args...)
	}
}

func (p *Pipeline) errorf(format string, args ...any) {
	if p.cfg.Translate.OnError != nil {
		p.cfg.Translate.OnError(format, args...)
	} else {
		p.logf(format, args...)
	}
}

// Wizard returns the underlying state machine.
func (p *Pipeline) Wizard() *wizard.Wizard[Values] {
	return p.w
}

// RunID identifies the run in logs and reports.
func (p *Pipeline) RunID() string {
	return p.runID
}

// RunUntil submits steps from the focused one through step last.
func (p *Pipeline) RunUntil(ctx context.Context, last int) error {
	for {
		idx := p.w.Focused()
		if idx > last {
			return nil
		}
		if err := p.w.Submit(ctx); err != nil {
			return err
		}
		if idx == p.w.Len()-1 {
			return nil
		}
	}
}

// Result returns the typed payload stored by step i.
func Result[T any](p *Pipeline, i int) (T, bool) {
	v, ok := p.w.State(i).Data.(T)
	return v, ok
}

// ---------------------------------------------------------------------------
// Step handlers
// ---------------------------------------------------------------------------

func (p *Pipeline) load(_ context.Context, v Values, _ wizard.Context) (any, error) {
	if v.InputPath == "" {
		return nil, fmt.Errorf("%w: no input file", ErrMissingConfiguration)
	}
	p.started = p.cfg.now()

	sum, err := Load(v.InputPath)
	if err != nil {
		return nil, err
	}
	res := LoadResult{
		Summary:        sum,
		DefaultMeta:    sum.DefaultMeta(),
		SelectableMeta: sum.SelectableMeta(),
	}
	if v.SelectedMeta == nil {
		p.w.SetValue(func(v *Values) {
			if v.SelectedMeta == nil {
				v.SelectedMeta = res.DefaultMeta
			}
		})
	}

	p.log.Info("loaded export",
		zap.String("path", v.InputPath),
		zap.Int("rows", len(sum.Table.Rows)),
		zap.Int("columns", len(sum.Table.Header)),
		zap.Int("source_rows", len(sum.Partition.Source)),
		zap.Int("existing_translations", len(sum.Partition.Existing)))
	p.logf("Loaded %d products (%d existing translations)", len(sum.Partition.Source), len(sum.Partition.Existing))
	return res, nil
}

func (p *Pipeline) columns(_ context.Context, v Values, sc wizard.Context) (any, error) {
	prev, err := previous[LoadResult](sc)
	if err != nil {
		return nil, err
	}
	sum := prev.Summary

	meta := v.SelectedMeta
	if meta == nil {
		meta = prev.DefaultMeta
	}
	for _, m := range meta {
		switch {
		case !columns.IsMeta(m):
			return nil, fmt.Errorf("%w: %q is not a meta column", ErrInvalidColumn, m)
		case columns.IsWPMLInternal(m):
			return nil, fmt.Errorf("%w: %q is a WPML import column", ErrInvalidColumn, m)
		case !sum.HasColumn(m):
			return nil, fmt.Errorf("%w: %q is not in the export", ErrInvalidColumn, m)
		}
	}

	spec := reconcile.NewFlattenSpec(sum.Header(), p.cfg.FixedColumns, meta)
	p.log.Debug("columns selected", zap.Strings("columns", spec.Columns()))
	return ColumnsResult{Summary: sum, Spec: spec}, nil
}

func (p *Pipeline) languages(ctx context.Context, v Values, sc wizard.Context) (any, error) {
	prev, err := previous[ColumnsResult](sc)
	if err != nil {
		return nil, err
	}
	if len(v.Targets) == 0 {
		return nil, fmt.Errorf("%w: no target languages", ErrMissingConfiguration)
	}
	if p.svc == nil {
		return nil, fmt.Errorf("%w: no API key", ErrMissingConfiguration)
	}

	p.completed = nil
	prepared := reconcile.Prepare(prev.Summary.Partition, prev.Spec, v.Targets, v.Overrides)
	unchanged := p.filterUnchanged(prev, &prepared, v.Overrides)

	res := EstimateResult{
		Columns:   prev,
		Prepared:  prepared,
		Estimates: make(map[langmeta.Code]translate.Estimate, len(v.Targets)),
		Unchanged: unchanged,
	}
	cols := prev.Spec.Columns()
	for _, lang := range prepared.Targets {
		est, err := p.svc.Estimate(ctx, prepared.Rows[lang], cols, lang)
		if err != nil {
			return nil, fmt.Errorf("estimating %s: %w", lang, err)
		}
		res.Estimates[lang] = est
	}
	p.log.Info("estimated run",
		zap.Strings("targets", langmeta.Strings(prepared.Targets)),
		zap.Int("rows", prepared.Total()),
		zap.Float64("projected_cost", res.ProjectedTotal()))
	return res, nil
}

// filterUnchanged drops rows whose flattened content matches the lock
// file. Overridden languages are never filtered.
func (p *Pipeline) filterUnchanged(cr ColumnsResult, prepared *reconcile.Prepared, overrides []langmeta.Code) map[langmeta.Code]int {
	if p.cfg.Lock == nil {
		return nil
	}
	keys := rowKeys(cr.Summary.Partition.Source)
	cols := cr.Spec.Columns()
	out := make(map[langmeta.Code]int)
	for _, lang := range prepared.Targets {
		if langmeta.Contains(overrides, lang) {
			continue
		}
		rows := prepared.Rows[lang]
		changed := p.cfg.Lock.FilterChanged(string(lang), lockEntries(keys, cols, rows))
		var keep []toon.Row
		for _, r := range rows {
			if _, ok := changed[keys[r["ID"]]]; ok {
				keep = append(keep, r)
			} else {
				out[lang]++
			}
		}
		prepared.Rows[lang] = keep
	}
	return out
}

// lockEntries maps the lock key of each row to its checksummed content.
func lockEntries(keys map[string]string, cols []string, rows []toon.Row) map[string]string {
	entries := make(map[string]string, len(rows))
	for _, r := range rows {
		entries[keys[r["ID"]]] = lockfile.RowContent(cols, r)
	}
	return entries
}

func rowKeys(source []reconcile.Row) map[string]string {
	out := make(map[string]string, len(source))
	for _, r := range source {
		out[r["ID"]] = lockfile.RowKey(reconcile.GroupKey(r), r["ID"])
	}
	return out
}

func (p *Pipeline) confirm(_ context.Context, v Values, sc wizard.Context) (any, error) {
	prev, err := previous[EstimateResult](sc)
	if err != nil {
		return nil, err
	}
	if !v.Confirmed {
		return nil, ErrNotConfirmed
	}
	return ConfirmResult{Estimate: prev}, nil
}

func (p *Pipeline) translate(ctx context.Context, v Values, sc wizard.Context) (any, error) {
	prev, err := previous[ConfirmResult](sc)
	if err != nil {
		return nil, err
	}
	est := prev.Estimate

	jobs := make([]Job, 0, len(est.Prepared.Targets))
	for _, lang := range est.Prepared.Targets {
		if _, ok := p.completed[lang]; ok {
			p.log.Info("language already written", zap.String("lang", string(lang)))
			continue
		}
		jobs = append(jobs, Job{Language: lang, Rows: est.Prepared.Rows[lang]})
	}

	runner := Runner{Concurrency: p.cfg.Concurrency}
	done, runErr := runner.Run(ctx, jobs, func(ctx context.Context, job Job) (LanguageResult, error) {
		return p.translateLanguage(ctx, est, v.InputPath, job)
	})
	if p.completed == nil {
		p.completed = make(map[langmeta.Code]LanguageResult, len(est.Prepared.Targets))
	}
	for _, r := range done {
		p.completed[r.Language] = r
	}

	if p.cfg.Lock != nil {
		if err := p.cfg.Lock.Save(); err != nil {
			p.errorf("Failed to save lock file: %v", err)
		}
	}
	if runErr != nil {
		p.log.Error("translation failed",
			zap.Int("completed_languages", len(p.completed)),
			zap.Error(runErr))
		return nil, runErr
	}

	results := make([]LanguageResult, 0, len(est.Prepared.Targets))
	for _, lang := range est.Prepared.Targets {
		results = append(results, p.completed[lang])
	}
	p.completed = nil

	out := TranslateResult{Estimate: est, Results: results}
	for _, r := range results {
		if r.Skipped {
			continue
		}
		out.Totals.Languages++
		out.Totals.Rows += r.Written
		out.Totals.Usage.Add(r.Usage)
		out.Totals.Cost += r.Cost
		if r.Path != "" {
			out.Totals.Files = append(out.Totals.Files, r.Path)
		}
	}
	return out, nil
}

// translateLanguage runs one language: attribute names, row batches,
// reassembly, output file and lock file update.
func (p *Pipeline) translateLanguage(ctx context.Context, est EstimateResult, input string, job Job) (LanguageResult, error) {
	res := LanguageResult{Language: job.Language, Rows: len(job.Rows)}
	log := p.log.With(zap.String("lang", string(job.Language)))
	if len(job.Rows) == 0 {
		res.Skipped = true
		log.Info("nothing to translate")
		p.logf("%s: nothing to translate", langmeta.Name(job.Language))
		return res, nil
	}

	names := est.Prepared.Names.Clone()
	translatedNames, nameUsage, err := p.svc.TranslateAttributeNames(ctx, names.Names(), job.Language)
	if err != nil {
		return res, err
	}
	names.Apply(translatedNames)
	res.AttributeNames = len(translatedNames)
	res.Usage.Add(nameUsage)
	res.Cost += p.svc.TranslateAttributeNamesCost(nameUsage)

	cols := est.Columns.Spec.Columns()
	tr, err := p.svc.TranslateRows(ctx, job.Rows, cols, job.Language, nil)
	res.Usage.Add(tr.Usage)
	res.Cost += tr.Cost
	if err != nil {
		return res, err
	}

	sum := est.Columns.Summary
	merged := merge.Reassemble(sum.Partition.Source, tr.Rows, names.Names(), job.Language)
	res.Unmatched = merged.Unmatched
	res.Written = len(merged.Rows)
	if len(merged.Unmatched) > 0 {
		log.Warn("translated rows without source", zap.Strings("ids", merged.Unmatched))
		p.errorf("%s: %d translated rows have no source row", langmeta.Name(job.Language), len(merged.Unmatched))
	}

	path := csvfile.OutputPath(p.cfg.OutputDir, input, job.Language, p.cfg.now(), p.cfg.OutputFormat)
	if err := csvfile.WriteFile(path, merge.OutputHeader(sum.Header()), merged.Rows); err != nil {
		return res, err
	}
	res.Path = path

	if p.cfg.Lock != nil {
		p.cfg.Lock.UpdateBatch(string(job.Language), lockEntries(rowKeys(sum.Partition.Source), cols, job.Rows))
	}

	log.Info("language done",
		zap.Int("rows", res.Written),
		zap.Int("input_tokens", res.Usage.InputTokens),
		zap.Int("output_tokens", res.Usage.OutputTokens),
		zap.Float64("cost", res.Cost),
		zap.String("path", path))
	p.logf("%s: wrote %d rows to %s", langmeta.Name(job.Language), res.Written, filepath.Base(path))
	return res, nil
}

func (p *Pipeline) results(_ context.Context, v Values, sc wizard.Context) (any, error) {
	prev, err := previous[TranslateResult](sc)
	if err != nil {
		return nil, err
	}
	res := ResultsResult{RunID: p.runID, Translate: prev}
	if p.cfg.ReportPath != "" {
		rep := newReport(p, v, prev)
		if err := writeReport(p.cfg.ReportPath, rep); err != nil {
			return nil, err
		}
		res.ReportPath = p.cfg.ReportPath
	}
	p.log.Info("run finished",
		zap.Int("languages", prev.Totals.Languages),
		zap.Int("rows", prev.Totals.Rows),
		zap.Float64("cost", prev.Totals.Cost),
		zap.String("files", strings.Join(prev.Totals.Files, ",")))
	return res, nil
}

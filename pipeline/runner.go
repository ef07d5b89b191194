package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/minios-linux/wootrans/langmeta"
	"github.com/minios-linux/wootrans/toon"
	"github.com/minios-linux/wootrans/translate"
)

// Job is the translation of one target language.
type Job struct {
	Language langmeta.Code
	Rows     []toon.Row
}

// LanguageResult is the outcome of one Job.
type LanguageResult struct {
	Language       langmeta.Code   `json:"language"`
	Rows           int             `json:"rows"`
	Written        int             `json:"written"`
	AttributeNames int             `json:"attribute_names"`
	Unmatched      []string        `json:"unmatched,omitempty"`
	Path           string          `json:"path,omitempty"`
	Usage          translate.Usage `json:"usage"`
	Cost           float64         `json:"cost"`
	Skipped        bool            `json:"skipped,omitempty"`
}

// JobFunc runs one job.
type JobFunc func(ctx context.Context, job Job) (LanguageResult, error)

// Runner executes per-language jobs.
type Runner struct {
	// Concurrency is the number of jobs run at once. Values below 2 run
	// the jobs one after another.
	Concurrency int
}

// Run executes jobs and returns the results of the jobs that completed,
// in job order. The first failure stops the remaining jobs; jobs already
// running are cancelled through ctx.
func (r Runner) Run(ctx context.Context, jobs []Job, fn JobFunc) ([]LanguageResult, error) {
	results := make([]LanguageResult, len(jobs))
	done := make([]bool, len(jobs))

	var err error
	if r.Concurrency < 2 {
		err = runSequential(ctx, jobs, fn, results, done)
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.Concurrency)
		for i, job := range jobs {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := fn(gctx, job)
				if err != nil {
					return fmt.Errorf("%s: %w", job.Language, err)
				}
				results[i] = res
				done[i] = true
				return nil
			})
		}
		err = g.Wait()
	}

	completed := make([]LanguageResult, 0, len(jobs))
	for i, ok := range done {
		if ok {
			completed = append(completed, results[i])
		}
	}
	return completed, err
}

func runSequential(ctx context.Context, jobs []Job, fn JobFunc, results []LanguageResult, done []bool) error {
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := fn(ctx, job)
		if err != nil {
			return fmt.Errorf("%s: %w", job.Language, err)
		}
		results[i] = res
		done[i] = true
	}
	return nil
}

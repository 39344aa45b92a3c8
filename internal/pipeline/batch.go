package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/docscrawl/internal/model"
)

// BatchProcessor crawls several sites, each through its own pipeline.
type BatchProcessor struct {
	// pipelineFactory creates the pipeline of one start URL, so that
	// per-site configuration never leaks between sites.
	pipelineFactory func(startURL string) (*Pipeline, error)

	// concurrency is the maximum number of sites crawled at once.
	concurrency int

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// The default of 1 crawls the sites one after another.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func(startURL string) (*Pipeline, error), opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     1,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch crawls every start URL and returns one report per URL in
// input order. A site whose pipeline fails still gets its report, carrying
// the error stop reason; the first such error is returned after all sites
// finished. Sites not yet started when ctx is cancelled are left nil.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, startURLs []string) ([]*model.CrawlReport, error) {
	bp.logger.Info("starting batch",
		"sites", len(startURLs),
		"concurrency", bp.concurrency,
	)
	started := time.Now()

	results := make([]*model.CrawlReport, len(startURLs))

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, startURL := range startURLs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			report := model.NewCrawlReport(startURL)
			results[i] = report

			p, err := bp.pipelineFactory(startURL)
			if err != nil {
				report.StopReason = model.StopErrorReason(err)
				report.FinishedAt = time.Now()
				return err
			}

			if err := p.Execute(ctx, report); err != nil {
				bp.logger.Warn("site failed",
					"start_url", startURL,
					"error", err,
				)
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch complete",
		"sites", len(startURLs),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return results, err
}

package server

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/comigor/mailagent/internal/assistant"
	"github.com/comigor/mailagent/internal/logger"
	"github.com/comigor/mailagent/internal/mail"
	"github.com/comigor/mailagent/internal/store"
)

// Processor analyses emails in the background. Each batch runs at most
// workers emails at once.
type Processor struct {
	store     *store.Store
	assistant *assistant.Assistant
	workers   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewProcessor(st *store.Store, a *assistant.Assistant, workers int) *Processor {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{store: st, assistant: a, workers: workers, ctx: ctx, cancel: cancel}
}

// Enqueue schedules ids for processing and returns immediately.
func (p *Processor) Enqueue(ids ...mail.EmailID) {
	if len(ids) == 0 {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		g, ctx := errgroup.WithContext(p.ctx)
		g.SetLimit(p.workers)
		for _, id := range ids {
			g.Go(func() error {
				p.Process(ctx, id)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// Process categorizes, extracts action items from and summarizes one
// email. A failure is recorded on the email rather than returned.
func (p *Processor) Process(ctx context.Context, id mail.EmailID) {
	log := logger.L.With("email_id", id)

	e, err := p.store.GetEmail(ctx, id)
	if err != nil {
		log.Warn("email vanished before processing", "error", err)
		return
	}

	category := p.assistant.Categorize(ctx, e.Body,
		p.store.Prompt(ctx, mail.PromptCategorization, "Categorize this email."))
	items := p.assistant.ExtractActionItems(ctx, e.Body,
		p.store.Prompt(ctx, mail.PromptActionItem, "Extract tasks from this email."))
	summary, err := p.assistant.Summarize(ctx, e.Body)
	if err != nil {
		log.Error("email processing failed", "error", err)
		if err := p.store.MarkFailed(ctx, id, err.Error()); err != nil {
			log.Error("failed to record processing error", "error", err)
		}
		return
	}

	if err := p.store.SaveAnalysis(ctx, id, store.Analysis{
		Category:    category,
		ActionItems: items,
		Summary:     summary,
	}); err != nil {
		log.Error("failed to save analysis", "error", err)
		return
	}
	log.Info("email processed", "category", category, "action_items", len(items))
}

// Wait blocks until every scheduled batch has finished.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Close stops pending work and waits for running batches.
func (p *Processor) Close() {
	p.cancel()
	p.wg.Wait()
}

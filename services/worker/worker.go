package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"sip/scraperworker/config"
	"sip/scraperworker/internal/extract"
	"sip/scraperworker/internal/ingest"
	"sip/scraperworker/internal/metrics"
	"sip/scraperworker/internal/scrape"
	"sip/scraperworker/logger"
	scraperr "sip/scraperworker/pkg/errors"
	"sip/scraperworker/services/publisher"
	"sip/scraperworker/services/queue"
)

const (
	dequeueTimeout  = 2 * time.Second
	promoteInterval = time.Second
)

// Scraper is the slice of the scrape service the pool dispatches into.
type Scraper interface {
	Search(ctx context.Context, req scrape.SearchRequest) (*scrape.SearchResult, error)
	Product(ctx context.Context, req scrape.ProductRequest) (*extract.RawProduct, error)
	Seller(ctx context.Context, req scrape.SellerRequest) error
}

// Pool runs one goroutine group per job lane, each consuming its own queue.
// Listing traversals are cheap per job but long, detail scrapes are short
// but browser-heavy, so the lanes scale independently.
type Pool struct {
	cfg     config.Config
	queue   queue.Queue
	scraper Scraper
	engine  *ingest.Engine
	events  publisher.Publisher
	log     *logger.Logger

	wg sync.WaitGroup
}

// NewPool wires a worker pool. The events publisher may be nil.
func NewPool(cfg config.Config, q queue.Queue, scraper Scraper, engine *ingest.Engine, events publisher.Publisher) *Pool {
	return &Pool{
		cfg:     cfg,
		queue:   q,
		scraper: scraper,
		engine:  engine,
		events:  events,
		log:     logger.ForComponent("worker"),
	}
}

// Start launches the lane consumers and the retry promoter. It returns
// immediately; cancel ctx and Wait to stop.
func (p *Pool) Start(ctx context.Context) {
	lanes := []struct {
		jobType string
		count   int
	}{
		{queue.TypeSearch, p.cfg.SearchConcurrency},
		{queue.TypeProduct, p.cfg.ProductConcurrency},
		{queue.TypeSeller, p.cfg.SellerConcurrency},
	}

	for _, lane := range lanes {
		for i := 0; i < lane.count; i++ {
			p.wg.Add(1)
			go p.consume(ctx, lane.jobType)
		}
		p.log.Info().Str("lane", lane.jobType).Int("workers", lane.count).Msg("lane started")
	}

	p.wg.Add(1)
	go p.promote(ctx)
}

// Wait blocks until every consumer has drained after ctx cancellation.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) consume(ctx context.Context, jobType string) {
	defer p.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := p.queue.Dequeue(ctx, jobType, dequeueTimeout)
		if errors.Is(err, queue.ErrNoJob) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.WithError(err).Error().Str("lane", jobType).Msg("dequeue failed")
			time.Sleep(time.Second)
			continue
		}

		p.process(ctx, job)
	}
}

// promote moves due retries back onto their lanes.
func (p *Pool) promote(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(promoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			moved, err := p.queue.PromoteDelayed(ctx)
			if err != nil && ctx.Err() == nil {
				p.log.WithError(err).Warn().Msg("retry promotion failed")
			}
			if moved > 0 {
				p.log.Debug().Int("moved", moved).Msg("promoted delayed jobs")
			}
		}
	}
}

func (p *Pool) process(ctx context.Context, job *queue.ScrapeJob) {
	// Jobs pushed by the external enqueuer carry no attempt budget of
	// their own.
	if job.MaxAttempts < 1 {
		job.MaxAttempts = p.cfg.MaxAttempts
	}

	start := time.Now()
	log := logger.ForJob(job.Type, job.ID)
	log.Info().Int("attempt", job.Attempts+1).Msg("job started")

	records, err := p.dispatch(ctx, job)
	duration := time.Since(start)
	metrics.JobDuration.WithLabelValues(job.Type).Observe(duration.Seconds())

	if err == nil {
		metrics.JobsTotal.WithLabelValues(job.Type, "success").Inc()
		log.Info().Int("records", records).Dur("duration", duration).Msg("job finished")
		p.publish(publisher.Event{
			JobID:    job.ID,
			JobType:  job.Type,
			Status:   publisher.StatusCompleted,
			Records:  records,
			Duration: duration,
		})
		return
	}

	metrics.JobsTotal.WithLabelValues(job.Type, "failure").Inc()
	log.WithError(err).Warn().Dur("duration", duration).Msg("job failed")

	if p.shouldRetry(job, err) {
		delay := p.retryDelay(job, err)
		if rerr := p.queue.Retry(ctx, job, delay); rerr != nil {
			log.WithError(rerr).Error().Msg("retry scheduling failed")
		} else {
			log.Info().Dur("delay", delay).Int("attempt", job.Attempts).Msg("job rescheduled")
		}
		p.publish(publisher.Event{
			JobID:    job.ID,
			JobType:  job.Type,
			Status:   publisher.StatusFailed,
			Records:  records,
			Error:    err.Error(),
			Duration: duration,
		})
		return
	}

	if derr := p.queue.DeadLetter(ctx, job, err.Error()); derr != nil {
		log.WithError(derr).Error().Msg("dead-letter failed")
	}
	p.publish(publisher.Event{
		JobID:    job.ID,
		JobType:  job.Type,
		Status:   publisher.StatusDead,
		Records:  records,
		Error:    err.Error(),
		Duration: duration,
	})
}

// dispatch runs the job and returns how many records landed in the store.
// A traversal that aborts mid-way still ingests what it collected before
// reporting its error.
func (p *Pool) dispatch(ctx context.Context, job *queue.ScrapeJob) (int, error) {
	switch job.Type {
	case queue.TypeSearch:
		var req scrape.SearchRequest
		if err := json.Unmarshal(job.Payload, &req); err != nil {
			return 0, scraperr.NewValidation(job.Type, "malformed search payload")
		}
		result, scrapeErr := p.scraper.Search(ctx, req)
		records := 0
		if result != nil && len(result.Cards) > 0 {
			ingested, err := p.engine.Cards(ctx, result.Cards)
			records = ingested.Processed
			if err != nil && scrapeErr == nil {
				scrapeErr = err
			}
		}
		// A traversal cut short by pager trouble is a partial success, not
		// a failed job, as long as it delivered cards.
		if records > 0 && isPaginationAbort(scrapeErr) {
			p.log.Warn().
				Str("job_id", job.ID).
				Int("records", records).
				Msg("traversal aborted early, completing with partial results")
			scrapeErr = nil
		}
		return records, scrapeErr

	case queue.TypeProduct:
		var req scrape.ProductRequest
		if err := json.Unmarshal(job.Payload, &req); err != nil {
			return 0, scraperr.NewValidation(job.Type, "malformed product payload")
		}
		product, err := p.scraper.Product(ctx, req)
		if err != nil {
			return 0, err
		}
		ingested, err := p.engine.Product(ctx, *product)
		return ingested.Processed, err

	case queue.TypeSeller:
		var req scrape.SellerRequest
		if err := json.Unmarshal(job.Payload, &req); err != nil {
			return 0, scraperr.NewValidation(job.Type, "malformed seller payload")
		}
		return 0, p.scraper.Seller(ctx, req)

	default:
		return 0, scraperr.NewValidation(job.Type, "unknown job type")
	}
}

func isPaginationAbort(err error) bool {
	var serr *scraperr.ScrapeError
	return errors.As(err, &serr) && serr.Type == scraperr.ErrorTypePagination
}

func (p *Pool) shouldRetry(job *queue.ScrapeJob, err error) bool {
	// The attempt that just failed counts against the budget.
	if job.Attempts+1 >= job.MaxAttempts {
		return false
	}
	var serr *scraperr.ScrapeError
	if errors.As(err, &serr) {
		return serr.IsRetryable()
	}
	return true
}

// retryDelay backs off exponentially, except blocked jobs which wait out the
// whole block window.
func (p *Pool) retryDelay(job *queue.ScrapeJob, err error) time.Duration {
	var serr *scraperr.ScrapeError
	if errors.As(err, &serr) && serr.Type == scraperr.ErrorTypeBlocked {
		return time.Duration(p.cfg.BlockSeconds) * time.Second
	}
	return queue.BackoffDelay(p.cfg.BackoffBase, job.Attempts+1)
}

func (p *Pool) publish(event publisher.Event) {
	if p.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.events.Publish(ctx, event); err != nil {
		p.log.WithError(err).Warn().Str("job_id", event.JobID).Msg("event publish failed")
	}
}

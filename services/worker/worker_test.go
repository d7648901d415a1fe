package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sip/scraperworker/config"
	"sip/scraperworker/internal/extract"
	"sip/scraperworker/internal/ingest"
	"sip/scraperworker/internal/scrape"
	scraperr "sip/scraperworker/pkg/errors"
	"sip/scraperworker/services/publisher"
	"sip/scraperworker/services/queue"
	"sip/scraperworker/services/store"
)

type fakeScraper struct {
	searchResult *scrape.SearchResult
	searchErr    error
	productErr   error
}

func (f *fakeScraper) Search(ctx context.Context, req scrape.SearchRequest) (*scrape.SearchResult, error) {
	return f.searchResult, f.searchErr
}

func (f *fakeScraper) Product(ctx context.Context, req scrape.ProductRequest) (*extract.RawProduct, error) {
	if f.productErr != nil {
		return nil, f.productErr
	}
	return &extract.RawProduct{ShopID: req.ShopID, ShopeeID: req.ShopeeID, Name: "x"}, nil
}

func (f *fakeScraper) Seller(ctx context.Context, req scrape.SellerRequest) error {
	return scraperr.NewValidation("seller", "seller scraping is not implemented")
}

type fakeQueue struct {
	mu      sync.Mutex
	retried []*queue.ScrapeJob
	delays  []time.Duration
	dead    []*queue.ScrapeJob
	reasons []string
}

func (f *fakeQueue) Enqueue(ctx context.Context, job *queue.ScrapeJob) error { return nil }

func (f *fakeQueue) Dequeue(ctx context.Context, jobType string, timeout time.Duration) (*queue.ScrapeJob, error) {
	return nil, queue.ErrNoJob
}

func (f *fakeQueue) Retry(ctx context.Context, job *queue.ScrapeJob, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job.Attempts++
	f.retried = append(f.retried, job)
	f.delays = append(f.delays, delay)
	return nil
}

func (f *fakeQueue) DeadLetter(ctx context.Context, job *queue.ScrapeJob, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dead = append(f.dead, job)
	f.reasons = append(f.reasons, reason)
	return nil
}

func (f *fakeQueue) PromoteDelayed(ctx context.Context) (int, error) { return 0, nil }
func (f *fakeQueue) Close() error                                    { return nil }

type fakePublisher struct {
	mu     sync.Mutex
	events []publisher.Event
}

func (f *fakePublisher) Publish(ctx context.Context, event publisher.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) Trim(ctx context.Context) error { return nil }
func (f *fakePublisher) Close() error                   { return nil }

func newTestPool(t *testing.T, scraper Scraper) (*Pool, *fakeQueue, *fakePublisher, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	q := &fakeQueue{}
	events := &fakePublisher{}
	cfg := config.LoadConfig()
	pool := NewPool(cfg, q, scraper, ingest.NewEngine(st), events)
	return pool, q, events, st
}

func int64p(v int64) *int64 { return &v }

func searchJob(t *testing.T) *queue.ScrapeJob {
	t.Helper()
	job, err := queue.NewJob(queue.TypeSearch, scrape.SearchRequest{Keyword: "sepatu"}, 3)
	require.NoError(t, err)
	return job
}

func TestProcessSearchSuccess(t *testing.T) {
	scraper := &fakeScraper{
		searchResult: &scrape.SearchResult{
			Cards: []extract.RawCard{
				{ShopID: "1", ShopeeID: "10", Name: "a", Price: int64p(1000)},
				{ShopID: "1", ShopeeID: "11", Name: "b", Price: int64p(2000)},
			},
		},
	}
	pool, q, events, st := newTestPool(t, scraper)

	pool.process(context.Background(), searchJob(t))

	assert.Empty(t, q.retried)
	assert.Empty(t, q.dead)
	require.Len(t, events.events, 1)
	assert.Equal(t, publisher.StatusCompleted, events.events[0].Status)
	assert.Equal(t, 2, events.events[0].Records)

	_, err := st.GetProduct(context.Background(), "10")
	assert.NoError(t, err)
}

func TestProcessRetryableFailureReschedules(t *testing.T) {
	scraper := &fakeScraper{
		searchErr: scraperr.NewNavigation("search", "navigate to listing", assert.AnError),
	}
	pool, q, events, _ := newTestPool(t, scraper)

	pool.process(context.Background(), searchJob(t))

	require.Len(t, q.retried, 1)
	assert.Empty(t, q.dead)
	assert.Equal(t, pool.cfg.BackoffBase, q.delays[0])
	require.Len(t, events.events, 1)
	assert.Equal(t, publisher.StatusFailed, events.events[0].Status)
}

func TestProcessPartialTraversalIngestsBeforeRetry(t *testing.T) {
	// An aborted traversal still delivers the cards it gathered.
	scraper := &fakeScraper{
		searchResult: &scrape.SearchResult{
			Cards: []extract.RawCard{{ShopID: "1", ShopeeID: "10", Name: "a", Price: int64p(1000)}},
		},
		searchErr: scraperr.NewNavigation("search", "wait for listing load", assert.AnError),
	}
	pool, q, _, st := newTestPool(t, scraper)

	pool.process(context.Background(), searchJob(t))

	require.Len(t, q.retried, 1)
	_, err := st.GetProduct(context.Background(), "10")
	assert.NoError(t, err)
}

func TestProcessPaginationAbortWithCardsCompletes(t *testing.T) {
	// A traversal that dies on the pager after gathering cards is a
	// partial success: records land, the event says completed.
	scraper := &fakeScraper{
		searchResult: &scrape.SearchResult{
			Cards: []extract.RawCard{
				{ShopID: "1", ShopeeID: "10", Name: "a", Price: int64p(1000)},
				{ShopID: "1", ShopeeID: "11", Name: "b", Price: int64p(2000)},
			},
		},
		searchErr: scraperr.NewPagination("search", "consecutive empty pages, traversal aborted"),
	}
	pool, q, events, st := newTestPool(t, scraper)

	pool.process(context.Background(), searchJob(t))

	assert.Empty(t, q.retried)
	assert.Empty(t, q.dead)
	require.Len(t, events.events, 1)
	assert.Equal(t, publisher.StatusCompleted, events.events[0].Status)
	assert.Equal(t, 2, events.events[0].Records)

	_, err := st.GetProduct(context.Background(), "10")
	assert.NoError(t, err)
}

func TestProcessPaginationAbortWithoutCardsFails(t *testing.T) {
	scraper := &fakeScraper{
		searchResult: &scrape.SearchResult{},
		searchErr:    scraperr.NewPagination("search", "pager stopped responding"),
	}
	pool, q, events, _ := newTestPool(t, scraper)

	pool.process(context.Background(), searchJob(t))

	require.Len(t, q.dead, 1)
	require.Len(t, events.events, 1)
	assert.Equal(t, publisher.StatusDead, events.events[0].Status)
}

func TestProcessExternalJobGetsDefaultAttemptBudget(t *testing.T) {
	// Raw jobs from the upstream enqueuer arrive without max_attempts; the
	// configured budget applies so their first failure still retries.
	scraper := &fakeScraper{
		searchErr: scraperr.NewNavigation("search", "navigate to listing", assert.AnError),
	}
	pool, q, _, _ := newTestPool(t, scraper)

	job := &queue.ScrapeJob{ID: "ext-1", Type: queue.TypeSearch, Payload: []byte(`{"keyword":"sepatu"}`)}
	pool.process(context.Background(), job)

	require.Len(t, q.retried, 1)
	assert.Empty(t, q.dead)
	assert.Equal(t, pool.cfg.MaxAttempts, job.MaxAttempts)
}

func TestProcessExhaustedJobDeadLetters(t *testing.T) {
	scraper := &fakeScraper{
		searchErr: scraperr.NewNavigation("search", "navigate to listing", assert.AnError),
	}
	pool, q, events, _ := newTestPool(t, scraper)

	job := searchJob(t)
	job.Attempts = 2 // third attempt is the last one

	pool.process(context.Background(), job)

	assert.Empty(t, q.retried)
	require.Len(t, q.dead, 1)
	require.Len(t, events.events, 1)
	assert.Equal(t, publisher.StatusDead, events.events[0].Status)
}

func TestProcessNonRetryableFailureDeadLettersImmediately(t *testing.T) {
	pool, q, _, _ := newTestPool(t, &fakeScraper{})

	job, err := queue.NewJob(queue.TypeSeller, scrape.SellerRequest{ShopID: "1"}, 3)
	require.NoError(t, err)

	pool.process(context.Background(), job)

	assert.Empty(t, q.retried)
	require.Len(t, q.dead, 1)
	assert.Contains(t, q.reasons[0], "not implemented")
}

func TestProcessBlockedFailureWaitsOutBlockWindow(t *testing.T) {
	scraper := &fakeScraper{
		searchErr: scraperr.NewBlocked("search", 5*time.Minute),
	}
	pool, q, _, _ := newTestPool(t, scraper)

	pool.process(context.Background(), searchJob(t))

	require.Len(t, q.retried, 1)
	assert.Equal(t, time.Duration(pool.cfg.BlockSeconds)*time.Second, q.delays[0])
}

func TestProcessMalformedPayload(t *testing.T) {
	pool, q, _, _ := newTestPool(t, &fakeScraper{})

	job := &queue.ScrapeJob{ID: "x", Type: queue.TypeProduct, Payload: []byte("{"), MaxAttempts: 3}
	pool.process(context.Background(), job)

	assert.Empty(t, q.retried)
	require.Len(t, q.dead, 1)
}

package scrape

import (
	"context"
	"errors"
	"time"

	"sip/scraperworker/logger"
	scraperr "sip/scraperworker/pkg/errors"
)

// State is the paginator's position in its traversal lifecycle.
type State string

const (
	StateAtPage    State = "at_page"
	StateScrolling State = "scrolling"
	StateWaiting   State = "waiting_for_load"
	StateDone      State = "done"
	StateAborted   State = "aborted"
)

// ResultPage abstracts one live result page. The production implementation
// drives a real browser tab; tests substitute a scripted fake.
type ResultPage interface {
	// CurrentPage reads the highlighted page number from the pager controls.
	CurrentPage() (int, bool)
	// TotalPages reads the pager's total page count when it is displayed.
	TotalPages() (int, bool)
	// CardCount cheaply counts visible product cards without extracting them.
	CardCount() int
	// Scroll walks the viewport down and back up to trigger lazy loading.
	Scroll() error
	// Advance moves the pager to the given page via next-button or direct
	// page-number click.
	Advance(page int) error
}

// CollectFunc extracts the cards of the current page and returns how many it
// produced. The paginator never sees cards, only counts.
type CollectFunc func(page int) (int, error)

// Options tune a traversal. Zero values fall back to safe defaults.
type Options struct {
	MaxPages        int
	MaxProducts     int
	MaxZeroCardRuns int
	MaxAdvanceFails int

	PollEvery   time.Duration
	PollBudget  int
	SettleDelay time.Duration
	ZeroRetry   time.Duration
}

func (o *Options) applyDefaults() {
	if o.MaxPages < 1 {
		o.MaxPages = 10
	}
	if o.MaxProducts < 1 {
		o.MaxProducts = 50
	}
	if o.MaxZeroCardRuns < 1 {
		o.MaxZeroCardRuns = 3
	}
	if o.MaxAdvanceFails < 1 {
		o.MaxAdvanceFails = 3
	}
	if o.PollEvery <= 0 {
		o.PollEvery = 500 * time.Millisecond
	}
	if o.PollBudget < 1 {
		o.PollBudget = 30
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = time.Second
	}
	if o.ZeroRetry <= 0 {
		o.ZeroRetry = 2 * time.Second
	}
}

// Summary reports what a finished traversal saw.
type Summary struct {
	State        State
	PagesVisited int
	Cards        int
}

// Paginator walks result pages in order, scrolling each one, collecting its
// cards and advancing until a terminal condition. It is an explicit state
// machine so a traversal that dies mid-way reports exactly where.
type Paginator struct {
	page  ResultPage
	opts  Options
	sleep func(time.Duration)
	log   *logger.Logger

	state State
}

// NewPaginator builds a paginator over an already-navigated first result page.
func NewPaginator(page ResultPage, opts Options) *Paginator {
	opts.applyDefaults()
	return &Paginator{
		page:  page,
		opts:  opts,
		sleep: time.Sleep,
		log:   logger.ForComponent("paginator"),
		state: StateAtPage,
	}
}

// State returns the paginator's current lifecycle state.
func (p *Paginator) State() State {
	return p.state
}

// Run traverses pages starting at page 1 and calls collect once per
// successfully loaded page. Cards gathered before an abort are kept; the
// returned summary counts them either way.
func (p *Paginator) Run(ctx context.Context, collect CollectFunc) (Summary, error) {
	current := 1
	zeroRuns := 0
	summary := Summary{}

	for {
		count, err := p.collectPage(ctx, current, collect, &zeroRuns)
		if err != nil {
			summary.State = p.state
			return summary, err
		}

		summary.PagesVisited++
		summary.Cards += count
		p.log.Debug().
			Int("page", current).
			Int("cards", count).
			Int("total", summary.Cards).
			Msg("page collected")

		if summary.Cards >= p.opts.MaxProducts {
			return p.finish(summary), nil
		}
		if current >= p.opts.MaxPages {
			return p.finish(summary), nil
		}
		if total, ok := p.page.TotalPages(); ok && current >= total {
			return p.finish(summary), nil
		}

		reached, err := p.advanceTo(ctx, current, current+1)
		if err != nil {
			summary.State = p.state
			return summary, err
		}
		current = reached
		p.sleep(p.opts.SettleDelay)
	}
}

// collectPage scrolls and collects one page, retrying empty renders until the
// consecutive-empty budget is spent.
func (p *Paginator) collectPage(ctx context.Context, page int, collect CollectFunc, zeroRuns *int) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			p.state = StateAborted
			return 0, scraperr.NewNavigation("search", "traversal cancelled", err)
		}

		p.state = StateScrolling
		if err := p.page.Scroll(); err != nil {
			p.log.WithError(err).Warn().Int("page", page).Msg("scroll failed")
		}
		p.sleep(p.opts.SettleDelay)

		p.state = StateAtPage
		count, err := collect(page)
		if err != nil {
			var serr *scraperr.ScrapeError
			if errors.As(err, &serr) && serr.Type == scraperr.ErrorTypeBlocked {
				p.state = StateAborted
				return 0, err
			}
			p.log.WithError(err).Warn().Int("page", page).Msg("card collection failed")
			count = 0
		}
		if count > 0 {
			*zeroRuns = 0
			return count, nil
		}

		*zeroRuns++
		p.log.Warn().
			Int("page", page).
			Int("zero_runs", *zeroRuns).
			Msg("no cards on page")
		if *zeroRuns >= p.opts.MaxZeroCardRuns {
			p.state = StateAborted
			return 0, scraperr.NewPagination("search", "consecutive empty pages, traversal aborted")
		}
		// Retry the same page; lazy content sometimes needs another pass.
		p.sleep(p.opts.ZeroRetry)
	}
}

// advanceTo clicks through to the next page and waits for it to render,
// retrying until the advance budget is spent. It returns the page number the
// pager actually landed on; a mismatch is logged and traversal continues
// from there.
func (p *Paginator) advanceTo(ctx context.Context, from, next int) (int, error) {
	p.state = StateWaiting
	for fails := 0; fails < p.opts.MaxAdvanceFails; fails++ {
		if err := ctx.Err(); err != nil {
			p.state = StateAborted
			return from, scraperr.NewNavigation("search", "traversal cancelled", err)
		}
		if err := p.page.Advance(next); err != nil {
			p.log.WithError(err).Warn().Int("page", next).Msg("advance failed")
			p.sleep(p.opts.ZeroRetry)
			continue
		}
		if p.waitForPage(next) {
			return next, nil
		}
		if cur, ok := p.page.CurrentPage(); ok && cur != from {
			p.log.Warn().
				Int("expected", next).
				Int("actual", cur).
				Msg("pager landed on a different page")
			return cur, nil
		}
		p.log.Warn().Int("page", next).Msg("next page never settled")
	}
	p.state = StateAborted
	return from, scraperr.NewPagination("search", "pager stopped responding")
}

func (p *Paginator) finish(summary Summary) Summary {
	p.state = StateDone
	summary.State = StateDone
	return summary
}

// waitForPage polls until the pager reports the expected page with at least
// one card rendered, or the poll budget runs out.
func (p *Paginator) waitForPage(expected int) bool {
	for i := 0; i < p.opts.PollBudget; i++ {
		if cur, ok := p.page.CurrentPage(); ok && cur == expected && p.page.CardCount() > 0 {
			return true
		}
		p.sleep(p.opts.PollEvery)
	}
	return false
}

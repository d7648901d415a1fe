package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"

	"sip/scraperworker/config"
	"sip/scraperworker/internal/browser"
	"sip/scraperworker/internal/extract"
	"sip/scraperworker/internal/metrics"
	"sip/scraperworker/logger"
	scraperr "sip/scraperworker/pkg/errors"
	"sip/scraperworker/services/cache"
)

// blockCacheKey marks the whole site as temporarily off limits after an
// anti-bot challenge, shared across worker processes via memcache.
const blockCacheKey = "sip:blocked"

// seenLinkCacheSize bounds the cross-page duplicate filter of one traversal.
const seenLinkCacheSize = 4096

// blockMarkers in a rendered page mean the session tripped bot detection.
var blockMarkers = []string{
	"captcha",
	"verify/traffic",
	"verifikasi",
	"/verify/captcha",
}

// SearchRequest describes one result-listing traversal.
type SearchRequest struct {
	Keyword    string `json:"keyword,omitempty"`
	ShopID     string `json:"shop_id,omitempty"`
	CategoryID string `json:"category_id,omitempty"`
	SortBy     string `json:"sort_by,omitempty"`

	MaxPages    int `json:"max_pages,omitempty"`
	MaxProducts int `json:"max_products,omitempty"`
}

// SearchResult carries the traversal outcome alongside its cards.
type SearchResult struct {
	Cards   []extract.RawCard
	Summary Summary
}

// Scraper drives browser sessions against result listings and detail pages.
type Scraper struct {
	cfg     config.Config
	browser *browser.Manager
	locator *extract.Locator
	blocks  cache.CacheService
	log     *logger.Logger
}

// NewScraper wires a scraper. The blocks cache may be nil, in which case
// block windows are not shared between processes.
func NewScraper(cfg config.Config, mgr *browser.Manager, blocks cache.CacheService) *Scraper {
	return &Scraper{
		cfg:     cfg,
		browser: mgr,
		locator: extract.NewLocator(cfg.MinCardMatches),
		blocks:  blocks,
		log:     logger.ForComponent("scraper"),
	}
}

// traversal accumulates the cards of one listing run. The seen-link cache
// lives here, not on the Scraper, so a later job over the same listing
// re-observes every card and refreshes its record.
type traversal struct {
	scraper *Scraper
	seen    *lru.Cache[string, struct{}]
	cards   []extract.RawCard
}

func (s *Scraper) newTraversal() *traversal {
	seen, _ := lru.New[string, struct{}](seenLinkCacheSize)
	return &traversal{scraper: s, seen: seen}
}

// collect extracts the cards of one page snapshot, skipping links already
// gathered on an earlier page of this traversal.
func (t *traversal) collect(doc *goquery.Document, pageNo int) (int, error) {
	s := t.scraper
	if s.detectBlock(doc.Text()) {
		return 0, s.markBlocked("search")
	}

	fresh := 0
	for i, sel := range s.locator.Locate(doc, extract.ModeAll) {
		card := extract.Card(sel, i, s.cfg.BaseURL)
		card.Page = pageNo
		if card.Link != "" {
			if _, dup := t.seen.Get(card.Link); dup {
				continue
			}
			t.seen.Add(card.Link, struct{}{})
		}
		t.cards = append(t.cards, card)
		fresh++
	}
	metrics.CardsExtracted.WithLabelValues("search").Add(float64(fresh))
	metrics.PagesVisited.Inc()
	return fresh, nil
}

// Search traverses a result listing and returns its extracted cards. Cards
// collected before an abort are returned alongside the error.
func (s *Scraper) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if req.Keyword == "" && req.ShopID == "" && req.CategoryID == "" {
		return nil, scraperr.NewValidation("search", "keyword, shop_id or category_id is required")
	}
	if err := s.checkBlocked("search"); err != nil {
		return nil, err
	}

	startURL := s.startURL(req)
	page, err := s.browser.NewPage()
	if err != nil {
		return nil, scraperr.NewNavigation("search", "open browser page", err)
	}
	defer s.browser.ClosePage(page)

	s.log.Info().Str("url", startURL).Msg("starting listing traversal")
	if err := page.Navigate(startURL); err != nil {
		return nil, scraperr.NewNavigation("search", "navigate to listing", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, scraperr.NewNavigation("search", "wait for listing load", err)
	}

	resultPage := newRodResultPage(page, s.locator.MainSelectors)
	paginator := NewPaginator(resultPage, Options{
		MaxPages:        s.limit(req.MaxPages, s.cfg.MaxPages),
		MaxProducts:     s.limit(req.MaxProducts, s.cfg.MaxProducts),
		MaxZeroCardRuns: s.cfg.MaxZeroCardRuns,
		PollEvery:       s.cfg.PollEvery,
		SettleDelay:     s.cfg.SettleDelay,
	})

	trav := s.newTraversal()
	summary, runErr := paginator.Run(ctx, func(pageNo int) (int, error) {
		doc, err := resultPage.Document()
		if err != nil {
			return 0, scraperr.NewParsing("search", "snapshot listing page", err)
		}
		return trav.collect(doc, pageNo)
	})

	result := &SearchResult{Cards: trav.cards, Summary: summary}
	if runErr != nil {
		s.log.WithError(runErr).Warn().
			Int("pages", summary.PagesVisited).
			Int("cards", len(result.Cards)).
			Msg("traversal ended early")
		return result, runErr
	}

	s.log.Info().
		Int("pages", summary.PagesVisited).
		Int("cards", len(result.Cards)).
		Msg("traversal finished")
	return result, nil
}

func (s *Scraper) startURL(req SearchRequest) string {
	switch {
	case req.Keyword != "":
		return SearchURL(s.cfg.BaseURL, req.Keyword, 1, req.SortBy)
	case req.ShopID != "":
		return ShopSearchURL(s.cfg.BaseURL, req.ShopID, 1, req.SortBy)
	default:
		return CategoryURL(s.cfg.BaseURL, req.CategoryID, 1)
	}
}

func (s *Scraper) limit(requested, configured int) int {
	if requested > 0 && requested < configured {
		return requested
	}
	return configured
}

// checkBlocked refuses to start while a shared block window is active.
func (s *Scraper) checkBlocked(jobType string) error {
	if s.blocks == nil {
		return nil
	}
	if _, err := s.blocks.Get(blockCacheKey); err == nil {
		return scraperr.NewBlocked(jobType, time.Duration(s.cfg.BlockSeconds)*time.Second)
	}
	return nil
}

// markBlocked opens a shared block window and returns the matching error.
func (s *Scraper) markBlocked(jobType string) error {
	d := time.Duration(s.cfg.BlockSeconds) * time.Second
	if s.blocks != nil {
		if err := s.blocks.Set(blockCacheKey, []byte("1"), d); err != nil {
			s.log.WithError(err).Warn().Msg("block window not persisted")
		}
	}
	return scraperr.NewBlocked(jobType, d)
}

func (s *Scraper) detectBlock(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

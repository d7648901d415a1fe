package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sip/scraperworker/helpers"
	"sip/scraperworker/internal/extract"
	"sip/scraperworker/internal/metrics"
	scraperr "sip/scraperworker/pkg/errors"
)

const selProductBriefing = `[class*="product-briefing"]`

// ProductRequest identifies one detail page, either by full URL or id pair.
type ProductRequest struct {
	URL      string `json:"url,omitempty"`
	ShopID   string `json:"shop_id,omitempty"`
	ShopeeID string `json:"shopee_id,omitempty"`
}

// Product scrapes one product detail page. A plain HTTP fetch runs first;
// only when the static document carries no usable product does a full
// browser session start.
func (s *Scraper) Product(ctx context.Context, req ProductRequest) (*extract.RawProduct, error) {
	url := req.URL
	if url == "" {
		if req.ShopID == "" || req.ShopeeID == "" {
			return nil, scraperr.NewValidation("product", "url or shop_id and shopee_id are required")
		}
		url = ProductURL(s.cfg.BaseURL, "", req.ShopID, req.ShopeeID)
	}
	if err := s.checkBlocked("product"); err != nil {
		return nil, err
	}

	if product, ok := s.productDirect(url); ok {
		s.log.Debug().Str("url", url).Msg("detail page resolved without browser")
		metrics.CardsExtracted.WithLabelValues("product").Inc()
		return product, nil
	}

	product, err := s.productBrowser(ctx, url)
	if err != nil {
		return nil, err
	}
	metrics.CardsExtracted.WithLabelValues("product").Inc()
	return product, nil
}

// productDirect attempts the cheap static fetch. Server-rendered detail pages
// sometimes carry enough markup to skip the browser entirely.
func (s *Scraper) productDirect(url string) (*extract.RawProduct, bool) {
	body, err := helpers.FetchWithRandomHeaders(url)
	if err != nil {
		s.log.WithError(err).Debug().Str("url", url).Msg("direct fetch failed")
		return nil, false
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, false
	}
	if s.detectBlock(doc.Text()) {
		return nil, false
	}

	product := extract.Detail(doc, url)
	if product.Name == "" || product.Price == nil {
		return nil, false
	}
	return &product, true
}

func (s *Scraper) productBrowser(ctx context.Context, url string) (*extract.RawProduct, error) {
	page, err := s.browser.NewPage()
	if err != nil {
		return nil, scraperr.NewNavigation("product", "open browser page", err)
	}
	defer s.browser.ClosePage(page)

	page = page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return nil, scraperr.NewNavigation("product", "navigate to detail page", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, scraperr.NewNavigation("product", "wait for detail load", err)
	}
	if _, err := page.Element(selProductBriefing); err != nil {
		return nil, scraperr.NewNavigation("product", "detail briefing never rendered", err)
	}

	// Nudge lazy sections (gallery, description) into the DOM.
	if _, err := page.Eval(`() => window.scrollTo(0, document.body.scrollHeight / 2)`); err == nil {
		time.Sleep(s.cfg.SettleDelay)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, scraperr.NewParsing("product", "snapshot detail page", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, scraperr.NewParsing("product", "parse detail page", err)
	}
	if s.detectBlock(doc.Text()) {
		return nil, s.markBlocked("product")
	}

	product := extract.Detail(doc, url)
	if product.Name == "" {
		return nil, scraperr.NewParsing("product", "no product content on detail page", nil)
	}
	return &product, nil
}

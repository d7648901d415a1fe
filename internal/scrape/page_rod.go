package scrape

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

var errNoPagerControl = errors.New("no pager control available")

// Pager control selectors on result pages.
const (
	selCurrentPage = `.shopee-page-controller .shopee-button-solid--primary`
	selMiniTotal   = `.shopee-mini-page-controller__total`
	selPagerButton = `.shopee-page-controller button`
	selMiniNext    = `.shopee-mini-page-controller__next-btn:not([disabled])`
	selNextArrow   = `.shopee-page-controller .shopee-icon-button--right:not([disabled])`
)

// rodResultPage adapts a live browser tab to the ResultPage interface. Card
// extraction itself happens off a DOM snapshot, never against the live tab.
type rodResultPage struct {
	page          *rod.Page
	cardSelectors []string
}

func newRodResultPage(page *rod.Page, cardSelectors []string) *rodResultPage {
	return &rodResultPage{page: page, cardSelectors: cardSelectors}
}

func (r *rodResultPage) CurrentPage() (int, bool) {
	els, err := r.page.Elements(selCurrentPage)
	if err != nil || len(els) == 0 {
		return 0, false
	}
	text, err := els.First().Text()
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, false
	}
	return n, true
}

func (r *rodResultPage) TotalPages() (int, bool) {
	if els, err := r.page.Elements(selMiniTotal); err == nil && len(els) > 0 {
		if text, err := els.First().Text(); err == nil {
			if n, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
				return n, true
			}
		}
	}

	// Fall back to the highest numbered pager button.
	els, err := r.page.Elements(selPagerButton)
	if err != nil {
		return 0, false
	}
	max := 0
	for _, el := range els {
		text, err := el.Text()
		if err != nil {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(text)); err == nil && n > max {
			max = n
		}
	}
	return max, max > 0
}

func (r *rodResultPage) CardCount() int {
	for _, selector := range r.cardSelectors {
		if els, err := r.page.Elements(selector); err == nil && len(els) > 0 {
			return len(els)
		}
	}
	return 0
}

// Scroll walks down in two steps and returns to the top so lazily rendered
// cards above and below the fold both materialize.
func (r *rodResultPage) Scroll() error {
	steps := []struct {
		js    string
		pause time.Duration
	}{
		{`() => window.scrollTo(0, document.body.scrollHeight / 2)`, 500 * time.Millisecond},
		{`() => window.scrollTo(0, document.body.scrollHeight)`, 500 * time.Millisecond},
		{`() => window.scrollTo(0, 0)`, 300 * time.Millisecond},
	}
	for _, step := range steps {
		if _, err := r.page.Eval(step.js); err != nil {
			return err
		}
		time.Sleep(step.pause)
	}
	return nil
}

// Advance clicks through to the requested page, preferring the compact
// next-button, then the arrow button, then the numbered button itself.
func (r *rodResultPage) Advance(page int) error {
	for _, selector := range []string{selMiniNext, selNextArrow} {
		els, err := r.page.Elements(selector)
		if err != nil || len(els) == 0 {
			continue
		}
		return els.First().Click(proto.InputMouseButtonLeft, 1)
	}

	// Direct page-number click.
	els, err := r.page.Elements(selPagerButton)
	if err != nil {
		return err
	}
	want := strconv.Itoa(page)
	for _, el := range els {
		text, err := el.Text()
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == want {
			return el.Click(proto.InputMouseButtonLeft, 1)
		}
	}
	return errNoPagerControl
}

// Document snapshots the rendered DOM for extraction.
func (r *rodResultPage) Document() (*goquery.Document, error) {
	html, err := r.page.HTML()
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

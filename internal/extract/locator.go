package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Default structural selectors for result pages, most specific first. The
// marketplace reshuffles class names regularly, so every tier is an ordered
// cascade and the first selector clearing the minimum-match floor wins.
var (
	defaultMainSelectors = []string{
		".shop-search-result-view__item",
		".shopee-search-item-result__item",
	}
	defaultFeaturedSelectors = []string{
		".shop-collection-view__item",
	}
	defaultFallbackSelectors = []string{
		`[data-sqe="item"]`,
		`[data-item-id]`,
		".col-xs-2-4",
	}
)

// Locator finds product-card fragments on a rendered result page.
type Locator struct {
	MainSelectors     []string
	FeaturedSelectors []string
	FallbackSelectors []string

	// MinMatches rejects accidental single-element matches from unrelated
	// page furniture. Empirically tuned, kept configurable.
	MinMatches int
}

// NewLocator creates a locator with the default selector cascades.
func NewLocator(minMatches int) *Locator {
	if minMatches < 1 {
		minMatches = 3
	}
	return &Locator{
		MainSelectors:     defaultMainSelectors,
		FeaturedSelectors: defaultFeaturedSelectors,
		FallbackSelectors: defaultFallbackSelectors,
		MinMatches:        minMatches,
	}
}

// Locate returns the product cards on the page in document order,
// deduplicated by canonical product link. Cards without a resolvable link are
// kept since duplication cannot be proven. An empty result is not an error;
// the caller decides whether it is terminal or a retry signal.
func (l *Locator) Locate(doc *goquery.Document, mode Mode) []*goquery.Selection {
	var cards []*goquery.Selection

	if mode == ModeAll || mode == ModeMain {
		cards = append(cards, l.firstMatching(doc, l.MainSelectors)...)
	}
	if mode == ModeAll || mode == ModeFeatured {
		cards = append(cards, l.firstMatching(doc, l.FeaturedSelectors)...)
	}

	// Fallback tier: generic structural selectors, returned without
	// deduplication against other sections.
	if len(cards) == 0 {
		return l.firstMatching(doc, l.FallbackSelectors)
	}

	return dedupeByLink(cards)
}

// firstMatching tries selectors in order and returns the matches of the first
// selector clearing the minimum-match floor.
func (l *Locator) firstMatching(doc *goquery.Document, selectors []string) []*goquery.Selection {
	for _, selector := range selectors {
		sel := doc.Find(selector)
		if sel.Length() < l.MinMatches {
			continue
		}
		cards := make([]*goquery.Selection, 0, sel.Length())
		sel.Each(func(_ int, s *goquery.Selection) {
			cards = append(cards, s)
		})
		return cards
	}
	return nil
}

// dedupeByLink drops later cards resolving to an already-seen canonical
// product link. The same product may appear in both featured and main lists.
func dedupeByLink(cards []*goquery.Selection) []*goquery.Selection {
	seen := make(map[string]struct{}, len(cards))
	unique := make([]*goquery.Selection, 0, len(cards))

	for _, card := range cards {
		link := CanonicalLink(card)
		if link == "" {
			unique = append(unique, card)
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		unique = append(unique, card)
	}
	return unique
}

// CanonicalLink returns the card's product link stripped of query and
// fragment, or "" when the card carries no product-link anchor.
func CanonicalLink(card *goquery.Selection) string {
	href, ok := card.Find(`a[href*="-i."]`).First().Attr("href")
	if !ok {
		return ""
	}
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	return href
}

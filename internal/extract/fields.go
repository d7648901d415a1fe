package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"sip/scraperworker/helpers"
)

// Each field is resolved by an ordered cascade of independent strategies;
// the first one producing a value wins. A change in any single DOM shape
// degrades that strategy, not the whole card.

var ratingExactRe = regexp.MustCompile(`^[0-5]\.\d$`)

// badgeAltMarkers identify decorative images whose alt text must never be
// mistaken for a product name or image.
var badgeAltMarkers = []string{"label", "badge", "star", "flag", "overlay", "promotion"}

// ExtractName resolves the product name, or "" when every strategy missed.
func ExtractName(card *goquery.Selection) string {
	// 1. Clamped summary element
	clamp := card.Find(`.line-clamp-2, [class*="line-clamp"]`).First()
	if text := helpers.CollapseSpaces(clamp.Text()); len(text) > 3 {
		return text
	}

	// 2. Main image alt text, excluding badge/label alts. Ten runes is the
	// minimum for an alt to plausibly be a product name.
	name := ""
	card.Find(`img[alt]`).EachWithBreak(func(_ int, img *goquery.Selection) bool {
		alt, _ := img.Attr("alt")
		alt = strings.TrimSpace(alt)
		if utf8.RuneCountInString(alt) < 10 || isBadgeAlt(alt) {
			return true
		}
		name = alt
		return false
	})
	if name != "" {
		return name
	}

	// 3. Slug parsed out of the product link
	if link := CanonicalLink(card); link != "" {
		if slug, ok := SlugName(link); ok {
			return slug
		}
	}

	// 4. First plausible block of free text
	card.Find("div, span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := helpers.CollapseSpaces(s.Text())
		if len(text) < 10 || len(text) > 200 {
			return true
		}
		if strings.Contains(text, "Rp") || strings.Contains(text, "%") ||
			strings.Contains(text, "terjual") || strings.Contains(text, "Diskon") {
			return true
		}
		name = text
		return false
	})
	return name
}

// ExtractPrice resolves the display price ("Rp1.234.567") and its numeric
// value with thousands separators stripped.
func ExtractPrice(card *goquery.Selection) (string, *int64) {
	display := ""

	// 1. Elements whose class hints at "price"
	card.Find(`[class*="price"], [class*="Price"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if !strings.Contains(text, "Rp") {
			return true
		}
		display = strings.Join(strings.Fields(text), "")
		return false
	})

	// 2. Currency-prefixed numeric run anywhere in the card text
	if display == "" {
		if m := priceRe.FindStringSubmatch(card.Text()); m != nil {
			display = "Rp" + strings.ReplaceAll(m[1], " ", "")
		}
	}

	// 3. Flex containers whose text is exactly a price token
	if display == "" {
		card.Find(".flex").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if !priceExactRe.MatchString(text) {
				return true
			}
			display = text
			return false
		})
	}

	if display == "" {
		return "", nil
	}
	if v, ok := ParsePriceIDR(display); ok {
		return display, int64Ptr(v)
	}
	return display, nil
}

// ExtractDiscount resolves the discount percentage badge.
func ExtractDiscount(card *goquery.Selection) *int {
	// 1. Promotional badge element
	badge := card.Find(`.bg-shopee-pink, [class*="shopee-pink"]`).First()
	if text := strings.TrimSpace(badge.Text()); strings.Contains(text, "%") {
		if v, ok := ParseDiscount(text); ok {
			return intPtr(v)
		}
	}

	// 2. Any aria-label carrying a percent sign
	var fromLabel *int
	card.Find(`[aria-label*="%"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		label, _ := s.Attr("aria-label")
		if v, ok := ParseDiscount(label); ok {
			fromLabel = intPtr(v)
			return false
		}
		return true
	})
	if fromLabel != nil {
		return fromLabel
	}

	// 3. Percent token anywhere in the card text
	if v, ok := ParseDiscount(card.Text()); ok {
		return intPtr(v)
	}
	return nil
}

// ExtractSold resolves the units-sold count. The rb/k suffixes are the
// Indonesian thousands shorthand.
func ExtractSold(card *goquery.Selection) *int64 {
	// 1. Innermost element containing the localized "sold" keyword
	best := ""
	card.Find("div, span").Each(func(_ int, s *goquery.Selection) {
		text := helpers.CollapseSpaces(s.Text())
		if !strings.Contains(strings.ToLower(text), "terjual") {
			return
		}
		if best == "" || len(text) < len(best) {
			best = text
		}
	})
	if best != "" {
		if v, ok := ParseSoldCount(best); ok {
			return int64Ptr(v)
		}
	}

	// 2./3. Pattern scan of the whole card text, then bare shorthand
	if v, ok := ParseSoldCount(card.Text()); ok {
		return int64Ptr(v)
	}
	return nil
}

// ExtractRating resolves the 0.0-5.0 listing rating.
func ExtractRating(card *goquery.Selection) *float64 {
	// 1. Sibling text next to the rating-star icon
	var fromIcon *float64
	card.Find(`img[alt*="rating"], img[alt*="star"]`).EachWithBreak(func(_ int, icon *goquery.Selection) bool {
		icon.Parent().Find("span").EachWithBreak(func(_ int, sib *goquery.Selection) bool {
			text := strings.TrimSpace(sib.Text())
			if !ratingExactRe.MatchString(text) {
				return true
			}
			if v, ok := ParseRating(text); ok {
				fromIcon = floatPtr(v)
				return false
			}
			return true
		})
		return fromIcon == nil
	})
	if fromIcon != nil {
		return fromIcon
	}

	// 2. Rating pattern anywhere in the card text
	if v, ok := ParseRating(card.Text()); ok {
		return floatPtr(v)
	}
	return nil
}

// ExtractLocation resolves the seller location line.
func ExtractLocation(card *goquery.Selection) string {
	// 1. Location-hinting class
	loc := card.Find(`[class*="location"], [class*="shop-loc"]`).First()
	if text := helpers.CollapseSpaces(loc.Text()); text != "" {
		return text
	}

	// 2. Known city names
	if line, ok := matchCityLine(card.Text()); ok {
		return line
	}

	// 3. Generic administrative region prefix
	if region, ok := matchRegionPrefix(card.Text()); ok {
		return region
	}
	return ""
}

// ExtractLink resolves the product link, made absolute against baseURL.
func ExtractLink(card *goquery.Selection, baseURL string) string {
	link := card.Find(`a[href*="-i."]`).First()
	if link.Length() == 0 {
		link = card.Find("a.contents").First()
	}
	if href, ok := link.Attr("href"); ok {
		return resolveURL(href, baseURL)
	}

	// The card itself may be the anchor
	if goquery.NodeName(card) == "a" {
		if href, ok := card.Attr("href"); ok {
			return resolveURL(href, baseURL)
		}
	}
	return ""
}

// ExtractImage resolves the main product image, skipping badge and overlay
// images and requiring a known asset host.
func ExtractImage(card *goquery.Selection) string {
	src := ""
	card.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		url, ok := img.Attr("src")
		if !ok || url == "" {
			url, _ = img.Attr("data-src")
		}
		alt, _ := img.Attr("alt")
		if isBadgeAlt(alt) {
			return true
		}
		if url != "" && (strings.Contains(url, "susercontent.com") || strings.Contains(url, "shopee")) {
			src = url
			return false
		}
		return true
	})
	return src
}

// Card runs every field cascade against one card fragment.
func Card(sel *goquery.Selection, index int, baseURL string) RawCard {
	card := RawCard{Index: index}

	card.Name = helpers.TruncateRunes(ExtractName(sel), MaxNameLength)
	card.PriceDisplay, card.Price = ExtractPrice(sel)
	card.DiscountPercent = ExtractDiscount(sel)
	card.SoldCount = ExtractSold(sel)
	card.Rating = ExtractRating(sel)
	card.Location = ExtractLocation(sel)
	card.Link = ExtractLink(sel, baseURL)
	card.ImageURL = ExtractImage(sel)

	if card.Link != "" {
		if shopID, itemID, ok := ParseProductURL(card.Link); ok {
			card.ShopID = shopID
			card.ShopeeID = itemID
		}
	}
	return card
}

func isBadgeAlt(alt string) bool {
	lower := strings.ToLower(alt)
	for _, marker := range badgeAltMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func resolveURL(href, baseURL string) string {
	href = strings.TrimSpace(href)
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	default:
		return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(href, "/")
	}
}

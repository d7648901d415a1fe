package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sip/scraperworker/helpers"
)

// MaxDescriptionLength caps the free-text description on detail pages.
const MaxDescriptionLength = 2000

// maxVariantLength rejects variant buttons whose text is clearly not an
// option label.
const maxVariantLength = 100

// Detail extracts a full product from a rendered detail page. Unlike result
// cards, detail pages expose the original price, stock, image gallery,
// variants, and the seller section.
func Detail(doc *goquery.Document, pageURL string) RawProduct {
	product := RawProduct{}

	if shopID, itemID, ok := ParseProductURL(pageURL); ok {
		product.ShopID = shopID
		product.ShopeeID = itemID
	}

	product.Name = detailName(doc)
	product.Price, product.OriginalPrice = detailPrices(doc)
	if product.Price != nil && product.OriginalPrice != nil && *product.OriginalPrice > *product.Price {
		pct := int(float64(*product.OriginalPrice-*product.Price) / float64(*product.OriginalPrice) * 100.0)
		product.DiscountPercent = intPtr(pct)
	}

	ratingSection := doc.Find(`[class*="product-rating"]`).First().Text()
	if ratingSection == "" {
		ratingSection = doc.Find(`[class*="product-briefing"]`).First().Text()
	}
	if v, ok := ParseRating(ratingSection); ok {
		product.Rating = floatPtr(v)
	}
	if v, ok := ParseRatingCount(ratingSection); ok {
		product.RatingCount = int64Ptr(v)
	}

	briefing := doc.Find(`[class*="product-briefing"]`).First().Text()
	if briefing == "" {
		briefing = doc.Text()
	}
	if v, ok := ParseSoldCount(briefing); ok {
		product.SoldCount = int64Ptr(v)
	}
	if v, ok := ParseStock(briefing); ok {
		product.Stock = int64Ptr(v)
	}

	product.Images = detailImages(doc)
	product.Variants = detailVariants(doc)
	product.Seller = detailSeller(doc)
	product.Description = detailDescription(doc)

	return product
}

func detailName(doc *goquery.Document) string {
	name := helpers.CollapseSpaces(doc.Find(`[class*="product-name"]`).First().Text())
	if name == "" {
		name = helpers.CollapseSpaces(doc.Find("h1").First().Text())
	}
	return helpers.TruncateRunes(name, MaxNameLength)
}

// detailPrices reads the price section. The first price token is the current
// price; a second one, when present, is the struck-through original.
func detailPrices(doc *goquery.Document) (price, original *int64) {
	section := doc.Find(`[class*="product-price"]`).First().Text()
	if section == "" {
		return nil, nil
	}

	matches := priceRe.FindAllStringSubmatch(section, 2)
	values := make([]int64, 0, 2)
	for _, m := range matches {
		if v, ok := ParsePriceIDR("Rp" + m[1]); ok {
			values = append(values, v)
		}
	}
	if len(values) > 0 {
		price = int64Ptr(values[0])
	}
	if len(values) > 1 && values[1] != values[0] {
		original = int64Ptr(values[1])
	}
	return price, original
}

// detailImages collects gallery image URLs. Thumbnail variants carry a "_tn"
// suffix that maps to the full-size asset when stripped.
func detailImages(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var images []string

	doc.Find(`[class*="product-image"] img, [class*="slider"] img`).Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || !strings.Contains(src, "susercontent.com") {
			return
		}
		src = strings.TrimSuffix(src, "_tn")
		if _, dup := seen[src]; dup {
			return
		}
		seen[src] = struct{}{}
		images = append(images, src)
	})
	return images
}

func detailVariants(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var variants []string

	doc.Find(`[class*="variation"] button, [class*="tier"] button`).Each(func(_ int, btn *goquery.Selection) {
		text := helpers.CollapseSpaces(btn.Text())
		if text == "" || len(text) >= maxVariantLength {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		variants = append(variants, text)
	})
	return variants
}

func detailSeller(doc *goquery.Document) *RawSeller {
	section := doc.Find(`[class*="shop-info"], [class*="seller-info"]`).First()
	if section.Length() == 0 {
		return nil
	}

	name := helpers.CollapseSpaces(section.Find(`[class*="shop-name"]`).First().Text())
	if name == "" {
		name = helpers.CollapseSpaces(section.Find("a").First().Text())
	}
	if name == "" {
		return nil
	}

	seller := &RawSeller{Name: name}
	if href, ok := section.Find("a").First().Attr("href"); ok {
		seller.Username = strings.Trim(strings.TrimPrefix(href, "/"), "/")
	}
	if line, ok := matchCityLine(section.Text()); ok {
		seller.Location = line
	} else if region, ok := matchRegionPrefix(section.Text()); ok {
		seller.Location = region
	}
	return seller
}

func detailDescription(doc *goquery.Document) string {
	text := strings.TrimSpace(doc.Find(`[class*="product-detail"] [class*="content"]`).First().Text())
	if text == "" {
		text = strings.TrimSpace(doc.Find(`[class*="description"]`).First().Text())
	}
	return helpers.TruncateRunes(text, MaxDescriptionLength)
}
